package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"oligo-export/internal/portal"
)

// ChromeOpener starts a real browser session for each run
func ChromeOpener(options *portal.Options, selectors portal.Selectors, logger *slog.Logger) SessionOpener {
	return SessionOpenerFunc(func(ctx context.Context) (Browser, error) {
		session, err := portal.Open(ctx, options, selectors, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
}

// SavedPageOpener serves a saved copy of the order page instead of the portal
func SavedPageOpener(path string, selectors portal.Selectors) SessionOpener {
	return SessionOpenerFunc(func(ctx context.Context) (Browser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open saved page: %w", err)
		}
		defer f.Close()

		page, err := portal.NewStaticPage(f, selectors)
		if err != nil {
			return nil, err
		}
		return page, nil
	})
}
