package portal

import (
	"fmt"
	"time"
)

// DefaultPortalURL is the oligonucleotide order history page
const DefaultPortalURL = "https://www.genomed.pl/index.php/pl/moje-konto/oligonukleotydy"

// Options contains configuration for the browser session
type Options struct {
	// ExecPath points at the Chrome/Chromium binary; empty lets chromedp find one
	ExecPath string
	// Headless controls whether to run browser in headless mode
	Headless bool
	// Timeout bounds every single browser action
	Timeout time.Duration
	// SettleTimeout bounds the wait for an order entry to open or close
	SettleTimeout time.Duration
	// PollInterval is how often the page is checked while settling
	PollInterval time.Duration
	// DisableImages optimizes performance by not loading images
	DisableImages bool
	// UserAgent to use for requests
	UserAgent string
	// ViewportWidth sets browser viewport width
	ViewportWidth int64
	// ViewportHeight sets browser viewport height
	ViewportHeight int64
	// DebugMode forwards chromedp's protocol log to the logger
	DebugMode bool
}

// DefaultOptions returns sensible defaults for the portal session
func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		SettleTimeout:  10 * time.Second,
		PollInterval:   200 * time.Millisecond,
		DisableImages:  true,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// Validate checks that the timing values are usable
func (o *Options) Validate() error {
	if o.Timeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}
	if o.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout must be positive")
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if o.PollInterval > o.SettleTimeout {
		return fmt.Errorf("poll interval %v exceeds settle timeout %v", o.PollInterval, o.SettleTimeout)
	}
	return nil
}
