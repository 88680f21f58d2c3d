package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"oligo-export/internal/primers"
)

// Session is one exclusively owned browser logged into the portal. It must
// be closed on every exit path.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	options     *Options
	selectors   Selectors
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
}

// CheckBrowser verifies that Chrome/Chromium can be started with options
func CheckBrowser(ctx context.Context, options *Options) error {
	if options == nil {
		options = DefaultOptions()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(options)...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("Chrome/Chromium not available or not working: %w", err)
	}
	return nil
}

// Open starts a browser. Cancelling ctx tears the browser down.
func Open(ctx context.Context, options *Options, selectors Selectors, logger *slog.Logger) (*Session, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if err := selectors.Validate(); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(options)...)

	var contextOpts []chromedp.ContextOption
	if options.DebugMode {
		contextOpts = append(contextOpts, chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}))
	}
	contextOpts = append(contextOpts, chromedp.WithErrorf(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
	}))
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, contextOpts...)

	// The first Run allocates the browser and must not use a timeout context
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug("Browser started", "headless", options.Headless, "exec_path", options.ExecPath)

	return &Session{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		options:     options,
		selectors:   selectors,
		logger:      logger,
	}, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil && err != context.Canceled {
		return fmt.Errorf("failed to close browser: %w", err)
	}

	s.logger.Debug("Browser closed")
	return nil
}

// Login opens url and submits the login form
func (s *Session) Login(ctx context.Context, url string, creds primers.Credentials) error {
	fail := func(op string, err error) error {
		return &primers.Error{Kind: primers.KindAuthentication, Op: op, Err: err}
	}

	if creds.Username == "" || creds.Password == "" {
		return fail("check credentials", fmt.Errorf("username and password are required"))
	}

	sel := s.selectors
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(sel.UsernameInput, chromedp.ByQuery),
		chromedp.SendKeys(sel.UsernameInput, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(sel.PasswordInput, creds.Password, chromedp.ByQuery),
		chromedp.Click(sel.SubmitButton, chromedp.ByQuery),
	)
	if err != nil {
		return fail("submit login form", err)
	}

	// The form stays on the page when the portal rejects the credentials
	script := fmt.Sprintf(`document.querySelector(%s) === null`, jsString(sel.PasswordInput))
	err = pollUntil(ctx, s.options.SettleTimeout, s.options.PollInterval, func(ctx context.Context) (bool, error) {
		var gone bool
		if err := s.run(ctx, chromedp.Evaluate(script, &gone)); err != nil {
			// navigation in flight
			return false, nil
		}
		return gone, nil
	})
	if err != nil {
		return fail("wait for login", err)
	}

	s.logger.Info("Logged in to portal", "url", url, "username", creds.Username)
	return nil
}

// OrderHandles lists the order toggles in document order
func (s *Session) OrderHandles(ctx context.Context) ([]OrderHandle, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(s.selectors.OrderToggle, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.selectors.OrderToggle, err)
	}

	handles := make([]OrderHandle, 0, len(nodes))
	for i, n := range nodes {
		id := n.AttributeValue("id")
		if id == "" {
			return nil, fmt.Errorf("order toggle %d has no id", i)
		}
		handles = append(handles, OrderHandle{ID: id})
	}
	return handles, nil
}

// Disclose clicks the entry's toggle
func (s *Session) Disclose(ctx context.Context, h OrderHandle) error {
	return s.run(ctx, chromedp.Click(h.ID, chromedp.ByID))
}

// Disclosed reports whether the entry's fragments are visible
func (s *Session) Disclosed(ctx context.Context, h OrderHandle) (bool, error) {
	var disclosed bool
	script := s.scopeScript(h, fmt.Sprintf(`
		if (!scope) return false;
		const text = (scope.innerText || "").replace(/\u00a0/g, " ");
		return text.includes(%s) && text.includes(%s);`,
		jsString(s.selectors.IdentityLabel), jsString(s.selectors.MeasurementLabel)))
	if err := s.run(ctx, chromedp.Evaluate(script, &disclosed)); err != nil {
		return false, err
	}
	return disclosed, nil
}

// EntryHTML returns the outer HTML of the entry's scope
func (s *Session) EntryHTML(ctx context.Context, h OrderHandle) (string, error) {
	var markup string
	script := s.scopeScript(h, `return scope ? scope.outerHTML : "";`)
	if err := s.run(ctx, chromedp.Evaluate(script, &markup)); err != nil {
		return "", err
	}
	if markup == "" {
		return "", fmt.Errorf("no container found for order %s", h.ID)
	}
	return markup, nil
}

// Collapse clicks the collapse control of the disclosed entry. The portal
// renders a single control for the open entry, so a visible control outside
// the entry's scope is accepted.
func (s *Session) Collapse(ctx context.Context, h OrderHandle) error {
	var clicked bool
	script := s.scopeScript(h, fmt.Sprintf(`
		const sel = %s;
		const ctl = (scope && scope.querySelector(sel)) ||
			Array.from(document.querySelectorAll(sel)).find(el => el.offsetParent !== null);
		if (!ctl) return false;
		ctl.click();
		return true;`, jsString(s.selectors.CollapseControl)))
	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("collapse control %s not found", s.selectors.CollapseControl)
	}
	return nil
}

// run executes actions bounded by the shorter of ctx's deadline and the
// per-action timeout. Cancelling ctx aborts the actions.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("browser session is closed")
	}

	timeout := s.options.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

// scopeScript wraps body in a function with `scope` bound to the entry's
// container element, or null when none is found.
func (s *Session) scopeScript(h OrderHandle, body string) string {
	return fmt.Sprintf(`(() => {
	const scope = (() => {
		const toggle = document.getElementById(%s);
		if (!toggle) return null;
		const scopeSel = %s;
		if (scopeSel) return toggle.closest(scopeSel);
		const labels = [%s, %s];
		for (let el = toggle.parentElement; el; el = el.parentElement) {
			const text = (el.innerText || "").replace(/\u00a0/g, " ");
			if (labels.every(l => text.includes(l))) return el;
		}
		return null;
	})();
	%s
})()`,
		jsString(h.ID),
		jsString(s.selectors.OrderScope),
		jsString(s.selectors.IdentityLabel),
		jsString(s.selectors.MeasurementLabel),
		body)
}

// allocatorOptions builds Chrome allocator options based on configuration
func allocatorOptions(o *Options) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserAgent(o.UserAgent),
		chromedp.WindowSize(int(o.ViewportWidth), int(o.ViewportHeight)),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	}

	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if o.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if o.DebugMode {
		opts = append(opts,
			chromedp.Flag("enable-logging", true),
			chromedp.Flag("log-level", "0"),
		)
	}

	return opts
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
