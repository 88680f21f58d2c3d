package portal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"oligo-export/internal/primers"
)

// OrderHandle references one disclosable entry of the order list
type OrderHandle struct {
	ID string `json:"id"`
}

// Page is the extraction capability the collector drives. Session
// implements it against a live browser, StaticPage against saved HTML.
type Page interface {
	// OrderHandles lists the order entries in document order
	OrderHandles(ctx context.Context) ([]OrderHandle, error)
	// Disclose opens the entry
	Disclose(ctx context.Context, h OrderHandle) error
	// Disclosed reports whether the entry currently shows its fragments
	Disclosed(ctx context.Context, h OrderHandle) (bool, error)
	// EntryHTML returns the markup of the entry's own sub-tree
	EntryHTML(ctx context.Context, h OrderHandle) (string, error)
	// Collapse closes the entry
	Collapse(ctx context.Context, h OrderHandle) error
}

// CollectorOptions tunes order collection
type CollectorOptions struct {
	// MaxOrders limits how many entries are read; 0 reads all of them
	MaxOrders int
	// SettleTimeout bounds the wait for an entry to open or close
	SettleTimeout time.Duration
	// PollInterval is how often Disclosed is checked while settling
	PollInterval time.Duration
	// OnOrder is called before each entry is processed
	OnOrder func(index, total int, h OrderHandle)
}

// DefaultCollectorOptions matches the portal tool's historical two-order window
func DefaultCollectorOptions() CollectorOptions {
	return CollectorOptions{
		MaxOrders:     2,
		SettleTimeout: 10 * time.Second,
		PollInterval:  200 * time.Millisecond,
	}
}

// Collector walks the order list and scrapes each entry in turn
type Collector struct {
	page      Page
	selectors Selectors
	options   CollectorOptions
	logger    *slog.Logger
}

// NewCollector creates a collector over page
func NewCollector(page Page, selectors Selectors, options CollectorOptions, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if options.SettleTimeout <= 0 {
		options.SettleTimeout = DefaultCollectorOptions().SettleTimeout
	}
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultCollectorOptions().PollInterval
	}
	return &Collector{
		page:      page,
		selectors: selectors,
		options:   options,
		logger:    logger,
	}
}

// Collect discloses each selected order, scrapes its fragments and closes it
// again. Every order must contribute exactly one identity run and one
// measurement block; the first order that does not aborts collection.
func (c *Collector) Collect(ctx context.Context) (*primers.Fragments, error) {
	handles, err := c.page.OrderHandles(ctx)
	if err != nil {
		return nil, &primers.Error{Kind: primers.KindExtraction, Op: "list orders", Err: err}
	}

	found := len(handles)
	if c.options.MaxOrders > 0 && len(handles) > c.options.MaxOrders {
		handles = handles[:c.options.MaxOrders]
	}
	c.logger.Info("Order entries found", "found", found, "selected", len(handles))

	fragments := &primers.Fragments{}
	for i, h := range handles {
		if err := ctx.Err(); err != nil {
			return nil, &primers.Error{Kind: primers.KindExtraction, Op: "collect", Order: h.ID, Err: err}
		}
		if c.options.OnOrder != nil {
			c.options.OnOrder(i, len(handles), h)
		}

		entry, err := c.collectOrder(ctx, h)
		if err != nil {
			return nil, err
		}
		fragments.Append(entry.Identity, entry.Measurements[0])

		c.logger.Debug("Order collected", "order", h.ID, "index", i)
	}

	return fragments, nil
}

func (c *Collector) collectOrder(ctx context.Context, h OrderHandle) (*EntryFragments, error) {
	fail := func(op string, err error) error {
		return &primers.Error{Kind: primers.KindExtraction, Op: op, Order: h.ID, Err: err}
	}

	if err := c.page.Disclose(ctx, h); err != nil {
		return nil, fail("disclose order", err)
	}
	if err := c.settle(ctx, h, true); err != nil {
		return nil, fail("wait for order to open", err)
	}

	markup, err := c.page.EntryHTML(ctx, h)
	if err != nil {
		return nil, fail("read order entry", err)
	}
	entry, err := ParseEntry(markup, c.selectors)
	if err != nil {
		return nil, fail("parse order entry", err)
	}
	if err := checkEntry(entry); err != nil {
		return nil, fail("validate order entry", err)
	}

	if err := c.page.Collapse(ctx, h); err != nil {
		return nil, fail("collapse order", err)
	}
	if err := c.settle(ctx, h, false); err != nil {
		return nil, fail("wait for order to close", err)
	}

	return entry, nil
}

// settle waits until the entry's disclosed state equals want
func (c *Collector) settle(ctx context.Context, h OrderHandle, want bool) error {
	return pollUntil(ctx, c.options.SettleTimeout, c.options.PollInterval, func(ctx context.Context) (bool, error) {
		disclosed, err := c.page.Disclosed(ctx, h)
		if err != nil {
			return false, err
		}
		return disclosed == want, nil
	})
}

func checkEntry(e *EntryFragments) error {
	if len(e.Identity) != primers.IdentityRun {
		return fmt.Errorf("found %d identity fragments, expected %d", len(e.Identity), primers.IdentityRun)
	}
	if len(e.Measurements) != 1 {
		return fmt.Errorf("found %d measurement blocks, expected 1", len(e.Measurements))
	}
	if n := len(e.Measurements[0]); n != primers.MeasurementFields {
		return fmt.Errorf("measurement block has %d fields, expected %d", n, primers.MeasurementFields)
	}
	return nil
}
