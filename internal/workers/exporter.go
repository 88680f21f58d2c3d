package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"oligo-export/internal/config"
	"oligo-export/internal/database"
	"oligo-export/internal/portal"
	"oligo-export/internal/primers"
)

// Browser is an authenticated view of the order page
type Browser interface {
	portal.Page
	Login(ctx context.Context, url string, creds primers.Credentials) error
	Close() error
}

// SessionOpener acquires a browser for one run
type SessionOpener interface {
	Open(ctx context.Context) (Browser, error)
}

// SessionOpenerFunc adapts a function to SessionOpener
type SessionOpenerFunc func(ctx context.Context) (Browser, error)

// Open calls f
func (f SessionOpenerFunc) Open(ctx context.Context) (Browser, error) {
	return f(ctx)
}

// Sink receives the normalized primers
type Sink interface {
	Write(list []primers.Primer) error
}

// HistoryStore records every run and the primers it exported
type HistoryStore interface {
	RecordExport(ctx context.Context, list []primers.Primer, run *database.ExportRun) error
}

// Result summarizes one export run
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Orders     int
	Primers    []primers.Primer
	Invalid    []*primers.Error
	Exported   int
	OutputPath string
}

// Exporter runs the pipeline: session, collect, assemble, normalize, write
type Exporter struct {
	config   *config.Config
	opener   SessionOpener
	sink     Sink
	history  HistoryStore
	progress func(message string)
	logger   *slog.Logger
	now      func() time.Time
}

// NewExporter creates an exporter. history may be nil.
func NewExporter(cfg *config.Config, opener SessionOpener, sink Sink, history HistoryStore, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		config:   cfg,
		opener:   opener,
		sink:     sink,
		history:  history,
		progress: func(string) {},
		logger:   logger,
		now:      time.Now,
	}
}

// OnProgress registers a callback for human-readable phase updates
func (e *Exporter) OnProgress(fn func(message string)) {
	if fn == nil {
		fn = func(string) {}
	}
	e.progress = fn
}

// Run performs one export. The first failing phase aborts the run and its
// error is returned. Parse failures stop the run before anything is written
// unless SkipInvalid is set; then the clean rows are written and the joined
// parse errors are returned together with the result.
func (e *Exporter) Run(ctx context.Context, creds primers.Credentials) (result *Result, err error) {
	result = &Result{
		StartedAt:  e.now(),
		OutputPath: e.config.OutputPath,
	}
	defer func() {
		result.FinishedAt = e.now()
		if herr := e.record(ctx, result, err); herr != nil {
			e.logger.Error("Failed to record export history", "error", herr)
			err = errors.Join(err, fmt.Errorf("failed to record history: %w", herr))
		}
	}()

	fragments, err := e.collect(ctx, creds)
	if err != nil {
		return result, err
	}
	result.Orders = fragments.Orders()
	if result.Orders == 0 {
		return result, &primers.Error{Kind: primers.KindExtraction, Op: "collect", Err: errors.New("no orders found")}
	}

	e.progress("Assembling records")
	records, err := primers.Assemble(fragments)
	if err != nil {
		return result, err
	}

	list, normErr := primers.Normalize(records)
	result.Primers = list
	result.Invalid = primers.ParseErrors(normErr)
	for _, pe := range result.Invalid {
		e.logger.Warn("Invalid field", "row", pe.Row, "column", pe.Column, "value", pe.Value, "error", pe.Err)
	}
	if normErr != nil && !e.config.SkipInvalid {
		return result, normErr
	}

	if len(list) == 0 {
		// keep the previous workbook rather than replace it with headers only
		e.logger.Warn("No valid primers, workbook not written", "output", e.config.OutputPath)
		return result, normErr
	}

	e.progress(fmt.Sprintf("Writing %s", e.config.OutputPath))
	if err := e.sink.Write(list); err != nil {
		return result, fmt.Errorf("failed to write %s: %w", e.config.OutputPath, err)
	}
	result.Exported = len(list)

	e.logger.Info("Export finished",
		"orders", result.Orders,
		"exported", result.Exported,
		"invalid", len(result.Invalid),
		"output", result.OutputPath)

	return result, normErr
}

// collect holds the browser only for the duration of the scrape
func (e *Exporter) collect(ctx context.Context, creds primers.Credentials) (*primers.Fragments, error) {
	e.progress("Starting browser")
	browser, err := e.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			e.logger.Warn("Failed to close browser session", "error", err)
		}
	}()

	e.progress("Logging in")
	e.logger.Info("Logging in", "url", e.config.PortalURL, "credentials", creds)
	if err := browser.Login(ctx, e.config.PortalURL, creds); err != nil {
		return nil, err
	}

	opts := e.config.CollectorOptions()
	opts.OnOrder = func(index, total int, h portal.OrderHandle) {
		e.progress(fmt.Sprintf("Collecting order %d/%d", index+1, total))
	}
	collector := portal.NewCollector(browser, e.config.Selectors, opts, e.logger)
	return collector.Collect(ctx)
}

func (e *Exporter) record(ctx context.Context, result *Result, runErr error) error {
	if e.history == nil {
		return nil
	}

	run := &database.ExportRun{
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Orders:     result.Orders,
		Exported:   result.Exported,
		OutputPath: result.OutputPath,
		Status:     database.RunSucceeded,
	}
	var exported []primers.Primer
	if result.Exported > 0 {
		exported = result.Primers
	}
	switch {
	case runErr != nil && result.Exported > 0:
		run.Status = database.RunPartial
	case runErr != nil:
		run.Status = database.RunFailed
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	// an interrupted run is still recorded
	return e.history.RecordExport(context.WithoutCancel(ctx), exported, run)
}
