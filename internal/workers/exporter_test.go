package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"oligo-export/internal/config"
	"oligo-export/internal/database"
	"oligo-export/internal/export"
	"oligo-export/internal/portal"
	"oligo-export/internal/primers"
)

// MockSink records written primers
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(list []primers.Primer) error {
	args := m.Called(list)
	return args.Error(0)
}

// MockHistoryStore records export runs
type MockHistoryStore struct {
	mock.Mock
}

func (m *MockHistoryStore) RecordExport(ctx context.Context, list []primers.Primer, run *database.ExportRun) error {
	args := m.Called(ctx, list, run)
	return args.Error(0)
}

// MockBrowser is a browser whose every call is scripted
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) Login(ctx context.Context, url string, creds primers.Credentials) error {
	args := m.Called(ctx, url, creds)
	return args.Error(0)
}

func (m *MockBrowser) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBrowser) OrderHandles(ctx context.Context) ([]portal.OrderHandle, error) {
	args := m.Called(ctx)
	return args.Get(0).([]portal.OrderHandle), args.Error(1)
}

func (m *MockBrowser) Disclose(ctx context.Context, h portal.OrderHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockBrowser) Disclosed(ctx context.Context, h portal.OrderHandle) (bool, error) {
	args := m.Called(ctx, h)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowser) EntryHTML(ctx context.Context, h portal.OrderHandle) (string, error) {
	args := m.Called(ctx, h)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) Collapse(ctx context.Context, h portal.OrderHandle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

// closeTracker wraps a saved page and remembers whether it was released
type closeTracker struct {
	*portal.StaticPage
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return c.StaticPage.Close()
}

type order struct {
	id, name, sequence, price string
	measurement                string
}

func orderPage(orders ...order) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="content">`)
	for i, o := range orders {
		fmt.Fprintf(&b, `<div class="zamowienie">
  <div class="naglowek">Zamówienie %d <span class="span_rozwin" id="zam_%d">rozwiń</span></div>
  <div class="szczegoly">
    <div>ID: <b>%s</b> Nazwa: <b>%s</b> Sekwencja: <b>%s</b> Cena: <b>%s</b></div>
    <div>%s</div>
    <a class="span_nie">zwiń</a>
  </div>
</div>`, i+1, i+1, o.id, o.name, o.sequence, o.price, o.measurement)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

var (
	orderA = order{"ID: 12345", "Primer-A", "ATGCGT", "15.20 zł", "Tm = 61.5 °C<br>20 nt<br>0.05 µmol<br>oczyszczanie: HPLC<br>Uwagi: none"}
	orderB = order{"ID: 12346", "Primer-B", "GGCATA", "9.80 zł", "Tm = 59.0 °C<br>18 nt<br>0.02 µmol<br>oczyszczanie: desalt<br>Uwagi:"}
	orderC = order{"ID: 12347", "Primer-C", "TTAGGC", "12.40 zł", "Tm = 58.2 °C<br>24 nt<br>0.20 µmol<br>oczyszczanie: odsalanie<br>Uwagi:"}

	primerA = primers.Primer{ID: "12345", Name: "Primer-A", Sequence: "ATGCGT", Price: 15.20, Tm: 61.5, Length: 20, Scale: 0.05, Purification: "HPLC", Remarks: " none"}
	primerB = primers.Primer{ID: "12346", Name: "Primer-B", Sequence: "GGCATA", Price: 9.80, Tm: 59.0, Length: 18, Scale: 0.02, Purification: "desalt", Remarks: ""}
	primerC = primers.Primer{ID: "12347", Name: "Primer-C", Sequence: "TTAGGC", Price: 12.40, Tm: 58.2, Length: 24, Scale: 0.20, Purification: "odsalanie", Remarks: ""}

	testCreds = primers.Credentials{Username: "lab-user", Password: "s3cret"}
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Browser.SettleTimeout = config.Default().Browser.PollInterval * 5
	return cfg
}

func staticOpener(t *testing.T, html string) (SessionOpener, *closeTracker) {
	t.Helper()
	page, err := portal.NewStaticPage(strings.NewReader(html), portal.DefaultSelectors())
	require.NoError(t, err)
	tracker := &closeTracker{StaticPage: page}
	return SessionOpenerFunc(func(ctx context.Context) (Browser, error) {
		return tracker, nil
	}), tracker
}

func runWithStatus(status string) interface{} {
	return mock.MatchedBy(func(run *database.ExportRun) bool {
		return run.Status == status
	})
}

func TestExporter_Run_Success(t *testing.T) {
	opener, tracker := staticOpener(t, orderPage(orderA, orderB))
	sink := &MockSink{}
	history := &MockHistoryStore{}

	want := []primers.Primer{primerA, primerB}
	sink.On("Write", want).Return(nil)
	history.On("RecordExport", mock.Anything, want, mock.MatchedBy(func(run *database.ExportRun) bool {
		return run.Status == database.RunSucceeded && run.Orders == 2 && run.Exported == 2 && run.Error == nil
	})).Return(nil)

	var progress []string
	exporter := NewExporter(testConfig(), opener, sink, history, nil)
	exporter.OnProgress(func(msg string) { progress = append(progress, msg) })

	result, err := exporter.Run(context.Background(), testCreds)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Orders)
	assert.Equal(t, 2, result.Exported)
	assert.Equal(t, want, result.Primers)
	assert.Empty(t, result.Invalid)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.Equal(t, 1, tracker.closed)
	assert.Contains(t, progress, "Logging in")
	assert.Contains(t, progress, "Collecting order 2/2")
	sink.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestExporter_Run_DefaultWindow(t *testing.T) {
	opener, _ := staticOpener(t, orderPage(orderA, orderB, orderC))
	sink := &MockSink{}
	sink.On("Write", []primers.Primer{primerA, primerB}).Return(nil)

	result, err := NewExporter(testConfig(), opener, sink, nil, nil).Run(context.Background(), testCreds)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Orders)
	sink.AssertExpectations(t)
}

func TestExporter_Run_AllOrders(t *testing.T) {
	opener, _ := staticOpener(t, orderPage(orderA, orderB, orderC))
	sink := &MockSink{}
	sink.On("Write", []primers.Primer{primerA, primerB, primerC}).Return(nil)

	cfg := testConfig()
	cfg.MaxOrders = 0
	result, err := NewExporter(cfg, opener, sink, nil, nil).Run(context.Background(), testCreds)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Exported)
	sink.AssertExpectations(t)
}

func TestExporter_Run_LoginFailure(t *testing.T) {
	browser := &MockBrowser{}
	authErr := &primers.Error{Kind: primers.KindAuthentication, Op: "login", Err: errors.New("login form still shown")}
	browser.On("Login", mock.Anything, portal.DefaultPortalURL, testCreds).Return(authErr)
	browser.On("Close").Return(nil)

	sink := &MockSink{}
	history := &MockHistoryStore{}
	history.On("RecordExport", mock.Anything, []primers.Primer(nil), runWithStatus(database.RunFailed)).Return(nil)

	opener := SessionOpenerFunc(func(ctx context.Context) (Browser, error) { return browser, nil })
	result, err := NewExporter(testConfig(), opener, sink, history, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.True(t, primers.IsKind(err, primers.KindAuthentication))
	assert.Zero(t, result.Orders)
	browser.AssertExpectations(t)
	browser.AssertNotCalled(t, "OrderHandles", mock.Anything)
	sink.AssertNotCalled(t, "Write", mock.Anything)
	history.AssertExpectations(t)
}

func TestExporter_Run_OpenFailure(t *testing.T) {
	sink := &MockSink{}
	opener := SessionOpenerFunc(func(ctx context.Context) (Browser, error) {
		return nil, errors.New("chrome not found")
	})

	_, err := NewExporter(testConfig(), opener, sink, nil, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	sink.AssertNotCalled(t, "Write", mock.Anything)
}

func TestExporter_Run_NoOrders(t *testing.T) {
	opener, tracker := staticOpener(t, orderPage())
	sink := &MockSink{}

	_, err := NewExporter(testConfig(), opener, sink, nil, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.True(t, primers.IsKind(err, primers.KindExtraction))
	assert.Contains(t, err.Error(), "no orders found")
	assert.Equal(t, 1, tracker.closed)
	sink.AssertNotCalled(t, "Write", mock.Anything)
}

func TestExporter_Run_IncompleteOrder(t *testing.T) {
	broken := orderB
	broken.measurement = "Tm = 59.0 °C<br>18 nt"
	opener, tracker := staticOpener(t, orderPage(orderA, broken))
	sink := &MockSink{}

	_, err := NewExporter(testConfig(), opener, sink, nil, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.True(t, primers.IsKind(err, primers.KindExtraction))
	assert.Equal(t, 1, tracker.closed)
	sink.AssertNotCalled(t, "Write", mock.Anything)
}

func TestExporter_Run_InvalidRow(t *testing.T) {
	bad := orderB
	bad.price = "9.80"
	opener, _ := staticOpener(t, orderPage(orderA, bad))
	sink := &MockSink{}
	history := &MockHistoryStore{}
	history.On("RecordExport", mock.Anything, []primers.Primer(nil), runWithStatus(database.RunFailed)).Return(nil)

	result, err := NewExporter(testConfig(), opener, sink, history, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.True(t, primers.IsKind(err, primers.KindParse))
	require.Len(t, result.Invalid, 1)
	assert.Equal(t, 1, result.Invalid[0].Row)
	assert.Equal(t, primers.ColumnPrice, result.Invalid[0].Column)
	assert.Zero(t, result.Exported)
	sink.AssertNotCalled(t, "Write", mock.Anything)
	history.AssertExpectations(t)
}

func TestExporter_Run_SkipInvalid(t *testing.T) {
	bad := orderB
	bad.price = "9.80"
	opener, _ := staticOpener(t, orderPage(orderA, bad))
	sink := &MockSink{}
	history := &MockHistoryStore{}
	sink.On("Write", []primers.Primer{primerA}).Return(nil)
	history.On("RecordExport", mock.Anything, []primers.Primer{primerA}, runWithStatus(database.RunPartial)).Return(nil)

	cfg := testConfig()
	cfg.SkipInvalid = true
	result, err := NewExporter(cfg, opener, sink, history, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.True(t, primers.IsKind(err, primers.KindParse))
	assert.Equal(t, 1, result.Exported)
	assert.Len(t, result.Invalid, 1)
	sink.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestExporter_Run_SkipInvalidNothingValid(t *testing.T) {
	bad := orderA
	bad.price = "15.20"
	opener, _ := staticOpener(t, orderPage(bad))
	sink := &MockSink{}
	history := &MockHistoryStore{}
	history.On("RecordExport", mock.Anything, []primers.Primer(nil), runWithStatus(database.RunFailed)).Return(nil)

	cfg := testConfig()
	cfg.SkipInvalid = true
	result, err := NewExporter(cfg, opener, sink, history, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.True(t, primers.IsKind(err, primers.KindParse))
	assert.Zero(t, result.Exported)
	assert.Len(t, result.Invalid, 1)
	sink.AssertNotCalled(t, "Write", mock.Anything)
	history.AssertExpectations(t)
}

func TestExporter_Run_SinkFailure(t *testing.T) {
	opener, _ := staticOpener(t, orderPage(orderA))
	sink := &MockSink{}
	history := &MockHistoryStore{}
	sink.On("Write", mock.Anything).Return(errors.New("disk full"))
	history.On("RecordExport", mock.Anything, []primers.Primer(nil), runWithStatus(database.RunFailed)).Return(nil)

	result, err := NewExporter(testConfig(), opener, sink, history, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, result.Exported)
	history.AssertExpectations(t)
}

func TestExporter_Run_HistoryFailure(t *testing.T) {
	opener, _ := staticOpener(t, orderPage(orderA))
	sink := &MockSink{}
	history := &MockHistoryStore{}
	sink.On("Write", mock.Anything).Return(nil)
	history.On("RecordExport", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("database is locked"))

	result, err := NewExporter(testConfig(), opener, sink, history, nil).Run(context.Background(), testCreds)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, 1, result.Exported)
}

func TestExporter_Run_Cancelled(t *testing.T) {
	opener, tracker := staticOpener(t, orderPage(orderA))
	sink := &MockSink{}
	history := &MockHistoryStore{}
	history.On("RecordExport", mock.Anything, mock.Anything, runWithStatus(database.RunFailed)).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExporter(testConfig(), opener, sink, history, nil).Run(ctx, testCreds)

	require.Error(t, err)
	assert.Equal(t, 1, tracker.closed)
	sink.AssertNotCalled(t, "Write", mock.Anything)
	history.AssertExpectations(t)
}

func TestExporter_Run_EndToEndWorkbook(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "orders.html")
	require.NoError(t, os.WriteFile(pagePath, []byte(orderPage(orderA, orderB)), 0644))

	db, err := database.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.OutputPath = filepath.Join(dir, "genomed_primers.xlsx")

	exporter := NewExporter(cfg, SavedPageOpener(pagePath, cfg.Selectors), export.NewXLSXSink(cfg.OutputPath), db, nil)
	_, err = exporter.Run(context.Background(), testCreds)
	require.NoError(t, err)

	written, err := export.ReadXLSX(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []primers.Primer{primerA, primerB}, written)

	stored, err := db.Primers.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	runs, err := db.Runs.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, database.RunSucceeded, runs[0].Status)
}

func TestSavedPageOpener_MissingFile(t *testing.T) {
	_, err := SavedPageOpener(filepath.Join(t.TempDir(), "missing.html"), portal.DefaultSelectors()).Open(context.Background())
	assert.Error(t, err)
}
