package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oligo-export/internal/database"
	"oligo-export/internal/primers"
)

var samplePrimers = []primers.Primer{
	{ID: "12345", Name: "Primer-A", Sequence: "ATGCGT", Price: 15.20, Tm: 61.5, Length: 20, Scale: 0.05, Purification: "HPLC", Remarks: " none"},
	{ID: "12346", Name: "Primer-B", Sequence: "GGCATA", Price: 9.80, Tm: 59.0, Length: 18, Scale: 0.02, Purification: "desalt", Remarks: ""},
}

func TestOutputFormatterPrintPrimers(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		contains []string
	}{
		{
			name:     "table format",
			format:   "table",
			contains: []string{"ID", "Price [zł]", "Tm [°C]", "Scale [µmol]", "12345", "Primer-B", "15.20", "61.50", "25.00"},
		},
		{
			name:     "json format",
			format:   "json",
			contains: []string{`"id": "12345"`, `"price": 15.2`, `"length": 18`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewOutputFormatter(tt.format, &buf, true)

			require.NoError(t, f.PrintPrimers(samplePrimers))

			out := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestOutputFormatterKeepsHeaderCase(t *testing.T) {
	for _, noColor := range []bool{true, false} {
		var buf bytes.Buffer
		require.NoError(t, NewOutputFormatter("table", &buf, noColor).PrintPrimers(samplePrimers))

		out := buf.String()
		assert.Contains(t, out, "Scale [µmol]")
		assert.Contains(t, out, "Total")
		assert.NotContains(t, out, "PRICE")
		assert.NotContains(t, out, "µMOL")
		assert.NotContains(t, out, "TOTAL")
	}
}

func TestOutputFormatterJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewOutputFormatter("json", &buf, true).PrintPrimers(samplePrimers))

	var decoded []primers.Primer
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, samplePrimers, decoded)
}

func TestOutputFormatterNone(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter("none", &buf, true)

	require.NoError(t, f.PrintPrimers(samplePrimers))
	f.PrintSuccess("done")
	f.PrintInfo("info")
	assert.Empty(t, buf.String())

	f.PrintError(errors.New("boom"))
	assert.Contains(t, buf.String(), "Error: boom")
}

func TestOutputFormatterUnsupported(t *testing.T) {
	f := NewOutputFormatter("csv", &bytes.Buffer{}, true)

	assert.Error(t, f.PrintPrimers(samplePrimers))
	assert.Error(t, f.PrintStoredPrimers(nil))
	assert.Error(t, f.PrintRuns(nil))
}

func TestOutputFormatterEmpty(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter("table", &buf, true)

	require.NoError(t, f.PrintPrimers(nil))
	require.NoError(t, f.PrintStoredPrimers(nil))
	require.NoError(t, f.PrintRuns(nil))

	out := buf.String()
	assert.Contains(t, out, "No primers exported.")
	assert.Contains(t, out, "No primers recorded.")
	assert.Contains(t, out, "No export runs recorded.")
}

func TestOutputFormatterHistory(t *testing.T) {
	seen := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	stored := []database.StoredPrimer{
		{Primer: samplePrimers[0], FirstSeenAt: seen, LastExportedAt: seen, ExportCount: 3},
	}
	msg := "extraction failed"
	runs := []database.ExportRun{
		{ID: 7, StartedAt: seen, FinishedAt: seen, Orders: 2, Exported: 2, OutputPath: "genomed_primers.xlsx", Status: database.RunSucceeded},
		{ID: 8, StartedAt: seen, FinishedAt: seen, Status: database.RunFailed, Error: &msg},
	}

	var buf bytes.Buffer
	f := NewOutputFormatter("table", &buf, true)
	require.NoError(t, f.PrintStoredPrimers(stored))
	require.NoError(t, f.PrintRuns(runs))

	out := buf.String()
	assert.Contains(t, out, "Primer-A")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "extraction failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ATGCATG...", truncate("ATGCATGCATGCATGC", 10))
	assert.Equal(t, "µµµ...", truncate(strings.Repeat("µ", 12), 6))
}
