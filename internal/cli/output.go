package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"oligo-export/internal/database"
	"oligo-export/internal/primers"
)

// OutputFormatter handles different output formats
type OutputFormatter struct {
	format  string
	out     io.Writer
	noColor bool
}

// NewOutputFormatter creates a new output formatter writing to out
func NewOutputFormatter(format string, out io.Writer, noColor bool) *OutputFormatter {
	return &OutputFormatter{
		format:  format,
		out:     out,
		noColor: noColor,
	}
}

// PrintPrimers prints the exported primers
func (f *OutputFormatter) PrintPrimers(list []primers.Primer) error {
	switch f.format {
	case "none":
		return nil
	case "json":
		return f.encode(list)
	case "table":
		if len(list) == 0 {
			fmt.Fprintln(f.out, "No primers exported.")
			return nil
		}
		t := f.newTable()
		t.AppendHeader(headerRow(primers.Headers()))
		for _, p := range list {
			t.AppendRow(primerRow(p))
		}
		t.AppendFooter(table.Row{"", "", "Total", formatFloat(totalPrice(list))})
		t.Render()
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintStoredPrimers prints primers from the history database
func (f *OutputFormatter) PrintStoredPrimers(list []database.StoredPrimer) error {
	switch f.format {
	case "none":
		return nil
	case "json":
		return f.encode(list)
	case "table":
		if len(list) == 0 {
			fmt.Fprintln(f.out, "No primers recorded.")
			return nil
		}
		t := f.newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Sequence", primers.ColumnPrice, "First seen", "Last exported", "Exports"})
		for _, sp := range list {
			t.AppendRow(table.Row{
				sp.ID,
				sp.Name,
				truncate(sp.Sequence, 30),
				formatFloat(sp.Price),
				sp.FirstSeenAt.Format("2006-01-02"),
				sp.LastExportedAt.Format("2006-01-02 15:04"),
				sp.ExportCount,
			})
		}
		t.Render()
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintRuns prints recent export runs
func (f *OutputFormatter) PrintRuns(runs []database.ExportRun) error {
	switch f.format {
	case "none":
		return nil
	case "json":
		return f.encode(runs)
	case "table":
		if len(runs) == 0 {
			fmt.Fprintln(f.out, "No export runs recorded.")
			return nil
		}
		t := f.newTable()
		t.AppendHeader(table.Row{"Run", "Started", "Orders", "Exported", "Status", "Output", "Error"})
		for _, r := range runs {
			errText := ""
			if r.Error != nil {
				errText = truncate(*r.Error, 40)
			}
			t.AppendRow(table.Row{
				r.ID,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Orders,
				r.Exported,
				r.Status,
				r.OutputPath,
				errText,
			})
		}
		t.Render()
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintSuccess prints a success message
func (f *OutputFormatter) PrintSuccess(message string) {
	if f.format != "none" {
		fmt.Fprintf(f.out, "%s %s\n", f.colorize(text.FgGreen, "✓"), message)
	}
}

// PrintError prints an error message
func (f *OutputFormatter) PrintError(err error) {
	fmt.Fprintf(f.out, "%s Error: %v\n", f.colorize(text.FgRed, "✗"), err)
}

// PrintInfo prints an informational message
func (f *OutputFormatter) PrintInfo(message string) {
	if f.format != "none" {
		fmt.Fprintf(f.out, "ℹ %s\n", message)
	}
}

func (f *OutputFormatter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	if f.noColor {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleRounded)
		t.Style().Color.Header = text.Colors{text.Bold}
	}
	// headers carry units like µmol that must not be upper-cased
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	return t
}

func (f *OutputFormatter) encode(v interface{}) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) colorize(c text.Color, s string) string {
	if f.noColor {
		return s
	}
	return c.Sprint(s)
}

func headerRow(headers []string) table.Row {
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func primerRow(p primers.Primer) table.Row {
	return table.Row{
		p.ID,
		p.Name,
		truncate(p.Sequence, 30),
		formatFloat(p.Price),
		formatFloat(p.Tm),
		p.Length,
		formatFloat(p.Scale),
		p.Purification,
		p.Remarks,
	}
}

func totalPrice(list []primers.Primer) float64 {
	var total float64
	for _, p := range list {
		total += p.Price
	}
	return total
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// truncate truncates a string to the specified number of runes
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
