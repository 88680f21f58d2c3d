package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"oligo-export/internal/primers"
)

const (
	// DefaultPath is the workbook written to the working directory
	DefaultPath = "genomed_primers.xlsx"
	// SheetName holds the primer table
	SheetName = "Primers"
)

// XLSXSink writes primers to a spreadsheet, replacing any previous file
type XLSXSink struct {
	Path string
}

// NewXLSXSink creates a sink for path, or DefaultPath when empty
func NewXLSXSink(path string) *XLSXSink {
	if path == "" {
		path = DefaultPath
	}
	return &XLSXSink{Path: path}
}

// Write implements the exporter's sink
func (s *XLSXSink) Write(list []primers.Primer) error {
	return WriteXLSX(s.Path, list)
}

// WriteXLSX writes the header row and one typed row per primer
func WriteXLSX(path string, list []primers.Primer) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	headers := primers.Headers()
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range list {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, p.Values()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// ReadXLSX loads a workbook written by WriteXLSX
func ReadXLSX(path string) ([]primers.Primer, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", SheetName)
	}

	headers := primers.Headers()
	if len(rows[0]) < len(headers) {
		return nil, fmt.Errorf("unexpected header row %v", rows[0])
	}
	for i, h := range headers {
		if rows[0][i] != h {
			return nil, fmt.Errorf("column %d is %q, expected %q", i+1, rows[0][i], h)
		}
	}

	list := make([]primers.Primer, 0, len(rows)-1)
	for i, row := range rows[1:] {
		p, err := primerFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		list = append(list, p)
	}
	return list, nil
}

func primerFromRow(row []string) (primers.Primer, error) {
	// GetRows trims trailing empty cells
	cells := make([]string, len(primers.Columns))
	copy(cells, row)

	price, err := strconv.ParseFloat(cells[3], 64)
	if err != nil {
		return primers.Primer{}, fmt.Errorf("invalid price %q", cells[3])
	}
	tm, err := strconv.ParseFloat(cells[4], 64)
	if err != nil {
		return primers.Primer{}, fmt.Errorf("invalid Tm %q", cells[4])
	}
	length, err := strconv.Atoi(cells[5])
	if err != nil {
		return primers.Primer{}, fmt.Errorf("invalid length %q", cells[5])
	}
	scale, err := strconv.ParseFloat(cells[6], 64)
	if err != nil {
		return primers.Primer{}, fmt.Errorf("invalid scale %q", cells[6])
	}

	return primers.Primer{
		ID:           cells[0],
		Name:         cells[1],
		Sequence:     cells[2],
		Price:        price,
		Tm:           tm,
		Length:       length,
		Scale:        scale,
		Purification: cells[7],
		Remarks:      cells[8],
	}, nil
}
