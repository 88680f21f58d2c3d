package primers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	priceSuffix        = " zł"
	idPrefix           = "ID:"
	purificationPrefix = "oczyszczanie: "
	remarksPrefix      = "Uwagi:"
)

var (
	amountPattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	decimalPattern = regexp.MustCompile(`\d+\.\d+`)
	integerPattern = regexp.MustCompile(`\d+`)
)

// ParsePrice strips the " zł" unit and parses the amount. A value without
// the unit is rejected rather than passed through.
func ParsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, priceSuffix) {
		return 0, fmt.Errorf("missing %q unit suffix", strings.TrimSpace(priceSuffix))
	}
	amount := strings.TrimSpace(strings.TrimSuffix(s, priceSuffix))
	if !amountPattern.MatchString(amount) {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	return v, nil
}

// ParseDecimal returns the first digits.digits substring of s
func ParseDecimal(s string) (float64, error) {
	match := decimalPattern.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("no decimal number found")
	}
	return strconv.ParseFloat(match, 64)
}

// ParseInteger returns the first run of digits in s
func ParseInteger(s string) (int, error) {
	match := integerPattern.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("no integer found")
	}
	return strconv.Atoi(match)
}

// CleanID strips the "ID:" label
func CleanID(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), idPrefix))
}

// CleanPurification strips the "oczyszczanie: " label if present
func CleanPurification(s string) string {
	return strings.TrimPrefix(s, purificationPrefix)
}

// CleanRemarks strips the "Uwagi:" label if present. The space after the
// colon is kept.
func CleanRemarks(s string) string {
	return strings.TrimPrefix(s, remarksPrefix)
}

// NormalizeRecord applies the column rules to one record. row is only used
// to label errors. Every column is attempted so that all bad fields of the
// row are reported together.
func NormalizeRecord(row int, r RawRecord) (Primer, error) {
	p := Primer{
		ID:           CleanID(r.ID),
		Name:         strings.TrimSpace(r.Name),
		Sequence:     strings.TrimSpace(r.Sequence),
		Purification: CleanPurification(r.Purification),
		Remarks:      CleanRemarks(r.Remarks),
	}

	var errs []error
	fail := func(column Column, value string, err error) {
		errs = append(errs, &Error{
			Kind:   KindParse,
			Op:     "normalize field",
			Row:    row,
			Column: column,
			Value:  value,
			Err:    err,
		})
	}

	var err error
	if p.Price, err = ParsePrice(r.Price); err != nil {
		fail(ColumnPrice, r.Price, err)
	}
	if p.Tm, err = ParseDecimal(r.Tm); err != nil {
		fail(ColumnTm, r.Tm, err)
	}
	if p.Length, err = ParseInteger(r.Length); err != nil {
		fail(ColumnLength, r.Length, err)
	}
	if p.Scale, err = ParseDecimal(r.Scale); err != nil {
		fail(ColumnScale, r.Scale, err)
	}

	if len(errs) > 0 {
		return Primer{}, errors.Join(errs...)
	}
	return p, nil
}

// Normalize converts raw records into primers. The input is not modified.
// Rows that fail are left out of the result and every failure is returned
// as a joined error of KindParse errors naming the row and column.
func Normalize(records []RawRecord) ([]Primer, error) {
	out := make([]Primer, 0, len(records))
	var errs []error
	for i, r := range records {
		p, err := NormalizeRecord(i, r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}
