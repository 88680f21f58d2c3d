package primers

import "log/slog"

const (
	// IdentityRun is the number of identity fragments each order contributes
	IdentityRun = 4
	// MeasurementFields is the number of lines in each measurement block
	MeasurementFields = 5
)

// Credentials holds the portal login. The password is never logged.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return "Credentials{Username: " + c.Username + ", Password: [REDACTED]}"
}

// LogValue keeps the password out of structured logs
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "[REDACTED]"),
	)
}

// Fragments holds the two raw streams scraped from the order list.
// Identity is grouped in runs of IdentityRun: ID, Name, Sequence, Price.
// Each measurement block is Tm, Length, Scale, Purification, Remarks.
type Fragments struct {
	Identity     []string   `json:"identity"`
	Measurements [][]string `json:"measurements"`
}

// Orders returns the number of complete orders the identity stream describes
func (f *Fragments) Orders() int {
	if f == nil {
		return 0
	}
	return len(f.Identity) / IdentityRun
}

// Append adds one order's fragments to both streams
func (f *Fragments) Append(identity []string, measurement []string) {
	f.Identity = append(f.Identity, identity...)
	f.Measurements = append(f.Measurements, measurement)
}

// RawRecord is one order's fragments before normalization
type RawRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Sequence     string `json:"sequence"`
	Price        string `json:"price"`
	Tm           string `json:"tm"`
	Length       string `json:"length"`
	Scale        string `json:"scale"`
	Purification string `json:"purification"`
	Remarks      string `json:"remarks"`
}

// Primer is a normalized oligonucleotide order
type Primer struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Sequence     string  `json:"sequence"`
	Price        float64 `json:"price"`
	Tm           float64 `json:"tm"`
	Length       int     `json:"length"`
	Scale        float64 `json:"scale"`
	Purification string  `json:"purification"`
	Remarks      string  `json:"remarks"`
}

// Column names a field of a primer record
type Column string

const (
	ColumnID           Column = "ID"
	ColumnName         Column = "Name"
	ColumnSequence     Column = "Sequence"
	ColumnPrice        Column = "Price [zł]"
	ColumnTm           Column = "Tm [°C]"
	ColumnLength       Column = "Length"
	ColumnScale        Column = "Scale [µmol]"
	ColumnPurification Column = "Purification"
	ColumnRemarks      Column = "Remarks"
)

// Columns lists every column in export order
var Columns = []Column{
	ColumnID,
	ColumnName,
	ColumnSequence,
	ColumnPrice,
	ColumnTm,
	ColumnLength,
	ColumnScale,
	ColumnPurification,
	ColumnRemarks,
}

// Headers returns the column headers as plain strings
func Headers() []string {
	headers := make([]string, len(Columns))
	for i, c := range Columns {
		headers[i] = string(c)
	}
	return headers
}

// Values returns the primer's fields in Columns order
func (p Primer) Values() []interface{} {
	return []interface{}{
		p.ID,
		p.Name,
		p.Sequence,
		p.Price,
		p.Tm,
		p.Length,
		p.Scale,
		p.Purification,
		p.Remarks,
	}
}
