package primers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"15.50 zł", 15.50, false},
		{"10.00 zł", 10.00, false},
		{"  7 zł ", 7, false},
		{"15.50", 0, true},
		{"abc zł", 0, true},
		{"NaN zł", 0, true},
		{"Inf zł", 0, true},
		{"0x1p4 zł", 0, true},
		{"-3 zł", 0, true},
		{"1e3 zł", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestParseDecimal(t *testing.T) {
	got, err := ParseDecimal("Tm = 55.3°C")
	require.NoError(t, err)
	assert.InDelta(t, 55.3, got, 1e-9)

	got, err = ParseDecimal("skala 0.05 µmol, 1.5 extra")
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got, 1e-9)

	_, err = ParseDecimal("Tm = 55°C")
	assert.Error(t, err)
}

func TestParseInteger(t *testing.T) {
	got, err := ParseInteger("20 nmol DNA")
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	got, err = ParseInteger("długość: 18 nt, 3 mod")
	require.NoError(t, err)
	assert.Equal(t, 18, got)

	_, err = ParseInteger("none")
	assert.Error(t, err)
}

func TestCleanPrefixes(t *testing.T) {
	assert.Equal(t, "HPLC", CleanPurification("oczyszczanie: HPLC"))
	assert.Equal(t, "HPLC", CleanPurification("HPLC"))
	assert.Equal(t, " none needed", CleanRemarks("Uwagi: none needed"))
	assert.Equal(t, "plain", CleanRemarks("plain"))
	assert.Equal(t, "1", CleanID("ID: 1"))
	assert.Equal(t, "1", CleanID("1"))
}

func TestNormalize_TwoOrders(t *testing.T) {
	records, err := Assemble(twoOrderFragments())
	require.NoError(t, err)

	primers, err := Normalize(records)
	require.NoError(t, err)
	require.Len(t, primers, 2)

	assert.Equal(t, Primer{
		ID:           "1",
		Name:         "Primer-A",
		Sequence:     "ATCG",
		Price:        10.00,
		Tm:           50.0,
		Length:       18,
		Scale:        0.05,
		Purification: "HPLC",
		Remarks:      " ok",
	}, primers[0])
	assert.Equal(t, Primer{
		ID:           "2",
		Name:         "Primer-B",
		Sequence:     "GGCC",
		Price:        20.00,
		Tm:           60.0,
		Length:       22,
		Scale:        0.10,
		Purification: "none",
		Remarks:      " none",
	}, primers[1])
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	records, err := Assemble(twoOrderFragments())
	require.NoError(t, err)
	before := append([]RawRecord(nil), records...)

	_, err = Normalize(records)
	require.NoError(t, err)
	assert.Equal(t, before, records)
}

func TestNormalize_ReportsRowAndColumn(t *testing.T) {
	records, err := Assemble(twoOrderFragments())
	require.NoError(t, err)
	records[1].Price = "20.00"
	records[1].Length = "n/a"

	primers, err := Normalize(records)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParse))

	// the clean row survives
	require.Len(t, primers, 1)
	assert.Equal(t, "1", primers[0].ID)

	parseErrs := ParseErrors(err)
	require.Len(t, parseErrs, 2)
	assert.Equal(t, 1, parseErrs[0].Row)
	assert.Equal(t, ColumnPrice, parseErrs[0].Column)
	assert.Equal(t, "20.00", parseErrs[0].Value)
	assert.Equal(t, ColumnLength, parseErrs[1].Column)
}

func TestNormalize_AlreadyNormalized(t *testing.T) {
	clean := RawRecord{
		ID:           "1",
		Name:         "Primer-A",
		Sequence:     "ATCG",
		Price:        "10.00 zł",
		Tm:           "50.0",
		Length:       "18",
		Scale:        "0.05",
		Purification: "HPLC",
		Remarks:      " ok",
	}

	p, err := NormalizeRecord(0, clean)
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)
	assert.InDelta(t, 50.0, p.Tm, 1e-9)
	assert.Equal(t, 18, p.Length)
	assert.Equal(t, "HPLC", p.Purification)
	assert.Equal(t, " ok", p.Remarks)

	// a price that already lost its unit is rejected, not guessed
	clean.Price = "10"
	_, err = NormalizeRecord(0, clean)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParse))
}

func TestCredentials_Redacted(t *testing.T) {
	c := Credentials{Username: "lab", Password: "hunter2"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.NotContains(t, c.LogValue().String(), "hunter2")
}

func TestHeaders(t *testing.T) {
	assert.Equal(t, []string{
		"ID", "Name", "Sequence", "Price [zł]", "Tm [°C]", "Length", "Scale [µmol]", "Purification", "Remarks",
	}, Headers())
	assert.Len(t, Primer{}.Values(), len(Columns))
}
