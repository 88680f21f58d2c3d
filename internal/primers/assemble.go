package primers

import "fmt"

// Assemble pairs the nth identity run with the nth measurement block.
// The join is positional, so both streams must describe the same orders in
// the same sequence; any cardinality disagreement is reported instead of
// padding or truncating rows.
func Assemble(f *Fragments) ([]RawRecord, error) {
	if f == nil {
		return nil, &Error{Kind: KindAssemblyMismatch, Op: "assemble records", Err: fmt.Errorf("no fragments")}
	}

	if len(f.Identity)%IdentityRun != 0 {
		return nil, &Error{
			Kind: KindAssemblyMismatch,
			Op:   "assemble records",
			Err:  fmt.Errorf("identity stream has %d fragments, not a multiple of %d", len(f.Identity), IdentityRun),
		}
	}

	orders := len(f.Identity) / IdentityRun
	if orders != len(f.Measurements) {
		return nil, &Error{
			Kind: KindAssemblyMismatch,
			Op:   "assemble records",
			Err:  fmt.Errorf("identity stream describes %d orders but %d measurement blocks were collected", orders, len(f.Measurements)),
		}
	}

	records := make([]RawRecord, 0, orders)
	for i := 0; i < orders; i++ {
		block := f.Measurements[i]
		if len(block) != MeasurementFields {
			return nil, &Error{
				Kind: KindAssemblyMismatch,
				Op:   "assemble records",
				Row:  i,
				Err:  fmt.Errorf("measurement block %d has %d fields, expected %d", i, len(block), MeasurementFields),
			}
		}

		id := f.Identity[i*IdentityRun : (i+1)*IdentityRun]
		records = append(records, RawRecord{
			ID:           id[0],
			Name:         id[1],
			Sequence:     id[2],
			Price:        id[3],
			Tm:           block[0],
			Length:       block[1],
			Scale:        block[2],
			Purification: block[3],
			Remarks:      block[4],
		})
	}

	return records, nil
}
