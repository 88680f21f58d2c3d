package primers

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by the phase it came from
type Kind string

const (
	KindAuthentication   Kind = "authentication"
	KindExtraction       Kind = "extraction"
	KindAssemblyMismatch Kind = "assembly_mismatch"
	KindParse            Kind = "parse"
)

// Error is returned by every phase of an export run
type Error struct {
	Kind   Kind   `json:"kind"`
	Op     string `json:"op"`
	Order  string `json:"order,omitempty"`
	Row    int    `json:"row"`
	Column Column `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.Order != "" {
		fmt.Fprintf(&b, " (order %s)", e.Order)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " (row %d, column %q, value %q)", e.Row, e.Column, e.Value)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any error in err's tree is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if IsKind(e, kind) {
				return true
			}
		}
	}
	return false
}

// ParseErrors flattens every parse error held by err
func ParseErrors(err error) []*Error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*Error
		for _, e := range joined.Unwrap() {
			out = append(out, ParseErrors(e)...)
		}
		return out
	}
	var target *Error
	if errors.As(err, &target) && target.Kind == KindParse {
		return []*Error{target}
	}
	return nil
}
