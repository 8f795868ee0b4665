// Package query holds the storage-neutral retrieval plan: predicates that
// are AND-ed together, sort order and 1-indexed pagination.
package query

import (
	"fmt"
	"math"
	"slices"
	"strings"

	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
)

// Op is the matching criterion of a predicate.
type Op int

const (
	// OpIn matches when the field shares at least one value with Values.
	// An empty Values set matches nothing.
	OpIn Op = iota
	// OpRange matches numeric fields within [Min, Max]; a nil bound is open.
	OpRange
)

func (o Op) String() string {
	switch o {
	case OpIn:
		return "in"
	case OpRange:
		return "range"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Predicate constrains one field.
type Predicate struct {
	Field  string
	Op     Op
	Values []string
	Min    *float64
	Max    *float64
}

// In builds a set-membership predicate.
func In(field string, values ...string) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// Range builds a numeric range predicate.
func Range(field string, lo, hi *float64) Predicate {
	return Predicate{Field: field, Op: OpRange, Min: lo, Max: hi}
}

// MatchAny reports whether any of have is in the predicate's value set.
func (p Predicate) MatchAny(have ...string) bool {
	for _, h := range have {
		if slices.Contains(p.Values, h) {
			return true
		}
	}
	return false
}

// MatchNumber reports whether v lies within the predicate's bounds.
func (p Predicate) MatchNumber(v float64) bool {
	if p.Min != nil && v < *p.Min {
		return false
	}
	if p.Max != nil && v > *p.Max {
		return false
	}
	return true
}

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts asc or desc in any case; empty means asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return "", &errspkg.ValidationError{Field: "sortDirection", Reason: fmt.Sprintf("expected asc or desc, got %q", s)}
}

// Request is the sort and page window of one retrieval. Page is 1-indexed.
type Request struct {
	Page      int
	PageSize  int
	OrderBy   string
	Direction Direction
}

// Offset is the index of the first item of the page. Pages too far out to
// be addressed saturate at math.MaxInt, which lies past every result.
func (r Request) Offset() int {
	if r.Page <= 1 || r.PageSize <= 0 {
		return 0
	}
	if r.Page-1 > math.MaxInt/r.PageSize {
		return math.MaxInt
	}
	return (r.Page - 1) * r.PageSize
}

// Paging holds the page size policy.
type Paging struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Normalize clamps page to at least 1, replaces a non-positive page size by
// the default and caps it at the maximum.
func (p Paging) Normalize(r Request) Request {
	def := p.DefaultPageSize
	if def <= 0 {
		def = 10
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = def
	}
	if p.MaxPageSize > 0 && r.PageSize > p.MaxPageSize {
		r.PageSize = p.MaxPageSize
	}
	if r.Direction == "" {
		r.Direction = Asc
	}
	return r
}

// ValidateOrderBy rejects sort keys outside allowed. Empty is always valid.
func ValidateOrderBy(orderBy string, allowed ...string) error {
	if orderBy == "" || slices.Contains(allowed, orderBy) {
		return nil
	}
	return &errspkg.ValidationError{
		Field:  "orderBy",
		Reason: fmt.Sprintf("unknown sort key %q (allowed: %s)", orderBy, strings.Join(allowed, ", ")),
	}
}

// Page is one window of an ordered result.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// TotalPages returns the number of pages at the current page size.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Window returns the slice of items covered by r. items must already be sorted.
func Window[T any](items []T, r Request) []T {
	start := r.Offset()
	if start >= len(items) || start < 0 {
		return []T{}
	}
	end := len(items)
	if r.PageSize > 0 && r.PageSize < end-start {
		end = start + r.PageSize
	}
	return items[start:end]
}
