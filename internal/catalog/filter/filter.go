// Package filter turns product retrieval criteria into query predicates.
//
// Category and price filters act on the local product store. Color and size
// live in the inventory service's variants: they are folded into one
// envelope.VariantOptions accumulator and resolved with a single RPC whose
// reply becomes a product id membership filter.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/drblury/shopmesh/internal/query"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
)

// Predicate fields understood by product repositories.
const (
	FieldCategories = "categories"
	FieldPrice      = "price"
	FieldID         = "id"
)

// Criterion names accepted in retrieval requests.
const (
	CriterionCategory   = "category"
	CriterionPriceRange = "priceRange"
	CriterionColor      = "color"
	CriterionSize       = "size"
)

// Kind tags the variant held by a Filter.
type Kind int

const (
	Category Kind = iota + 1
	PriceRange
	VariantColor
	VariantSize
	VariantOptions
)

func (k Kind) String() string {
	switch k {
	case Category:
		return "category"
	case PriceRange:
		return "price_range"
	case VariantColor:
		return "variant_color"
	case VariantSize:
		return "variant_size"
	case VariantOptions:
		return "variant_options"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Filter is one retrieval constraint. Only the fields matching Kind are set.
type Filter struct {
	Kind       Kind
	Categories []string
	Min, Max   *float64
	Colors     []string
	Sizes      []string
	// ProductIDs holds the resolved ids of a VariantOptions filter. A
	// resolved empty set matches nothing.
	ProductIDs []string
}

// ByCategories matches products in any of the named categories.
func ByCategories(categories ...string) Filter {
	return Filter{Kind: Category, Categories: categories}
}

// ByPrice parses "min-max", "min-" or "-max".
func ByPrice(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	lo, hi, ok := strings.Cut(raw, "-")
	if !ok || (strings.TrimSpace(lo) == "" && strings.TrimSpace(hi) == "") {
		return Filter{}, priceError(raw)
	}
	f := Filter{Kind: PriceRange}
	var err error
	if f.Min, err = parseBound(lo); err != nil {
		return Filter{}, priceError(raw)
	}
	if f.Max, err = parseBound(hi); err != nil {
		return Filter{}, priceError(raw)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return Filter{}, &errspkg.ValidationError{Field: CriterionPriceRange, Reason: fmt.Sprintf("lower bound above upper bound in %q", raw)}
	}
	return f, nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("bad bound %q", s)
	}
	return &v, nil
}

func priceError(raw string) error {
	return &errspkg.ValidationError{Field: CriterionPriceRange, Reason: fmt.Sprintf("expected min-max, min- or -max, got %q", raw)}
}

// ByColor matches products with a variant in one of colors. It is resolved
// against the inventory service before retrieval.
func ByColor(colors ...string) Filter { return Filter{Kind: VariantColor, Colors: colors} }

// BySize is the size counterpart of ByColor.
func BySize(sizes ...string) Filter { return Filter{Kind: VariantSize, Sizes: sizes} }

// ByProductIDs is the resolved form of the variant criteria.
func ByProductIDs(ids []string) Filter {
	if ids == nil {
		ids = []string{}
	}
	return Filter{Kind: VariantOptions, ProductIDs: ids}
}

// Remote reports whether the filter needs resolution by another service.
func (f Filter) Remote() bool {
	return f.Kind == VariantColor || f.Kind == VariantSize
}

// ExtendOptions folds a remote criterion into opts. Local filters leave it
// untouched.
func (f Filter) ExtendOptions(opts *envelope.VariantOptions) {
	switch f.Kind {
	case VariantColor:
		opts.Colors = appendMissing(opts.Colors, f.Colors)
	case VariantSize:
		opts.Sizes = appendMissing(opts.Sizes, f.Sizes)
	}
}

// Predicate returns the local query contribution. Remote filters have none
// until resolved.
func (f Filter) Predicate() (query.Predicate, bool) {
	switch f.Kind {
	case Category:
		return query.In(FieldCategories, f.Categories...), true
	case PriceRange:
		return query.Range(FieldPrice, f.Min, f.Max), true
	case VariantOptions:
		return query.In(FieldID, f.ProductIDs...), true
	}
	return query.Predicate{}, false
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
