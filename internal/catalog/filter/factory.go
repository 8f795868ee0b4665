package filter

import (
	"slices"
	"strings"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
)

// Criteria maps a criterion name to its requested values. priceRange uses
// its first value.
type Criteria map[string][]string

// Factory maps one criterion to a filter. A nil filter means the name is not
// handled by this factory or the values are empty.
type Factory func(name string, values []string) (*Filter, error)

// EntityFieldFactory builds filters evaluated against the product store.
func EntityFieldFactory(name string, values []string) (*Filter, error) {
	values = compact(values)
	if len(values) == 0 {
		return nil, nil
	}
	switch name {
	case CriterionCategory:
		f := ByCategories(values...)
		return &f, nil
	case CriterionPriceRange:
		f, err := ByPrice(values[0])
		if err != nil {
			return nil, err
		}
		return &f, nil
	}
	return nil, nil
}

// VariantFactory builds filters resolved by the inventory service.
func VariantFactory(name string, values []string) (*Filter, error) {
	values = compact(values)
	if len(values) == 0 {
		return nil, nil
	}
	switch name {
	case CriterionColor:
		f := ByColor(values...)
		return &f, nil
	case CriterionSize:
		f := BySize(values...)
		return &f, nil
	}
	return nil, nil
}

// FromCriteria runs factory over every criterion in name order.
func FromCriteria(criteria Criteria, factory Factory) ([]Filter, error) {
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	slices.Sort(names)

	var filters []Filter
	for _, name := range names {
		f, err := factory(name, criteria[name])
		if err != nil {
			return nil, err
		}
		if f != nil {
			filters = append(filters, *f)
		}
	}
	return filters, nil
}

// NewVariantOptions folds every remote filter into one accumulator. ok is
// false when nothing was folded.
func NewVariantOptions(filters []Filter) (opts envelope.VariantOptions, ok bool) {
	for _, f := range filters {
		f.ExtendOptions(&opts)
	}
	return opts, !opts.Empty()
}

func compact(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
