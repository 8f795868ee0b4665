package catalog

import (
	"context"
	"fmt"

	"github.com/drblury/shopmesh/internal/catalog/filter"
	"github.com/drblury/shopmesh/internal/query"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
)

// Mediator turns composed filters into a conjunctive query against the
// product repository.
type Mediator struct {
	products ProductRepository
	paging   query.Paging
}

// NewMediator returns a Mediator over products. paging supplies the default
// and maximum page size.
func NewMediator(products ProductRepository, paging query.Paging) *Mediator {
	return &Mediator{products: products, paging: paging}
}

// Retrieve returns one 1-indexed page of the products matching every
// filter, sorted by orderBy. Ties are broken by the repository, if at all.
// Color and size filters must be resolved by filter.Engine first.
func (m *Mediator) Retrieve(ctx context.Context, filters []filter.Filter, page, pageSize int, orderBy string, dir query.Direction) (query.Page[Product], error) {
	if err := query.ValidateOrderBy(orderBy, SortKeys...); err != nil {
		return query.Page[Product]{}, err
	}
	req := m.paging.Normalize(query.Request{Page: page, PageSize: pageSize, OrderBy: orderBy, Direction: dir})

	predicates := make([]query.Predicate, 0, len(filters))
	for _, f := range filters {
		if f.Remote() {
			return query.Page[Product]{}, &errspkg.ValidationError{
				Field:  f.Kind.String(),
				Reason: "variant filter was not resolved",
			}
		}
		if p, ok := f.Predicate(); ok {
			predicates = append(predicates, p)
		}
	}

	items, total, err := m.products.FindMatching(ctx, predicates, req)
	if err != nil {
		return query.Page[Product]{}, fmt.Errorf("find matching products: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	return query.Page[Product]{Items: items, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}
