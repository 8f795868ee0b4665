package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/drblury/shopmesh/internal/catalog"
	"github.com/drblury/shopmesh/internal/catalog/filter"
	"github.com/drblury/shopmesh/internal/query"
)

type Products struct {
	mu    sync.RWMutex
	items map[string]catalog.Product
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Categories = slices.Clone(p.Categories)
	return p
}

func (r *Products) Create(_ context.Context, p catalog.Product) (catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	if _, exists := r.items[p.ID]; exists {
		return catalog.Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	r.items[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

func (r *Products) Get(_ context.Context, id string) (catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return catalog.Product{}, notFound("product", id)
	}
	return cloneProduct(p), nil
}

func (r *Products) List(_ context.Context) ([]catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Product, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, cloneProduct(p))
	}
	sortProducts(out, "", query.Asc)
	return out, nil
}

func (r *Products) Update(_ context.Context, p catalog.Product) (catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return catalog.Product{}, notFound("product", p.ID)
	}
	r.items[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

func (r *Products) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return notFound("product", id)
	}
	delete(r.items, id)
	return nil
}

// FindMatching filters by every predicate, sorts by req.OrderBy (creation
// time when empty) with the product id as tie-break, then cuts the page.
func (r *Products) FindMatching(_ context.Context, predicates []query.Predicate, req query.Request) ([]catalog.Product, int, error) {
	r.mu.RLock()
	matched := make([]catalog.Product, 0, len(r.items))
	var err error
	for _, p := range r.items {
		ok, merr := matchProduct(p, predicates)
		if merr != nil {
			err = merr
			break
		}
		if ok {
			matched = append(matched, cloneProduct(p))
		}
	}
	r.mu.RUnlock()
	if err != nil {
		return nil, 0, err
	}

	sortProducts(matched, req.OrderBy, req.Direction)
	return query.Window(matched, req), len(matched), nil
}

func matchProduct(p catalog.Product, predicates []query.Predicate) (bool, error) {
	for _, pred := range predicates {
		var ok bool
		switch pred.Field {
		case filter.FieldCategories:
			ok = pred.MatchAny(p.Categories...)
		case filter.FieldID:
			ok = pred.MatchAny(p.ID)
		case filter.FieldPrice:
			ok = pred.MatchNumber(p.Price)
		default:
			return false, fmt.Errorf("unsupported product field %q", pred.Field)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func sortProducts(items []catalog.Product, orderBy string, dir query.Direction) {
	primary := func(a, b catalog.Product) int {
		switch orderBy {
		case catalog.OrderByName:
			return strings.Compare(a.Name, b.Name)
		case catalog.OrderByPrice:
			return cmp.Compare(a.Price, b.Price)
		case catalog.OrderByRating:
			return cmp.Compare(a.Rating, b.Rating)
		case catalog.OrderByReviewed:
			return cmp.Compare(a.Reviewed, b.Reviewed)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	slices.SortFunc(items, func(a, b catalog.Product) int {
		c := primary(a, b)
		if dir == query.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Categories keeps category membership.
type Categories struct {
	mu    sync.RWMutex
	items map[string][]string
}

func (r *Categories) AddProduct(_ context.Context, category, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.items[category], productID) {
		r.items[category] = append(r.items[category], productID)
	}
	return nil
}

// RemoveProduct drops productID from category and forgets empty categories.
func (r *Categories) RemoveProduct(_ context.Context, category, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := slices.DeleteFunc(r.items[category], func(id string) bool { return id == productID })
	if len(ids) == 0 {
		delete(r.items, category)
		return nil
	}
	r.items[category] = ids
	return nil
}

func (r *Categories) List(_ context.Context) ([]catalog.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Category, 0, len(r.items))
	for name, ids := range r.items {
		out = append(out, catalog.Category{Name: name, ProductIDs: slices.Clone(ids)})
	}
	slices.SortFunc(out, func(a, b catalog.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}
