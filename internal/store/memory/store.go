// Package memory keeps every shopmesh repository in process memory. Values
// are copied in and out so callers never share slices with the store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/drblury/shopmesh/internal/catalog"
	"github.com/drblury/shopmesh/internal/inventory"
	"github.com/drblury/shopmesh/internal/review"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/shopping"
)

// Store implements the catalog, inventory, review and shopping stores.
type Store struct {
	products   *Products
	categories *Categories
	colors     *Options
	sizes      *Options
	variants   *Variants
	reviews    *Reviews
	carts      *Carts
	wishlists  *Wishlists
}

var (
	_ catalog.Store   = (*Store)(nil)
	_ inventory.Store = (*Store)(nil)
	_ review.Store    = (*Store)(nil)
	_ shopping.Store  = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		products:   &Products{items: map[string]catalog.Product{}},
		categories: &Categories{items: map[string][]string{}},
		colors:     &Options{entity: "color", items: map[string]inventory.Option{}},
		sizes:      &Options{entity: "size", items: map[string]inventory.Option{}},
		variants:   &Variants{items: map[string]inventory.Variant{}},
		reviews:    &Reviews{items: map[string]review.Review{}},
		carts:      &Carts{items: map[string]shopping.Cart{}},
		wishlists:  &Wishlists{items: map[string]shopping.Wishlist{}},
	}
}

// Products, Categories and the other accessors return the repositories the
// domain services are built on. They share the Store's lifetime.
func (s *Store) Products() catalog.ProductRepository    { return s.products }
func (s *Store) Categories() catalog.CategoryRepository { return s.categories }
func (s *Store) Colors() inventory.OptionRepository     { return s.colors }
func (s *Store) Sizes() inventory.OptionRepository      { return s.sizes }
func (s *Store) Variants() inventory.VariantRepository  { return s.variants }
func (s *Store) Reviews() review.Repository             { return s.reviews }
func (s *Store) Carts() shopping.CartRepository         { return s.carts }
func (s *Store) Wishlists() shopping.WishlistRepository { return s.wishlists }

// Options keeps colors or sizes.
type Options struct {
	entity string
	mu     sync.RWMutex
	items  map[string]inventory.Option
}

func notFound(entity, id string) error {
	return &errspkg.NotFoundError{Entity: entity, ID: id}
}

func newID() string { return uuid.NewString() }

func (o *Options) Create(_ context.Context, name string) (inventory.Option, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, opt := range o.items {
		if opt.Name == name {
			return inventory.Option{}, fmt.Errorf("%s %q already exists", o.entity, name)
		}
	}
	opt := inventory.Option{ID: newID(), Name: name}
	o.items[opt.ID] = opt
	return opt, nil
}

func (o *Options) Get(_ context.Context, id string) (inventory.Option, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	opt, ok := o.items[id]
	if !ok {
		return inventory.Option{}, notFound(o.entity, id)
	}
	return opt, nil
}

func (o *Options) FindByName(_ context.Context, name string) (inventory.Option, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, opt := range o.items {
		if opt.Name == name {
			return opt, nil
		}
	}
	return inventory.Option{}, notFound(o.entity, name)
}

func (o *Options) List(_ context.Context) ([]inventory.Option, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]inventory.Option, 0, len(o.items))
	for _, opt := range o.items {
		out = append(out, opt)
	}
	slices.SortFunc(out, func(a, b inventory.Option) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (o *Options) Rename(_ context.Context, id, name string) (inventory.Option, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	opt, ok := o.items[id]
	if !ok {
		return inventory.Option{}, notFound(o.entity, id)
	}
	opt.Name = name
	o.items[id] = opt
	return opt, nil
}

func (o *Options) Delete(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.items[id]; !ok {
		return notFound(o.entity, id)
	}
	delete(o.items, id)
	return nil
}
