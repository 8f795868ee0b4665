package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/drblury/shopmesh/internal/shopping"
)

type Carts struct {
	mu    sync.RWMutex
	items map[string]shopping.Cart
}

func cloneCart(c shopping.Cart) shopping.Cart {
	c.Items = slices.Clone(c.Items)
	return c
}

func (r *Carts) Get(_ context.Context, userID string) (shopping.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[userID]
	if !ok {
		return shopping.Cart{}, notFound("cart", userID)
	}
	return cloneCart(c), nil
}

func (r *Carts) Save(_ context.Context, c shopping.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.UserID] = cloneCart(c)
	return nil
}

// Update holds the write lock for the whole read-modify-write.
func (r *Carts) Update(_ context.Context, userID string, fn shopping.CartMutation) (shopping.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, found := r.items[userID]
	if found {
		c = cloneCart(c)
	} else {
		c = shopping.Cart{UserID: userID}
	}
	if err := fn(&c, found); err != nil {
		return shopping.Cart{}, err
	}
	r.items[userID] = cloneCart(c)
	return c, nil
}

func (r *Carts) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, userID)
	return nil
}

func (r *Carts) List(_ context.Context) ([]shopping.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]shopping.Cart, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, cloneCart(c))
	}
	slices.SortFunc(out, func(a, b shopping.Cart) int { return strings.Compare(a.UserID, b.UserID) })
	return out, nil
}

type Wishlists struct {
	mu    sync.RWMutex
	items map[string]shopping.Wishlist
}

func cloneWishlist(w shopping.Wishlist) shopping.Wishlist {
	w.ProductIDs = slices.Clone(w.ProductIDs)
	return w
}

func (r *Wishlists) Get(_ context.Context, userID string) (shopping.Wishlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.items[userID]
	if !ok {
		return shopping.Wishlist{}, notFound("wishlist", userID)
	}
	return cloneWishlist(w), nil
}

func (r *Wishlists) Save(_ context.Context, w shopping.Wishlist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[w.UserID] = cloneWishlist(w)
	return nil
}

func (r *Wishlists) List(_ context.Context) ([]shopping.Wishlist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]shopping.Wishlist, 0, len(r.items))
	for _, w := range r.items {
		out = append(out, cloneWishlist(w))
	}
	slices.SortFunc(out, func(a, b shopping.Wishlist) int { return strings.Compare(a.UserID, b.UserID) })
	return out, nil
}
