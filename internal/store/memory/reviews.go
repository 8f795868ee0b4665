package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/drblury/shopmesh/internal/review"
)

type Reviews struct {
	mu    sync.RWMutex
	items map[string]review.Review
}

func (r *Reviews) Create(_ context.Context, rv review.Review) (review.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rv.ID == "" {
		rv.ID = newID()
	}
	if _, exists := r.items[rv.ID]; exists {
		return review.Review{}, fmt.Errorf("review %q already exists", rv.ID)
	}
	r.items[rv.ID] = rv
	return rv, nil
}

func (r *Reviews) Get(_ context.Context, id string) (review.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rv, ok := r.items[id]
	if !ok {
		return review.Review{}, notFound("review", id)
	}
	return rv, nil
}

func (r *Reviews) Update(_ context.Context, rv review.Review) (review.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[rv.ID]; !ok {
		return review.Review{}, notFound("review", rv.ID)
	}
	r.items[rv.ID] = rv
	return rv, nil
}

func (r *Reviews) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return notFound("review", id)
	}
	delete(r.items, id)
	return nil
}

func (r *Reviews) List(_ context.Context) ([]review.Review, error) {
	return r.collect(func(review.Review) bool { return true }), nil
}

func (r *Reviews) ListByProduct(_ context.Context, productID string) ([]review.Review, error) {
	return r.collect(func(rv review.Review) bool { return rv.ProductID == productID }), nil
}

func (r *Reviews) FindByProductAndUser(_ context.Context, productID, userID string) (review.Review, error) {
	found := r.collect(func(rv review.Review) bool { return rv.ProductID == productID && rv.UserID == userID })
	if len(found) == 0 {
		return review.Review{}, notFound("review", productID+"/"+userID)
	}
	return found[0], nil
}

func (r *Reviews) DeleteByProduct(_ context.Context, productID string) (int, error) {
	removed := r.remove(func(rv review.Review) bool { return rv.ProductID == productID })
	return len(removed), nil
}

func (r *Reviews) DeleteByUser(_ context.Context, userID string) ([]review.Review, error) {
	return r.remove(func(rv review.Review) bool { return rv.UserID == userID }), nil
}

// collect returns matching reviews, oldest first.
func (r *Reviews) collect(keep func(review.Review) bool) []review.Review {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []review.Review{}
	for _, rv := range r.items {
		if keep(rv) {
			out = append(out, rv)
		}
	}
	sortReviews(out)
	return out
}

func (r *Reviews) remove(match func(review.Review) bool) []review.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []review.Review
	for id, rv := range r.items {
		if match(rv) {
			out = append(out, rv)
			delete(r.items, id)
		}
	}
	sortReviews(out)
	return out
}

func sortReviews(items []review.Review) {
	slices.SortFunc(items, func(a, b review.Review) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
