package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/drblury/shopmesh/internal/inventory"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
)

type Variants struct {
	mu    sync.RWMutex
	items map[string]inventory.Variant
}

func (r *Variants) Create(_ context.Context, v inventory.Variant) (inventory.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == "" {
		v.ID = newID()
	}
	if _, exists := r.items[v.ID]; exists {
		return inventory.Variant{}, fmt.Errorf("variant %q already exists", v.ID)
	}
	r.items[v.ID] = v
	return v, nil
}

func (r *Variants) Get(_ context.Context, id string) (inventory.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	if !ok {
		return inventory.Variant{}, notFound("variant", id)
	}
	return v, nil
}

func (r *Variants) Update(_ context.Context, v inventory.Variant) (inventory.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[v.ID]; !ok {
		return inventory.Variant{}, notFound("variant", v.ID)
	}
	r.items[v.ID] = v
	return v, nil
}

func (r *Variants) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return notFound("variant", id)
	}
	delete(r.items, id)
	return nil
}

func (r *Variants) ListByProduct(_ context.Context, productID string) ([]inventory.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []inventory.Variant
	for _, v := range r.items {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b inventory.Variant) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *Variants) FindByProductColorSize(_ context.Context, productID, color, size string) (inventory.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.items {
		if v.ProductID == productID && v.Color == color && v.Size == size {
			return v, nil
		}
	}
	return inventory.Variant{}, notFound("variant", productID+"/"+color+"/"+size)
}

func (r *Variants) ListByIDs(_ context.Context, ids []string) ([]inventory.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]inventory.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.items[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *Variants) ProductIDsMatching(_ context.Context, opts envelope.VariantOptions) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, v := range r.items {
		if len(opts.Colors) > 0 && !slices.Contains(opts.Colors, v.Color) {
			continue
		}
		if len(opts.Sizes) > 0 && !slices.Contains(opts.Sizes, v.Size) {
			continue
		}
		seen[v.ProductID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Variants) DeleteByProduct(_ context.Context, productID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, v := range r.items {
		if v.ProductID == productID {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}
