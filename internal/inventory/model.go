// Package inventory is the inventory service: color and size catalogs and
// the product variants that combine them with stock and price.
package inventory

import (
	"context"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
)

// Option is a named color or size.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Variant is one purchasable color and size combination of a product.
type Variant struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	Color        string  `json:"color"`
	Size         string  `json:"size"`
	Quantity     int     `json:"quantity"`
	SellingPrice float64 `json:"sellingPrice"`
}

// Summary is the wire form of v.
func (v Variant) Summary() envelope.VariantSummary {
	return envelope.VariantSummary{
		ID:           v.ID,
		ProductID:    v.ProductID,
		Color:        v.Color,
		Size:         v.Size,
		SellingPrice: v.SellingPrice,
		Quantity:     v.Quantity,
	}
}

// OptionRepository persists colors or sizes. Names are unique.
type OptionRepository interface {
	Create(ctx context.Context, name string) (Option, error)
	Get(ctx context.Context, id string) (Option, error)
	FindByName(ctx context.Context, name string) (Option, error)
	List(ctx context.Context) ([]Option, error)
	Rename(ctx context.Context, id, name string) (Option, error)
	Delete(ctx context.Context, id string) error
}

// VariantRepository persists variants. Lookups of unknown variants return
// *errors.NotFoundError.
type VariantRepository interface {
	Create(ctx context.Context, v Variant) (Variant, error)
	Get(ctx context.Context, id string) (Variant, error)
	Update(ctx context.Context, v Variant) (Variant, error)
	Delete(ctx context.Context, id string) error
	ListByProduct(ctx context.Context, productID string) ([]Variant, error)
	FindByProductColorSize(ctx context.Context, productID, color, size string) (Variant, error)
	// ListByIDs returns the known variants among ids, in ids order.
	ListByIDs(ctx context.Context, ids []string) ([]Variant, error)
	// ProductIDsMatching returns the distinct, sorted ids of products with
	// a variant whose color is in opts.Colors and whose size is in
	// opts.Sizes. An empty list does not constrain its attribute.
	ProductIDsMatching(ctx context.Context, opts envelope.VariantOptions) ([]string, error)
	DeleteByProduct(ctx context.Context, productID string) (int, error)
}

// Store bundles the repositories the inventory service needs.
type Store interface {
	Colors() OptionRepository
	Sizes() OptionRepository
	Variants() VariantRepository
}
