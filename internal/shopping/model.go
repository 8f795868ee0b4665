// Package shopping is the shopping service: carts and wishlists. Variant
// details are never stored; they are fetched from the inventory service when
// a cart is read.
package shopping

import (
	"context"
	"errors"
	"time"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
)

// Item is one cart line as stored.
type Item struct {
	ProductID        string `json:"productId"`
	ProductVariantID string `json:"productVariantId"`
	ProductName      string `json:"productName"`
	ProductPhotoURL  string `json:"productPhotoUrl"`
	Quantity         int    `json:"quantity"`
}

type Cart struct {
	UserID string `json:"userId"`
	Items  []Item `json:"itemList"`
}

func (c *Cart) indexOf(variantID string) int {
	for i, it := range c.Items {
		if it.ProductVariantID == variantID {
			return i
		}
	}
	return -1
}

// ItemView is a cart line with the variant details resolved.
type ItemView struct {
	Item
	Color        string  `json:"color"`
	Size         string  `json:"size"`
	SellingPrice float64 `json:"sellingPrice"`
	// Unavailable is set when the inventory service did not return the
	// variant.
	Unavailable bool `json:"unavailable,omitempty"`
}

type CartView struct {
	UserID string     `json:"userId"`
	Items  []ItemView `json:"itemList"`
}

// Total sums price times quantity over the available lines.
func (v CartView) Total() float64 {
	var total float64
	for _, it := range v.Items {
		if !it.Unavailable {
			total += it.SellingPrice * float64(it.Quantity)
		}
	}
	return total
}

// AddItemRequest names a product variant by its product, color and size.
type AddItemRequest struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	ProductPhotoURL string `json:"productPhotoUrl"`
	Color           string `json:"color"`
	Size            string `json:"size"`
	Quantity        int    `json:"quantity"`
}

type Wishlist struct {
	UserID     string    `json:"userId"`
	ProductIDs []string  `json:"productIds"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ErrCartUnchanged is returned by a CartMutation to leave the stored cart
// as it is. CartRepository.Update passes it through.
var ErrCartUnchanged = errors.New("cart unchanged")

// CartMutation edits cart in place. found is false when the user had no
// cart; cart then holds an empty cart for the user.
type CartMutation func(cart *Cart, found bool) error

// CartRepository persists carts. Get returns *errors.NotFoundError when the
// user has no cart.
type CartRepository interface {
	Get(ctx context.Context, userID string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	// Update runs fn and saves its result as one read-modify-write: a
	// concurrent write to the same cart is never lost.
	Update(ctx context.Context, userID string, fn CartMutation) (Cart, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]Cart, error)
}

// WishlistRepository persists wishlists. Get returns *errors.NotFoundError
// when the user has none.
type WishlistRepository interface {
	Get(ctx context.Context, userID string) (Wishlist, error)
	Save(ctx context.Context, w Wishlist) error
	List(ctx context.Context) ([]Wishlist, error)
}

// Store bundles the repositories the shopping service needs.
type Store interface {
	Carts() CartRepository
	Wishlists() WishlistRepository
}

// Caller issues one RPC and decodes the reply. *runtime.Gateway satisfies it.
type Caller interface {
	CallInto(ctx context.Context, destination string, req envelope.RPCRequest, timeout time.Duration, out any) (bool, error)
}
