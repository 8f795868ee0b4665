// Package catalog is the product service: product and category bookkeeping,
// review statistics and filtered product retrieval.
package catalog

import (
	"context"
	"time"

	"github.com/drblury/shopmesh/internal/query"
)

// Sort keys accepted by RetrieveProducts.
const (
	OrderByName      = "name"
	OrderByPrice     = "price"
	OrderByRating    = "rating"
	OrderByReviewed  = "reviewed"
	OrderByCreatedAt = "createdAt"
)

// SortKeys lists the accepted sort keys.
var SortKeys = []string{OrderByName, OrderByPrice, OrderByRating, OrderByReviewed, OrderByCreatedAt}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	Price       float64   `json:"price"`
	Categories  []string  `json:"categories"`
	Rating      float64   `json:"rating"`
	Reviewed    int       `json:"reviewed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category lists the products filed under one name.
type Category struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"productIds"`
}

// ProductRepository persists products. Get returns *errors.NotFoundError
// for unknown ids.
type ProductRepository interface {
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
	// FindMatching returns the window of products matching every predicate
	// together with the total match count.
	FindMatching(ctx context.Context, predicates []query.Predicate, req query.Request) ([]Product, int, error)
}

type CategoryRepository interface {
	AddProduct(ctx context.Context, category, productID string) error
	RemoveProduct(ctx context.Context, category, productID string) error
	List(ctx context.Context) ([]Category, error)
}

// Store bundles the repositories the product service needs.
type Store interface {
	Products() ProductRepository
	Categories() CategoryRepository
}
