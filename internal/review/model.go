// Package review is the review service. Every review mutation refreshes the
// product's rating statistics on the product service.
package review

import (
	"context"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository persists reviews. Lookups of unknown reviews return
// *errors.NotFoundError.
type Repository interface {
	Create(ctx context.Context, r Review) (Review, error)
	Get(ctx context.Context, id string) (Review, error)
	Update(ctx context.Context, r Review) (Review, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Review, error)
	ListByProduct(ctx context.Context, productID string) ([]Review, error)
	FindByProductAndUser(ctx context.Context, productID, userID string) (Review, error)
	DeleteByProduct(ctx context.Context, productID string) (int, error)
	// DeleteByUser removes the user's reviews and returns them.
	DeleteByUser(ctx context.Context, userID string) ([]Review, error)
}

// Store bundles the repositories the review service needs.
type Store interface {
	Reviews() Repository
}
