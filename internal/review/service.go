package review

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/runtime/handlers"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// EventPublisher emits fire-and-forget events. *runtime.Publisher
// satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, destination string, kind envelope.EventType, data any) error
}

// Service is the review service.
type Service struct {
	reviews   Repository
	publisher EventPublisher
	logger    loggingpkg.ServiceLogger
	now       func() time.Time

	events *handlers.EventTable
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now for review timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the review service. publisher may be nil, in which case
// statistics are not announced.
func NewService(store Store, publisher EventPublisher, logger loggingpkg.ServiceLogger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("review: store is required")
	}
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	s := &Service{
		reviews:   store.Reviews(),
		publisher: publisher,
		logger:    logger.With(loggingpkg.LogFields{"service": envelope.ReviewService}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = handlers.NewEventTable(s.logger)
	if err := s.events.Handle(envelope.EventDeleteProduct, handlers.JSON(s.onProductDeleted, s.logger)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ListReviews(ctx context.Context) ([]Review, error) {
	return s.reviews.List(ctx)
}

func (s *Service) ReviewsOfProduct(ctx context.Context, productID string) ([]Review, error) {
	if productID == "" {
		return nil, &errspkg.ValidationError{Field: "productId", Reason: "must not be empty"}
	}
	return s.reviews.ListByProduct(ctx, productID)
}

func (s *Service) ReviewOfUserForProduct(ctx context.Context, productID, userID string) (Review, error) {
	if productID == "" || userID == "" {
		return Review{}, &errspkg.ValidationError{Reason: "productId and userId are required"}
	}
	return s.reviews.FindByProductAndUser(ctx, productID, userID)
}

// CreateReview stores a user's review of a product and announces the new
// statistics with CREATE_REVIEW. A user reviews a product at most once.
func (s *Service) CreateReview(ctx context.Context, r Review) (Review, error) {
	if r.ProductID == "" || r.UserID == "" {
		return Review{}, &errspkg.ValidationError{Reason: "productId and userId are required"}
	}
	if err := validateRating(r.Rating); err != nil {
		return Review{}, err
	}
	_, err := s.reviews.FindByProductAndUser(ctx, r.ProductID, r.UserID)
	switch {
	case err == nil:
		return Review{}, &errspkg.ValidationError{Field: "review", Reason: "user already reviewed this product"}
	case !errspkg.IsNotFound(err):
		return Review{}, err
	}

	now := s.now().UTC()
	r.Comment = strings.TrimSpace(r.Comment)
	r.CreatedAt, r.UpdatedAt = now, now
	created, err := s.reviews.Create(ctx, r)
	if err != nil {
		return Review{}, err
	}
	s.announce(ctx, envelope.EventCreateReview, created.ProductID)
	return created, nil
}

// UpdateReview replaces rating and comment of review id and announces the
// refreshed statistics with CREATE_REVIEW.
func (s *Service) UpdateReview(ctx context.Context, id string, rating int, comment string) (Review, error) {
	if err := validateRating(rating); err != nil {
		return Review{}, err
	}
	r, err := s.reviews.Get(ctx, id)
	if err != nil {
		return Review{}, err
	}
	r.Rating = rating
	r.Comment = strings.TrimSpace(comment)
	r.UpdatedAt = s.now().UTC()
	updated, err := s.reviews.Update(ctx, r)
	if err != nil {
		return Review{}, err
	}
	s.announce(ctx, envelope.EventCreateReview, updated.ProductID)
	return updated, nil
}

// DeleteReview removes review id and announces the refreshed statistics of
// its product with DELETE_REVIEW.
func (s *Service) DeleteReview(ctx context.Context, id string) (Review, error) {
	r, err := s.reviews.Get(ctx, id)
	if err != nil {
		return Review{}, err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return Review{}, err
	}
	s.announce(ctx, envelope.EventDeleteReview, r.ProductID)
	return r, nil
}

// DeleteReviewsOfUser removes every review by userID and announces the
// statistics of each affected product.
func (s *Service) DeleteReviewsOfUser(ctx context.Context, userID string) (int, error) {
	removed, err := s.reviews.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var products []string
	for _, r := range removed {
		if !slices.Contains(products, r.ProductID) {
			products = append(products, r.ProductID)
		}
	}
	for _, id := range products {
		s.announce(ctx, envelope.EventDeleteReview, id)
	}
	return len(removed), nil
}

// Statistics computes the average rating, rounded to one decimal, and the
// review count of a product.
func (s *Service) Statistics(ctx context.Context, productID string) (envelope.ReviewStatistics, error) {
	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return envelope.ReviewStatistics{}, err
	}
	stats := envelope.ReviewStatistics{ProductID: productID, ReviewCount: len(reviews)}
	if len(reviews) == 0 {
		return stats, nil
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	stats.AverageRating = math.Round(float64(sum)/float64(len(reviews))*10) / 10
	return stats, nil
}

// SubscribeEvents handles DELETE_PRODUCT.
func (s *Service) SubscribeEvents(ctx context.Context, body []byte) error {
	return s.events.SubscribeEvents(ctx, body)
}

func (s *Service) onProductDeleted(ctx context.Context, msg handlers.MessageContext[envelope.ProductDeleted]) error {
	n, err := s.reviews.DeleteByProduct(ctx, msg.Payload.ProductID)
	if err != nil {
		return err
	}
	msg.Logger.Info("Dropped reviews of deleted product", loggingpkg.LogFields{
		"product_id": msg.Payload.ProductID,
		"reviews":    n,
	})
	return nil
}

// announce publishes the product's statistics. Failures are logged; the
// review mutation already happened.
func (s *Service) announce(ctx context.Context, kind envelope.EventType, productID string) {
	if s.publisher == nil {
		return
	}
	stats, err := s.Statistics(ctx, productID)
	if err == nil {
		err = s.publisher.PublishEvent(ctx, envelope.ProductService, kind, stats)
	}
	if err != nil {
		s.logger.Error("Failed to announce review statistics", err, loggingpkg.LogFields{
			"event_kind": string(kind),
			"product_id": productID,
		})
	}
}

func validateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return &errspkg.ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
	}
	return nil
}
