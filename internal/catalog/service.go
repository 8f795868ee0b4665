package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/drblury/shopmesh/internal/catalog/filter"
	"github.com/drblury/shopmesh/internal/query"
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

// Option customises a Service.
type Option func(*Service)

// WithPaging overrides the default page size policy.
func WithPaging(p query.Paging) Option {
	return func(s *Service) { s.paging = p }
}

// WithRPCTimeout bounds the variant resolution call.
func WithRPCTimeout(d time.Duration) Option {
	return func(s *Service) { s.rpcTimeout = d }
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// RetrieveRequest is one filtered, sorted and paged product query.
type RetrieveRequest struct {
	Criteria  filter.Criteria
	Page      int
	PageSize  int
	OrderBy   string
	Direction query.Direction
}

// Service is the product service.
type Service struct {
	products   ProductRepository
	categories CategoryRepository
	publisher  EventPublisher
	logger     loggingpkg.ServiceLogger

	paging     query.Paging
	rpcTimeout time.Duration
	now        func() time.Time

	engine   *filter.Engine
	mediator *Mediator
	events   *handlers.EventTable
	rpc      *handlers.RPCTable
}

// NewService wires the product service. caller resolves variant filters;
// publisher announces product deletions and may be nil.
func NewService(store Store, caller filter.Caller, publisher EventPublisher, logger loggingpkg.ServiceLogger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog: store is required")
	}
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	s := &Service{
		products:   store.Products(),
		categories: store.Categories(),
		publisher:  publisher,
		logger:     logger.With(loggingpkg.LogFields{"service": envelope.ProductService}),
		paging:     query.Paging{DefaultPageSize: 10, MaxPageSize: 100},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = filter.NewEngine(caller, s.rpcTimeout, s.logger)
	s.mediator = NewMediator(s.products, s.paging)

	s.events = handlers.NewEventTable(s.logger)
	stats := handlers.JSON(s.onReviewStatistics, s.logger)
	if err := s.events.Handle(envelope.EventCreateReview, stats); err != nil {
		return nil, err
	}
	if err := s.events.Handle(envelope.EventDeleteReview, stats); err != nil {
		return nil, err
	}

	s.rpc = handlers.NewRPCTable()
	if err := s.rpc.Handle(envelope.RPCGetProductByID, handlers.JSONRPC(s.productByID)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.products.Get(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.categories.List(ctx)
}

// CreateProduct stores p and files it under its categories.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	p.Categories = normalizeCategories(p.Categories)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.Rating, p.Reviewed = 0, 0

	created, err := s.products.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	for _, c := range created.Categories {
		if err := s.categories.AddProduct(ctx, c, created.ID); err != nil {
			return Product{}, fmt.Errorf("file product under %q: %w", c, err)
		}
	}
	return created, nil
}

// UpdateProduct replaces the editable fields of product id. Review
// statistics and the creation time are kept.
func (s *Service) UpdateProduct(ctx context.Context, id string, p Product) (Product, error) {
	existing, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	p.ID = id
	p.Categories = normalizeCategories(p.Categories)
	p.Rating, p.Reviewed, p.CreatedAt = existing.Rating, existing.Reviewed, existing.CreatedAt

	if err := s.moveCategories(ctx, id, existing.Categories, p.Categories); err != nil {
		return Product{}, err
	}
	return s.products.Update(ctx, p)
}

func (s *Service) moveCategories(ctx context.Context, id string, before, after []string) error {
	for _, c := range difference(after, before) {
		if err := s.categories.AddProduct(ctx, c, id); err != nil {
			return fmt.Errorf("file product under %q: %w", c, err)
		}
	}
	for _, c := range difference(before, after) {
		if err := s.categories.RemoveProduct(ctx, c, id); err != nil {
			return fmt.Errorf("remove product from %q: %w", c, err)
		}
	}
	return nil
}

// DeleteProduct removes product id and announces DELETE_PRODUCT to the
// services keeping data about it. Announcement failures are logged only.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.products.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range existing.Categories {
		if err := s.categories.RemoveProduct(ctx, c, id); err != nil {
			return fmt.Errorf("remove product from %q: %w", c, err)
		}
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	for _, dest := range []string{envelope.InventoryService, envelope.ReviewService, envelope.ShoppingService} {
		if err := s.publisher.PublishEvent(ctx, dest, envelope.EventDeleteProduct, envelope.ProductDeleted{ProductID: id}); err != nil {
			s.logger.Error("Failed to announce product deletion", err, loggingpkg.LogFields{
				"product_id":  id,
				"destination": dest,
			})
		}
	}
	return nil
}

// UpdateReviewStatistics stores the rating average and review count of a
// product. Unknown products are ignored.
func (s *Service) UpdateReviewStatistics(ctx context.Context, stats envelope.ReviewStatistics) error {
	p, err := s.products.Get(ctx, stats.ProductID)
	if errspkg.IsNotFound(err) {
		s.logger.Debug("Review statistics for unknown product", loggingpkg.LogFields{"product_id": stats.ProductID})
		return nil
	}
	if err != nil {
		return err
	}
	p.Rating = stats.AverageRating
	p.Reviewed = stats.ReviewCount
	_, err = s.products.Update(ctx, p)
	return err
}

// RetrieveProducts resolves the criteria and returns one page of matches.
// A failed or timed out variant resolution fails the whole retrieval.
func (s *Service) RetrieveProducts(ctx context.Context, req RetrieveRequest) (query.Page[Product], error) {
	filters, err := s.engine.Compose(ctx, req.Criteria)
	if err != nil {
		return query.Page[Product]{}, err
	}
	return s.mediator.Retrieve(ctx, filters, req.Page, req.PageSize, req.OrderBy, req.Direction)
}

// SubscribeEvents handles CREATE_REVIEW and DELETE_REVIEW.
func (s *Service) SubscribeEvents(ctx context.Context, body []byte) error {
	return s.events.SubscribeEvents(ctx, body)
}

// ServeRPCRequest answers GET_PRODUCT_BY_ID; unknown products reply null.
func (s *Service) ServeRPCRequest(ctx context.Context, req envelope.RPCRequest) (any, error) {
	return s.rpc.ServeRPCRequest(ctx, req)
}

func (s *Service) onReviewStatistics(ctx context.Context, msg handlers.MessageContext[envelope.ReviewStatistics]) error {
	if msg.Payload.ProductID == "" {
		return &errspkg.ValidationError{Field: "productId", Reason: "must not be empty"}
	}
	msg.Logger.Debug("Updating review statistics", loggingpkg.LogFields{
		"product_id":     msg.Payload.ProductID,
		"average_rating": msg.Payload.AverageRating,
		"review_count":   msg.Payload.ReviewCount,
	})
	return s.UpdateReviewStatistics(ctx, msg.Payload)
}

func (s *Service) productByID(ctx context.Context, req envelope.ProductByID) (*Product, error) {
	p, err := s.products.Get(ctx, req.ID)
	if errspkg.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return &errspkg.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Price < 0 {
		return &errspkg.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// difference returns the elements of a missing from b.
func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}
