package shopping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	"github.com/drblury/shopmesh/internal/runtime/handlers"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// Service is the shopping service.
type Service struct {
	carts     CartRepository
	wishlists WishlistRepository
	caller    Caller
	logger    loggingpkg.ServiceLogger

	rpcTimeout time.Duration
	now        func() time.Time

	events *handlers.EventTable
}

// Option customises a Service.
type Option func(*Service)

// WithRPCTimeout bounds every inventory and product lookup.
func WithRPCTimeout(d time.Duration) Option {
	return func(s *Service) { s.rpcTimeout = d }
}

// WithClock replaces time.Now for wishlist timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, caller Caller, logger loggingpkg.ServiceLogger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("shopping: store is required")
	}
	if caller == nil {
		return nil, fmt.Errorf("shopping: rpc caller is required")
	}
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	s := &Service{
		carts:     store.Carts(),
		wishlists: store.Wishlists(),
		caller:    caller,
		logger:    logger.With(loggingpkg.LogFields{"service": envelope.ShoppingService}),
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

// SubscribeEvents handles DELETE_PRODUCT.
func (s *Service) SubscribeEvents(ctx context.Context, body []byte) error {
	return s.events.SubscribeEvents(ctx, body)
}

// onProductDeleted drops the product from every cart and wishlist.
func (s *Service) onProductDeleted(ctx context.Context, msg handlers.MessageContext[envelope.ProductDeleted]) error {
	productID := msg.Payload.ProductID

	carts, err := s.carts.List(ctx)
	if err != nil {
		return err
	}
	var lines int
	for _, listed := range carts {
		if !slices.ContainsFunc(listed.Items, func(it Item) bool { return it.ProductID == productID }) {
			continue
		}
		var removed int
		_, err := s.carts.Update(ctx, listed.UserID, func(c *Cart, found bool) error {
			n := len(c.Items)
			c.Items = slices.DeleteFunc(c.Items, func(it Item) bool { return it.ProductID == productID })
			removed = n - len(c.Items)
			if !found || removed == 0 {
				return ErrCartUnchanged
			}
			return nil
		})
		switch {
		case errors.Is(err, ErrCartUnchanged):
		case err != nil:
			return err
		default:
			lines += removed
		}
	}

	lists, err := s.wishlists.List(ctx)
	if err != nil {
		return err
	}
	var wishes int
	for _, w := range lists {
		i := slices.Index(w.ProductIDs, productID)
		if i < 0 {
			continue
		}
		w.ProductIDs = slices.Delete(w.ProductIDs, i, i+1)
		w.UpdatedAt = s.now().UTC()
		wishes++
		if err := s.wishlists.Save(ctx, w); err != nil {
			return err
		}
	}

	msg.Logger.Info("Dropped deleted product from carts and wishlists", loggingpkg.LogFields{
		"product_id": productID,
		"cart_lines": lines,
		"wishlists":  wishes,
	})
	return nil
}
