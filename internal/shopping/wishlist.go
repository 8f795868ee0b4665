package shopping

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// ProductSummary is the part of a product reply a wishlist shows.
type ProductSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	PhotoURL string  `json:"photoUrl,omitempty"`
	Price    float64 `json:"price"`
	Rating   float64 `json:"rating"`
}

// maxConcurrentLookups bounds the product lookups of one wishlist read.
const maxConcurrentLookups = 8

// Wishlist returns the user's wishlist, empty when there is none.
func (s *Service) Wishlist(ctx context.Context, userID string) (Wishlist, error) {
	w, err := s.wishlists.Get(ctx, userID)
	if errspkg.IsNotFound(err) {
		return Wishlist{UserID: userID, ProductIDs: []string{}}, nil
	}
	return w, err
}

func (s *Service) ListWishlists(ctx context.Context) ([]Wishlist, error) {
	return s.wishlists.List(ctx)
}

// InWishlist reports whether productID is on the user's wishlist.
func (s *Service) InWishlist(ctx context.Context, userID, productID string) (bool, error) {
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(w.ProductIDs, productID), nil
}

// ToggleWishlist adds productID to the wishlist, or removes it when already
// present, and returns the updated wishlist.
func (s *Service) ToggleWishlist(ctx context.Context, userID, productID string) (Wishlist, error) {
	if userID == "" || productID == "" {
		return Wishlist{}, &errspkg.ValidationError{Reason: "userId and productId are required"}
	}
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return Wishlist{}, err
	}
	if i := slices.Index(w.ProductIDs, productID); i >= 0 {
		w.ProductIDs = slices.Delete(w.ProductIDs, i, i+1)
	} else {
		w.ProductIDs = append(w.ProductIDs, productID)
	}
	return w, s.saveWishlist(ctx, w)
}

// RemoveFromWishlist drops productID from the wishlist.
func (s *Service) RemoveFromWishlist(ctx context.Context, userID, productID string) (Wishlist, error) {
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return Wishlist{}, err
	}
	i := slices.Index(w.ProductIDs, productID)
	if i < 0 {
		return w, nil
	}
	w.ProductIDs = slices.Delete(w.ProductIDs, i, i+1)
	return w, s.saveWishlist(ctx, w)
}

func (s *Service) saveWishlist(ctx context.Context, w Wishlist) error {
	w.UpdatedAt = s.now().UTC()
	return s.wishlists.Save(ctx, w)
}

// WishlistProducts resolves the wishlist entries through the product
// service, keeping wishlist order. Products the product service no longer
// knows are skipped. Any failed lookup fails the whole read.
func (s *Service) WishlistProducts(ctx context.Context, userID string) ([]ProductSummary, error) {
	w, err := s.Wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]*ProductSummary, len(w.ProductIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, id := range w.ProductIDs {
		g.Go(func() error {
			req, err := envelope.NewRPCRequest(envelope.RPCGetProductByID, envelope.ProductByID{ID: id})
			if err != nil {
				return err
			}
			var product ProductSummary
			found, err := s.caller.CallInto(gctx, envelope.ProductService, req, s.rpcTimeout, &product)
			if err != nil {
				return err
			}
			if found {
				results[i] = &product
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ProductSummary, 0, len(results))
	for i, r := range results {
		if r == nil {
			s.logger.Debug("Wishlist product no longer exists", loggingpkg.LogFields{"product_id": w.ProductIDs[i]})
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}
