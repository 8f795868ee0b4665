package shopping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// GetCart returns the user's cart with variant details, or nil when the user
// has no cart. The details come from one inventory RPC; when it fails the
// lines are returned marked unavailable.
func (s *Service) GetCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.carts.Get(ctx, userID)
	if errspkg.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

func (s *Service) view(ctx context.Context, cart Cart) *CartView {
	view := &CartView{UserID: cart.UserID, Items: make([]ItemView, 0, len(cart.Items))}
	if len(cart.Items) == 0 {
		return view
	}

	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductVariantID)
	}
	variants, err := s.variantsByID(ctx, ids)
	if err != nil {
		s.logger.Error("Variant details unavailable", err, loggingpkg.LogFields{
			"user_id":  cart.UserID,
			"variants": len(ids),
		})
	}

	for _, it := range cart.Items {
		line := ItemView{Item: it}
		if v, ok := variants[it.ProductVariantID]; ok {
			line.Color, line.Size, line.SellingPrice = v.Color, v.Size, v.SellingPrice
		} else {
			line.Unavailable = true
		}
		view.Items = append(view.Items, line)
	}
	return view
}

func (s *Service) variantsByID(ctx context.Context, ids []string) (map[string]envelope.VariantSummary, error) {
	req, err := envelope.NewRPCRequest(envelope.RPCGetProductVariantListByIDList, envelope.VariantIDList{ProductVariantIDList: ids})
	if err != nil {
		return nil, err
	}
	var list []envelope.VariantSummary
	if _, err := s.caller.CallInto(ctx, envelope.InventoryService, req, s.rpcTimeout, &list); err != nil {
		return nil, err
	}
	out := make(map[string]envelope.VariantSummary, len(list))
	for _, v := range list {
		out[v.ID] = v
	}
	return out, nil
}

// AddItemToCart resolves the requested variant and adds it to the user's
// cart, creating the cart if needed. Adding a variant already in the cart
// sums the quantities and moves the line to the end. When the variant does
// not exist nothing is stored and nil is returned.
func (s *Service) AddItemToCart(ctx context.Context, userID string, req AddItemRequest) (*CartView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &errspkg.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if req.ProductID == "" || req.Color == "" || req.Size == "" {
		return nil, &errspkg.ValidationError{Reason: "productId, color and size are required"}
	}
	if req.Quantity < 1 {
		return nil, &errspkg.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	lookup, err := envelope.NewRPCRequest(envelope.RPCGetProductVariantByProductIDColorSize, envelope.VariantLookup{
		ProductID: req.ProductID,
		Color:     req.Color,
		Size:      req.Size,
	})
	if err != nil {
		return nil, err
	}
	var variant envelope.VariantSummary
	found, err := s.caller.CallInto(ctx, envelope.InventoryService, lookup, s.rpcTimeout, &variant)
	if err != nil {
		return nil, fmt.Errorf("resolve variant: %w", err)
	}
	if !found {
		s.logger.Debug("Variant not found, cart unchanged", loggingpkg.LogFields{
			"user_id":    userID,
			"product_id": req.ProductID,
			"color":      req.Color,
			"size":       req.Size,
		})
		return nil, nil
	}

	item := Item{
		ProductID:        req.ProductID,
		ProductVariantID: variant.ID,
		ProductName:      req.ProductName,
		ProductPhotoURL:  req.ProductPhotoURL,
		Quantity:         req.Quantity,
	}

	cart, err := s.carts.Update(ctx, userID, func(cart *Cart, _ bool) error {
		line := item
		if i := cart.indexOf(line.ProductVariantID); i >= 0 {
			line.Quantity += cart.Items[i].Quantity
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		}
		cart.Items = append(cart.Items, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

// RemoveItemFromCart drops a line. It returns nil when the user has no cart
// or the variant is not in it.
func (s *Service) RemoveItemFromCart(ctx context.Context, userID, variantID string) (*CartView, error) {
	cart, err := s.carts.Update(ctx, userID, func(cart *Cart, found bool) error {
		i := cart.indexOf(variantID)
		if !found || i < 0 {
			return ErrCartUnchanged
		}
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		return nil
	})
	if errors.Is(err, ErrCartUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart), nil
}

// UpdateItemQuantity sets the quantity of a line and returns it. It returns
// nil when the user has no cart or the variant is not in it.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, variantID string, quantity int) (*Item, error) {
	if quantity < 1 {
		return nil, &errspkg.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	var item Item
	_, err := s.carts.Update(ctx, userID, func(cart *Cart, found bool) error {
		i := cart.indexOf(variantID)
		if !found || i < 0 {
			return ErrCartUnchanged
		}
		cart.Items[i].Quantity = quantity
		item = cart.Items[i]
		return nil
	})
	if errors.Is(err, ErrCartUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ClearCart removes the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	return s.carts.Delete(ctx, userID)
}

func (s *Service) ListCarts(ctx context.Context) ([]Cart, error) {
	return s.carts.List(ctx)
}
