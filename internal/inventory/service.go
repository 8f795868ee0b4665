package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/runtime/handlers"
	loggingpkg "github.com/drblury/shopmesh/internal/runtime/logging"
)

// Service is the inventory service.
type Service struct {
	colors   OptionRepository
	sizes    OptionRepository
	variants VariantRepository
	logger   loggingpkg.ServiceLogger

	events *handlers.EventTable
	rpc    *handlers.RPCTable
}

func NewService(store Store, logger loggingpkg.ServiceLogger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("inventory: store is required")
	}
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	s := &Service{
		colors:   store.Colors(),
		sizes:    store.Sizes(),
		variants: store.Variants(),
		logger:   logger.With(loggingpkg.LogFields{"service": envelope.InventoryService}),
	}

	s.events = handlers.NewEventTable(s.logger)
	if err := s.events.Handle(envelope.EventDeleteProduct, handlers.JSON(s.onProductDeleted, s.logger)); err != nil {
		return nil, err
	}

	s.rpc = handlers.NewRPCTable()
	routes := map[envelope.RPCType]handlers.RPCHandler{
		envelope.RPCGetProductVariantByProductIDColorSize: handlers.JSONRPC(s.variantByProductColorSize),
		envelope.RPCGetProductVariantListByIDList:         handlers.JSONRPC(s.variantsByIDs),
		envelope.RPCGetProductIDsByVariantOptions:         handlers.JSONRPC(s.productIDsByOptions),
	}
	for kind, h := range routes {
		if err := s.rpc.Handle(kind, h); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Colors returns the color catalog operations.
func (s *Service) Colors() *OptionCatalog { return &OptionCatalog{kind: "color", repo: s.colors} }

// Sizes returns the size catalog operations.
func (s *Service) Sizes() *OptionCatalog { return &OptionCatalog{kind: "size", repo: s.sizes} }

func (s *Service) GetVariant(ctx context.Context, id string) (Variant, error) {
	return s.variants.Get(ctx, id)
}

func (s *Service) VariantsOfProduct(ctx context.Context, productID string) ([]Variant, error) {
	return s.variants.ListByProduct(ctx, productID)
}

// CreateVariant stores v after checking its color and size are catalogued
// and the combination is new for the product.
func (s *Service) CreateVariant(ctx context.Context, v Variant) (Variant, error) {
	if err := s.validateVariant(ctx, v); err != nil {
		return Variant{}, err
	}
	_, err := s.variants.FindByProductColorSize(ctx, v.ProductID, v.Color, v.Size)
	switch {
	case err == nil:
		return Variant{}, &errspkg.ValidationError{
			Field:  "variant",
			Reason: fmt.Sprintf("product %q already has a %s/%s variant", v.ProductID, v.Color, v.Size),
		}
	case !errspkg.IsNotFound(err):
		return Variant{}, err
	}
	return s.variants.Create(ctx, v)
}

// UpdateVariant replaces stock and price of variant id.
func (s *Service) UpdateVariant(ctx context.Context, id string, quantity int, sellingPrice float64) (Variant, error) {
	v, err := s.variants.Get(ctx, id)
	if err != nil {
		return Variant{}, err
	}
	v.Quantity, v.SellingPrice = quantity, sellingPrice
	if err := validateStock(v); err != nil {
		return Variant{}, err
	}
	return s.variants.Update(ctx, v)
}

func (s *Service) DeleteVariant(ctx context.Context, id string) error {
	return s.variants.Delete(ctx, id)
}

func (s *Service) validateVariant(ctx context.Context, v Variant) error {
	if strings.TrimSpace(v.ProductID) == "" {
		return &errspkg.ValidationError{Field: "productId", Reason: "must not be empty"}
	}
	if _, err := s.colors.FindByName(ctx, v.Color); err != nil {
		if errspkg.IsNotFound(err) {
			return &errspkg.ValidationError{Field: "color", Reason: fmt.Sprintf("unknown color %q", v.Color)}
		}
		return err
	}
	if _, err := s.sizes.FindByName(ctx, v.Size); err != nil {
		if errspkg.IsNotFound(err) {
			return &errspkg.ValidationError{Field: "size", Reason: fmt.Sprintf("unknown size %q", v.Size)}
		}
		return err
	}
	return validateStock(v)
}

func validateStock(v Variant) error {
	if v.Quantity < 0 {
		return &errspkg.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if v.SellingPrice < 0 {
		return &errspkg.ValidationError{Field: "sellingPrice", Reason: "must not be negative"}
	}
	return nil
}

// SubscribeEvents handles DELETE_PRODUCT.
func (s *Service) SubscribeEvents(ctx context.Context, body []byte) error {
	return s.events.SubscribeEvents(ctx, body)
}

// ServeRPCRequest answers the variant lookups used by the product and
// shopping services.
func (s *Service) ServeRPCRequest(ctx context.Context, req envelope.RPCRequest) (any, error) {
	return s.rpc.ServeRPCRequest(ctx, req)
}

func (s *Service) onProductDeleted(ctx context.Context, msg handlers.MessageContext[envelope.ProductDeleted]) error {
	n, err := s.variants.DeleteByProduct(ctx, msg.Payload.ProductID)
	if err != nil {
		return err
	}
	msg.Logger.Info("Dropped variants of deleted product", loggingpkg.LogFields{
		"product_id": msg.Payload.ProductID,
		"variants":   n,
	})
	return nil
}

func (s *Service) variantByProductColorSize(ctx context.Context, req envelope.VariantLookup) (*envelope.VariantSummary, error) {
	v, err := s.variants.FindByProductColorSize(ctx, req.ProductID, req.Color, req.Size)
	if errspkg.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	summary := v.Summary()
	return &summary, nil
}

func (s *Service) variantsByIDs(ctx context.Context, req envelope.VariantIDList) ([]envelope.VariantSummary, error) {
	variants, err := s.variants.ListByIDs(ctx, req.ProductVariantIDList)
	if err != nil {
		return nil, err
	}
	out := make([]envelope.VariantSummary, 0, len(variants))
	for _, v := range variants {
		out = append(out, v.Summary())
	}
	return out, nil
}

func (s *Service) productIDsByOptions(ctx context.Context, req envelope.VariantOptions) ([]string, error) {
	ids, err := s.variants.ProductIDsMatching(ctx, req)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
