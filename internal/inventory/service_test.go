package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shopmesh/internal/inventory"
	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/store/memory"
)

func newService(t *testing.T) *inventory.Service {
	t.Helper()
	svc, err := inventory.NewService(memory.New(), nil)
	require.NoError(t, err)
	ctx := context.Background()
	for _, c := range []string{"red", "blue"} {
		_, err := svc.Colors().Create(ctx, c)
		require.NoError(t, err)
	}
	for _, s := range []string{"M", "L"} {
		_, err := svc.Sizes().Create(ctx, s)
		require.NoError(t, err)
	}
	for _, v := range []inventory.Variant{
		{ID: "v1", ProductID: "p1", Color: "red", Size: "M", Quantity: 3, SellingPrice: 19.9},
		{ID: "v2", ProductID: "p1", Color: "blue", Size: "L", Quantity: 1, SellingPrice: 21},
		{ID: "v3", ProductID: "p2", Color: "red", Size: "L", Quantity: 0, SellingPrice: 30},
	} {
		_, err := svc.CreateVariant(ctx, v)
		require.NoError(t, err)
	}
	return svc
}

func serve(t *testing.T, svc *inventory.Service, kind envelope.RPCType, data any) string {
	t.Helper()
	req, err := envelope.NewRPCRequest(kind, data)
	require.NoError(t, err)
	result, err := svc.ServeRPCRequest(context.Background(), req)
	require.NoError(t, err)
	body, err := envelope.EncodeReply(result)
	require.NoError(t, err)
	return string(body)
}

func TestVariantByProductColorSize(t *testing.T) {
	svc := newService(t)

	got := serve(t, svc, envelope.RPCGetProductVariantByProductIDColorSize, envelope.VariantLookup{ProductID: "p1", Color: "red", Size: "M"})
	assert.JSONEq(t, `{"id":"v1","productId":"p1","color":"red","size":"M","sellingPrice":19.9,"quantity":3}`, got)

	got = serve(t, svc, envelope.RPCGetProductVariantByProductIDColorSize, envelope.VariantLookup{ProductID: "p1", Color: "red", Size: "L"})
	assert.Equal(t, "null", got)
}

func TestVariantListByIDs(t *testing.T) {
	svc := newService(t)

	got := serve(t, svc, envelope.RPCGetProductVariantListByIDList, envelope.VariantIDList{ProductVariantIDList: []string{"v3", "ghost", "v1"}})
	assert.JSONEq(t, `[
		{"id":"v3","productId":"p2","color":"red","size":"L","sellingPrice":30,"quantity":0},
		{"id":"v1","productId":"p1","color":"red","size":"M","sellingPrice":19.9,"quantity":3}
	]`, got)

	assert.Equal(t, "[]", serve(t, svc, envelope.RPCGetProductVariantListByIDList, envelope.VariantIDList{}))
}

func TestProductIDsByVariantOptions(t *testing.T) {
	svc := newService(t)

	assert.JSONEq(t, `["p1","p2"]`, serve(t, svc, envelope.RPCGetProductIDsByVariantOptions, envelope.VariantOptions{Colors: []string{"red"}}))
	assert.JSONEq(t, `["p1"]`, serve(t, svc, envelope.RPCGetProductIDsByVariantOptions, envelope.VariantOptions{Colors: []string{"red"}, Sizes: []string{"M"}}))
	assert.JSONEq(t, `[]`, serve(t, svc, envelope.RPCGetProductIDsByVariantOptions, envelope.VariantOptions{Sizes: []string{"XS"}}))
}

func TestUnservedKindRepliesNull(t *testing.T) {
	svc := newService(t)
	assert.Equal(t, "null", serve(t, svc, envelope.RPCGetProductByID, envelope.ProductByID{ID: "p1"}))
}

func TestDeleteProductDropsVariants(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SubscribeEvents(ctx, []byte(`{"event":"DELETE_PRODUCT","data":{"productId":"p1"}}`)))
	left, err := svc.VariantsOfProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, left)

	other, err := svc.VariantsOfProduct(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	// review events are not for this service
	assert.NoError(t, svc.SubscribeEvents(ctx, []byte(`{"event":"CREATE_REVIEW","data":{"productId":"p2"}}`)))
}

func TestCreateVariantValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		variant inventory.Variant
		field   string
	}{
		{"unknown color", inventory.Variant{ProductID: "p3", Color: "mauve", Size: "M"}, "color"},
		{"unknown size", inventory.Variant{ProductID: "p3", Color: "red", Size: "XXL"}, "size"},
		{"missing product", inventory.Variant{Color: "red", Size: "M"}, "productId"},
		{"negative stock", inventory.Variant{ProductID: "p3", Color: "red", Size: "M", Quantity: -1}, "quantity"},
		{"duplicate combination", inventory.Variant{ProductID: "p1", Color: "red", Size: "M"}, "variant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateVariant(ctx, tt.variant)
			var ve *errspkg.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUpdateVariantAndOptions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	v, err := svc.UpdateVariant(ctx, "v2", 7, 18)
	require.NoError(t, err)
	assert.Equal(t, 7, v.Quantity)
	assert.Equal(t, 18.0, v.SellingPrice)

	_, err = svc.UpdateVariant(ctx, "ghost", 1, 1)
	assert.True(t, errspkg.IsNotFound(err))

	_, err = svc.Colors().Create(ctx, "red")
	assert.True(t, errspkg.IsValidation(err))
	_, err = svc.Sizes().Create(ctx, "  ")
	assert.True(t, errspkg.IsValidation(err))

	blue, err := svc.Colors().FindByName(ctx, "blue")
	require.NoError(t, err)
	navy, err := svc.Colors().Rename(ctx, blue.ID, "navy")
	require.NoError(t, err)
	assert.Equal(t, "navy", navy.Name)
	require.NoError(t, svc.Colors().Delete(ctx, navy.ID))

	colors, err := svc.Colors().List(ctx)
	require.NoError(t, err)
	require.Len(t, colors, 1)
	assert.Equal(t, "red", colors[0].Name)

	require.NoError(t, svc.DeleteVariant(ctx, "v3"))
	_, err = svc.GetVariant(ctx, "v3")
	assert.True(t, errspkg.IsNotFound(err))
}
