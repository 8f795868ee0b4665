package shopping_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shopmesh/internal/runtime/envelope"
	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
	"github.com/drblury/shopmesh/internal/shopping"
	"github.com/drblury/shopmesh/internal/store/memory"
)

// remoteStub plays the inventory and product services.
type remoteStub struct {
	mu       sync.Mutex
	variants []envelope.VariantSummary
	products map[string]shopping.ProductSummary
	calls    map[envelope.RPCType]int
	failList error
}

func newRemote() *remoteStub {
	return &remoteStub{
		variants: []envelope.VariantSummary{
			{ID: "v1", ProductID: "p1", Color: "red", Size: "M", SellingPrice: 20},
			{ID: "v2", ProductID: "p1", Color: "red", Size: "L", SellingPrice: 22},
			{ID: "v3", ProductID: "p2", Color: "blue", Size: "M", SellingPrice: 5},
		},
		products: map[string]shopping.ProductSummary{
			"p1": {ID: "p1", Name: "Tee", Price: 20},
			"p2": {ID: "p2", Name: "Socks", Price: 5},
		},
		calls: map[envelope.RPCType]int{},
	}
}

func (r *remoteStub) CallInto(_ context.Context, destination string, req envelope.RPCRequest, _ time.Duration, out any) (bool, error) {
	r.mu.Lock()
	r.calls[req.Type]++
	r.mu.Unlock()

	var reply any
	switch req.Type {
	case envelope.RPCGetProductVariantByProductIDColorSize:
		var q envelope.VariantLookup
		if err := req.DecodeData(&q); err != nil {
			return false, err
		}
		for _, v := range r.variants {
			if v.ProductID == q.ProductID && v.Color == q.Color && v.Size == q.Size {
				reply = v
			}
		}
	case envelope.RPCGetProductVariantListByIDList:
		if r.failList != nil {
			return false, r.failList
		}
		var q envelope.VariantIDList
		if err := req.DecodeData(&q); err != nil {
			return false, err
		}
		list := []envelope.VariantSummary{}
		for _, id := range q.ProductVariantIDList {
			for _, v := range r.variants {
				if v.ID == id {
					list = append(list, v)
				}
			}
		}
		reply = list
	case envelope.RPCGetProductByID:
		if destination != envelope.ProductService {
			return false, fmt.Errorf("product lookup sent to %s", destination)
		}
		var q envelope.ProductByID
		if err := req.DecodeData(&q); err != nil {
			return false, err
		}
		if p, ok := r.products[q.ID]; ok {
			reply = p
		}
	default:
		return false, fmt.Errorf("unexpected rpc %s", req.Type)
	}
	if reply == nil {
		return false, nil
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

func (r *remoteStub) count(kind envelope.RPCType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[kind]
}

func newService(t *testing.T) (*shopping.Service, *remoteStub) {
	t.Helper()
	remote := newRemote()
	svc, err := shopping.NewService(memory.New(), remote, nil)
	require.NoError(t, err)
	return svc, remote
}

func add(productID, color, size string, qty int) shopping.AddItemRequest {
	return shopping.AddItemRequest{ProductID: productID, ProductName: "name-" + productID, Color: color, Size: size, Quantity: qty}
}

func TestAddUnknownVariantReturnsNilWithoutLine(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	view, err := svc.AddItemToCart(ctx, "u1", add("p1", "green", "M", 1))
	require.NoError(t, err)
	assert.Nil(t, view)

	cart, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, cart, "no cart created")
}

func TestAddItemMergesQuantities(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 1))
	require.NoError(t, err)
	_, err = svc.AddItemToCart(ctx, "u1", add("p2", "blue", "M", 2))
	require.NoError(t, err)
	view, err := svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 3))
	require.NoError(t, err)
	require.NotNil(t, view)

	require.Len(t, view.Items, 2)
	assert.Equal(t, "v3", view.Items[0].ProductVariantID)
	last := view.Items[1]
	assert.Equal(t, "v1", last.ProductVariantID)
	assert.Equal(t, 4, last.Quantity)
	assert.Equal(t, "red", last.Color)
	assert.Equal(t, "M", last.Size)
	assert.Equal(t, 20.0, last.SellingPrice)
	assert.Equal(t, 90.0, view.Total())
}

func TestConcurrentAddsKeepEveryQuantity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	const adds = 20
	var wg sync.WaitGroup
	for range adds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, adds, view.Items[0].Quantity)
}

func TestGetCartUsesOneVariantListCall(t *testing.T) {
	svc, remote := newService(t)
	ctx := context.Background()
	for _, req := range []shopping.AddItemRequest{add("p1", "red", "M", 1), add("p1", "red", "L", 1), add("p2", "blue", "M", 1)} {
		_, err := svc.AddItemToCart(ctx, "u1", req)
		require.NoError(t, err)
	}
	before := remote.count(envelope.RPCGetProductVariantListByIDList)

	view, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 3)
	assert.Equal(t, before+1, remote.count(envelope.RPCGetProductVariantListByIDList))
}

func TestGetCartDegradesWhenInventoryTimesOut(t *testing.T) {
	svc, remote := newService(t)
	ctx := context.Background()
	_, err := svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 2))
	require.NoError(t, err)

	remote.failList = &errspkg.RPCTimeoutError{Destination: envelope.InventoryService, CorrelationID: "c", Timeout: time.Second}
	view, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].Unavailable)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Zero(t, view.Total())
}

func TestRemoveAndUpdateItems(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	view, err := svc.RemoveItemFromCart(ctx, "u1", "v1")
	require.NoError(t, err)
	assert.Nil(t, view, "no cart yet")

	_, err = svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 1))
	require.NoError(t, err)
	_, err = svc.AddItemToCart(ctx, "u1", add("p2", "blue", "M", 1))
	require.NoError(t, err)

	item, err := svc.UpdateItemQuantity(ctx, "u1", "v3", 5)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 5, item.Quantity)

	item, err = svc.UpdateItemQuantity(ctx, "u1", "v9", 5)
	require.NoError(t, err)
	assert.Nil(t, item)

	_, err = svc.UpdateItemQuantity(ctx, "u1", "v3", 0)
	assert.True(t, errspkg.IsValidation(err))

	view, err = svc.RemoveItemFromCart(ctx, "u1", "v1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)

	view, err = svc.RemoveItemFromCart(ctx, "u1", "v1")
	require.NoError(t, err)
	assert.Nil(t, view)

	require.NoError(t, svc.ClearCart(ctx, "u1"))
	carts, err := svc.ListCarts(ctx)
	require.NoError(t, err)
	assert.Empty(t, carts)
}

func TestAddItemValidationAndFailures(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddItemToCart(ctx, "", add("p1", "red", "M", 1))
	assert.True(t, errspkg.IsValidation(err))
	_, err = svc.AddItemToCart(ctx, "u1", add("p1", "", "M", 1))
	assert.True(t, errspkg.IsValidation(err))
	_, err = svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 0))
	assert.True(t, errspkg.IsValidation(err))

	_, err = shopping.NewService(memory.New(), nil, nil)
	assert.Error(t, err)
}

func TestWishlist(t *testing.T) {
	svc, remote := newService(t)
	ctx := context.Background()

	w, err := svc.Wishlist(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, w.ProductIDs)

	for _, id := range []string{"p2", "ghost", "p1"} {
		_, err := svc.ToggleWishlist(ctx, "u1", id)
		require.NoError(t, err)
	}
	in, err := svc.InWishlist(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, in)

	products, err := svc.WishlistProducts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Socks", products[0].Name)
	assert.Equal(t, "Tee", products[1].Name)
	assert.Equal(t, 3, remote.count(envelope.RPCGetProductByID))

	w, err = svc.ToggleWishlist(ctx, "u1", "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost", "p1"}, w.ProductIDs)

	w, err = svc.RemoveFromWishlist(ctx, "u1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, w.ProductIDs)

	_, err = svc.ToggleWishlist(ctx, "", "p1")
	assert.True(t, errspkg.IsValidation(err))
}

func TestDeleteProductEventCleansCartsAndWishlists(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddItemToCart(ctx, "u1", add("p1", "red", "M", 1))
	require.NoError(t, err)
	_, err = svc.AddItemToCart(ctx, "u1", add("p2", "blue", "M", 1))
	require.NoError(t, err)
	_, err = svc.ToggleWishlist(ctx, "u2", "p1")
	require.NoError(t, err)

	require.NoError(t, svc.SubscribeEvents(ctx, []byte(`{"event":"DELETE_PRODUCT","data":{"productId":"p1"}}`)))

	view, err := svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "p2", view.Items[0].ProductID)

	in, err := svc.InWishlist(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.False(t, in)
}
