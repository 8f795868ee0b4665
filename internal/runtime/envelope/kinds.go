package envelope

// EventType is the closed set of pub/sub event kinds shared by publishers and
// subscribers. Values are the wire strings.
type EventType string

const (
	// EventCreateReview carries refreshed review statistics after a review
	// was created or edited.
	EventCreateReview EventType = "CREATE_REVIEW"
	// EventDeleteReview carries refreshed review statistics after a review
	// was removed.
	EventDeleteReview EventType = "DELETE_REVIEW"
	// EventDeleteProduct announces that a product no longer exists so other
	// services can drop what they keep about it.
	EventDeleteProduct EventType = "DELETE_PRODUCT"
)

var knownEvents = map[EventType]struct{}{
	EventCreateReview:  {},
	EventDeleteReview:  {},
	EventDeleteProduct: {},
}

// Known reports whether t belongs to the enumeration this build understands.
// Senders may emit newer kinds; receivers ignore them.
func (t EventType) Known() bool {
	_, ok := knownEvents[t]
	return ok
}

func (t EventType) String() string { return string(t) }

// RPCType is the closed set of request kinds served over the RPC gateway.
type RPCType string

const (
	RPCGetProductByID                        RPCType = "GET_PRODUCT_BY_ID"
	RPCGetProductVariantByProductIDColorSize RPCType = "GET_PRODUCT_VARIANT_BY_PRODUCT_ID_COLOR_SIZE"
	RPCGetProductVariantListByIDList         RPCType = "GET_PRODUCT_VARIANT_LIST_BY_ID_LIST"
	RPCGetProductIDsByVariantOptions         RPCType = "GET_PRODUCT_IDS_BY_VARIANT_OPTIONS"
)

var knownRPCs = map[RPCType]struct{}{
	RPCGetProductByID:                        {},
	RPCGetProductVariantByProductIDColorSize: {},
	RPCGetProductVariantListByIDList:         {},
	RPCGetProductIDsByVariantOptions:         {},
}

func (t RPCType) Known() bool {
	_, ok := knownRPCs[t]
	return ok
}

func (t RPCType) String() string { return string(t) }

// Service routing keys. Each is bound by exactly one service.
const (
	ProductService   = "PRODUCT_SERVICE"
	InventoryService = "INVENTORY_SERVICE"
	ReviewService    = "REVIEW_SERVICE"
	ShoppingService  = "SHOPPING_SERVICE"
)

// KnownService reports whether key is one of the service routing keys.
func KnownService(key string) bool {
	switch key {
	case ProductService, InventoryService, ReviewService, ShoppingService:
		return true
	}
	return false
}
