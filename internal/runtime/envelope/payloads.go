package envelope

// Data shapes carried in envelopes. Field names are the wire names.

// ReviewStatistics is the data of CREATE_REVIEW and DELETE_REVIEW.
type ReviewStatistics struct {
	ProductID     string  `json:"productId"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

// ProductDeleted is the data of DELETE_PRODUCT.
type ProductDeleted struct {
	ProductID string `json:"productId"`
}

// ProductByID is the data of GET_PRODUCT_BY_ID.
type ProductByID struct {
	ID string `json:"id"`
}

// VariantLookup is the data of GET_PRODUCT_VARIANT_BY_PRODUCT_ID_COLOR_SIZE.
type VariantLookup struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

// VariantIDList is the data of GET_PRODUCT_VARIANT_LIST_BY_ID_LIST.
type VariantIDList struct {
	ProductVariantIDList []string `json:"productVariantIdList"`
}

// VariantOptions is the data of GET_PRODUCT_IDS_BY_VARIANT_OPTIONS: every
// listed attribute must match, any value within one attribute may match.
// The reply is a list of product ids.
type VariantOptions struct {
	Colors []string `json:"color,omitempty"`
	Sizes  []string `json:"size,omitempty"`
}

// Empty reports whether no criterion was folded in.
func (o VariantOptions) Empty() bool {
	return len(o.Colors) == 0 && len(o.Sizes) == 0
}

// VariantSummary is a variant as replied to the shopping service.
type VariantSummary struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	Color        string  `json:"color"`
	Size         string  `json:"size"`
	SellingPrice float64 `json:"sellingPrice"`
	Quantity     int     `json:"quantity"`
}
