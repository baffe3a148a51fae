package domain

// Stock status values returned by the store.
const (
	StockStatusInStock    = "IN_STOCK"
	StockStatusOutOfStock = "OUT_OF_STOCK"
)

// Money is a price value tagged with its currency code.
type Money struct {
	Value    *float64 `json:"value"`
	Currency *string  `json:"currency"`
}

// Discount carries the absolute and relative reduction against the regular
// price.
type Discount struct {
	AmountOff  *float64 `json:"amount_off"`
	PercentOff *float64 `json:"percent_off"`
}

// MaximumPrice is the price block the crawler extracts from. Any sub-block
// may be missing for products without pricing.
type MaximumPrice struct {
	FinalPrice   *Money    `json:"final_price"`
	RegularPrice *Money    `json:"regular_price"`
	Discount     *Discount `json:"discount"`
}

// PriceRange wraps the maximum_price block of the products query.
type PriceRange struct {
	MaximumPrice *MaximumPrice `json:"maximum_price"`
}

// Image is a product image reference.
type Image struct {
	URL *string `json:"url"`
}

// Description is the raw HTML product description.
type Description struct {
	HTML *string `json:"html"`
}

// ProductNode is the raw nested product shape returned by the products
// query. Every nested block is optional; consumers must not assume
// presence.
type ProductNode struct {
	ID          *int64       `json:"id"`
	UID         string       `json:"uid"`
	SKU         string       `json:"sku"`
	Name        string       `json:"name"`
	StockStatus string       `json:"stock_status"`
	URLKey      string       `json:"url_key"`
	PriceRange  *PriceRange  `json:"price_range"`
	SmallImage  *Image       `json:"small_image"`
	Description *Description `json:"description"`
}

// ProductRecord is the flat persisted unit. Pointer fields marshal as JSON
// null when the corresponding upstream block was missing.
type ProductRecord struct {
	ID              *int64   `json:"id"`
	UID             string   `json:"uid"`
	SKU             string   `json:"sku"`
	Name            string   `json:"name"`
	URLKey          string   `json:"url_key"`
	StockStatus     string   `json:"stock_status"`
	FinalPrice      *float64 `json:"final_price"`
	RegularPrice    *float64 `json:"regular_price"`
	Currency        *string  `json:"currency"`
	DiscountAmount  *float64 `json:"discount_amount"`
	DiscountPercent *float64 `json:"discount_percent"`
	ImageURL        *string  `json:"image_url"`
	Description     *string  `json:"description"`
	DescriptionText *string  `json:"description_text,omitempty"`
	SourceSite      string   `json:"source_site"`
}
