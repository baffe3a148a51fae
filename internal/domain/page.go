package domain

// ProductPage is one fixed-size slice of a category's product listing,
// identified by a 1-based page number.
type ProductPage struct {
	CategoryUID string        `json:"category_uid"`
	PageNumber  int           `json:"page_number"`
	TotalPages  int           `json:"total_pages"`
	TotalCount  int           `json:"total_count"`
	Items       []ProductNode `json:"items"`
}
