package normalizer

import (
	"strings"

	"electrichouse/crawler/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// Normalizer flattens raw product nodes into persistable records. It is a
// total function over the upstream shape: a missing nested block becomes a
// null field, never an error.
type Normalizer struct {
	sourceSite string
}

// New returns a Normalizer that tags every record with sourceSite, so
// multi-site datasets can be merged downstream.
func New(sourceSite string) *Normalizer {
	return &Normalizer{sourceSite: sourceSite}
}

func (n *Normalizer) Normalize(item domain.ProductNode) domain.ProductRecord {
	record := domain.ProductRecord{
		ID:          item.ID,
		UID:         item.UID,
		SKU:         item.SKU,
		Name:        item.Name,
		URLKey:      item.URLKey,
		StockStatus: item.StockStatus,
		SourceSite:  n.sourceSite,
	}

	if item.PriceRange != nil && item.PriceRange.MaximumPrice != nil {
		price := item.PriceRange.MaximumPrice
		if price.FinalPrice != nil {
			record.FinalPrice = price.FinalPrice.Value
			record.Currency = price.FinalPrice.Currency
		}
		if price.RegularPrice != nil {
			record.RegularPrice = price.RegularPrice.Value
		}
		if price.Discount != nil {
			record.DiscountAmount = price.Discount.AmountOff
			record.DiscountPercent = price.Discount.PercentOff
		}
	}

	if item.SmallImage != nil {
		record.ImageURL = item.SmallImage.URL
	}

	if item.Description != nil && item.Description.HTML != nil {
		record.Description = item.Description.HTML
		if text := stripMarkup(*item.Description.HTML); text != "" {
			record.DescriptionText = &text
		}
	}

	return record
}

// stripMarkup reduces the raw description HTML to whitespace-normalized
// text for downstream search. Unparseable markup yields "".
func stripMarkup(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
