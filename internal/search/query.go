// Package search filters and orders the cached stock list.
package search

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
)

// Category narrows results by quantity.
type Category string

const (
	CategoryAll        Category = "all"
	CategoryInStock    Category = "in-stock"
	CategoryLowStock   Category = "low-stock"
	CategoryOutOfStock Category = "out-of-stock"
)

// SortKey orders results.
type SortKey string

const (
	SortName     SortKey = "name"
	SortCompany  SortKey = "company"
	SortQuantity SortKey = "quantity"
	SortDate     SortKey = "date"
)

// Query is one search request. A zero Threshold bounds the low-stock
// category at inventory.DefaultLowStockThreshold.
type Query struct {
	Text      string   `json:"q"`
	Category  Category `json:"filter"`
	Sort      SortKey  `json:"sort"`
	Threshold int      `json:"threshold,omitempty"`
}

// ParseQuery validates raw input. Empty filter and sort fall back to
// "all" and "name".
func ParseQuery(text, filter, sort string) (Query, error) {
	q := Query{
		Text:     text,
		Category: Category(strings.ToLower(strings.TrimSpace(filter))),
		Sort:     SortKey(strings.ToLower(strings.TrimSpace(sort))),
	}
	if q.Category == "" {
		q.Category = CategoryAll
	}
	if q.Sort == "" {
		q.Sort = SortName
	}

	switch q.Category {
	case CategoryAll, CategoryInStock, CategoryLowStock, CategoryOutOfStock:
	default:
		return Query{}, models.NewValidationError("filter", fmt.Sprintf("unknown value %q", filter))
	}
	switch q.Sort {
	case SortName, SortCompany, SortQuantity, SortDate:
	default:
		return Query{}, models.NewValidationError("sort", fmt.Sprintf("unknown value %q", sort))
	}
	return q, nil
}

func (q Query) lowStockThreshold() int {
	if q.Threshold > 0 {
		return q.Threshold
	}
	return inventory.DefaultLowStockThreshold
}

// normalizedText is the lowercased, trimmed search term.
func (q Query) normalizedText() string {
	return strings.ToLower(strings.TrimSpace(q.Text))
}

var presets = map[string]Query{
	"low-stock":    {Category: CategoryLowStock, Sort: SortQuantity},
	"high-stock":   {Category: CategoryInStock, Sort: SortQuantity},
	"out-of-stock": {Category: CategoryOutOfStock, Sort: SortName},
	"recent":       {Category: CategoryAll, Sort: SortDate},
}

// Preset returns a quick-search query. Presets always clear the text.
func Preset(name string) (Query, bool) {
	q, ok := presets[name]
	return q, ok
}

// Clear returns the reset query.
func Clear() Query {
	return Query{Category: CategoryAll, Sort: SortName}
}
