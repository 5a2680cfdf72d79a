package sales

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
)

// ResolveProduct turns typed or selected product text into exactly one
// stock item. It accepts a "product|company" selection value, a
// "product - company" label or a bare product name, all compared without
// case; an exact selection value wins over case-insensitive ones. Text
// matching more than one item is rejected.
func ResolveProduct(snap *inventory.Snapshot, text string) (models.StockItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.StockItem{}, models.NewValidationError("product", "is required")
	}

	match := func(item models.StockItem) bool {
		return strings.EqualFold(item.ProductName, text) || strings.EqualFold(Label(item), text)
	}
	if key, err := models.ParseProductKey(text); err == nil {
		if item, ok := snap.ItemByKey(key); ok {
			return item, nil
		}
		match = func(item models.StockItem) bool {
			return strings.EqualFold(item.ProductName, key.ProductName) &&
				strings.EqualFold(item.CompanyName, key.CompanyName)
		}
	}

	var matches []models.StockItem
	for _, item := range snap.Stock {
		if match(item) {
			matches = append(matches, item)
		}
	}

	switch len(matches) {
	case 0:
		return models.StockItem{}, models.NewValidationError("product", fmt.Sprintf("%q is not in stock", text))
	case 1:
		return matches[0], nil
	default:
		return models.StockItem{}, models.NewValidationError("product",
			fmt.Sprintf("%q matches %d products, pick one", text, len(matches)))
	}
}

// Label renders an item the way the product picker shows it.
func Label(item models.StockItem) string {
	return item.ProductName + " - " + item.CompanyName
}

// SelectableProducts lists the items a sale can be recorded against.
func SelectableProducts(snap *inventory.Snapshot) []models.StockItem {
	out := make([]models.StockItem, 0, len(snap.Stock))
	for _, item := range snap.Stock {
		if item.Quantity > 0 {
			out = append(out, item)
		}
	}
	return out
}
