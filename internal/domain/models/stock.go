package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StockItem is a tracked product+company pair with its on-hand quantity.
type StockItem struct {
	ID          int64               `json:"id"`
	ProductName string              `json:"product_name"`
	CompanyName string              `json:"company_name"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	DateAdded   Timestamp           `json:"date_added"`
}

// Key returns the business identity of the item.
func (s StockItem) Key() ProductKey {
	return ProductKey{ProductName: s.ProductName, CompanyName: s.CompanyName}
}

// HasPrice reports whether a unit price has been set for the item.
func (s StockItem) HasPrice() bool {
	return s.UnitPrice.Valid
}

// ProductKey identifies a product at the business level.
type ProductKey struct {
	ProductName string `json:"product_name"`
	CompanyName string `json:"company_name"`
}

// String renders the key in the "product|company" form used by selection lists.
func (k ProductKey) String() string {
	return k.ProductName + "|" + k.CompanyName
}

// ParseProductKey splits a "product|company" selection value.
func ParseProductKey(value string) (ProductKey, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return ProductKey{}, fmt.Errorf("malformed product selection %q", value)
	}
	return ProductKey{ProductName: parts[0], CompanyName: parts[1]}, nil
}

// StockInput is the payload for creating or updating a stock item.
type StockInput struct {
	ProductName string              `json:"product_name" binding:"required"`
	CompanyName string              `json:"company_name" binding:"required"`
	Quantity    int                 `json:"quantity" binding:"gte=0"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
}

// Validate checks the input before it is sent to the backend.
func (in StockInput) Validate() error {
	switch {
	case strings.TrimSpace(in.ProductName) == "":
		return NewValidationError("product_name", "is required")
	case strings.TrimSpace(in.CompanyName) == "":
		return NewValidationError("company_name", "is required")
	case in.Quantity < 0:
		return NewValidationError("quantity", "must not be negative")
	case in.UnitPrice.Valid && in.UnitPrice.Decimal.IsNegative():
		return NewValidationError("unit_price", "must not be negative")
	}
	return nil
}
