package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a sale.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// Valid reports whether the status is one the backend accepts.
func (p PaymentStatus) Valid() bool {
	return p == PaymentPaid || p == PaymentUnpaid
}

// PaymentMethod is how a paid sale was settled.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodUPI          PaymentMethod = "upi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
)

// ParsePaymentMethod normalizes free-form input into a known method.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodBankTransfer, MethodCheque:
		return m, true
	}
	return "", false
}

// SaleRecord is a recorded transaction as returned by the backend.
type SaleRecord struct {
	ID            int64           `json:"id"`
	ProductName   string          `json:"product_name"`
	CompanyName   string          `json:"company_name"`
	CustomerName  string          `json:"customer_name"`
	QuantitySold  int             `json:"quantity_sold"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	SaleAmount    decimal.Decimal `json:"sale_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod *PaymentMethod  `json:"payment_method"`
	SaleDate      Timestamp       `json:"sale_date"`
	PaymentDate   Timestamp       `json:"payment_date"`
}

// Key returns the product the sale was recorded against.
func (s SaleRecord) Key() ProductKey {
	return ProductKey{ProductName: s.ProductName, CompanyName: s.CompanyName}
}

// SaleAmountFor computes quantity*price; the amount is never entered independently.
func SaleAmountFor(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// SaleRequest is the body of POST /sales.
type SaleRequest struct {
	ProductName   string          `json:"product_name"`
	CompanyName   string          `json:"company_name"`
	CustomerName  string          `json:"customer_name"`
	QuantitySold  int             `json:"quantity_sold"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod *PaymentMethod  `json:"payment_method"`
}

// SaleConfirmation is the backend's answer to a recorded sale.
type SaleConfirmation struct {
	Message    string              `json:"message"`
	SaleID     int64               `json:"sale_id"`
	SaleAmount decimal.NullDecimal `json:"sale_amount"`
}

// PaymentUpdate is the body of PUT /sales/:id/payment.
type PaymentUpdate struct {
	PaymentStatus PaymentStatus  `json:"payment_status"`
	PaymentMethod *PaymentMethod `json:"payment_method"`
}

// PaymentSummary aggregates settled and outstanding sales.
type PaymentSummary struct {
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PaidCount         int             `json:"paid_count"`
	UnpaidAmount      decimal.Decimal `json:"unpaid_amount"`
	UnpaidCount       int             `json:"unpaid_count"`
	PaymentPercentage float64         `json:"payment_percentage"`
}

// DailySales is the backend's view of today's sales.
type DailySales struct {
	Sales   []SaleRecord      `json:"sales"`
	Summary DailySalesSummary `json:"summary"`
}

// DailySalesSummary holds today's counters.
type DailySalesSummary struct {
	TotalSales   int             `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	PaidSales    int             `json:"paid_sales"`
	UnpaidSales  int             `json:"unpaid_sales"`
}
