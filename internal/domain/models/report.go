package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySnapshot is the archived close of a business day.
type DailySnapshot struct {
	Date           time.Time       `json:"date"`
	TotalSales     int             `json:"total_sales"`
	Revenue        decimal.Decimal `json:"revenue"`
	PaidSales      int             `json:"paid_sales"`
	UnpaidSales    int             `json:"unpaid_sales"`
	UnpaidBalance  decimal.Decimal `json:"unpaid_balance"`
	LowStockAlerts int             `json:"low_stock_alerts"`
	StockUnits     int             `json:"stock_units"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReportKind selects one of the backend's weekly PDF reports.
type ReportKind string

const (
	ReportByCustomer ReportKind = "customer"
	ReportByDate     ReportKind = "date"
)

// Valid reports whether the kind maps to a backend report.
func (k ReportKind) Valid() bool {
	return k == ReportByCustomer || k == ReportByDate
}
