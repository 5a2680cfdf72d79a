package models

import "github.com/shopspring/decimal"

// AlertLevel grades a low-stock alert.
type AlertLevel string

const (
	AlertDanger  AlertLevel = "danger"
	AlertWarning AlertLevel = "warning"
)

// LowStockAlert is a single entry from /analytics/low-stock-alerts.
type LowStockAlert struct {
	ID              int64      `json:"id"`
	ProductName     string     `json:"product_name"`
	CompanyName     string     `json:"company_name"`
	CurrentQuantity int        `json:"current_quantity"`
	Status          string     `json:"status"`
	AlertLevel      AlertLevel `json:"alert_level"`
}

// Key returns the product the alert refers to.
func (a LowStockAlert) Key() ProductKey {
	return ProductKey{ProductName: a.ProductName, CompanyName: a.CompanyName}
}

// LowStockAlerts wraps the alert list with its threshold.
type LowStockAlerts struct {
	Alerts      []LowStockAlert `json:"alerts"`
	TotalAlerts int             `json:"total_alerts"`
	Threshold   int             `json:"threshold"`
}

// DashboardStats is the response of /analytics/dashboard-stats.
type DashboardStats struct {
	TotalStats struct {
		TotalSales      int             `json:"total_sales"`
		TotalRevenue    decimal.Decimal `json:"total_revenue"`
		TotalProducts   int             `json:"total_products"`
		LowStockItems   int             `json:"low_stock_items"`
		OutOfStockItems int             `json:"out_of_stock_items"`
	} `json:"total_stats"`
	TodayStats   PeriodStats `json:"today_stats"`
	WeeklyStats  PeriodStats `json:"weekly_stats"`
	MonthlyStats PeriodStats `json:"monthly_stats"`
	PaymentStats struct {
		PaidAmount   decimal.Decimal `json:"paid_amount"`
		UnpaidAmount decimal.Decimal `json:"unpaid_amount"`
		PaymentRate  float64         `json:"payment_rate"`
	} `json:"payment_stats"`
}

// PeriodStats counts sales and revenue within a window.
type PeriodStats struct {
	Sales   int             `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ProductPerformance is one row of the top-selling report.
type ProductPerformance struct {
	ProductName   string          `json:"product_name"`
	CompanyName   string          `json:"company_name"`
	TotalQuantity int             `json:"total_quantity"`
	SaleCount     int             `json:"sale_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
}

// TopProducts is the response of /analytics/top-selling-products.
type TopProducts struct {
	TopByQuantity []ProductPerformance `json:"top_by_quantity"`
	TopByRevenue  []ProductPerformance `json:"top_by_revenue"`
	PeriodDays    int                  `json:"period_days"`
}

// CustomerSpend is one row of the top-customer report.
type CustomerSpend struct {
	CustomerName  string          `json:"customer_name"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	PurchaseCount int             `json:"purchase_count"`
	TotalItems    int             `json:"total_items"`
	AvgPurchase   decimal.Decimal `json:"avg_purchase"`
}

// CustomerPayments summarizes how a customer settles.
type CustomerPayments struct {
	CustomerName string          `json:"customer_name"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	UnpaidAmount decimal.Decimal `json:"unpaid_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaymentRate  float64         `json:"payment_rate"`
}

// CustomerAnalysis is the response of /analytics/customer-analysis.
type CustomerAnalysis struct {
	TopCustomers    []CustomerSpend    `json:"top_customers"`
	PaymentBehavior []CustomerPayments `json:"payment_behavior"`
	PeriodDays      int                `json:"period_days"`
}

// StockVelocity is one row of the stock movement report.
type StockVelocity struct {
	ProductName       string  `json:"product_name"`
	CompanyName       string  `json:"company_name"`
	CurrentStock      int     `json:"current_stock"`
	SoldQuantity      int     `json:"sold_quantity"`
	SaleTransactions  int     `json:"sale_transactions"`
	VelocityPerDay    float64 `json:"velocity_per_day"`
	DaysUntilStockout *int    `json:"days_until_stockout"`
	StockStatus       string  `json:"stock_status"`
}

// StockMovement is the response of /analytics/stock-movement.
type StockMovement struct {
	StockMovement []StockVelocity `json:"stock_movement"`
	PeriodDays    int             `json:"period_days"`
	AnalysisDate  string          `json:"analysis_date"`
}
