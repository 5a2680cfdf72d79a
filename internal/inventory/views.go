package inventory

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

// Defaults used by the dashboard views.
const (
	DefaultLowStockThreshold = 10
	DefaultRecentSales       = 5
)

// DeskStats are the headline counters computed from a snapshot.
type DeskStats struct {
	TotalProducts   int             `json:"total_products"`
	TotalStock      int             `json:"total_stock"`
	TotalSales      int             `json:"total_sales"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	UnpaidBalance   decimal.Decimal `json:"unpaid_balance"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
}

// ComputeDashboardStats derives the headline counters from snap.
func ComputeDashboardStats(snap *Snapshot, threshold int) DeskStats {
	stats := DeskStats{
		TotalProducts: len(snap.Stock),
		TotalSales:    len(snap.Sales),
		TotalRevenue:  decimal.Zero,
		UnpaidBalance: decimal.Zero,
	}
	for _, item := range snap.Stock {
		stats.TotalStock += item.Quantity
		if item.Quantity == 0 {
			stats.OutOfStockCount++
		}
	}
	stats.LowStockCount = len(LowStock(snap.Stock, threshold))
	for _, sale := range snap.Sales {
		stats.TotalRevenue = stats.TotalRevenue.Add(sale.SaleAmount)
		if sale.PaymentStatus == models.PaymentUnpaid {
			stats.UnpaidBalance = stats.UnpaidBalance.Add(sale.SaleAmount)
		}
	}
	return stats
}

// LowStock returns the items with 0 < quantity < threshold, in input order.
// A non-positive threshold uses DefaultLowStockThreshold.
func LowStock(items []models.StockItem, threshold int) []models.StockItem {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	out := make([]models.StockItem, 0)
	for _, item := range items {
		if item.Quantity > 0 && item.Quantity < threshold {
			out = append(out, item)
		}
	}
	return out
}

// RecentSales returns up to n sales, newest first. The input is not reordered.
func RecentSales(sales []models.SaleRecord, n int) []models.SaleRecord {
	if n <= 0 {
		n = DefaultRecentSales
	}
	sorted := slices.Clone(sales)
	slices.SortStableFunc(sorted, func(a, b models.SaleRecord) int {
		return b.SaleDate.Compare(a.SaleDate.Time)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// StockStatus labels a quantity the way the stock table does.
func StockStatus(quantity int) string {
	switch {
	case quantity == 0:
		return "Out of Stock"
	case quantity < 10:
		return "Low Stock"
	case quantity < 50:
		return "Medium Stock"
	default:
		return "High Stock"
	}
}

// QuantityClass returns the style class for a quantity cell.
func QuantityClass(quantity int) string {
	switch {
	case quantity == 0:
		return "quantity-zero"
	case quantity < 10:
		return "quantity-low"
	case quantity < 50:
		return "quantity-medium"
	default:
		return "quantity-high"
	}
}

// SortAlerts orders alerts by level (danger first), then product, then
// company, so the result does not depend on fetch order.
func SortAlerts(alerts []models.LowStockAlert) []models.LowStockAlert {
	sorted := slices.Clone(alerts)
	slices.SortFunc(sorted, func(a, b models.LowStockAlert) int {
		return cmp.Or(
			cmp.Compare(alertRank(a.AlertLevel), alertRank(b.AlertLevel)),
			cmp.Compare(a.ProductName, b.ProductName),
			cmp.Compare(a.CompanyName, b.CompanyName),
		)
	})
	return sorted
}

// IndexAlerts keys alerts by product. A later duplicate replaces an earlier one.
func IndexAlerts(alerts []models.LowStockAlert) map[models.ProductKey]models.LowStockAlert {
	index := make(map[models.ProductKey]models.LowStockAlert, len(alerts))
	for _, a := range alerts {
		index[a.Key()] = a
	}
	return index
}

func alertRank(level models.AlertLevel) int {
	switch level {
	case models.AlertDanger:
		return 0
	case models.AlertWarning:
		return 1
	default:
		return 2
	}
}
