package inventory

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

func TestLowStock_ExactlyBetweenZeroAndThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		items := make([]models.StockItem, 30)
		for i := range items {
			items[i] = models.StockItem{ID: int64(i + 1), Quantity: rng.Intn(25)}
		}
		threshold := 1 + rng.Intn(20)

		got := LowStock(items, threshold)
		want := 0
		for _, item := range items {
			if item.Quantity > 0 && item.Quantity < threshold {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("round %d: got %d items want %d", round, len(got), want)
		}
		for _, item := range got {
			if item.Quantity <= 0 || item.Quantity >= threshold {
				t.Fatalf("round %d: item %+v outside (0,%d)", round, item, threshold)
			}
		}
	}
}

func TestRecentSales_NewestFirstWithoutMutatingInput(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sales := make([]models.SaleRecord, 7)
	for i := range sales {
		sales[i] = models.SaleRecord{ID: int64(i + 1), SaleDate: models.NewTimestamp(base.Add(time.Duration(i) * time.Hour))}
	}

	recent := RecentSales(sales, 5)
	if len(recent) != 5 || recent[0].ID != 7 || recent[4].ID != 3 {
		t.Fatalf("unexpected order %+v", recent)
	}
	if sales[0].ID != 1 {
		t.Fatalf("input reordered")
	}
}

func TestComputeDashboardStats(t *testing.T) {
	snap := &Snapshot{
		Stock: []models.StockItem{
			{ID: 1, Quantity: 0},
			{ID: 2, Quantity: 4},
			{ID: 3, Quantity: 60},
		},
		Sales: []models.SaleRecord{
			{SaleAmount: decimal.NewFromInt(750), PaymentStatus: models.PaymentPaid},
			{SaleAmount: decimal.RequireFromString("120.50"), PaymentStatus: models.PaymentUnpaid},
		},
	}

	stats := ComputeDashboardStats(snap, 10)
	if stats.TotalProducts != 3 || stats.TotalStock != 64 || stats.TotalSales != 2 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("870.50")) {
		t.Fatalf("revenue %s", stats.TotalRevenue)
	}
	if !stats.UnpaidBalance.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("unpaid %s", stats.UnpaidBalance)
	}
	if stats.LowStockCount != 1 || stats.OutOfStockCount != 1 {
		t.Fatalf("unexpected stock counters %+v", stats)
	}

	again := ComputeDashboardStats(snap, 10)
	if again.TotalStock != stats.TotalStock || !again.TotalRevenue.Equal(stats.TotalRevenue) {
		t.Fatalf("stats not repeatable")
	}
}

func TestStatusLabels(t *testing.T) {
	cases := []struct {
		qty    int
		status string
		class  string
	}{
		{0, "Out of Stock", "quantity-zero"},
		{9, "Low Stock", "quantity-low"},
		{10, "Medium Stock", "quantity-medium"},
		{50, "High Stock", "quantity-high"},
	}
	for _, tc := range cases {
		if got := StockStatus(tc.qty); got != tc.status {
			t.Fatalf("status(%d) = %q", tc.qty, got)
		}
		if got := QuantityClass(tc.qty); got != tc.class {
			t.Fatalf("class(%d) = %q", tc.qty, got)
		}
	}
}

func TestSortAlerts_IndependentOfFetchOrder(t *testing.T) {
	danger := models.LowStockAlert{ProductName: "Potash", CompanyName: "IPL", CurrentQuantity: 2, AlertLevel: models.AlertDanger}
	warning := models.LowStockAlert{ProductName: "Zinc", CompanyName: "Tata", CurrentQuantity: 8, AlertLevel: models.AlertWarning}

	a := SortAlerts([]models.LowStockAlert{danger, warning})
	b := SortAlerts([]models.LowStockAlert{warning, danger})
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order depends on input: %+v vs %+v", a, b)
		}
	}
	if a[0].AlertLevel != models.AlertDanger {
		t.Fatalf("danger should sort first")
	}

	index := IndexAlerts([]models.LowStockAlert{warning, danger})
	if index[danger.Key()].AlertLevel != models.AlertDanger || index[warning.Key()].AlertLevel != models.AlertWarning {
		t.Fatalf("index keyed by position instead of product: %+v", index)
	}
}
