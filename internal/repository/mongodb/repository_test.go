package mongodb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

func TestSnapshotDocumentRoundTrip(t *testing.T) {
	day := time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)
	in := models.DailySnapshot{
		Date:           day,
		TotalSales:     4,
		Revenue:        decimal.RequireFromString("2150.75"),
		PaidSales:      3,
		UnpaidSales:    1,
		UnpaidBalance:  decimal.RequireFromString("270"),
		LowStockAlerts: 2,
		StockUnits:     311,
		CreatedAt:      day,
	}

	doc, err := toSnapshotDocument(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if doc.Day != "2025-06-02" {
		t.Fatalf("unexpected key %q", doc.Day)
	}

	out, err := doc.toModel()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Revenue.Equal(in.Revenue) || !out.UnpaidBalance.Equal(in.UnpaidBalance) {
		t.Fatalf("money did not round trip: %s %s", out.Revenue, out.UnpaidBalance)
	}
	if out.TotalSales != 4 || out.StockUnits != 311 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
}

func TestStateStoreKeysAreScopedPerDesk(t *testing.T) {
	a := &StateStore{deskID: "counter-1"}
	b := &StateStore{deskID: "counter-2"}
	if a.id("session_token") == b.id("session_token") {
		t.Fatalf("desks must not share state keys")
	}
}
