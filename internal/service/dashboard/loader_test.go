package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockdesk/internal/backendtest"
	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

func setupLoader(t *testing.T) (*backendtest.Backend, *inventory.Store, *Loader) {
	t.Helper()
	backend := backendtest.New()
	t.Cleanup(backend.Close)
	backend.AddStock(models.StockItem{ProductName: "Urea", CompanyName: "IFFCO", Quantity: 120, UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(270))})
	backend.AddStock(models.StockItem{ProductName: "Potash", CompanyName: "IPL", Quantity: 3})
	backend.AddSession("tok", models.User{ID: 1, Username: "asha", Role: models.RoleAdmin})

	client := stockapi.NewClient(stockapi.Config{BaseURL: backend.URL(), Timeout: 2 * time.Second})
	store := inventory.NewStore(client, nil)
	return backend, store, NewLoader(client, store, Settings{}, nil)
}

func TestLoad_AdminIsolatesWidgetFailures(t *testing.T) {
	backend, _, loader := setupLoader(t)
	backend.Fail("GET /auth/users", 1)
	backend.Delay("GET /analytics/stock-movement", 50*time.Millisecond)

	dash := loader.Load(context.Background(), models.RoleAdmin)
	if len(dash.Widgets) != 9 {
		t.Fatalf("expected 9 widgets, got %d", len(dash.Widgets))
	}

	users := dash.Widgets[WidgetUsers]
	if !users.Failed() || users.Data != nil {
		t.Fatalf("users widget should carry only its error: %+v", users)
	}
	for name, w := range dash.Widgets {
		if name != WidgetUsers && w.Failed() {
			t.Fatalf("widget %s failed: %s", name, w.Error)
		}
	}

	panel, ok := dash.Widgets[WidgetStock].Data.(StockPanel)
	if !ok {
		t.Fatalf("unexpected stock payload %T", dash.Widgets[WidgetStock].Data)
	}
	if panel.Stats.TotalProducts != 2 || len(panel.LowStock) != 1 || panel.Items[1].Status != "Low Stock" {
		t.Fatalf("unexpected stock panel %+v", panel)
	}

	alerts := dash.Widgets[WidgetLowStockAlerts].Data.(AlertsPanel)
	if alerts.Total != 1 || alerts.Alerts[0].ProductName != "Potash" {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	if movement := dash.Widgets[WidgetStockMovement]; movement.Data == nil {
		t.Fatalf("slow widget should still settle")
	}
}

func TestLoad_SalespersonWidgets(t *testing.T) {
	_, _, loader := setupLoader(t)

	dash := loader.Load(context.Background(), models.RoleSalesperson)
	if len(dash.Widgets) != 2 {
		t.Fatalf("expected alerts and stock only, got %d", len(dash.Widgets))
	}
	if _, ok := dash.Widgets[WidgetUsers]; ok {
		t.Fatalf("salesperson must not load users")
	}
}

func TestLoad_StockWidgetKeepsStaleSnapshot(t *testing.T) {
	backend, store, loader := setupLoader(t)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	backend.Fail("GET /stock", 1)

	dash := loader.Load(context.Background(), models.RoleSalesperson)
	stock := dash.Widgets[WidgetStock]
	if !stock.Failed() {
		t.Fatalf("expected stock error")
	}
	if panel, ok := stock.Data.(StockPanel); !ok || len(panel.Items) != 2 {
		t.Fatalf("stale snapshot should still render: %+v", stock.Data)
	}
}
