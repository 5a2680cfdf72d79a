// Package dashboard loads every widget of a role's dashboard concurrently,
// isolating each widget's failure.
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

// Widget names.
const (
	WidgetStats          = "stats"
	WidgetStock          = "stock"
	WidgetUsers          = "users"
	WidgetDailySales     = "daily_sales"
	WidgetTopProducts    = "top_products"
	WidgetTopCustomers   = "top_customers"
	WidgetStockMovement  = "stock_movement"
	WidgetLowStockAlerts = "low_stock_alerts"
	WidgetPaymentSummary = "payment_summary"
)

// Backend is the slice of the stock client the dashboards read.
type Backend interface {
	DashboardStats(ctx context.Context, opts stockapi.FetchOptions) (*models.DashboardStats, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DailySales(ctx context.Context, opts stockapi.FetchOptions) (*models.DailySales, error)
	PaymentSummary(ctx context.Context, opts stockapi.FetchOptions) (*models.PaymentSummary, error)
	TopSellingProducts(ctx context.Context, days, limit int) (*models.TopProducts, error)
	CustomerAnalysis(ctx context.Context, days, limit int) (*models.CustomerAnalysis, error)
	StockMovement(ctx context.Context, days int) (*models.StockMovement, error)
	LowStockAlerts(ctx context.Context, threshold int, opts stockapi.FetchOptions) (*models.LowStockAlerts, error)
}

// Inventory is the cached stock refreshed by the stock widget.
type Inventory interface {
	Get() *inventory.Snapshot
	Refresh(ctx context.Context) error
}

// Settings tunes the analytics widgets.
type Settings struct {
	LowStockThreshold int
	RecentSales       int
	AnalyticsDays     int
	AnalyticsLimit    int
}

// Widget is one panel's data or its inline error.
type Widget struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the widget could not be loaded.
func (w Widget) Failed() bool {
	return w.Error != ""
}

// Dashboard is the settled state of every widget.
type Dashboard struct {
	Role     models.Role       `json:"role"`
	Widgets  map[string]Widget `json:"widgets"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// StockPanel is the stock widget payload built from the inventory snapshot.
type StockPanel struct {
	Stats       inventory.DeskStats `json:"stats"`
	Items       []StockRow          `json:"items"`
	LowStock    []models.StockItem  `json:"low_stock"`
	RecentSales []models.SaleRecord `json:"recent_sales"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// StockRow is an item with its display labels.
type StockRow struct {
	models.StockItem
	Status        string `json:"status"`
	QuantityClass string `json:"quantity_class"`
}

// AlertsPanel is the low-stock widget payload.
type AlertsPanel struct {
	Alerts    []models.LowStockAlert `json:"alerts"`
	Total     int                    `json:"total_alerts"`
	Threshold int                    `json:"threshold"`
}

// Loader assembles dashboards.
type Loader struct {
	backend  Backend
	store    Inventory
	settings Settings
	logger   *zap.Logger
}

// NewLoader builds a Loader. Zero settings fall back to the desk defaults.
func NewLoader(backend Backend, store Inventory, settings Settings, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.LowStockThreshold <= 0 {
		settings.LowStockThreshold = inventory.DefaultLowStockThreshold
	}
	if settings.RecentSales <= 0 {
		settings.RecentSales = inventory.DefaultRecentSales
	}
	if settings.AnalyticsDays <= 0 {
		settings.AnalyticsDays = 30
	}
	if settings.AnalyticsLimit <= 0 {
		settings.AnalyticsLimit = 5
	}
	return &Loader{backend: backend, store: store, settings: settings, logger: logger}
}

type widgetFunc func(ctx context.Context) (any, error)

// Load fetches every widget of role's dashboard and returns once all have
// settled. A failing widget carries its own error and never blocks the rest.
func (l *Loader) Load(ctx context.Context, role models.Role) *Dashboard {
	widgets := l.widgetsFor(role)
	dash := &Dashboard{Role: role, Widgets: make(map[string]Widget, len(widgets))}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for name, load := range widgets {
		g.Go(func() error {
			data, err := load(ctx)
			w := Widget{Data: data}
			if err != nil {
				w.Error = err.Error()
				l.logger.Warn("dashboard widget failed", zap.String("widget", name), zap.Error(err))
			}
			mu.Lock()
			dash.Widgets[name] = w
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	dash.LoadedAt = time.Now()
	return dash
}

func (l *Loader) widgetsFor(role models.Role) map[string]widgetFunc {
	if role == models.RoleAdmin {
		return map[string]widgetFunc{
			WidgetStats:          l.stats,
			WidgetStock:          l.stock,
			WidgetUsers:          l.users,
			WidgetDailySales:     l.dailySales,
			WidgetPaymentSummary: l.paymentSummary,
			WidgetTopProducts:    l.topProducts,
			WidgetTopCustomers:   l.topCustomers,
			WidgetStockMovement:  l.stockMovement,
			WidgetLowStockAlerts: l.alerts,
		}
	}
	return map[string]widgetFunc{
		WidgetLowStockAlerts: l.alerts,
		WidgetStock:          l.stock,
	}
}

func (l *Loader) stats(ctx context.Context) (any, error) {
	return settle(l.backend.DashboardStats(ctx, stockapi.FetchOptions{NoCache: true}))
}

// stock refreshes the store. On failure the previous snapshot is still shown
// next to the error.
func (l *Loader) stock(ctx context.Context) (any, error) {
	err := l.store.Refresh(ctx)
	snap := l.store.Get()
	if err != nil && snap.Seq == 0 {
		return nil, err
	}
	return BuildStockPanel(snap, l.settings.LowStockThreshold, l.settings.RecentSales), err
}

func (l *Loader) users(ctx context.Context) (any, error) {
	return settle(l.backend.ListUsers(ctx))
}

func (l *Loader) dailySales(ctx context.Context) (any, error) {
	return settle(l.backend.DailySales(ctx, stockapi.FetchOptions{NoCache: true}))
}

func (l *Loader) paymentSummary(ctx context.Context) (any, error) {
	return settle(l.backend.PaymentSummary(ctx, stockapi.FetchOptions{NoCache: true}))
}

func (l *Loader) topProducts(ctx context.Context) (any, error) {
	return settle(l.backend.TopSellingProducts(ctx, l.settings.AnalyticsDays, l.settings.AnalyticsLimit))
}

func (l *Loader) topCustomers(ctx context.Context) (any, error) {
	return settle(l.backend.CustomerAnalysis(ctx, l.settings.AnalyticsDays, l.settings.AnalyticsLimit))
}

func (l *Loader) stockMovement(ctx context.Context) (any, error) {
	return settle(l.backend.StockMovement(ctx, l.settings.AnalyticsDays))
}

func (l *Loader) alerts(ctx context.Context) (any, error) {
	res, err := l.backend.LowStockAlerts(ctx, l.settings.LowStockThreshold, stockapi.FetchOptions{NoCache: true})
	if err != nil {
		return nil, err
	}
	return AlertsPanel{
		Alerts:    inventory.SortAlerts(res.Alerts),
		Total:     res.TotalAlerts,
		Threshold: res.Threshold,
	}, nil
}

// settle drops typed nil results so failed widgets carry only their error.
func settle[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// BuildStockPanel derives the stock widget from a snapshot.
func BuildStockPanel(snap *inventory.Snapshot, threshold, recent int) StockPanel {
	rows := make([]StockRow, 0, len(snap.Stock))
	for _, item := range snap.Stock {
		rows = append(rows, StockRow{
			StockItem:     item,
			Status:        inventory.StockStatus(item.Quantity),
			QuantityClass: inventory.QuantityClass(item.Quantity),
		})
	}
	return StockPanel{
		Stats:       inventory.ComputeDashboardStats(snap, threshold),
		Items:       rows,
		LowStock:    inventory.LowStock(snap.Stock, threshold),
		RecentSales: inventory.RecentSales(snap.Sales, recent),
		FetchedAt:   snap.FetchedAt,
	}
}
