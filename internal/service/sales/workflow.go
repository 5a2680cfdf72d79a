// Package sales records sales against the backend and reloads the state
// they affect.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

var (
	// ErrSubmissionInFlight is returned while a previous sale is still being processed.
	ErrSubmissionInFlight = errors.New("a sale is already being submitted")
	// ErrReconcileIncomplete means the sale was recorded but fresh state could not be loaded.
	ErrReconcileIncomplete = errors.New("sale recorded but reconciliation incomplete")
)

// DefaultReconcileTimeout bounds the reload that follows a recorded sale.
const DefaultReconcileTimeout = 30 * time.Second

// State is the position of a sale attempt in the workflow.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateReconciling
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateReconciling:
		return "reconciling"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the slice of the stock client used to record and reconcile a sale.
type Backend interface {
	RecordSale(ctx context.Context, req models.SaleRequest) (*models.SaleConfirmation, error)
	DailySales(ctx context.Context, opts stockapi.FetchOptions) (*models.DailySales, error)
	LowStockAlerts(ctx context.Context, threshold int, opts stockapi.FetchOptions) (*models.LowStockAlerts, error)
}

// Inventory is the cached stock the workflow validates against and refreshes.
type Inventory interface {
	Get() *inventory.Snapshot
	RefreshNoCache(ctx context.Context) error
}

// Form is a sale as entered at the desk.
type Form struct {
	StockID       int64                `json:"stock_id"`
	CustomerName  string               `json:"customer_name"`
	QuantitySold  int                  `json:"quantity_sold"`
	UnitPrice     decimal.NullDecimal  `json:"unit_price"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentMethod string               `json:"payment_method"`
}

// Outcome is a recorded sale together with the state reloaded after it.
type Outcome struct {
	SaleID     int64                  `json:"sale_id"`
	SaleAmount decimal.Decimal        `json:"sale_amount"`
	UnitPrice  decimal.Decimal        `json:"unit_price"`
	Item       *models.StockItem      `json:"item"`
	ItemAlert  *models.LowStockAlert  `json:"item_alert,omitempty"`
	DailySales *models.DailySales     `json:"daily_sales"`
	Alerts     []models.LowStockAlert `json:"alerts"`
}

// Workflow records sales one at a time.
type Workflow struct {
	backend   Backend
	inventory Inventory
	threshold int
	timeout   time.Duration
	logger    *zap.Logger
	observe   func(State)

	mu    sync.Mutex
	state State
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithAlertThreshold sets the low-stock threshold used when reloading alerts.
func WithAlertThreshold(threshold int) Option {
	return func(w *Workflow) { w.threshold = threshold }
}

// WithReconcileTimeout overrides DefaultReconcileTimeout.
func WithReconcileTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithStateObserver is called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(w *Workflow) { w.observe = fn }
}

// NewWorkflow wires a sale workflow.
func NewWorkflow(backend Backend, inv Inventory, logger *zap.Logger, opts ...Option) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workflow{
		backend:   backend,
		inventory: inv,
		threshold: inventory.DefaultLowStockThreshold,
		timeout:   DefaultReconcileTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Busy reports whether a submission is in progress.
func (w *Workflow) Busy() bool {
	return w.State() != StateIdle
}

// Submit validates, records and reconciles one sale. Validation failures
// never reach the backend. When reconciliation fails the outcome is still
// returned alongside ErrReconcileIncomplete. Once the backend has accepted the
// sale, reconciliation no longer follows ctx's cancellation.
func (w *Workflow) Submit(ctx context.Context, form Form) (*Outcome, error) {
	if !w.begin() {
		return nil, ErrSubmissionInFlight
	}
	defer w.transition(StateIdle)

	item, req, err := w.validate(form)
	if err != nil {
		w.transition(StateRejected)
		w.logger.Info("sale rejected by validation", zap.Int64("stock_id", form.StockID), zap.Error(err))
		return nil, err
	}

	w.transition(StateSubmitting)
	conf, err := w.backend.RecordSale(ctx, req)
	if err != nil {
		w.transition(StateFailed)
		return nil, w.submitError(item, err)
	}

	outcome := &Outcome{
		SaleID:     conf.SaleID,
		SaleAmount: models.SaleAmountFor(req.QuantitySold, req.UnitPrice),
		UnitPrice:  req.UnitPrice,
	}
	if conf.SaleAmount.Valid {
		outcome.SaleAmount = conf.SaleAmount.Decimal
	}
	w.logger.Info("sale recorded",
		zap.Int64("sale_id", conf.SaleID),
		zap.String("product", item.Key().String()),
		zap.Int("quantity", req.QuantitySold),
		zap.String("amount", outcome.SaleAmount.StringFixed(2)),
	)

	w.transition(StateReconciling)
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := w.reconcile(rctx, item, outcome); err != nil {
		w.logger.Warn("reconciliation incomplete", zap.Int64("sale_id", conf.SaleID), zap.Error(err))
		return outcome, fmt.Errorf("%w: %w", ErrReconcileIncomplete, err)
	}
	return outcome, nil
}

func (w *Workflow) begin() bool {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		return false
	}
	w.state = StateValidating
	w.mu.Unlock()

	if w.observe != nil {
		w.observe(StateValidating)
	}
	return true
}

func (w *Workflow) transition(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	if w.observe != nil {
		w.observe(s)
	}
}

func (w *Workflow) validate(form Form) (models.StockItem, models.SaleRequest, error) {
	item, ok := w.inventory.Get().Item(form.StockID)
	if !ok {
		return models.StockItem{}, models.SaleRequest{}, models.NewValidationError("stock_id", "does not match a stock item")
	}

	customer := strings.TrimSpace(form.CustomerName)
	switch {
	case customer == "":
		return item, models.SaleRequest{}, models.NewValidationError("customer_name", "is required")
	case form.QuantitySold < 1:
		return item, models.SaleRequest{}, models.NewValidationError("quantity_sold", "must be at least 1")
	case form.QuantitySold > item.Quantity:
		return item, models.SaleRequest{}, models.NewValidationError("quantity_sold",
			fmt.Sprintf("exceeds available stock (%d)", item.Quantity))
	}

	price, err := resolvePrice(item, form.UnitPrice)
	if err != nil {
		return item, models.SaleRequest{}, err
	}

	req := models.SaleRequest{
		ProductName:   item.ProductName,
		CompanyName:   item.CompanyName,
		CustomerName:  customer,
		QuantitySold:  form.QuantitySold,
		UnitPrice:     price,
		PaymentStatus: form.PaymentStatus,
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = models.PaymentUnpaid
	}

	switch req.PaymentStatus {
	case models.PaymentPaid:
		method, ok := models.ParsePaymentMethod(form.PaymentMethod)
		if !ok {
			return item, models.SaleRequest{}, models.NewValidationError("payment_method", "is required for paid sales")
		}
		req.PaymentMethod = &method
	case models.PaymentUnpaid:
		if strings.TrimSpace(form.PaymentMethod) != "" {
			return item, models.SaleRequest{}, models.NewValidationError("payment_method", "must be empty for unpaid sales")
		}
	default:
		return item, models.SaleRequest{}, models.NewValidationError("payment_status", fmt.Sprintf("unknown value %q", form.PaymentStatus))
	}

	return item, req, nil
}

// resolvePrice prefers an explicit price from the form, then the item's own.
func resolvePrice(item models.StockItem, override decimal.NullDecimal) (decimal.Decimal, error) {
	price := override
	if !price.Valid {
		price = item.UnitPrice
	}
	if !price.Valid {
		return decimal.Decimal{}, fmt.Errorf("%w for %s", models.ErrPriceNotSet, item.Key())
	}
	if !price.Decimal.IsPositive() {
		return decimal.Decimal{}, models.NewValidationError("unit_price", "must be positive")
	}
	return price.Decimal, nil
}

func (w *Workflow) submitError(item models.StockItem, err error) error {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		msg, ok := models.BackendMessage(err)
		if !ok {
			msg = "backend refused the sale"
		}
		w.logger.Info("sale rejected by backend",
			zap.String("product", item.Key().String()),
			zap.Int("status", apiErr.Status),
			zap.String("reason", msg),
		)
		return fmt.Errorf("%w: %s: %w", models.ErrSaleRejected, msg, err)
	}
	w.logger.Error("sale submission failed", zap.String("product", item.Key().String()), zap.Error(err))
	return err
}

// reconcile reloads stock, today's sales and alerts from the backend. The
// branches run independently so one failure does not cancel the others.
func (w *Workflow) reconcile(ctx context.Context, sold models.StockItem, outcome *Outcome) error {
	opts := stockapi.FetchOptions{NoCache: true}

	var (
		g         errgroup.Group
		mu        sync.Mutex
		errs      []error
		refreshed bool
		daily     *models.DailySales
		alerts    *models.LowStockAlerts
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g.Go(func() error {
		if err := w.inventory.RefreshNoCache(ctx); err != nil {
			fail(err)
			return nil
		}
		refreshed = true
		return nil
	})
	g.Go(func() error {
		var err error
		if daily, err = w.backend.DailySales(ctx, opts); err != nil {
			fail(err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if alerts, err = w.backend.LowStockAlerts(ctx, w.threshold, opts); err != nil {
			fail(err)
		}
		return nil
	})
	_ = g.Wait()

	outcome.DailySales = daily
	if alerts != nil {
		outcome.Alerts = inventory.SortAlerts(alerts.Alerts)
		if alert, ok := inventory.IndexAlerts(alerts.Alerts)[sold.Key()]; ok {
			outcome.ItemAlert = &alert
		}
	}
	if refreshed {
		if item, ok := w.inventory.Get().Item(sold.ID); ok {
			outcome.Item = &item
		}
	}

	return errors.Join(errs...)
}
