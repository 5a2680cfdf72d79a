package sales

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockdesk/internal/backendtest"
	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

type fixture struct {
	backend *backendtest.Backend
	client  *stockapi.APIClient
	store   *inventory.Store
}

func setup(t *testing.T, items ...models.StockItem) (*fixture, []models.StockItem) {
	t.Helper()
	backend := backendtest.New()
	t.Cleanup(backend.Close)

	seeded := make([]models.StockItem, 0, len(items))
	for _, item := range items {
		seeded = append(seeded, backend.AddStock(item))
	}

	client := stockapi.NewClient(stockapi.Config{BaseURL: backend.URL(), Timeout: 2 * time.Second})
	store := inventory.NewStore(client, nil)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	return &fixture{backend: backend, client: client, store: store}, seeded
}

func priced(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func urea() models.StockItem {
	return models.StockItem{ProductName: "Urea", CompanyName: "ACME", Quantity: 5, UnitPrice: priced(250)}
}

func TestSubmit_RecordsAndReconcilesFromBackend(t *testing.T) {
	fx, items := setup(t, urea())

	var (
		mu     sync.Mutex
		states []State
	)
	wf := NewWorkflow(fx.client, fx.store, nil, WithStateObserver(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	out, err := wf.Submit(context.Background(), Form{
		StockID:       items[0].ID,
		CustomerName:  "Ravi",
		QuantitySold:  3,
		PaymentStatus: models.PaymentUnpaid,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.SaleAmount.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("sale amount %s", out.SaleAmount)
	}
	if out.Item == nil || out.Item.Quantity != 2 {
		t.Fatalf("expected reconciled quantity 2, got %+v", out.Item)
	}
	if out.DailySales == nil || out.DailySales.Summary.TotalSales != 1 {
		t.Fatalf("daily sales not reloaded: %+v", out.DailySales)
	}
	if len(out.Alerts) != 1 || out.Alerts[0].CurrentQuantity != 2 || out.Alerts[0].AlertLevel != models.AlertDanger {
		t.Fatalf("alerts not reloaded: %+v", out.Alerts)
	}
	if out.ItemAlert == nil || out.ItemAlert.Key() != items[0].Key() {
		t.Fatalf("sold item should carry its alert, got %+v", out.ItemAlert)
	}
	if got, _ := fx.store.Get().Item(items[0].ID); got.Quantity != 2 {
		t.Fatalf("store not refreshed, quantity %d", got.Quantity)
	}

	sale, ok := fx.backend.Sale(out.SaleID)
	if !ok || !sale.SaleAmount.Equal(models.SaleAmountFor(sale.QuantitySold, sale.UnitPrice)) {
		t.Fatalf("amount round trip failed: %+v", sale)
	}

	for _, q := range fx.backend.Queries("GET /stock")[1:] {
		if q["t"] == "" {
			t.Fatalf("reconciliation fetch was not cache-busted")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateValidating, StateSubmitting, StateReconciling, StateIdle}
	if !slices.Equal(states, want) {
		t.Fatalf("transitions %v want %v", states, want)
	}
}

func TestSubmit_ReconcileOutlivesCancelledCaller(t *testing.T) {
	fx, items := setup(t, urea())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wf := NewWorkflow(fx.client, fx.store, nil, WithStateObserver(func(s State) {
		if s == StateReconciling {
			cancel()
		}
	}))

	out, err := wf.Submit(ctx, Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 3})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Item == nil || out.Item.Quantity != 2 {
		t.Fatalf("expected reconciled quantity 2, got %+v", out.Item)
	}
	server, _ := fx.backend.Stock(items[0].ID)
	if cached, _ := fx.store.Get().Item(items[0].ID); cached.Quantity != server.Quantity {
		t.Fatalf("cache quantity %d, server quantity %d", cached.Quantity, server.Quantity)
	}
}

func TestSubmit_QuantityComesFromBackendUnderConcurrentSales(t *testing.T) {
	fx, items := setup(t, urea())
	// Another desk sells one unit between our validation and our submission.
	fx.backend.BeforeSale(func() { fx.backend.SetQuantity(items[0].ID, 4) })

	wf := NewWorkflow(fx.client, fx.store, nil)
	out, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 3})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Item.Quantity != 1 {
		t.Fatalf("expected server quantity 1, got %d", out.Item.Quantity)
	}
}

func TestSubmit_ValidationBeforeNetwork(t *testing.T) {
	fx, items := setup(t, urea(), models.StockItem{ProductName: "Potash", CompanyName: "IPL", Quantity: 8})
	wf := NewWorkflow(fx.client, fx.store, nil)

	cases := []struct {
		name string
		form Form
		want error
	}{
		{"over quantity", Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 10}, models.ErrValidation},
		{"zero quantity", Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 0}, models.ErrValidation},
		{"unknown item", Form{StockID: 999, CustomerName: "Ravi", QuantitySold: 1}, models.ErrValidation},
		{"no customer", Form{StockID: items[0].ID, QuantitySold: 1}, models.ErrValidation},
		{"paid without method", Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1, PaymentStatus: models.PaymentPaid}, models.ErrValidation},
		{"unpaid with method", Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1, PaymentMethod: "cash"}, models.ErrValidation},
		{"no price", Form{StockID: items[1].ID, CustomerName: "Ravi", QuantitySold: 1}, models.ErrPriceNotSet},
	}
	for _, tc := range cases {
		if _, err := wf.Submit(context.Background(), tc.form); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if wf.State() != StateIdle {
			t.Fatalf("%s: workflow left in %s", tc.name, wf.State())
		}
	}
	if hits := fx.backend.Hits("POST /sales"); hits != 0 {
		t.Fatalf("validation failures reached the backend %d times", hits)
	}
}

func TestSubmit_PriceOverride(t *testing.T) {
	fx, items := setup(t, models.StockItem{ProductName: "Potash", CompanyName: "IPL", Quantity: 8})
	wf := NewWorkflow(fx.client, fx.store, nil)

	out, err := wf.Submit(context.Background(), Form{
		StockID:       items[0].ID,
		CustomerName:  "Lata",
		QuantitySold:  2,
		UnitPrice:     decimal.NewNullDecimal(decimal.RequireFromString("99.50")),
		PaymentStatus: models.PaymentPaid,
		PaymentMethod: "UPI",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.SaleAmount.Equal(decimal.RequireFromString("199")) {
		t.Fatalf("amount %s", out.SaleAmount)
	}
	sale, _ := fx.backend.Sale(out.SaleID)
	if sale.PaymentMethod == nil || *sale.PaymentMethod != models.MethodUPI {
		t.Fatalf("payment method %+v", sale.PaymentMethod)
	}
}

func TestSubmit_BackendRejectionCarriesReason(t *testing.T) {
	fx, items := setup(t, urea())
	fx.backend.BeforeSale(func() { fx.backend.SetQuantity(items[0].ID, 1) })

	wf := NewWorkflow(fx.client, fx.store, nil)
	_, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 3})
	if !errors.Is(err, models.ErrSaleRejected) {
		t.Fatalf("expected ErrSaleRejected, got %v", err)
	}
	if msg, _ := models.BackendMessage(err); msg != "Insufficient stock" {
		t.Fatalf("unexpected reason %q", msg)
	}
	if wf.State() != StateIdle {
		t.Fatalf("workflow left in %s", wf.State())
	}
}

func TestSubmit_ServerErrorIsNotARejection(t *testing.T) {
	fx, items := setup(t, urea())
	fx.backend.Fail("POST /sales", 1)

	wf := NewWorkflow(fx.client, fx.store, nil)
	_, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1})
	if errors.Is(err, models.ErrSaleRejected) {
		t.Fatalf("a 5xx must not be reported as a business rejection: %v", err)
	}
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 500 {
		t.Fatalf("expected the backend status to surface, got %v", err)
	}
	if wf.State() != StateIdle {
		t.Fatalf("workflow left in %s", wf.State())
	}
}

func TestSubmit_InFlightRejectsSecondSubmission(t *testing.T) {
	fx, items := setup(t, urea())
	fx.backend.Delay("POST /sales", 150*time.Millisecond)
	wf := NewWorkflow(fx.client, fx.store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1})
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !wf.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("first submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1}); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if hits := fx.backend.Hits("POST /sales"); hits != 1 {
		t.Fatalf("expected exactly one post, got %d", hits)
	}
}

func TestSubmit_ReconcileFailureStillReturnsSale(t *testing.T) {
	fx, items := setup(t, urea())
	fx.backend.Fail("GET /sales/daily", 1)
	wf := NewWorkflow(fx.client, fx.store, nil)

	out, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1})
	if !errors.Is(err, ErrReconcileIncomplete) {
		t.Fatalf("expected ErrReconcileIncomplete, got %v", err)
	}
	if out == nil || out.SaleID == 0 {
		t.Fatalf("sale id must survive reconciliation failure: %+v", out)
	}
	if out.Item == nil || out.Item.Quantity != 4 {
		t.Fatalf("other reconciliation branches should still apply: %+v", out.Item)
	}
}

func TestResolveProduct(t *testing.T) {
	snap := &inventory.Snapshot{Stock: []models.StockItem{
		{ID: 1, ProductName: "Urea", CompanyName: "ACME", Quantity: 5},
		{ID: 2, ProductName: "Urea", CompanyName: "IFFCO", Quantity: 3},
		{ID: 3, ProductName: "DAP", CompanyName: "Coromandel", Quantity: 0},
	}}

	if _, err := ResolveProduct(snap, "urea"); err == nil || !strings.Contains(err.Error(), "matches 2") {
		t.Fatalf("ambiguous text must be rejected, got %v", err)
	}
	if item, err := ResolveProduct(snap, "Urea|IFFCO"); err != nil || item.ID != 2 {
		t.Fatalf("selection value: %+v %v", item, err)
	}
	if item, err := ResolveProduct(snap, "urea|iffco"); err != nil || item.ID != 2 {
		t.Fatalf("selection value without case: %+v %v", item, err)
	}
	if item, err := ResolveProduct(snap, "urea - acme"); err != nil || item.ID != 1 {
		t.Fatalf("label: %+v %v", item, err)
	}
	if item, err := ResolveProduct(snap, "dap"); err != nil || item.ID != 3 {
		t.Fatalf("unique name: %+v %v", item, err)
	}
	if _, err := ResolveProduct(snap, "ure"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("partial text must not be guessed, got %v", err)
	}
	if got := SelectableProducts(snap); len(got) != 2 {
		t.Fatalf("selectable %+v", got)
	}
}

func TestMarkPaid(t *testing.T) {
	fx, items := setup(t, urea())
	wf := NewWorkflow(fx.client, fx.store, nil)
	out, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	payments := NewPayments(fx.client, nil)
	if _, err := payments.MarkPaid(context.Background(), out.SaleID, "barter"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	board, err := payments.MarkPaid(context.Background(), out.SaleID, "cash")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if len(board.Paid) != 1 || len(board.Unpaid) != 0 {
		t.Fatalf("unexpected board %+v", board)
	}
	paid := board.Paid[0]
	if paid.PaymentStatus != models.PaymentPaid || paid.PaymentMethod == nil || *paid.PaymentMethod != models.MethodCash {
		t.Fatalf("unexpected payment fields %+v", paid)
	}
	if paid.PaymentDate.IsZero() {
		t.Fatalf("payment date not set")
	}
	if board.Summary.PaidCount != 1 || !board.Summary.PaidAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("summary %+v", board.Summary)
	}
}

func TestReceipts(t *testing.T) {
	fx, items := setup(t, urea())
	wf := NewWorkflow(fx.client, fx.store, nil)
	out, err := wf.Submit(context.Background(), Form{StockID: items[0].ID, CustomerName: "Ravi", QuantitySold: 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	receipts := NewReceipts(fx.client, nil)
	receipts.now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }

	_, err = receipts.Fetch(context.Background(), 404)
	if !errors.Is(err, ErrReceiptUnavailable) || !strings.Contains(err.Error(), "Sale not found") {
		t.Fatalf("expected backend reason, got %v", err)
	}

	dir := t.TempDir()
	path, err := receipts.Save(context.Background(), out.SaleID, dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != ReceiptFilename(out.SaleID, receipts.now()) {
		t.Fatalf("unexpected file %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("receipt content %q %v", data, err)
	}
	if got := ReceiptFailureMessage(errors.New("dial tcp: refused")); got != genericReceiptFailure {
		t.Fatalf("generic message %q", got)
	}
}
