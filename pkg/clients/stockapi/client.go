package stockapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

// Client exposes the stock backend operations used by the desk.
type Client interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	VerifySession(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
	RegisterSalesperson(ctx context.Context, req models.SalespersonRegistration) error
	ListUsers(ctx context.Context) ([]models.User, error)

	ListStock(ctx context.Context, opts FetchOptions) ([]models.StockItem, error)
	GetStock(ctx context.Context, id int64) (*models.StockItem, error)
	CreateStock(ctx context.Context, in models.StockInput) error
	UpdateStock(ctx context.Context, id int64, in models.StockInput) error
	DeleteStock(ctx context.Context, id int64) error

	ListSales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error)
	RecordSale(ctx context.Context, req models.SaleRequest) (*models.SaleConfirmation, error)
	DailySales(ctx context.Context, opts FetchOptions) (*models.DailySales, error)
	WeeklySales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error)
	PaidSales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error)
	UnpaidSales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error)
	PaymentSummary(ctx context.Context, opts FetchOptions) (*models.PaymentSummary, error)
	UpdatePayment(ctx context.Context, saleID int64, update models.PaymentUpdate) error
	Receipt(ctx context.Context, saleID int64) ([]byte, error)

	DashboardStats(ctx context.Context, opts FetchOptions) (*models.DashboardStats, error)
	TopSellingProducts(ctx context.Context, days, limit int) (*models.TopProducts, error)
	CustomerAnalysis(ctx context.Context, days, limit int) (*models.CustomerAnalysis, error)
	StockMovement(ctx context.Context, days int) (*models.StockMovement, error)
	LowStockAlerts(ctx context.Context, threshold int, opts FetchOptions) (*models.LowStockAlerts, error)

	WeeklyReport(ctx context.Context, kind models.ReportKind) ([]byte, error)
}

// FetchOptions tunes read requests.
type FetchOptions struct {
	// NoCache appends a timestamp query parameter so intermediate HTTP
	// caches cannot serve a stale response.
	NoCache bool
}

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	now        func() time.Time
}

var _ Client = (*APIClient)(nil)

// NewClient builds a backend client for the given base URL (including the /api prefix).
func NewClient(cfg Config) *APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &APIClient{
		httpClient: restyClient,
		now:        time.Now,
	}
}

// errorPayload mirrors the backend's {"error": "..."} body.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type call struct {
	method string
	path   string
	query  map[string]string
	body   any
	result any
	opts   FetchOptions
}

func (c *APIClient) send(ctx context.Context, cl call) (*resty.Response, error) {
	apiErr := new(errorPayload)

	req := c.httpClient.R().
		SetContext(ctx).
		SetError(apiErr)
	if cl.body != nil {
		req.SetBody(cl.body)
	}
	if cl.result != nil {
		req.SetResult(cl.result)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	if cl.opts.NoCache {
		req.SetQueryParam("t", strconv.FormatInt(c.now().UnixMilli(), 10))
		req.SetHeader("Cache-Control", "no-cache")
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", cl.method, cl.path, models.ErrNetwork, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Error
		if message == "" {
			message = apiErr.Message
		}
		return resp, &models.APIError{Status: resp.StatusCode(), Message: message}
	}

	return resp, nil
}

// Login exchanges credentials for a backend session.
func (c *APIClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	result := new(models.Session)
	_, err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": username, "password": password},
		result: result,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if result.SessionToken == "" {
		return nil, fmt.Errorf("login: backend returned no session token")
	}
	return result, nil
}

// VerifySession asks the backend whether token is still valid and returns its user.
func (c *APIClient) VerifySession(ctx context.Context, token string) (*models.User, error) {
	var result struct {
		User *models.User `json:"user"`
	}
	_, err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/auth/verify-session",
		body:   map[string]string{"session_token": token},
		result: &result,
	})
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if result.User == nil {
		return nil, fmt.Errorf("verify session: backend returned no user")
	}
	return result.User, nil
}

// Logout invalidates token on the backend.
func (c *APIClient) Logout(ctx context.Context, token string) error {
	_, err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/auth/logout",
		body:   map[string]string{"session_token": token},
	})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// RegisterSalesperson creates a salesperson account on behalf of an admin.
func (c *APIClient) RegisterSalesperson(ctx context.Context, req models.SalespersonRegistration) error {
	_, err := c.send(ctx, call{method: http.MethodPost, path: "/auth/register/salesperson", body: req})
	if err != nil {
		return fmt.Errorf("register salesperson: %w", err)
	}
	return nil
}

// ListUsers returns every desk user.
func (c *APIClient) ListUsers(ctx context.Context) ([]models.User, error) {
	var result struct {
		Users []models.User `json:"users"`
	}
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/auth/users", result: &result}); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return result.Users, nil
}

// ListStock returns every stock item.
func (c *APIClient) ListStock(ctx context.Context, opts FetchOptions) ([]models.StockItem, error) {
	var result []models.StockItem
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/stock", result: &result, opts: opts}); err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return result, nil
}

// GetStock returns a single stock item.
func (c *APIClient) GetStock(ctx context.Context, id int64) (*models.StockItem, error) {
	result := new(models.StockItem)
	if _, err := c.send(ctx, call{method: http.MethodGet, path: stockPath(id), result: result}); err != nil {
		return nil, fmt.Errorf("get stock %d: %w", id, err)
	}
	return result, nil
}

// CreateStock adds a stock item; the backend merges into an existing product+company pair.
func (c *APIClient) CreateStock(ctx context.Context, in models.StockInput) error {
	if _, err := c.send(ctx, call{method: http.MethodPost, path: "/stock", body: in}); err != nil {
		return fmt.Errorf("create stock: %w", err)
	}
	return nil
}

// UpdateStock replaces a stock item's fields.
func (c *APIClient) UpdateStock(ctx context.Context, id int64, in models.StockInput) error {
	if _, err := c.send(ctx, call{method: http.MethodPut, path: stockPath(id), body: in}); err != nil {
		return fmt.Errorf("update stock %d: %w", id, err)
	}
	return nil
}

// DeleteStock removes a stock item.
func (c *APIClient) DeleteStock(ctx context.Context, id int64) error {
	if _, err := c.send(ctx, call{method: http.MethodDelete, path: stockPath(id)}); err != nil {
		return fmt.Errorf("delete stock %d: %w", id, err)
	}
	return nil
}

// ListSales returns every recorded sale.
func (c *APIClient) ListSales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error) {
	return c.salesList(ctx, "/sales", opts)
}

// WeeklySales returns the sales of the last seven days.
func (c *APIClient) WeeklySales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error) {
	return c.salesList(ctx, "/sales/weekly", opts)
}

// PaidSales returns settled sales.
func (c *APIClient) PaidSales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error) {
	return c.salesList(ctx, "/sales/paid", opts)
}

// UnpaidSales returns outstanding sales.
func (c *APIClient) UnpaidSales(ctx context.Context, opts FetchOptions) ([]models.SaleRecord, error) {
	return c.salesList(ctx, "/sales/unpaid", opts)
}

func (c *APIClient) salesList(ctx context.Context, path string, opts FetchOptions) ([]models.SaleRecord, error) {
	var result []models.SaleRecord
	if _, err := c.send(ctx, call{method: http.MethodGet, path: path, result: &result, opts: opts}); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return result, nil
}

// RecordSale submits a sale once; it never retries.
func (c *APIClient) RecordSale(ctx context.Context, req models.SaleRequest) (*models.SaleConfirmation, error) {
	result := new(models.SaleConfirmation)
	if _, err := c.send(ctx, call{method: http.MethodPost, path: "/sales", body: req, result: result}); err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}
	return result, nil
}

// DailySales returns today's sales with their summary counters.
func (c *APIClient) DailySales(ctx context.Context, opts FetchOptions) (*models.DailySales, error) {
	result := new(models.DailySales)
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/sales/daily", result: result, opts: opts}); err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	return result, nil
}

// PaymentSummary returns paid/unpaid aggregates.
func (c *APIClient) PaymentSummary(ctx context.Context, opts FetchOptions) (*models.PaymentSummary, error) {
	result := new(models.PaymentSummary)
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/sales/payment-summary", result: result, opts: opts}); err != nil {
		return nil, fmt.Errorf("payment summary: %w", err)
	}
	return result, nil
}

// UpdatePayment transitions a sale's payment fields.
func (c *APIClient) UpdatePayment(ctx context.Context, saleID int64, update models.PaymentUpdate) error {
	path := fmt.Sprintf("/sales/%d/payment", saleID)
	if _, err := c.send(ctx, call{method: http.MethodPut, path: path, body: update}); err != nil {
		return fmt.Errorf("update payment for sale %d: %w", saleID, err)
	}
	return nil
}

// Receipt downloads the PDF receipt of a sale.
func (c *APIClient) Receipt(ctx context.Context, saleID int64) ([]byte, error) {
	resp, err := c.send(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/sales/%d/receipt", saleID)})
	if err != nil {
		return nil, fmt.Errorf("receipt for sale %d: %w", saleID, err)
	}
	return resp.Body(), nil
}

// DashboardStats returns the admin overview counters.
func (c *APIClient) DashboardStats(ctx context.Context, opts FetchOptions) (*models.DashboardStats, error) {
	result := new(models.DashboardStats)
	if _, err := c.send(ctx, call{method: http.MethodGet, path: "/analytics/dashboard-stats", result: result, opts: opts}); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return result, nil
}

// TopSellingProducts ranks products over the last days.
func (c *APIClient) TopSellingProducts(ctx context.Context, days, limit int) (*models.TopProducts, error) {
	result := new(models.TopProducts)
	_, err := c.send(ctx, call{
		method: http.MethodGet,
		path:   "/analytics/top-selling-products",
		query:  periodQuery(days, limit),
		result: result,
	})
	if err != nil {
		return nil, fmt.Errorf("top selling products: %w", err)
	}
	return result, nil
}

// CustomerAnalysis ranks customers over the last days.
func (c *APIClient) CustomerAnalysis(ctx context.Context, days, limit int) (*models.CustomerAnalysis, error) {
	result := new(models.CustomerAnalysis)
	_, err := c.send(ctx, call{
		method: http.MethodGet,
		path:   "/analytics/customer-analysis",
		query:  periodQuery(days, limit),
		result: result,
	})
	if err != nil {
		return nil, fmt.Errorf("customer analysis: %w", err)
	}
	return result, nil
}

// StockMovement reports sales velocity per product over the last days.
func (c *APIClient) StockMovement(ctx context.Context, days int) (*models.StockMovement, error) {
	result := new(models.StockMovement)
	_, err := c.send(ctx, call{
		method: http.MethodGet,
		path:   "/analytics/stock-movement",
		query:  periodQuery(days, 0),
		result: result,
	})
	if err != nil {
		return nil, fmt.Errorf("stock movement: %w", err)
	}
	return result, nil
}

// LowStockAlerts returns products at or below threshold; zero uses the backend default.
func (c *APIClient) LowStockAlerts(ctx context.Context, threshold int, opts FetchOptions) (*models.LowStockAlerts, error) {
	result := new(models.LowStockAlerts)
	var query map[string]string
	if threshold > 0 {
		query = map[string]string{"threshold": strconv.Itoa(threshold)}
	}
	_, err := c.send(ctx, call{
		method: http.MethodGet,
		path:   "/analytics/low-stock-alerts",
		query:  query,
		result: result,
		opts:   opts,
	})
	if err != nil {
		return nil, fmt.Errorf("low stock alerts: %w", err)
	}
	return result, nil
}

// WeeklyReport downloads one of the weekly PDF reports.
func (c *APIClient) WeeklyReport(ctx context.Context, kind models.ReportKind) ([]byte, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError("report", fmt.Sprintf("unknown kind %q", kind))
	}
	resp, err := c.send(ctx, call{method: http.MethodGet, path: "/reports/weekly/" + string(kind)})
	if err != nil {
		return nil, fmt.Errorf("weekly report by %s: %w", kind, err)
	}
	return resp.Body(), nil
}

func stockPath(id int64) string {
	return "/stock/" + strconv.FormatInt(id, 10)
}

func periodQuery(days, limit int) map[string]string {
	query := make(map[string]string, 2)
	if days > 0 {
		query["days"] = strconv.Itoa(days)
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	return query
}
