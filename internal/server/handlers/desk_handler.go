package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/inventory"
	"github.com/mamadbah2/stockdesk/internal/search"
	"github.com/mamadbah2/stockdesk/internal/service/dashboard"
	"github.com/mamadbah2/stockdesk/internal/service/sales"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

const userKey = "desk.user"

var timeNow = time.Now

// Guard is the session gate used by the desk routes.
type Guard interface {
	Require(ctx context.Context, role models.Role) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
	Logout(ctx context.Context) error
}

// Backend is the slice of the stock client the handlers call directly.
type Backend interface {
	GetStock(ctx context.Context, id int64) (*models.StockItem, error)
	WeeklySales(ctx context.Context, opts stockapi.FetchOptions) ([]models.SaleRecord, error)
	CreateStock(ctx context.Context, in models.StockInput) error
	UpdateStock(ctx context.Context, id int64, in models.StockInput) error
	DeleteStock(ctx context.Context, id int64) error
	RegisterSalesperson(ctx context.Context, req models.SalespersonRegistration) error
	WeeklyReport(ctx context.Context, kind models.ReportKind) ([]byte, error)
}

// SnapshotArchive lists archived daily closes.
type SnapshotArchive interface {
	RecentSnapshots(ctx context.Context, limit int64) ([]models.DailySnapshot, error)
}

// Deps groups the collaborators of DeskHandler. Archive may be nil.
type Deps struct {
	Guard       Guard
	Backend     Backend
	Store       *inventory.Store
	Search      *search.Engine
	Sales       *sales.Workflow
	Payments    *sales.Payments
	Receipts    *sales.Receipts
	Dashboard   *dashboard.Loader
	Archive     SnapshotArchive
	LoginPage   string
	ReceiptsDir string
}

// DeskHandler exposes the desk's views and actions as JSON.
type DeskHandler struct {
	Deps
	logger *zap.Logger
}

// NewDeskHandler constructs the HTTP handler adapter.
func NewDeskHandler(deps Deps, logger *zap.Logger) *DeskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.LoginPage == "" {
		deps.LoginPage = "login.html"
	}
	if deps.ReceiptsDir == "" {
		deps.ReceiptsDir = "receipts"
	}
	return &DeskHandler{Deps: deps, logger: logger}
}

// RequireRole gates a route on a verified session. An empty role admits any
// signed-in user.
func (h *DeskHandler) RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.Guard.Require(c.Request.Context(), role)
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login persists a backend session.
func (h *DeskHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.Guard.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session and sends the browser to the login page
// without leaving the protected page in history.
func (h *DeskHandler) Logout(c *gin.Context) {
	if err := h.Guard.Logout(c.Request.Context()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusSeeOther, h.LoginPage)
}

// Dashboard loads the widgets of the caller's role.
func (h *DeskHandler) Dashboard(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, h.Deps.Dashboard.Load(c.Request.Context(), user.Role))
}

// Search runs a query immediately over the cached stock. A preset replaces
// the other parameters.
func (h *DeskHandler) Search(c *gin.Context) {
	var (
		q   search.Query
		err error
	)
	if name := c.Query("preset"); name != "" {
		var ok bool
		if q, ok = search.Preset(name); !ok {
			h.respondError(c, models.NewValidationError("preset", fmt.Sprintf("unknown value %q", name)))
			return
		}
	} else if q, err = search.ParseQuery(c.Query("q"), c.Query("filter"), c.Query("sort")); err != nil {
		h.respondError(c, err)
		return
	}
	h.ensureLoaded(c.Request.Context())
	c.JSON(http.StatusOK, h.Deps.Search.Run(q))
}

// ClearSearch resets the search to every item by name.
func (h *DeskHandler) ClearSearch(c *gin.Context) {
	h.ensureLoaded(c.Request.Context())
	c.JSON(http.StatusOK, h.Deps.Search.Run(search.Clear()))
}

// SubmitSearch schedules a debounced query.
func (h *DeskHandler) SubmitSearch(c *gin.Context) {
	var body search.Query
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search payload"})
		return
	}
	q, err := search.ParseQuery(body.Text, string(body.Category), string(body.Sort))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.ensureLoaded(c.Request.Context())
	h.Deps.Search.Submit(q)
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

// LatestSearch returns the last debounced result.
func (h *DeskHandler) LatestSearch(c *gin.Context) {
	res, ok := h.Deps.Search.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Suggest returns live completions.
func (h *DeskHandler) Suggest(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	h.ensureLoaded(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"suggestions": search.Suggest(h.Store.Get().Stock, c.Query("q"), limit)})
}

// GetStock returns one item straight from the backend.
func (h *DeskHandler) GetStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.Backend.GetStock(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "status": inventory.StockStatus(item.Quantity)})
}

// CreateStock adds stock then reloads the inventory.
func (h *DeskHandler) CreateStock(c *gin.Context) {
	in, ok := h.bindStock(c)
	if !ok {
		return
	}
	if err := h.Backend.CreateStock(c.Request.Context(), in); err != nil {
		h.respondError(c, err)
		return
	}
	h.reload(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"message": "Stock added successfully"})
}

// UpdateStock replaces a stock item then reloads the inventory.
func (h *DeskHandler) UpdateStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, ok := h.bindStock(c)
	if !ok {
		return
	}
	if err := h.Backend.UpdateStock(c.Request.Context(), id, in); err != nil {
		h.respondError(c, err)
		return
	}
	h.reload(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Stock updated successfully"})
}

// DeleteStock removes a stock item then reloads the inventory.
func (h *DeskHandler) DeleteStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Backend.DeleteStock(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.reload(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Stock deleted successfully"})
}

type productOption struct {
	ID       int64  `json:"id"`
	Value    string `json:"value"`
	Label    string `json:"label"`
	Quantity int    `json:"quantity"`
}

// SaleProducts lists the items the sale form can offer.
func (h *DeskHandler) SaleProducts(c *gin.Context) {
	h.ensureLoaded(c.Request.Context())
	items := sales.SelectableProducts(h.Store.Get())
	options := make([]productOption, 0, len(items))
	for _, item := range items {
		options = append(options, productOption{
			ID:       item.ID,
			Value:    item.Key().String(),
			Label:    sales.Label(item),
			Quantity: item.Quantity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"products": options})
}

// WeeklySales lists the last seven days of sales.
func (h *DeskHandler) WeeklySales(c *gin.Context) {
	records, err := h.Backend.WeeklySales(c.Request.Context(), stockapi.FetchOptions{NoCache: true})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": records, "count": len(records)})
}

type saleRequest struct {
	StockID       int64                `json:"stock_id"`
	Product       string               `json:"product"`
	CustomerName  string               `json:"customer_name"`
	QuantitySold  int                  `json:"quantity_sold"`
	UnitPrice     decimal.NullDecimal  `json:"unit_price"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentMethod string               `json:"payment_method"`
}

// RecordSale runs the sale workflow.
func (h *DeskHandler) RecordSale(c *gin.Context) {
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale payload"})
		return
	}

	h.ensureLoaded(c.Request.Context())
	if req.StockID == 0 {
		item, err := sales.ResolveProduct(h.Store.Get(), req.Product)
		if err != nil {
			h.respondError(c, err)
			return
		}
		req.StockID = item.ID
	}

	outcome, err := h.Sales.Submit(c.Request.Context(), sales.Form{
		StockID:       req.StockID,
		CustomerName:  req.CustomerName,
		QuantitySold:  req.QuantitySold,
		UnitPrice:     req.UnitPrice,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
	})
	switch {
	case errors.Is(err, sales.ErrReconcileIncomplete):
		c.JSON(http.StatusCreated, gin.H{
			"message": "Sale recorded successfully",
			"sale":    outcome,
			"warning": "sale recorded but the latest stock could not be loaded",
		})
	case err != nil:
		h.respondError(c, err)
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "Sale recorded successfully", "sale": outcome})
	}
}

type paymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// MarkPaid settles a sale and returns the reloaded payment board.
func (h *DeskHandler) MarkPaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_method is required"})
		return
	}

	board, err := h.Payments.MarkPaid(c.Request.Context(), id, req.PaymentMethod)
	if err != nil {
		h.respondError(c, err)
		return
	}
	// The cached sales list still shows the sale as unpaid.
	h.Store.Invalidate()
	c.JSON(http.StatusOK, board)
}

// Receipt streams a sale's PDF receipt.
func (h *DeskHandler) Receipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	pdf, err := h.Receipts.Fetch(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sales.ReceiptFilename(id, timeNow())))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// SaveReceipt stores a sale's receipt in the desk's receipts directory.
func (h *DeskHandler) SaveReceipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	path, err := h.Receipts.Save(c.Request.Context(), id, h.ReceiptsDir)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"path": path})
}

// DailyArchive lists archived daily closes, newest first.
func (h *DeskHandler) DailyArchive(c *gin.Context) {
	if h.Archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "daily archive is not configured"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "7"), 10, 64)
	if err != nil || limit <= 0 {
		h.respondError(c, models.NewValidationError("limit", "must be a positive number"))
		return
	}
	snapshots, err := h.Archive.RecentSnapshots(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// WeeklyReport streams one of the weekly PDF reports.
func (h *DeskHandler) WeeklyReport(c *gin.Context) {
	kind := models.ReportKind(c.Param("kind"))
	pdf, err := h.Backend.WeeklyReport(c.Request.Context(), kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("weekly_%s_report_%s.pdf", kind, timeNow().Format("2006-01-02"))))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// RegisterSalesperson creates a salesperson account on behalf of the caller.
func (h *DeskHandler) RegisterSalesperson(c *gin.Context) {
	var req models.SalespersonRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name, username, email and password are required"})
		return
	}
	req.AdminID = currentUser(c).ID

	if err := h.Backend.RegisterSalesperson(c.Request.Context(), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Salesperson created successfully"})
}

func (h *DeskHandler) bindStock(c *gin.Context) (models.StockInput, bool) {
	var in models.StockInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stock payload"})
		return in, false
	}
	if err := in.Validate(); err != nil {
		h.respondError(c, err)
		return in, false
	}
	return in, true
}

// ensureLoaded performs the first inventory load on demand.
func (h *DeskHandler) ensureLoaded(ctx context.Context) {
	if h.Store.Get().Seq != 0 {
		return
	}
	if err := h.Store.Refresh(ctx); err != nil {
		h.logger.Warn("initial inventory load failed", zap.Error(err))
	}
}

func (h *DeskHandler) reload(ctx context.Context) {
	if err := h.Store.RefreshNoCache(ctx); err != nil {
		h.logger.Warn("inventory reload after stock change failed", zap.Error(err))
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
