// Package backendtest provides an in-memory stand-in for the stock backend
// REST API, served over httptest, for exercising the desk end to end.
package backendtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

// Backend is a fake stock backend. All exported methods are safe for
// concurrent use with in-flight requests.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextStockID int64
	nextSaleID  int64
	stock       map[int64]models.StockItem
	sales       map[int64]models.SaleRecord
	sessions    map[string]models.User
	users       []models.User
	hits        map[string]int
	queries     map[string][]map[string]string
	failures    map[string]int
	delays      map[string]time.Duration
	beforeSale  func()
	now         func() time.Time
}

// New starts a fake backend. Callers must Close it.
func New() *Backend {
	gin.SetMode(gin.TestMode)

	b := &Backend{
		nextStockID: 1,
		nextSaleID:  1,
		stock:       make(map[int64]models.StockItem),
		sales:       make(map[int64]models.SaleRecord),
		sessions:    make(map[string]models.User),
		hits:        make(map[string]int),
		queries:     make(map[string][]map[string]string),
		failures:    make(map[string]int),
		delays:      make(map[string]time.Duration),
		now:         func() time.Time { return time.Now().UTC() },
	}
	b.Server = httptest.NewServer(b.routes())
	return b
}

// URL returns the API base URL including the /api prefix.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// Close stops the server.
func (b *Backend) Close() {
	b.Server.Close()
}

// AddStock seeds a stock item and returns it with its assigned id.
func (b *Backend) AddStock(item models.StockItem) models.StockItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	item.ID = b.nextStockID
	b.nextStockID++
	if item.DateAdded.IsZero() {
		item.DateAdded = models.NewTimestamp(b.now().Truncate(time.Second))
	}
	b.stock[item.ID] = item
	return item
}

// SetQuantity overwrites a stock quantity, simulating another desk's write.
func (b *Backend) SetQuantity(id int64, quantity int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item := b.stock[id]
	item.Quantity = quantity
	b.stock[id] = item
}

// Stock returns the backend's current copy of a stock item.
func (b *Backend) Stock(id int64) (models.StockItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.stock[id]
	return item, ok
}

// Sale returns the backend's current copy of a sale.
func (b *Backend) Sale(id int64) (models.SaleRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sale, ok := b.sales[id]
	return sale, ok
}

// AddSession registers a valid session token for user.
func (b *Backend) AddSession(token string, user models.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[token] = user
	b.users = append(b.users, user)
}

// Fail makes the next n requests to path (for example "GET /stock") answer 500.
func (b *Backend) Fail(route string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = n
}

// Delay holds responses for route by d.
func (b *Backend) Delay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

// BeforeSale runs fn right before a sale is applied, under no lock.
func (b *Backend) BeforeSale(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeSale = fn
}

// Hits returns how many requests reached route.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// Queries returns the query parameters seen by route, in arrival order.
func (b *Backend) Queries(route string) []map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]string, len(b.queries[route]))
	copy(out, b.queries[route])
	return out
}

func (b *Backend) routes() http.Handler {
	r := gin.New()
	r.Use(b.track())

	api := r.Group("/api")
	api.POST("/auth/login", b.login)
	api.POST("/auth/verify-session", b.verifySession)
	api.POST("/auth/logout", b.logout)
	api.POST("/auth/register/salesperson", b.registerSalesperson)
	api.GET("/auth/users", b.listUsers)

	api.GET("/stock", b.listStock)
	api.POST("/stock", b.createStock)
	api.GET("/stock/:id", b.getStock)
	api.PUT("/stock/:id", b.updateStock)
	api.DELETE("/stock/:id", b.deleteStock)

	api.GET("/sales", b.listSales(func(models.SaleRecord) bool { return true }))
	api.POST("/sales", b.recordSale)
	api.GET("/sales/daily", b.dailySales)
	api.GET("/sales/weekly", b.listSales(func(s models.SaleRecord) bool {
		return s.SaleDate.After(b.now().Add(-7 * 24 * time.Hour))
	}))
	api.GET("/sales/paid", b.listSales(func(s models.SaleRecord) bool { return s.PaymentStatus == models.PaymentPaid }))
	api.GET("/sales/unpaid", b.listSales(func(s models.SaleRecord) bool { return s.PaymentStatus == models.PaymentUnpaid }))
	api.GET("/sales/payment-summary", b.paymentSummary)
	api.PUT("/sales/:id/payment", b.updatePayment)
	api.GET("/sales/:id/receipt", b.receipt)

	api.GET("/analytics/dashboard-stats", b.dashboardStats)
	api.GET("/analytics/top-selling-products", b.topProducts)
	api.GET("/analytics/customer-analysis", b.customerAnalysis)
	api.GET("/analytics/stock-movement", b.stockMovement)
	api.GET("/analytics/low-stock-alerts", b.lowStockAlerts)

	api.GET("/reports/weekly/:kind", b.weeklyReport)
	return r
}

func (b *Backend) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + trimAPI(c.FullPath())

		b.mu.Lock()
		b.hits[route]++
		query := make(map[string]string)
		for k, v := range c.Request.URL.Query() {
			if len(v) > 0 {
				query[k] = v[0]
			}
		}
		b.queries[route] = append(b.queries[route], query)
		delay := b.delays[route]
		fail := b.failures[route] > 0
		if fail {
			b.failures[route]--
		}
		b.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
			return
		}
		c.Next()
	}
}

func trimAPI(path string) string {
	if len(path) >= 4 && path[:4] == "/api" {
		return path[4:]
	}
	return path
}

func (b *Backend) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Username == body.Username && body.Password == "secret" {
			token := fmt.Sprintf("token-%s-%d", u.Username, len(b.sessions)+1)
			b.sessions[token] = u
			c.JSON(http.StatusOK, gin.H{"session_token": token, "user": u})
			return
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
}

func (b *Backend) verifySession(c *gin.Context) {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SessionToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session token required"})
		return
	}

	b.mu.Lock()
	user, ok := b.sessions[body.SessionToken]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (b *Backend) logout(c *gin.Context) {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SessionToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session token required"})
		return
	}
	b.mu.Lock()
	delete(b.sessions, body.SessionToken)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (b *Backend) registerSalesperson(c *gin.Context) {
	var req models.SalespersonRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "full_name, username, email and password are required"})
		return
	}
	if req.AdminID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Admin ID required to create salesperson"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Username == req.Username {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
			return
		}
	}
	user := models.User{
		ID:        int64(len(b.users) + 100),
		FullName:  req.FullName,
		Username:  req.Username,
		Email:     req.Email,
		Role:      models.RoleSalesperson,
		IsActive:  true,
		CreatedAt: models.NewTimestamp(b.now()),
	}
	b.users = append(b.users, user)
	c.JSON(http.StatusCreated, gin.H{"message": "Salesperson created successfully", "user": user})
}

func (b *Backend) listUsers(c *gin.Context) {
	b.mu.Lock()
	users := append([]models.User(nil), b.users...)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (b *Backend) stockList() []models.StockItem {
	out := make([]models.StockItem, 0, len(b.stock))
	for _, item := range b.stock {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) listStock(c *gin.Context) {
	b.mu.Lock()
	items := b.stockList()
	b.mu.Unlock()
	c.JSON(http.StatusOK, items)
}

func (b *Backend) getStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	item, found := b.stock[id]
	b.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (b *Backend) createStock(c *gin.Context) {
	var in models.StockInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stock payload"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, item := range b.stock {
		if item.ProductName == in.ProductName && item.CompanyName == in.CompanyName {
			item.Quantity += in.Quantity
			if in.UnitPrice.Valid {
				item.UnitPrice = in.UnitPrice
			}
			item.DateAdded = models.NewTimestamp(b.now())
			b.stock[id] = item
			c.JSON(http.StatusCreated, gin.H{"message": "Stock added successfully"})
			return
		}
	}
	item := models.StockItem{
		ID:          b.nextStockID,
		ProductName: in.ProductName,
		CompanyName: in.CompanyName,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		DateAdded:   models.NewTimestamp(b.now()),
	}
	b.nextStockID++
	b.stock[item.ID] = item
	c.JSON(http.StatusCreated, gin.H{"message": "Stock added successfully"})
}

func (b *Backend) updateStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in models.StockInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stock payload"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	item, found := b.stock[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock item not found"})
		return
	}
	item.ProductName = in.ProductName
	item.CompanyName = in.CompanyName
	item.Quantity = in.Quantity
	item.UnitPrice = in.UnitPrice
	b.stock[id] = item
	c.JSON(http.StatusOK, gin.H{"message": "Stock updated successfully"})
}

func (b *Backend) deleteStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.stock[id]; !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock item not found"})
		return
	}
	delete(b.stock, id)
	c.JSON(http.StatusOK, gin.H{"message": "Stock deleted successfully"})
}

func (b *Backend) salesList(keep func(models.SaleRecord) bool) []models.SaleRecord {
	out := make([]models.SaleRecord, 0, len(b.sales))
	for _, s := range b.sales {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) listSales(keep func(models.SaleRecord) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		sales := b.salesList(keep)
		b.mu.Unlock()
		c.JSON(http.StatusOK, sales)
	}
}

func (b *Backend) recordSale(c *gin.Context) {
	var req models.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale payload"})
		return
	}

	b.mu.Lock()
	hook := b.beforeSale
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var item models.StockItem
	found := false
	for _, s := range b.stock {
		if s.ProductName == req.ProductName && s.CompanyName == req.CompanyName {
			item, found = s, true
			break
		}
	}
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product not found in stock"})
		return
	}
	if item.Quantity < req.QuantitySold {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock"})
		return
	}

	amount := models.SaleAmountFor(req.QuantitySold, req.UnitPrice)
	sale := models.SaleRecord{
		ID:            b.nextSaleID,
		ProductName:   req.ProductName,
		CompanyName:   req.CompanyName,
		CustomerName:  req.CustomerName,
		QuantitySold:  req.QuantitySold,
		UnitPrice:     req.UnitPrice,
		SaleAmount:    amount,
		PaymentStatus: req.PaymentStatus,
		SaleDate:      models.NewTimestamp(b.now()),
	}
	if req.PaymentStatus == models.PaymentPaid {
		sale.PaymentMethod = req.PaymentMethod
		sale.PaymentDate = sale.SaleDate
	}
	b.nextSaleID++
	b.sales[sale.ID] = sale

	item.Quantity -= req.QuantitySold
	b.stock[item.ID] = item

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Sale recorded successfully",
		"sale_id":     sale.ID,
		"sale_amount": amount,
	})
}

func (b *Backend) dailySales(c *gin.Context) {
	b.mu.Lock()
	today := b.now().Format("2006-01-02")
	sales := b.salesList(func(s models.SaleRecord) bool { return s.SaleDate.Format("2006-01-02") == today })
	b.mu.Unlock()

	summary := models.DailySalesSummary{TotalSales: len(sales), TotalRevenue: decimal.Zero}
	for _, s := range sales {
		summary.TotalRevenue = summary.TotalRevenue.Add(s.SaleAmount)
		if s.PaymentStatus == models.PaymentPaid {
			summary.PaidSales++
		} else {
			summary.UnpaidSales++
		}
	}
	c.JSON(http.StatusOK, models.DailySales{Sales: sales, Summary: summary})
}

func (b *Backend) paymentSummary(c *gin.Context) {
	b.mu.Lock()
	sales := b.salesList(func(models.SaleRecord) bool { return true })
	b.mu.Unlock()

	summary := models.PaymentSummary{PaidAmount: decimal.Zero, UnpaidAmount: decimal.Zero}
	for _, s := range sales {
		if s.PaymentStatus == models.PaymentPaid {
			summary.PaidAmount = summary.PaidAmount.Add(s.SaleAmount)
			summary.PaidCount++
		} else {
			summary.UnpaidAmount = summary.UnpaidAmount.Add(s.SaleAmount)
			summary.UnpaidCount++
		}
	}
	total := summary.PaidAmount.Add(summary.UnpaidAmount)
	if total.IsPositive() {
		summary.PaymentPercentage = summary.PaidAmount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	c.JSON(http.StatusOK, summary)
}

func (b *Backend) updatePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var update models.PaymentUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment payload"})
		return
	}
	if update.PaymentStatus == models.PaymentPaid && update.PaymentMethod == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment method required for paid sales"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	sale, found := b.sales[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return
	}
	sale.PaymentStatus = update.PaymentStatus
	if update.PaymentStatus == models.PaymentPaid {
		sale.PaymentMethod = update.PaymentMethod
		sale.PaymentDate = models.NewTimestamp(b.now())
	} else {
		sale.PaymentMethod = nil
		sale.PaymentDate = models.Timestamp{}
	}
	b.sales[id] = sale
	c.JSON(http.StatusOK, gin.H{"message": "Payment status updated successfully"})
}

func (b *Backend) receipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	_, found := b.sales[id]
	b.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		return
	}
	c.Data(http.StatusOK, "application/pdf", []byte(fmt.Sprintf("%%PDF-1.4 receipt %d", id)))
}

func (b *Backend) dashboardStats(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var stats models.DashboardStats
	stats.TotalStats.TotalSales = len(b.sales)
	stats.TotalStats.TotalProducts = len(b.stock)
	revenue := decimal.Zero
	for _, s := range b.sales {
		revenue = revenue.Add(s.SaleAmount)
	}
	stats.TotalStats.TotalRevenue = revenue
	for _, item := range b.stock {
		if item.Quantity <= 10 {
			stats.TotalStats.LowStockItems++
		}
		if item.Quantity == 0 {
			stats.TotalStats.OutOfStockItems++
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (b *Backend) topProducts(c *gin.Context) {
	days := queryInt(c, "days", 30)
	c.JSON(http.StatusOK, models.TopProducts{PeriodDays: days})
}

func (b *Backend) customerAnalysis(c *gin.Context) {
	days := queryInt(c, "days", 30)
	c.JSON(http.StatusOK, models.CustomerAnalysis{PeriodDays: days})
}

func (b *Backend) stockMovement(c *gin.Context) {
	days := queryInt(c, "days", 30)
	c.JSON(http.StatusOK, models.StockMovement{PeriodDays: days, AnalysisDate: b.now().Format(models.BackendTimeLayout)})
}

func (b *Backend) lowStockAlerts(c *gin.Context) {
	threshold := queryInt(c, "threshold", 10)

	b.mu.Lock()
	items := b.stockList()
	b.mu.Unlock()

	alerts := make([]models.LowStockAlert, 0)
	for _, item := range items {
		if item.Quantity > threshold {
			continue
		}
		status := "Low Stock"
		level := models.AlertWarning
		switch {
		case item.Quantity == 0:
			status, level = "Out of Stock", models.AlertDanger
		case item.Quantity <= 5:
			status, level = "Critical", models.AlertDanger
		}
		alerts = append(alerts, models.LowStockAlert{
			ID:              item.ID,
			ProductName:     item.ProductName,
			CompanyName:     item.CompanyName,
			CurrentQuantity: item.Quantity,
			Status:          status,
			AlertLevel:      level,
		})
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].CurrentQuantity < alerts[j].CurrentQuantity })
	c.JSON(http.StatusOK, models.LowStockAlerts{Alerts: alerts, TotalAlerts: len(alerts), Threshold: threshold})
}

func (b *Backend) weeklyReport(c *gin.Context) {
	kind := c.Param("kind")
	if kind != "customer" && kind != "date" {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown report"})
		return
	}
	c.Data(http.StatusOK, "application/pdf", []byte("%PDF-1.4 weekly "+kind))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return fallback
}
