package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/server/handlers"
)

// New wires the Gin engine with the desk routes and middlewares.
func New(handler *handlers.DeskHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/login", handler.Login)
	api.POST("/logout", handler.Logout)

	desk := api.Group("", handler.RequireRole(""))
	desk.GET("/dashboard", handler.Dashboard)
	desk.GET("/stock/search", handler.Search)
	desk.POST("/stock/search", handler.SubmitSearch)
	desk.DELETE("/stock/search", handler.ClearSearch)
	desk.GET("/stock/search/latest", handler.LatestSearch)
	desk.GET("/stock/suggest", handler.Suggest)
	desk.GET("/stock/:id", handler.GetStock)
	desk.GET("/sales/products", handler.SaleProducts)
	desk.GET("/sales/weekly", handler.WeeklySales)
	desk.POST("/sales", handler.RecordSale)
	desk.PUT("/sales/:id/payment", handler.MarkPaid)
	desk.GET("/sales/:id/receipt", handler.Receipt)
	desk.POST("/sales/:id/receipt/save", handler.SaveReceipt)

	admin := api.Group("", handler.RequireRole(models.RoleAdmin))
	admin.POST("/stock", handler.CreateStock)
	admin.PUT("/stock/:id", handler.UpdateStock)
	admin.DELETE("/stock/:id", handler.DeleteStock)
	admin.POST("/users", handler.RegisterSalesperson)
	admin.GET("/reports/weekly/:kind", handler.WeeklyReport)
	admin.GET("/reports/daily", handler.DailyArchive)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
