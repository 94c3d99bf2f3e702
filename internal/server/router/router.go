package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/server/handlers"
)

const requestIDHeader = "X-Request-ID"

// Handlers groups the HTTP adapters mounted by the router.
type Handlers struct {
	Inventory *handlers.InventoryHandler
	Reports   *handlers.ReportHandler
	Imports   *handlers.ImportHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, serviceName string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	inv := r.Group("/api/v1/inventory")
	{
		inv.POST("", h.Inventory.Create)
		inv.GET("", h.Inventory.List)

		inv.GET("/records/:id", h.Inventory.Get)
		inv.PUT("/records/:id", h.Inventory.Update)
		inv.DELETE("/records/:id", h.Inventory.Delete)

		inv.GET("/sku/:sku", h.Inventory.GetBySKU)
		inv.PUT("/sku/:sku/stock", h.Inventory.AdjustStock)
		inv.PUT("/sku/:sku/pending-receipt", h.Inventory.SetPendingReceipt)
		inv.POST("/sku/:sku/requests", h.Inventory.AddProductRequest)
		inv.DELETE("/sku/:sku/requests/:requestId", h.Inventory.RemoveProductRequest)
		inv.PUT("/sku/:sku/status", h.Inventory.SetStatus)

		inv.PUT("/sell", h.Inventory.RecordSale)
		inv.PUT("/alerts", h.Inventory.SetAlertThresholds)
		inv.PUT("/reorder", h.Inventory.SetReorderPolicy)
		inv.PUT("/deactivate", h.Inventory.DeactivateBatch)

		inv.GET("/low-stock", h.Reports.LowStock)
		inv.GET("/high-stock", h.Reports.HighStock)
		inv.GET("/stock-out", h.Reports.StockOut)
		inv.GET("/with-requests", h.Reports.RequestedItems)
		inv.GET("/reorder-candidates", h.Reports.ReorderCandidates)
		inv.GET("/stock-history", h.Reports.StockHistory)
		inv.GET("/summary", h.Reports.CategorySummary)
		inv.GET("/price-summary", h.Reports.PriceSummary)

		inv.POST("/import/csv", h.Imports.ImportCSV)
		inv.POST("/import/sheet", h.Imports.ImportSheet)
		inv.GET("/import/sample-csv", h.Imports.SampleCSV)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
