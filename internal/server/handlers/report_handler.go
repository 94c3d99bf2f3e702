package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/service/reporting"
)

// ReportHandler serves the read-only views and summaries.
type ReportHandler struct {
	reports *reporting.Service
	logger  *zap.Logger
}

// NewReportHandler constructs the HTTP handler adapter.
func NewReportHandler(reports *reporting.Service, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, logger: logger}
}

func (h *ReportHandler) view(load func(context.Context) ([]models.InventoryRecord, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := load(c.Request.Context())
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

// LowStock lists records below the low stock level.
func (h *ReportHandler) LowStock(c *gin.Context) { h.view(h.reports.LowStock)(c) }

// HighStock lists records above the high stock level.
func (h *ReportHandler) HighStock(c *gin.Context) { h.view(h.reports.HighStock)(c) }

// StockOut lists records with no stock.
func (h *ReportHandler) StockOut(c *gin.Context) { h.view(h.reports.StockOut)(c) }

// RequestedItems lists records with open product requests.
func (h *ReportHandler) RequestedItems(c *gin.Context) { h.view(h.reports.RequestedItems)(c) }

// ReorderCandidates lists active records at or below their reorder point.
func (h *ReportHandler) ReorderCandidates(c *gin.Context) { h.view(h.reports.ReorderCandidates)(c) }

// StockHistory returns the flattened stock history.
func (h *ReportHandler) StockHistory(c *gin.Context) {
	rows, err := h.reports.StockHistoryReport(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// CategorySummary returns unit totals per category.
func (h *ReportHandler) CategorySummary(c *gin.Context) {
	rows, err := h.reports.CategorySummary(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// PriceSummary returns unit and monetary totals per category plus grand totals.
func (h *ReportHandler) PriceSummary(c *gin.Context) {
	summary, err := h.reports.PriceSummary(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
