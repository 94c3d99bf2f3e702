package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/service/ledger"
)

// InventoryHandler exposes the ledger commands over HTTP.
type InventoryHandler struct {
	ledger *ledger.Service
	logger *zap.Logger
}

// NewInventoryHandler constructs the HTTP handler adapter.
func NewInventoryHandler(svc *ledger.Service, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{ledger: svc, logger: logger}
}

// Create stores a new inventory record.
func (h *InventoryHandler) Create(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.Create(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// List returns records filtered by category and status. When both page and
// limit are present the result is wrapped in a pagination envelope.
func (h *InventoryHandler) List(c *gin.Context) {
	q := ledger.ListQuery{Category: c.Query("category")}

	if raw, ok := c.GetQuery("status"); ok {
		status, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, h.logger, apperr.Validation("status must be true or false"))
			return
		}
		q.Status = &status
	}

	page, hasPage := c.GetQuery("page")
	limit, hasLimit := c.GetQuery("limit")
	if !hasLimit {
		limit, hasLimit = c.GetQuery("pageSize")
	}

	if !hasPage || !hasLimit {
		recs, err := h.ledger.List(c.Request.Context(), q)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, recs)
		return
	}

	var err error
	if q.Page, err = strconv.ParseInt(page, 10, 64); err != nil {
		writeError(c, h.logger, apperr.Validation("page must be an integer"))
		return
	}
	if q.PageSize, err = strconv.ParseInt(limit, 10, 64); err != nil {
		writeError(c, h.logger, apperr.Validation("limit must be an integer"))
		return
	}

	result, err := h.ledger.ListPage(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get returns a record by id.
func (h *InventoryHandler) Get(c *gin.Context) {
	rec, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetBySKU returns a record by sku.
func (h *InventoryHandler) GetBySKU(c *gin.Context) {
	rec, err := h.ledger.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Update replaces descriptive fields of a record.
func (h *InventoryHandler) Update(c *gin.Context) {
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.UpdateRecord(c.Request.Context(), c.Param("id"), req.patch())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete removes a record.
func (h *InventoryHandler) Delete(c *gin.Context) {
	if err := h.ledger.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "inventory record deleted"})
}

// AdjustStock applies a manual stock delta.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if req.Change == nil {
		writeError(c, h.logger, apperr.Validation("change must be an integer"))
		return
	}

	rec, err := h.ledger.AdjustStock(c.Request.Context(), c.Param("sku"), *req.Change, req.UpdatedBy, req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// RecordSale removes sold units from a record.
func (h *InventoryHandler) RecordSale(c *gin.Context) {
	var req recordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.RecordSale(c.Request.Context(), ledger.SaleInput{
		SKU:       req.SKU,
		Date:      req.Date,
		OrderID:   req.OrderID,
		StockSold: req.StockSold,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetPendingReceipt replaces the expected receipt of a record.
func (h *InventoryHandler) SetPendingReceipt(c *gin.Context) {
	var req pendingReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.SetPendingReceipt(c.Request.Context(), c.Param("sku"), req.Quantity, req.DueDate)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AddProductRequest appends a product request.
func (h *InventoryHandler) AddProductRequest(c *gin.Context) {
	var req productRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.AddProductRequest(c.Request.Context(), c.Param("sku"), req.RequestBy)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// RemoveProductRequest drops a product request by id.
func (h *InventoryHandler) RemoveProductRequest(c *gin.Context) {
	rec, err := h.ledger.RemoveProductRequest(c.Request.Context(), c.Param("sku"), c.Param("requestId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetStatus sets the active flag of a record.
func (h *InventoryHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, apperr.Validation("status must be true or false"))
		return
	}

	rec, err := h.ledger.SetStatus(c.Request.Context(), c.Param("sku"), req.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetAlertThresholds stores lowerThan and/or higherThan for a sku.
func (h *InventoryHandler) SetAlertThresholds(c *gin.Context) {
	var req alertThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.SetAlertThresholds(c.Request.Context(), req.SKU, req.LowerThan, req.HigherThan)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetReorderPolicy stores the reorder point and quantity for a sku.
func (h *InventoryHandler) SetReorderPolicy(c *gin.Context) {
	var req reorderPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rec, err := h.ledger.SetReorderPolicy(c.Request.Context(), req.SKU, req.ReorderPoint, req.ReorderQuantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeactivateBatch sets status=false on the given ids and skus.
func (h *InventoryHandler) DeactivateBatch(c *gin.Context) {
	var req deactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	n, err := h.ledger.DeactivateBatch(c.Request.Context(), req.IDs, req.SKUs)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modifiedCount": n})
}
