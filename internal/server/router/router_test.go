package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository/memory"
	"github.com/mamadbah2/stockledger/internal/server/handlers"
	"github.com/mamadbah2/stockledger/internal/service/importer"
	"github.com/mamadbah2/stockledger/internal/service/ledger"
	"github.com/mamadbah2/stockledger/internal/service/reporting"
)

type fakeSheet struct{ values [][]interface{} }

func (f fakeSheet) ReadRange(context.Context, string) ([][]interface{}, error) { return f.values, nil }

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	store := memory.NewRepository()
	log := zap.NewNop()

	ledgerSvc := ledger.NewService(store, nil, ledger.Options{AllowNegativeStock: true}, log)
	reports := reporting.NewService(store, nil, reporting.Options{LowStockLevel: 10, HighStockLevel: 14}, log)
	imports := importer.NewService(store, nil, 0, log)
	sheet := fakeSheet{values: [][]interface{}{{"SKU", "Quantity"}, {"BOLT-8", float64(3)}}}

	return New(Handlers{
		Inventory: handlers.NewInventoryHandler(ledgerSvc, log),
		Reports:   handlers.NewReportHandler(reports, log),
		Imports:   handlers.NewImportHandler(imports, sheet, 1<<20, log),
	}, "stockledger-test", log)
}

func do(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createBolt(t *testing.T, engine *gin.Engine, stock int64) models.InventoryRecord {
	t.Helper()
	rec := do(t, engine, http.MethodPost, "/api/v1/inventory", map[string]any{
		"sku": "BOLT-8", "name": "Hex bolt", "description": "M8", "category": "fasteners",
		"price": 0.5, "stock": stock, "lowerThan": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.InventoryRecord](t, rec)
}

func TestHealthzAndRequestID(t *testing.T) {
	engine := newEngine(t)

	rec := do(t, engine, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCreateAndFetch(t *testing.T) {
	engine := newEngine(t)
	created := createBolt(t, engine, 12)
	assert.True(t, created.Status)

	rec := do(t, engine, http.MethodGet, "/api/v1/inventory/records/"+created.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/sku/BOLT-8", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hex bolt", decode[models.InventoryRecord](t, rec).Name)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/sku/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/records/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, engine, http.MethodPost, "/api/v1/inventory", map[string]any{
		"sku": "BOLT-8", "name": "dup", "description": "d", "category": "c", "price": 1, "stock": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, engine, http.MethodPost, "/api/v1/inventory", map[string]any{"sku": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "missing required fields")
}

func TestListPagination(t *testing.T) {
	engine := newEngine(t)
	for _, sku := range []string{"A", "B", "C"} {
		rec := do(t, engine, http.MethodPost, "/api/v1/inventory", map[string]any{
			"sku": sku, "name": sku, "description": "d", "category": "c", "price": 1, "stock": 1,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, engine, http.MethodGet, "/api/v1/inventory?category=c", nil)
	assert.Len(t, decode[[]models.InventoryRecord](t, rec), 3)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.Page](t, rec)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, int64(2), page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "C", page.Items[0].SKU)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory?status=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStockMutations(t *testing.T) {
	engine := newEngine(t)
	createBolt(t, engine, 10)

	rec := do(t, engine, http.MethodPut, "/api/v1/inventory/sku/BOLT-8/stock", map[string]any{
		"change": -4, "updatedBy": "ops", "reason": "damaged",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(6), decode[models.InventoryRecord](t, rec).Stock)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/sku/BOLT-8/stock", map[string]any{"updatedBy": "ops", "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/sell", map[string]any{"sku": "BOLT-8", "orderId": "ORD-9", "stockSold": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	sold := decode[models.InventoryRecord](t, rec)
	assert.Equal(t, int64(4), sold.Stock)
	require.Len(t, sold.SoldHistory, 1)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/sell", map[string]any{"sku": "BOLT-8", "orderId": "ORD-9", "stockSold": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/sku/BOLT-8/pending-receipt", map[string]any{
		"quantity": 50, "dueDate": "2024-07-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(50), decode[models.InventoryRecord](t, rec).StockNeedToReceived.Quantity)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/sku/BOLT-8/status", map[string]any{"status": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/sku/BOLT-8/status", map[string]any{"status": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.InventoryRecord](t, rec).Status)
}

func TestProductRequestsAndViews(t *testing.T) {
	engine := newEngine(t)
	createBolt(t, engine, 0)

	rec := do(t, engine, http.MethodGet, "/api/v1/inventory/with-requests", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.InventoryRecord](t, rec))

	rec = do(t, engine, http.MethodPost, "/api/v1/inventory/sku/BOLT-8/requests", map[string]any{"requestBy": "kim"})
	require.Equal(t, http.StatusCreated, rec.Code)
	requestID := decode[models.InventoryRecord](t, rec).ProductRequests[0].ID.Hex()

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/with-requests", nil)
	assert.Len(t, decode[[]models.InventoryRecord](t, rec), 1)
	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/stock-out", nil)
	assert.Len(t, decode[[]models.InventoryRecord](t, rec), 1)
	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/low-stock", nil)
	assert.Len(t, decode[[]models.InventoryRecord](t, rec), 1)
	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/high-stock", nil)
	assert.Empty(t, decode[[]models.InventoryRecord](t, rec))
	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/reorder-candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.InventoryRecord](t, rec))

	rec = do(t, engine, http.MethodDelete, "/api/v1/inventory/sku/BOLT-8/requests/"+requestID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.InventoryRecord](t, rec).ProductRequests)
}

func TestPolicyEndpoints(t *testing.T) {
	engine := newEngine(t)
	created := createBolt(t, engine, 3)

	rec := do(t, engine, http.MethodPut, "/api/v1/inventory/alerts", map[string]any{"sku": "BOLT-8"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/alerts", map[string]any{"sku": "BOLT-8", "higherThan": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, *decode[models.InventoryRecord](t, rec).HigherThan)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/reorder", map[string]any{"sku": "BOLT-8", "reorderPoint": 4, "reorderQuantity": 20})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/records/"+created.ID.Hex(), map[string]any{"name": "Carriage bolt"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Carriage bolt", decode[models.InventoryRecord](t, rec).Name)

	rec = do(t, engine, http.MethodPut, "/api/v1/inventory/deactivate", map[string]any{"skus": []string{"BOLT-8", "GHOST"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["modifiedCount"])

	rec = do(t, engine, http.MethodDelete, "/api/v1/inventory/records/"+created.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, engine, http.MethodDelete, "/api/v1/inventory/records/"+created.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports(t *testing.T) {
	engine := newEngine(t)
	createBolt(t, engine, 10)
	do(t, engine, http.MethodPut, "/api/v1/inventory/sku/BOLT-8/stock", map[string]any{"change": 2, "updatedBy": "ops", "reason": "count"})

	rec := do(t, engine, http.MethodGet, "/api/v1/inventory/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.CategorySummary{{Category: "fasteners", StockTotal: 12}}, decode[[]models.CategorySummary](t, rec))

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/price-summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.PriceSummary](t, rec)
	assert.Equal(t, "6", summary.OverAllStockTotalPrice.String())

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/stock-history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]models.StockHistoryRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Change)
}

func TestImports(t *testing.T) {
	engine := newEngine(t)
	createBolt(t, engine, 10)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("SKU,Quantity\nBOLT-8,5\nBOLT-8,-2\nBOLT-8,lots\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("updatedBy", "warehouse"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import/csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decode[importer.Summary](t, rec)
	assert.Equal(t, 3, summary.RowsProcessed)
	assert.Equal(t, 2, summary.RowsApplied)
	assert.Equal(t, 1, summary.RowsSkipped)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/sku/BOLT-8", nil)
	assert.Equal(t, int64(13), decode[models.InventoryRecord](t, rec).Stock)

	rec = do(t, engine, http.MethodPost, "/api/v1/inventory/import/sheet", map[string]any{"range": "Stock!A:B"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/sku/BOLT-8", nil)
	assert.Equal(t, int64(16), decode[models.InventoryRecord](t, rec).Stock)

	rec = do(t, engine, http.MethodPost, "/api/v1/inventory/import/csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, engine, http.MethodGet, "/api/v1/inventory/import/sample-csv", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sample.csv")
	assert.Contains(t, rec.Body.String(), "SKU,Quantity")
}
