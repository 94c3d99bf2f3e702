package importer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository"
	"github.com/mamadbah2/stockledger/internal/repository/memory"
)

type alertSpy struct{ checked []models.InventoryRecord }

func (a *alertSpy) Check(rec models.InventoryRecord) { a.checked = append(a.checked, rec) }

type listenerSpy struct{ calls int }

func (l *listenerSpy) Changed(context.Context) { l.calls++ }

type brokenBulkStore struct {
	repository.Store
}

func (brokenBulkStore) BulkIncrement(context.Context, []repository.StockDelta) (repository.BulkResult, error) {
	return repository.BulkResult{}, errors.New("not primary")
}

type fakeSheet struct {
	values [][]interface{}
	err    error
}

func (f fakeSheet) ReadRange(context.Context, string) ([][]interface{}, error) {
	return f.values, f.err
}

func seed(t *testing.T, store repository.Store, sku string, stock int64) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &models.InventoryRecord{
		SKU:      sku,
		Name:     sku,
		Category: "general",
		Stock:    stock,
		Status:   true,
	}))
}

func csvSource(t *testing.T, body string) RowSource {
	t.Helper()
	src, err := NewCSVSource(strings.NewReader(body))
	require.NoError(t, err)
	return src
}

var importTime = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

func newImporter(store repository.Store, alerts AlertHook) *Service {
	svc := NewService(store, alerts, time.Second, zap.NewNop())
	svc.now = func() time.Time { return importTime }
	return svc
}

func TestImportAccumulatesDeltasPerSKU(t *testing.T) {
	store := memory.NewRepository()
	seed(t, store, "A", 10)
	spy := &alertSpy{}
	svc := newImporter(store, spy)

	summary, err := svc.Import(context.Background(), csvSource(t, "SKU,Quantity\nA,5\nA,-2\n"), "warehouse")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RowsProcessed)
	assert.Equal(t, 2, summary.RowsApplied)
	assert.Equal(t, 0, summary.RowsSkipped)
	assert.Equal(t, int64(1), summary.ModifiedCount)

	rec, err := store.FindBySKU(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(13), rec.Stock)
	require.Len(t, rec.StockHistory, 2)
	assert.Equal(t, int64(5), rec.StockHistory[0].Change)
	assert.Equal(t, int64(-2), rec.StockHistory[1].Change)
	assert.Equal(t, "warehouse", rec.StockHistory[0].UpdatedBy)
	assert.Equal(t, ImportReason, rec.StockHistory[0].Reason)
	assert.Equal(t, importTime, rec.StockHistory[0].Date)

	require.Len(t, spy.checked, 1)
	assert.Equal(t, int64(13), spy.checked[0].Stock)
}

func TestImportSkipsAndReportsBadRows(t *testing.T) {
	store := memory.NewRepository()
	seed(t, store, "A", 1)
	seed(t, store, "B", 1)
	l := &listenerSpy{}
	svc := newImporter(store, nil)
	svc.OnChange(l)

	feed := strings.Join([]string{
		"quantity , sku ",
		"4,A",
		"abc,B",
		"3,",
		",B",
		"2.5,B",
		"7,GHOST",
		"",
		"-1,B",
	}, "\n")

	summary, err := svc.Import(context.Background(), csvSource(t, feed), "ops")
	require.NoError(t, err)

	assert.Equal(t, 7, summary.RowsProcessed)
	assert.Equal(t, 2, summary.RowsApplied)
	assert.Equal(t, 5, summary.RowsSkipped)

	byLine := make(map[int]RowResult)
	for _, r := range summary.Rows {
		byLine[r.Line] = r
	}
	assert.Equal(t, RowApplied, byLine[2].Status)
	assert.Equal(t, RowSkipped, byLine[3].Status)
	assert.Contains(t, byLine[3].Reason, "not an integer")
	assert.Equal(t, "missing SKU", byLine[4].Reason)
	assert.Equal(t, "missing Quantity", byLine[5].Reason)
	assert.Equal(t, RowSkipped, byLine[6].Status)
	assert.Equal(t, "unknown SKU", byLine[7].Reason)
	assert.Equal(t, RowApplied, byLine[9].Status)

	a, err := store.FindBySKU(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.Stock)
	b, err := store.FindBySKU(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Stock)
	assert.Len(t, b.StockHistory, 1)

	assert.Equal(t, 1, l.calls)
}

func TestImportRejectsOutOfRangeQuantities(t *testing.T) {
	store := memory.NewRepository()
	seed(t, store, "A", 0)
	svc := newImporter(store, nil)

	feed := strings.Join([]string{
		"SKU,Quantity",
		"A,99999999999999999999",
		"A,1000000001",
		"A,1000000000",
		"A,1",
		"A,-5",
	}, "\n")

	summary, err := svc.Import(context.Background(), csvSource(t, feed), "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RowsApplied)
	assert.Equal(t, 3, summary.RowsSkipped)
	assert.Contains(t, summary.Rows[0].Reason, "out of range")
	assert.Contains(t, summary.Rows[1].Reason, "out of range")
	assert.Equal(t, RowApplied, summary.Rows[2].Status)
	assert.Equal(t, "net quantity for SKU out of range", summary.Rows[3].Reason)
	assert.Equal(t, RowApplied, summary.Rows[4].Status)

	rec, err := store.FindBySKU(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, models.MaxStockChange-5, rec.Stock)
}

func TestImportWithNothingApplicableSkipsWrite(t *testing.T) {
	store := brokenBulkStore{Store: memory.NewRepository()}
	svc := newImporter(store, nil)

	summary, err := svc.Import(context.Background(), csvSource(t, "SKU,Quantity\nGHOST,1\n"), "ops")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.RowsApplied)
	assert.Equal(t, 1, summary.RowsSkipped)
}

func TestImportBatchFailureIsStorageError(t *testing.T) {
	mem := memory.NewRepository()
	seed(t, mem, "A", 10)
	l := &listenerSpy{}
	svc := newImporter(brokenBulkStore{Store: mem}, nil)
	svc.OnChange(l)

	summary, err := svc.Import(context.Background(), csvSource(t, "SKU,Quantity\nA,5\n"), "ops")
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Zero(t, l.calls)

	rec, err := mem.FindBySKU(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Stock)
}

func TestImportRequiresActor(t *testing.T) {
	svc := newImporter(memory.NewRepository(), nil)
	_, err := svc.Import(context.Background(), csvSource(t, "SKU,Quantity\n"), " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNewCSVSourceRejectsBadHeaders(t *testing.T) {
	for name, body := range map[string]string{
		"empty":            "",
		"missing quantity": "SKU,Qty\nA,1\n",
		"missing sku":      "Item,Quantity\nA,1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVSource(strings.NewReader(body))
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	src, err := NewCSVSource(strings.NewReader("\ufeffSku,QUANTITY,Note\nA,3,extra\n"))
	require.NoError(t, err)
	row, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, Row{Line: 2, SKU: "A", Quantity: "3"}, row)
}

func TestCSVSourceReportsMalformedLines(t *testing.T) {
	src := csvSource(t, "SKU,Quantity\nA,\"1\nB,2\n")
	row, err := src.Next()
	require.NoError(t, err)
	assert.Error(t, row.Err)
}

func TestSheetSource(t *testing.T) {
	store := memory.NewRepository()
	seed(t, store, "A", 0)
	seed(t, store, "B", 0)

	reader := fakeSheet{values: [][]interface{}{
		{"SKU", "Quantity"},
		{"A", float64(12)},
		{},
		{"B", "-3"},
		{"B", 1.5},
	}}
	src, err := NewSheetSource(context.Background(), reader, "Stock!A:B")
	require.NoError(t, err)

	summary, err := newImporter(store, nil).Import(context.Background(), src, "sheet-sync")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.RowsProcessed)
	assert.Equal(t, 2, summary.RowsApplied)
	assert.Equal(t, 5, summary.Rows[2].Line)

	a, err := store.FindBySKU(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(12), a.Stock)

	_, err = NewSheetSource(context.Background(), reader, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = NewSheetSource(context.Background(), fakeSheet{}, "Stock!A:B")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = NewSheetSource(context.Background(), fakeSheet{err: context.DeadlineExceeded}, "Stock!A:B")
	assert.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestSampleCSVIsImportable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SampleCSV(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "SKU,Quantity\n"))

	src, err := NewCSVSource(&buf)
	require.NoError(t, err)
	row, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "SKU-0001", row.SKU)
	assert.Equal(t, "25", row.Quantity)
}
