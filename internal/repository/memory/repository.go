// Package memory keeps inventory records in process memory. Every operation
// holds one lock, so each mutation is atomic per record and bulk writes are
// atomic across records.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository"
)

// Repository is an in-memory repository.Store.
type Repository struct {
	mu      sync.RWMutex
	records []*models.InventoryRecord
}

// NewRepository creates an empty store.
func NewRepository() *Repository {
	return &Repository{}
}

var _ repository.Store = (*Repository)(nil)

// FindBySKU returns a copy of the record with the given sku.
func (r *Repository) FindBySKU(_ context.Context, sku string) (*models.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := r.bySKU(sku)
	if rec == nil {
		return nil, repository.ErrNotFound
	}
	return clone(rec), nil
}

// FindByID returns a copy of the record with the given id.
func (r *Repository) FindByID(_ context.Context, id primitive.ObjectID) (*models.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := r.byID(id)
	if rec == nil {
		return nil, repository.ErrNotFound
	}
	return clone(rec), nil
}

// FindAll returns copies of matching records in insertion order, optionally paged.
func (r *Repository) FindAll(_ context.Context, filter repository.Filter, page *repository.Page) ([]models.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.InventoryRecord, 0)
	for _, rec := range r.records {
		if matches(rec, filter) {
			out = append(out, *clone(rec))
		}
	}

	if page == nil || page.Size <= 0 {
		return out, nil
	}

	start := page.Skip()
	if start >= int64(len(out)) {
		return []models.InventoryRecord{}, nil
	}
	end := min(start+page.Size, int64(len(out)))
	return out[start:end], nil
}

// Count returns the number of matching records.
func (r *Repository) Count(_ context.Context, filter repository.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, rec := range r.records {
		if matches(rec, filter) {
			n++
		}
	}
	return n, nil
}

// Insert stores a copy of record and assigns its id.
func (r *Repository) Insert(_ context.Context, record *models.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bySKU(record.SKU) != nil {
		return repository.ErrDuplicateSKU
	}
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	r.records = append(r.records, clone(record))
	return nil
}

// UpdateBySKU applies m to the record with the given sku and returns the result.
func (r *Repository) UpdateBySKU(_ context.Context, sku string, m repository.Mutation) (*models.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.apply(r.bySKU(sku), m)
}

// UpdateByID applies m to the record with the given id and returns the result.
func (r *Repository) UpdateByID(_ context.Context, id primitive.ObjectID, m repository.Mutation) (*models.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.apply(r.byID(id), m)
}

// DeleteByID hard-deletes a record.
func (r *Repository) DeleteByID(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.records {
		if rec.ID == id {
			r.records = slices.Delete(r.records, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

// SetStatusMany flips status on all matching records.
func (r *Repository) SetStatusMany(_ context.Context, ids []primitive.ObjectID, skus []string, status bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var modified int64
	for _, rec := range r.records {
		if !slices.Contains(ids, rec.ID) && !slices.Contains(skus, rec.SKU) {
			continue
		}
		if rec.Status == status {
			continue
		}
		rec.Status = status
		modified++
	}
	return modified, nil
}

// BulkIncrement applies every delta under one lock. Unknown skus are skipped.
func (r *Repository) BulkIncrement(_ context.Context, deltas []repository.StockDelta) (repository.BulkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res repository.BulkResult
	for _, d := range deltas {
		rec := r.bySKU(d.SKU)
		if rec == nil {
			continue
		}
		res.MatchedCount++
		rec.Stock += d.Delta
		rec.StockHistory = append(rec.StockHistory, d.History...)
		if d.Delta != 0 || len(d.History) > 0 {
			res.ModifiedCount++
		}
	}
	return res, nil
}

// AggregateByCategory groups records by category, sorted by category name.
func (r *Repository) AggregateByCategory(_ context.Context) ([]repository.CategoryAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string]*repository.CategoryAggregate)
	for _, rec := range r.records {
		agg, ok := groups[rec.Category]
		if !ok {
			agg = &repository.CategoryAggregate{Category: rec.Category}
			groups[rec.Category] = agg
		}
		pending := rec.PendingQuantity()
		agg.StockTotal += rec.Stock
		agg.PendingTotal += pending
		agg.StockValue += float64(rec.Stock) * rec.Price
		agg.PendingValue += float64(pending) * rec.Price
	}

	out := make([]repository.CategoryAggregate, 0, len(groups))
	for _, agg := range groups {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (r *Repository) apply(rec *models.InventoryRecord, m repository.Mutation) (*models.InventoryRecord, error) {
	if rec == nil {
		return nil, repository.ErrNotFound
	}
	if m.MinStock != nil && rec.Stock < *m.MinStock {
		return nil, repository.ErrInsufficientStock
	}
	if m.Set.SKU != nil && *m.Set.SKU != rec.SKU && r.bySKU(*m.Set.SKU) != nil {
		return nil, repository.ErrDuplicateSKU
	}

	rec.Stock += m.StockDelta
	rec.StockHistory = append(rec.StockHistory, m.AppendHistory...)
	rec.SoldHistory = append(rec.SoldHistory, m.AppendSales...)
	rec.ProductRequests = append(rec.ProductRequests, m.AppendRequests...)
	if m.RemoveRequest != nil {
		rec.ProductRequests = slices.DeleteFunc(rec.ProductRequests, func(p models.ProductRequest) bool {
			return p.ID == *m.RemoveRequest
		})
	}
	setFields(rec, m.Set)
	if !m.UpdatedAt.IsZero() {
		rec.UpdatedAt = m.UpdatedAt
	}

	return clone(rec), nil
}

func setFields(rec *models.InventoryRecord, s repository.FieldSet) {
	if s.SKU != nil {
		rec.SKU = *s.SKU
	}
	if s.Name != nil {
		rec.Name = *s.Name
	}
	if s.Description != nil {
		rec.Description = *s.Description
	}
	if s.Category != nil {
		rec.Category = *s.Category
	}
	if s.Material != nil {
		rec.Material = *s.Material
	}
	if s.Weight != nil {
		rec.Weight = ptr(*s.Weight)
	}
	if s.Images != nil {
		rec.Images = slices.Clone(*s.Images)
	}
	if s.Price != nil {
		rec.Price = *s.Price
	}
	if s.Status != nil {
		rec.Status = *s.Status
	}
	if s.LowerThan != nil {
		rec.LowerThan = ptr(*s.LowerThan)
	}
	if s.HigherThan != nil {
		rec.HigherThan = ptr(*s.HigherThan)
	}
	if s.ReorderPoint != nil {
		rec.ReorderPoint = ptr(*s.ReorderPoint)
	}
	if s.ReorderQuantity != nil {
		rec.ReorderQuantity = ptr(*s.ReorderQuantity)
	}
	if s.PendingReceipt != nil {
		pr := *s.PendingReceipt
		rec.StockNeedToReceived = &pr
	}
}

func matches(rec *models.InventoryRecord, f repository.Filter) bool {
	switch {
	case f.Category != "" && rec.Category != f.Category:
		return false
	case f.Status != nil && rec.Status != *f.Status:
		return false
	case f.StockBelow != nil && rec.Stock >= *f.StockBelow:
		return false
	case f.StockAbove != nil && rec.Stock <= *f.StockAbove:
		return false
	case f.StockEquals != nil && rec.Stock != *f.StockEquals:
		return false
	case f.HasRequests && len(rec.ProductRequests) == 0:
		return false
	case len(f.SKUs) > 0 && !slices.Contains(f.SKUs, rec.SKU):
		return false
	}
	return true
}

func (r *Repository) bySKU(sku string) *models.InventoryRecord {
	for _, rec := range r.records {
		if rec.SKU == sku {
			return rec
		}
	}
	return nil
}

func (r *Repository) byID(id primitive.ObjectID) *models.InventoryRecord {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func clone(rec *models.InventoryRecord) *models.InventoryRecord {
	c := *rec
	c.Images = slices.Clone(rec.Images)
	c.StockHistory = slices.Clone(rec.StockHistory)
	c.SoldHistory = slices.Clone(rec.SoldHistory)
	c.ProductRequests = slices.Clone(rec.ProductRequests)
	if rec.StockNeedToReceived != nil {
		pr := *rec.StockNeedToReceived
		c.StockNeedToReceived = &pr
	}
	for _, p := range []**float64{&c.Weight, &c.LowerThan, &c.HigherThan, &c.ReorderPoint, &c.ReorderQuantity} {
		if *p != nil {
			*p = ptr(**p)
		}
	}
	return &c
}

func ptr[T any](v T) *T {
	return &v
}
