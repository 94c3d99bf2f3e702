package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository"
)

// AlertHook receives a record after a committed stock change.
type AlertHook interface {
	Check(rec models.InventoryRecord)
}

// ChangeListener is notified after any committed mutation.
type ChangeListener interface {
	Changed(ctx context.Context)
}

// Options holds ledger policy.
type Options struct {
	AllowNegativeStock bool
	StoreTimeout       time.Duration
}

// Service owns the mutation rules of inventory records. Quantity changes are
// single atomic store updates; descriptive changes set only the named fields.
type Service struct {
	store     repository.Store
	alerts    AlertHook
	listeners []ChangeListener
	opts      Options
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService constructs a ledger. alerts may be nil.
func NewService(store repository.Store, alerts AlertHook, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Service{
		store:  store,
		alerts: alerts,
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("github.com/mamadbah2/stockledger/internal/service/ledger"),
		now:    time.Now,
	}
}

// OnChange registers a listener called after every committed mutation.
func (s *Service) OnChange(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// Create validates and stores a new record.
func (s *Service) Create(ctx context.Context, in CreateInput) (rec *models.InventoryRecord, err error) {
	ctx, span := s.start(ctx, "Create", in.SKU)
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec = &models.InventoryRecord{
		SKU:             strings.TrimSpace(in.SKU),
		Name:            in.Name,
		Description:     in.Description,
		Category:        in.Category,
		Material:        in.Material,
		Weight:          in.Weight,
		Images:          in.Images,
		Price:           *in.Price,
		Stock:           *in.Stock,
		Status:          in.Status == nil || *in.Status,
		LowerThan:       in.LowerThan,
		HigherThan:      in.HigherThan,
		ReorderPoint:    in.ReorderPoint,
		ReorderQuantity: in.ReorderQuantity,
		StockHistory:    []models.StockChangeEntry{},
		SoldHistory:     []models.SaleEntry{},
		ProductRequests: []models.ProductRequest{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.Insert(sctx, rec); err != nil {
		return nil, s.storeErr("insert record", rec.SKU, err)
	}

	s.logger.Info("inventory record created", zap.String("sku", rec.SKU), zap.String("id", rec.ID.Hex()))
	s.committed(ctx, rec, false)
	return rec, nil
}

// Get loads a record by id.
func (s *Service) Get(ctx context.Context, id string) (*models.InventoryRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.store.FindByID(sctx, oid)
	if err != nil {
		return nil, s.storeErr("find record", id, err)
	}
	return rec, nil
}

// GetBySKU loads a record by sku.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperr.Validation("sku is required")
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.store.FindBySKU(sctx, sku)
	if err != nil {
		return nil, s.storeErr("find record", sku, err)
	}
	return rec, nil
}

// List returns every record matching q, ignoring pagination.
func (s *Service) List(ctx context.Context, q ListQuery) ([]models.InventoryRecord, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	recs, err := s.store.FindAll(sctx, q.filter(), nil)
	if err != nil {
		return nil, s.storeErr("list records", "", err)
	}
	return recs, nil
}

// ListPage returns one page of records matching q.
func (s *Service) ListPage(ctx context.Context, q ListQuery) (*models.Page, error) {
	if q.Page < 1 || q.PageSize < 1 {
		return nil, apperr.Validation("page and pageSize must be positive")
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	filter := q.filter()
	items, err := s.store.FindAll(sctx, filter, &repository.Page{Number: q.Page, Size: q.PageSize})
	if err != nil {
		return nil, s.storeErr("list records", "", err)
	}
	total, err := s.store.Count(sctx, filter)
	if err != nil {
		return nil, s.storeErr("count records", "", err)
	}

	return &models.Page{
		TotalItems:  total,
		CurrentPage: q.Page,
		PageSize:    q.PageSize,
		TotalPages:  (total + q.PageSize - 1) / q.PageSize,
		Items:       items,
	}, nil
}

// AdjustStock applies a manual signed delta and appends a history entry in the same update.
func (s *Service) AdjustStock(ctx context.Context, sku string, change int64, updatedBy, reason string) (rec *models.InventoryRecord, err error) {
	ctx, span := s.start(ctx, "AdjustStock", sku)
	defer func() { endSpan(span, err) }()

	switch {
	case strings.TrimSpace(sku) == "":
		return nil, apperr.Validation("sku is required")
	case strings.TrimSpace(updatedBy) == "":
		return nil, apperr.Validation("updatedBy is required")
	case strings.TrimSpace(reason) == "":
		return nil, apperr.Validation("reason is required")
	case !models.InStockRange(change):
		return nil, apperr.Validation("change must be between -%d and %d", models.MaxStockChange, models.MaxStockChange)
	}

	now := s.now().UTC()
	m := repository.Mutation{
		StockDelta: change,
		MinStock:   s.floorFor(change),
		AppendHistory: []models.StockChangeEntry{{
			ID:        primitive.NewObjectID(),
			Change:    change,
			UpdatedBy: updatedBy,
			Reason:    reason,
			Date:      now,
		}},
		UpdatedAt: now,
	}

	rec, err = s.mutate(ctx, "adjust stock", sku, m)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock adjusted", zap.String("sku", sku), zap.Int64("change", change), zap.Int64("stock", rec.Stock), zap.String("updated_by", updatedBy))
	s.committed(ctx, rec, true)
	return rec, nil
}

// RecordSale removes sold units, appends a sale entry and evaluates alerts on the result.
func (s *Service) RecordSale(ctx context.Context, in SaleInput) (rec *models.InventoryRecord, err error) {
	ctx, span := s.start(ctx, "RecordSale", in.SKU)
	defer func() { endSpan(span, err) }()

	switch {
	case strings.TrimSpace(in.SKU) == "":
		return nil, apperr.Validation("sku is required")
	case strings.TrimSpace(in.OrderID) == "":
		return nil, apperr.Validation("orderId is required")
	case in.StockSold == nil || *in.StockSold < 0:
		return nil, apperr.Validation("stockSold must be a non-negative number")
	case *in.StockSold > models.MaxStockChange:
		return nil, apperr.Validation("stockSold must not exceed %d", models.MaxStockChange)
	}

	now := s.now().UTC()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.UTC()
	}

	sold := *in.StockSold
	m := repository.Mutation{
		StockDelta: -sold,
		MinStock:   s.floorFor(-sold),
		AppendSales: []models.SaleEntry{{
			ID:        primitive.NewObjectID(),
			Date:      date,
			OrderID:   in.OrderID,
			StockSold: sold,
		}},
		UpdatedAt: now,
	}

	rec, err = s.mutate(ctx, "record sale", in.SKU, m)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale recorded", zap.String("sku", in.SKU), zap.String("order_id", in.OrderID), zap.Int64("sold", sold), zap.Int64("stock", rec.Stock))
	s.committed(ctx, rec, true)
	return rec, nil
}

// SetPendingReceipt replaces the expected receipt. Repeating it with the same
// arguments leaves a single identical receipt.
func (s *Service) SetPendingReceipt(ctx context.Context, sku string, quantity *int64, dueDate *time.Time) (*models.InventoryRecord, error) {
	switch {
	case strings.TrimSpace(sku) == "":
		return nil, apperr.Validation("sku is required")
	case quantity == nil || *quantity <= 0:
		return nil, apperr.Validation("quantity must be a positive integer")
	case dueDate == nil || dueDate.IsZero():
		return nil, apperr.Validation("dueDate is required")
	}

	receipt := models.PendingReceipt{Quantity: *quantity, DueDate: dueDate.UTC()}
	return s.setFields(ctx, "set pending receipt", sku, repository.FieldSet{PendingReceipt: &receipt})
}

// AddProductRequest appends a request stamped with the current time.
func (s *Service) AddProductRequest(ctx context.Context, sku, requestedBy string) (*models.InventoryRecord, error) {
	switch {
	case strings.TrimSpace(sku) == "":
		return nil, apperr.Validation("sku is required")
	case strings.TrimSpace(requestedBy) == "":
		return nil, apperr.Validation("requestBy is required")
	}

	now := s.now().UTC()
	rec, err := s.mutate(ctx, "add product request", sku, repository.Mutation{
		AppendRequests: []models.ProductRequest{{
			ID:          primitive.NewObjectID(),
			RequestBy:   requestedBy,
			RequestedOn: now,
		}},
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, rec, false)
	return rec, nil
}

// RemoveProductRequest removes the request with requestID. An unknown id is a no-op.
func (s *Service) RemoveProductRequest(ctx context.Context, sku, requestID string) (*models.InventoryRecord, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperr.Validation("sku is required")
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, apperr.Validation("requestId is required")
	}
	oid, err := primitive.ObjectIDFromHex(requestID)
	if err != nil {
		return nil, apperr.Validation("requestId %q is not a valid identifier", requestID)
	}

	rec, err := s.mutate(ctx, "remove product request", sku, repository.Mutation{
		RemoveRequest: &oid,
		UpdatedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, rec, false)
	return rec, nil
}

// SetStatus sets the active flag.
func (s *Service) SetStatus(ctx context.Context, sku string, active *bool) (*models.InventoryRecord, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperr.Validation("sku is required")
	}
	if active == nil {
		return nil, apperr.Validation("status must be true or false")
	}
	return s.setFields(ctx, "set status", sku, repository.FieldSet{Status: active})
}

// SetAlertThresholds stores the thresholds that are provided; at least one is required.
// An inverted pair (lowerThan > higherThan) is accepted and logged.
func (s *Service) SetAlertThresholds(ctx context.Context, sku string, lowerThan, higherThan *float64) (*models.InventoryRecord, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperr.Validation("sku is required")
	}
	if !validNumber(lowerThan) && !validNumber(higherThan) {
		return nil, apperr.Validation("at least one of lowerThan or higherThan must be a number")
	}
	if (lowerThan != nil && !validNumber(lowerThan)) || (higherThan != nil && !validNumber(higherThan)) {
		return nil, apperr.Validation("thresholds must be finite numbers")
	}

	if lowerThan != nil && higherThan != nil && *lowerThan > *higherThan {
		s.logger.Warn("inverted alert thresholds accepted", zap.String("sku", sku), zap.Float64("lower_than", *lowerThan), zap.Float64("higher_than", *higherThan))
	}

	return s.setFields(ctx, "set alert thresholds", sku, repository.FieldSet{LowerThan: lowerThan, HigherThan: higherThan})
}

// SetReorderPolicy stores both reorder values.
func (s *Service) SetReorderPolicy(ctx context.Context, sku string, reorderPoint, reorderQuantity *float64) (*models.InventoryRecord, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, apperr.Validation("sku is required")
	}
	if !validNumber(reorderPoint) || !validNumber(reorderQuantity) {
		return nil, apperr.Validation("reorderPoint and reorderQuantity must both be numbers")
	}
	return s.setFields(ctx, "set reorder policy", sku, repository.FieldSet{ReorderPoint: reorderPoint, ReorderQuantity: reorderQuantity})
}

// DeactivateBatch sets status=false on every record matching an id or sku and
// returns how many records changed.
func (s *Service) DeactivateBatch(ctx context.Context, ids, skus []string) (int64, error) {
	if len(ids) == 0 && len(skus) == 0 {
		return 0, apperr.Validation("provide either ids or skus")
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := parseID(id)
		if err != nil {
			return 0, err
		}
		oids = append(oids, oid)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	n, err := s.store.SetStatusMany(sctx, oids, skus, false)
	if err != nil {
		return 0, s.storeErr("deactivate records", "", err)
	}

	s.logger.Info("records deactivated", zap.Int("ids", len(oids)), zap.Int("skus", len(skus)), zap.Int64("modified", n))
	if n > 0 {
		s.notifyListeners(ctx)
	}
	return n, nil
}

// UpdateRecord replaces descriptive fields. Stock and the embedded
// collections are owned by the ledger operations and cannot be patched.
func (s *Service) UpdateRecord(ctx context.Context, id string, patch RecordPatch) (*models.InventoryRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.store.UpdateByID(sctx, oid, repository.Mutation{Set: patch.fieldSet(), UpdatedAt: s.now().UTC()})
	if err != nil {
		key := id
		if patch.SKU != nil {
			key = *patch.SKU
		}
		return nil, s.storeErr("update record", key, err)
	}
	s.committed(ctx, rec, false)
	return rec, nil
}

// DeleteRecord hard-deletes a record.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	ok, err := s.store.DeleteByID(sctx, oid)
	if err != nil {
		return s.storeErr("delete record", id, err)
	}
	if !ok {
		return apperr.NotFound("no inventory record with id %s", id)
	}

	s.logger.Info("inventory record deleted", zap.String("id", id))
	s.notifyListeners(ctx)
	return nil
}

func (s *Service) setFields(ctx context.Context, op, sku string, set repository.FieldSet) (*models.InventoryRecord, error) {
	rec, err := s.mutate(ctx, op, sku, repository.Mutation{Set: set, UpdatedAt: s.now().UTC()})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, rec, false)
	return rec, nil
}

func (s *Service) mutate(ctx context.Context, op, sku string, m repository.Mutation) (*models.InventoryRecord, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rec, err := s.store.UpdateBySKU(sctx, sku, m)
	if err != nil {
		return nil, s.storeErr(op, sku, err)
	}
	return rec, nil
}

// floorFor returns the minimum current stock a delta needs when negative stock is disallowed.
func (s *Service) floorFor(delta int64) *int64 {
	if s.opts.AllowNegativeStock || delta >= 0 {
		return nil
	}
	floor := -delta
	return &floor
}

// committed runs post-commit hooks. Alert delivery happens off the request path.
func (s *Service) committed(ctx context.Context, rec *models.InventoryRecord, stockChanged bool) {
	if stockChanged && s.alerts != nil {
		s.alerts.Check(*rec)
	}
	s.notifyListeners(ctx)
}

func (s *Service) notifyListeners(ctx context.Context) {
	for _, l := range s.listeners {
		l.Changed(ctx)
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func (s *Service) storeErr(op, key string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("no inventory record for %s", key)
	case errors.Is(err, repository.ErrDuplicateSKU):
		return apperr.Conflict("sku %s already exists", key)
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.Validation("insufficient stock for sku %s", key)
	}
	s.logger.Error("store operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return apperr.Storage(op, err)
}

func (s *Service) start(ctx context.Context, name, sku string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ledger."+name, trace.WithAttributes(attribute.String("inventory.sku", sku)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func parseID(id string) (primitive.ObjectID, error) {
	if strings.TrimSpace(id) == "" {
		return primitive.NilObjectID, apperr.Validation("id is required")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("id %q is not a valid identifier", id)
	}
	return oid, nil
}

func validNumber(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
