// Package importer applies tabular stock adjustment feeds as one bulk ledger write.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
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

// ImportReason is recorded on every stock history entry written by an import.
const ImportReason = "bulk import"

// RowStatus tags the outcome of one feed row.
type RowStatus string

const (
	RowApplied RowStatus = "applied"
	RowSkipped RowStatus = "skipped"
)

// RowResult is the per-row outcome of an import.
type RowResult struct {
	Line     int       `json:"line"`
	SKU      string    `json:"sku"`
	Quantity int64     `json:"quantity"`
	Status   RowStatus `json:"status"`
	Reason   string    `json:"reason,omitempty"`
}

// Summary reports what an import did.
type Summary struct {
	RowsProcessed int         `json:"rowsProcessed"`
	RowsApplied   int         `json:"rowsApplied"`
	RowsSkipped   int         `json:"rowsSkipped"`
	ModifiedCount int64       `json:"modifiedCount"`
	Rows          []RowResult `json:"rows"`
}

// AlertHook receives every record whose stock an import changed.
type AlertHook interface {
	Check(rec models.InventoryRecord)
}

// ChangeListener is notified after an import committed.
type ChangeListener interface {
	Changed(ctx context.Context)
}

// Service validates feed rows, accumulates deltas per SKU and writes them in one batch.
type Service struct {
	store        repository.Store
	alerts       AlertHook
	listeners    []ChangeListener
	storeTimeout time.Duration
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewService constructs an importer. alerts may be nil.
func NewService(store repository.Store, alerts AlertHook, storeTimeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{
		store:        store,
		alerts:       alerts,
		storeTimeout: storeTimeout,
		logger:       logger,
		tracer:       otel.Tracer("github.com/mamadbah2/stockledger/internal/service/importer"),
		now:          time.Now,
	}
}

// OnChange registers a listener called after a successful batch write.
func (s *Service) OnChange(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// Import drains src and applies every valid row. Rows that fail validation or
// name an unknown SKU are skipped and reported. A failed batch write fails the
// whole import and no summary is returned.
func (s *Service) Import(ctx context.Context, src RowSource, actor string) (summary *Summary, err error) {
	ctx, span := s.tracer.Start(ctx, "importer.Import")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperr.Validation("import actor is required")
	}

	results, err := readRows(src)
	if err != nil {
		return nil, err
	}

	known, err := s.knownSKUs(ctx, results)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	deltas := accumulate(results, known, actor, now)

	summary = &Summary{RowsProcessed: len(results), Rows: results}
	for _, r := range results {
		if r.Status == RowApplied {
			summary.RowsApplied++
		} else {
			summary.RowsSkipped++
		}
	}
	span.SetAttributes(
		attribute.Int("import.rows", summary.RowsProcessed),
		attribute.Int("import.applied", summary.RowsApplied),
	)

	if len(deltas) == 0 {
		s.logger.Info("import had no applicable rows", zap.Int("rows", summary.RowsProcessed))
		return summary, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	res, err := s.store.BulkIncrement(sctx, deltas)
	cancel()
	if err != nil {
		s.logger.Error("bulk stock import failed", zap.Int("skus", len(deltas)), zap.Error(err))
		return nil, apperr.Storage("bulk increment", err)
	}
	summary.ModifiedCount = res.ModifiedCount

	s.logger.Info("stock import applied",
		zap.String("actor", actor),
		zap.Int("rows", summary.RowsProcessed),
		zap.Int("applied", summary.RowsApplied),
		zap.Int("skipped", summary.RowsSkipped),
		zap.Int64("modified", res.ModifiedCount),
	)

	s.afterCommit(ctx, deltas)
	return summary, nil
}

// readRows drains src into tagged results. Quantities are parsed here; SKU
// existence is checked later.
func readRows(src RowSource) ([]RowResult, error) {
	results := make([]RowResult, 0)
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return results, nil
		}
		if err != nil {
			return nil, apperr.Validation("import feed is unreadable: %v", err)
		}

		res := RowResult{Line: row.Line, SKU: row.SKU, Status: RowApplied}
		switch {
		case row.Err != nil:
			res.Status, res.Reason = RowSkipped, fmt.Sprintf("malformed line: %v", row.Err)
		case row.SKU == "":
			res.Status, res.Reason = RowSkipped, "missing SKU"
		case row.Quantity == "":
			res.Status, res.Reason = RowSkipped, "missing Quantity"
		default:
			qty, perr := strconv.ParseInt(row.Quantity, 10, 64)
			switch {
			case errors.Is(perr, strconv.ErrRange), perr == nil && !models.InStockRange(qty):
				res.Status, res.Reason = RowSkipped, fmt.Sprintf("quantity %s is out of range", row.Quantity)
			case perr != nil:
				res.Status, res.Reason = RowSkipped, fmt.Sprintf("quantity %q is not an integer", row.Quantity)
			default:
				res.Quantity = qty
			}
		}
		results = append(results, res)
	}
}

func (s *Service) knownSKUs(ctx context.Context, results []RowResult) (map[string]bool, error) {
	var skus []string
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Status == RowApplied && !seen[r.SKU] {
			seen[r.SKU] = true
			skus = append(skus, r.SKU)
		}
	}
	if len(skus) == 0 {
		return map[string]bool{}, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	recs, err := s.store.FindAll(sctx, repository.Filter{SKUs: skus}, nil)
	if err != nil {
		s.logger.Error("failed to resolve import skus", zap.Error(err))
		return nil, apperr.Storage("resolve import skus", err)
	}

	known := make(map[string]bool, len(recs))
	for _, rec := range recs {
		known[rec.SKU] = true
	}
	return known, nil
}

// accumulate folds applied rows into one delta per SKU in first-seen order.
// Unknown SKUs are downgraded to skipped in place.
func accumulate(results []RowResult, known map[string]bool, actor string, now time.Time) []repository.StockDelta {
	index := make(map[string]int)
	var deltas []repository.StockDelta
	for i := range results {
		r := &results[i]
		if r.Status != RowApplied {
			continue
		}
		if !known[r.SKU] {
			r.Status, r.Reason = RowSkipped, "unknown SKU"
			continue
		}

		pos, ok := index[r.SKU]
		if !ok {
			pos = len(deltas)
			index[r.SKU] = pos
			deltas = append(deltas, repository.StockDelta{SKU: r.SKU})
		}
		if !models.InStockRange(deltas[pos].Delta + r.Quantity) {
			r.Status, r.Reason = RowSkipped, "net quantity for SKU out of range"
			continue
		}
		deltas[pos].Delta += r.Quantity
		deltas[pos].History = append(deltas[pos].History, models.StockChangeEntry{
			ID:        primitive.NewObjectID(),
			Change:    r.Quantity,
			UpdatedBy: actor,
			Reason:    ImportReason,
			Date:      now,
		})
	}
	return deltas
}

// afterCommit hands the updated records to the alert hook and notifies listeners.
// A failed re-read only costs the alerts.
func (s *Service) afterCommit(ctx context.Context, deltas []repository.StockDelta) {
	defer func() {
		for _, l := range s.listeners {
			l.Changed(ctx)
		}
	}()
	if s.alerts == nil {
		return
	}

	skus := make([]string, 0, len(deltas))
	for _, d := range deltas {
		skus = append(skus, d.SKU)
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	recs, err := s.store.FindAll(sctx, repository.Filter{SKUs: skus}, nil)
	if err != nil {
		s.logger.Warn("failed to reload imported records for alerts", zap.Error(err))
		return
	}
	for _, rec := range recs {
		s.alerts.Check(rec)
	}
}
