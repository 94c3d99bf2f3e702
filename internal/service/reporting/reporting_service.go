package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository"
)

const (
	dateLayout         = "2006-01-02"
	categorySummaryKey = "category-summary"
	priceSummaryKey    = "price-summary"

	invalidateTimeout = 2 * time.Second
)

// Cache stores rendered report payloads between mutations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Options holds the fixed view thresholds.
type Options struct {
	LowStockLevel  int64
	HighStockLevel int64
	StoreTimeout   time.Duration
}

// Service derives read-only views and summaries from the current store contents.
type Service struct {
	store  repository.Store
	cache  Cache
	group  singleflight.Group
	opts   Options
	logger *zap.Logger
	tracer trace.Tracer

	// gen moves on every change. Builds that started before it moved are not cached.
	gen atomic.Uint64
}

// NewService wires a new reporting service instance. cache may be nil.
func NewService(store repository.Store, cache Cache, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Service{
		store:  store,
		cache:  cache,
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("github.com/mamadbah2/stockledger/internal/service/reporting"),
	}
}

// CategorySummary sums stock and pending receipts per category.
func (s *Service) CategorySummary(ctx context.Context) ([]models.CategorySummary, error) {
	return cached(ctx, s, categorySummaryKey, func(ctx context.Context) ([]models.CategorySummary, error) {
		rows, err := s.aggregate(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]models.CategorySummary, 0, len(rows))
		for _, r := range rows {
			out = append(out, models.CategorySummary{
				Category:               r.Category,
				StockTotal:             r.StockTotal,
				StockToBeReceivedTotal: r.PendingTotal,
			})
		}
		return out, nil
	})
}

// PriceSummary extends CategorySummary with monetary totals. Grand totals are
// summed from the category rows.
func (s *Service) PriceSummary(ctx context.Context) (*models.PriceSummary, error) {
	return cached(ctx, s, priceSummaryKey, func(ctx context.Context) (*models.PriceSummary, error) {
		rows, err := s.aggregate(ctx)
		if err != nil {
			return nil, err
		}

		summary := &models.PriceSummary{
			Categories:                         make([]models.CategoryPriceSummary, 0, len(rows)),
			OverAllStockTotalPrice:             decimal.Zero,
			OverAllStockToBeReceivedTotalPrice: decimal.Zero,
		}
		for _, r := range rows {
			row := models.CategoryPriceSummary{
				CategorySummary: models.CategorySummary{
					Category:               r.Category,
					StockTotal:             r.StockTotal,
					StockToBeReceivedTotal: r.PendingTotal,
				},
				StockTotalPrice:             decimal.NewFromFloat(r.StockValue).Round(2),
				StockToBeReceivedTotalPrice: decimal.NewFromFloat(r.PendingValue).Round(2),
			}
			summary.Categories = append(summary.Categories, row)

			summary.OverAllStockTotal += row.StockTotal
			summary.OverAllStockToBeReceivedTotal += row.StockToBeReceivedTotal
			summary.OverAllStockTotalPrice = summary.OverAllStockTotalPrice.Add(row.StockTotalPrice)
			summary.OverAllStockToBeReceivedTotalPrice = summary.OverAllStockToBeReceivedTotalPrice.Add(row.StockToBeReceivedTotalPrice)
		}
		return summary, nil
	})
}

// StockHistoryReport flattens every stock change across records in ascending
// date order. Entries with equal dates keep their encounter order.
func (s *Service) StockHistoryReport(ctx context.Context) ([]models.StockHistoryRow, error) {
	ctx, span := s.tracer.Start(ctx, "reporting.StockHistoryReport")
	defer span.End()

	recs, err := s.find(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}

	rows := make([]models.StockHistoryRow, 0)
	for _, rec := range recs {
		for _, entry := range rec.StockHistory {
			rows = append(rows, models.StockHistoryRow{
				EntryID:   entry.ID.Hex(),
				Name:      rec.Name,
				Category:  rec.Category,
				Status:    rec.Status,
				Change:    entry.Change,
				UpdatedBy: entry.UpdatedBy,
				Reason:    entry.Reason,
				Date:      entry.Date,
				Images:    rec.Images,
				Stock:     rec.Stock,
				SKU:       rec.SKU,
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows, nil
}

// LowStock lists records strictly below the configured low level.
func (s *Service) LowStock(ctx context.Context) ([]models.InventoryRecord, error) {
	level := s.opts.LowStockLevel
	return s.find(ctx, repository.Filter{StockBelow: &level})
}

// HighStock lists records strictly above the configured high level.
func (s *Service) HighStock(ctx context.Context) ([]models.InventoryRecord, error) {
	level := s.opts.HighStockLevel
	return s.find(ctx, repository.Filter{StockAbove: &level})
}

// StockOut lists records whose stock is exactly zero.
func (s *Service) StockOut(ctx context.Context) ([]models.InventoryRecord, error) {
	var zero int64
	return s.find(ctx, repository.Filter{StockEquals: &zero})
}

// RequestedItems lists records with at least one open product request.
func (s *Service) RequestedItems(ctx context.Context) ([]models.InventoryRecord, error) {
	return s.find(ctx, repository.Filter{HasRequests: true})
}

// ReorderCandidates lists active records at or below their reorder point.
func (s *Service) ReorderCandidates(ctx context.Context) ([]models.InventoryRecord, error) {
	active := true
	recs, err := s.find(ctx, repository.Filter{Status: &active})
	if err != nil {
		return nil, err
	}

	out := make([]models.InventoryRecord, 0)
	for _, rec := range recs {
		if rec.ReorderPoint != nil && float64(rec.Stock) <= *rec.ReorderPoint {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Digest renders the daily stock digest.
func (s *Service) Digest(ctx context.Context, now time.Time) (models.Notification, error) {
	categories, err := s.CategorySummary(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("load category summary: %w", err)
	}
	low, err := s.LowStock(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("load low stock view: %w", err)
	}
	reorder, err := s.ReorderCandidates(ctx)
	if err != nil {
		return models.Notification{}, fmt.Errorf("load reorder candidates: %w", err)
	}

	day := now.Format(dateLayout)
	var b strings.Builder
	fmt.Fprintf(&b, "Inventory digest for %s\n\n", day)

	b.WriteString("Stock by category:\n")
	if len(categories) == 0 {
		b.WriteString("  no inventory records yet.\n")
	}
	for _, c := range categories {
		fmt.Fprintf(&b, "  %s: %d on hand, %d to be received\n", c.Category, c.StockTotal, c.StockToBeReceivedTotal)
	}

	fmt.Fprintf(&b, "\nBelow %d units (%d):\n", s.opts.LowStockLevel, len(low))
	for _, rec := range low {
		fmt.Fprintf(&b, "  %s %s: %d\n", rec.SKU, rec.Name, rec.Stock)
	}

	fmt.Fprintf(&b, "\nAt or below reorder point (%d):\n", len(reorder))
	for _, rec := range reorder {
		qty := "n/a"
		if rec.ReorderQuantity != nil {
			qty = decimal.NewFromFloat(*rec.ReorderQuantity).String()
		}
		fmt.Fprintf(&b, "  %s %s: %d (reorder %s)\n", rec.SKU, rec.Name, rec.Stock, qty)
	}

	return models.Notification{
		Kind:    models.AlertDigest,
		Subject: fmt.Sprintf("Inventory digest %s", day),
		Body:    b.String(),
	}, nil
}

// Changed drops cached summaries after a committed mutation. The invalidation
// runs detached from the caller's context.
func (s *Service) Changed(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.gen.Add(1)
	s.group.Forget(categorySummaryKey)
	s.group.Forget(priceSummaryKey)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := s.cache.Invalidate(ctx, categorySummaryKey, priceSummaryKey); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}

func (s *Service) aggregate(ctx context.Context) ([]repository.CategoryAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	rows, err := s.store.AggregateByCategory(ctx)
	if err != nil {
		s.logger.Error("category aggregation failed", zap.Error(err))
		return nil, apperr.Storage("aggregate by category", err)
	}
	return rows, nil
}

func (s *Service) find(ctx context.Context, filter repository.Filter) ([]models.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	recs, err := s.store.FindAll(ctx, filter, nil)
	if err != nil {
		s.logger.Error("report query failed", zap.Error(err))
		return nil, apperr.Storage("find records", err)
	}
	return recs, nil
}

// cached serves key from the cache when present, otherwise builds it once
// across concurrent callers and stores the result. Cache faults degrade to a rebuild.
func cached[T any](ctx context.Context, s *Service, key string, build func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "reporting."+key)
	defer span.End()

	if s.cache == nil {
		return build(ctx)
	}

	var zero T
	if payload, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var out T
		if err := json.Unmarshal(payload, &out); err == nil {
			return out, nil
		}
		s.logger.Warn("discarding undecodable report cache entry", zap.String("key", key))
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		gen := s.gen.Load()
		out, err := build(ctx)
		if err != nil {
			return nil, err
		}
		s.remember(ctx, key, gen, out)
		return out, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// remember caches a payload built at generation gen. A build that raced a change
// is dropped, and a write that landed after a concurrent invalidation is undone.
func (s *Service) remember(ctx context.Context, key string, gen uint64, out any) {
	if s.gen.Load() != gen {
		s.logger.Debug("skipping stale report cache write", zap.String("key", key))
		return
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if s.gen.Load() != gen {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
		defer cancel()
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("failed to drop stale report cache entry", zap.String("key", key), zap.Error(err))
		}
	}
}
