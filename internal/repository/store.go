// Package repository defines the persistence contract consumed by the
// inventory services.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/stockledger/internal/domain/models"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateSKU is returned when a write would break sku uniqueness.
	ErrDuplicateSKU = errors.New("duplicate sku")
	// ErrInsufficientStock is returned when a guarded mutation's stock floor is not met.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Store is the durable keyed storage of inventory records.
type Store interface {
	FindBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.InventoryRecord, error)
	FindAll(ctx context.Context, filter Filter, page *Page) ([]models.InventoryRecord, error)
	Count(ctx context.Context, filter Filter) (int64, error)

	Insert(ctx context.Context, record *models.InventoryRecord) error
	UpdateBySKU(ctx context.Context, sku string, m Mutation) (*models.InventoryRecord, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, m Mutation) (*models.InventoryRecord, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (bool, error)

	// SetStatusMany sets status on every record matching any id or sku and
	// returns the number of records whose status actually changed.
	SetStatusMany(ctx context.Context, ids []primitive.ObjectID, skus []string, status bool) (int64, error)
	// BulkIncrement applies every delta in one multi-record write.
	BulkIncrement(ctx context.Context, deltas []StockDelta) (BulkResult, error)
	// AggregateByCategory groups all records by category.
	AggregateByCategory(ctx context.Context) ([]CategoryAggregate, error)
}

// Filter selects records. Zero-valued fields do not constrain.
type Filter struct {
	Category    string
	Status      *bool
	StockBelow  *int64
	StockAbove  *int64
	StockEquals *int64
	HasRequests bool
	SKUs        []string
}

// Page is a one-based page request.
type Page struct {
	Number int64
	Size   int64
}

// Skip returns the number of records before the page.
func (p Page) Skip() int64 {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Mutation is an atomic change to one record. All parts apply together or not at all.
type Mutation struct {
	StockDelta int64
	// MinStock, when set, requires the current stock to be at least this value.
	MinStock *int64

	AppendHistory  []models.StockChangeEntry
	AppendSales    []models.SaleEntry
	AppendRequests []models.ProductRequest
	RemoveRequest  *primitive.ObjectID

	Set FieldSet

	UpdatedAt time.Time
}

// FieldSet lists fields replaced by a Mutation. Nil pointers are left untouched.
type FieldSet struct {
	SKU             *string
	Name            *string
	Description     *string
	Category        *string
	Material        *string
	Weight          *float64
	Images          *[]string
	Price           *float64
	Status          *bool
	LowerThan       *float64
	HigherThan      *float64
	ReorderPoint    *float64
	ReorderQuantity *float64
	PendingReceipt  *models.PendingReceipt
}

// StockDelta is one sku's share of a bulk increment.
type StockDelta struct {
	SKU     string
	Delta   int64
	History []models.StockChangeEntry
}

// BulkResult reports the outcome of BulkIncrement.
type BulkResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// CategoryAggregate holds raw sums for one category.
type CategoryAggregate struct {
	Category     string  `bson:"_id"`
	StockTotal   int64   `bson:"stockTotal"`
	PendingTotal int64   `bson:"pendingTotal"`
	StockValue   float64 `bson:"stockValue"`
	PendingValue float64 `bson:"pendingValue"`
}
