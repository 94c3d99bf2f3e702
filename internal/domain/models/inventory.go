package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxStockChange bounds the magnitude of a single stock value or delta, which
// keeps running totals far from int64 overflow.
const MaxStockChange int64 = 1_000_000_000

// InStockRange reports whether |v| <= MaxStockChange.
func InStockRange(v int64) bool {
	return v >= -MaxStockChange && v <= MaxStockChange
}

// InventoryRecord is the stock-keeping unit tracked by the ledger. It owns its
// history, sales and request collections.
type InventoryRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SKU         string             `bson:"sku" json:"sku"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Material    string             `bson:"material,omitempty" json:"material,omitempty"`
	Weight      *float64           `bson:"weight,omitempty" json:"weight,omitempty"`
	Images      []string           `bson:"images,omitempty" json:"images,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Stock       int64              `bson:"stock" json:"stock"`
	Status      bool               `bson:"status" json:"status"`

	LowerThan       *float64 `bson:"lowerThan,omitempty" json:"lowerThan,omitempty"`
	HigherThan      *float64 `bson:"higherThan,omitempty" json:"higherThan,omitempty"`
	ReorderPoint    *float64 `bson:"reorderPoint,omitempty" json:"reorderPoint,omitempty"`
	ReorderQuantity *float64 `bson:"reorderQuantity,omitempty" json:"reorderQuantity,omitempty"`

	StockHistory        []StockChangeEntry `bson:"stockHistory" json:"stockHistory"`
	SoldHistory         []SaleEntry        `bson:"soldHistory" json:"soldHistory"`
	StockNeedToReceived *PendingReceipt    `bson:"stockNeedToReceived,omitempty" json:"stockNeedToReceived,omitempty"`
	ProductRequests     []ProductRequest   `bson:"productRequests" json:"productRequests"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// StockChangeEntry records one manual or imported stock delta.
type StockChangeEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Change    int64              `bson:"change" json:"change"`
	UpdatedBy string             `bson:"updatedBy" json:"updatedBy"`
	Reason    string             `bson:"reason" json:"reason"`
	Date      time.Time          `bson:"date" json:"date"`
}

// SaleEntry records stock leaving through an order.
type SaleEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Date      time.Time          `bson:"date" json:"date"`
	OrderID   string             `bson:"orderId" json:"orderId"`
	StockSold int64              `bson:"stockSold" json:"stockSold"`
}

// PendingReceipt is the quantity expected to arrive by DueDate.
type PendingReceipt struct {
	Quantity int64     `bson:"quantity" json:"quantity"`
	DueDate  time.Time `bson:"dueDate" json:"dueDate"`
}

// ProductRequest is a customer or staff request for the item.
type ProductRequest struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestBy   string             `bson:"requestBy" json:"requestBy"`
	RequestedOn time.Time          `bson:"requestedOn" json:"requestedOn"`
}

// PendingQuantity returns the expected receipt quantity or zero.
func (r InventoryRecord) PendingQuantity() int64 {
	if r.StockNeedToReceived == nil {
		return 0
	}
	return r.StockNeedToReceived.Quantity
}
