package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategorySummary aggregates unit counts for one category.
type CategorySummary struct {
	Category               string `json:"category"`
	StockTotal             int64  `json:"stockTotal"`
	StockToBeReceivedTotal int64  `json:"stockToBeReceivedTotal"`
}

// CategoryPriceSummary extends CategorySummary with monetary totals.
type CategoryPriceSummary struct {
	CategorySummary
	StockTotalPrice             decimal.Decimal `json:"stockTotalPrice"`
	StockToBeReceivedTotalPrice decimal.Decimal `json:"stockToBeReceivedTotalPrice"`
}

// PriceSummary is the per-category breakdown plus grand totals. The overall
// figures are always the sum of the category rows.
type PriceSummary struct {
	Categories                         []CategoryPriceSummary `json:"categories"`
	OverAllStockTotal                  int64                  `json:"overAllStockTotal"`
	OverAllStockTotalPrice             decimal.Decimal        `json:"overAllStockTotalPrice"`
	OverAllStockToBeReceivedTotal      int64                  `json:"overAllStockToBeReceivedTotal"`
	OverAllStockToBeReceivedTotalPrice decimal.Decimal        `json:"overAllStockToBeReceivedTotalPrice"`
}

// StockHistoryRow is one flattened stock change with its owning record's context.
type StockHistoryRow struct {
	EntryID   string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Status    bool      `json:"status"`
	Change    int64     `json:"change"`
	UpdatedBy string    `json:"updatedBy"`
	Reason    string    `json:"reason"`
	Date      time.Time `json:"date"`
	Images    []string  `json:"images,omitempty"`
	Stock     int64     `json:"stock"`
	SKU       string    `json:"sku"`
}

// Page is a paginated listing envelope.
type Page struct {
	TotalItems  int64             `json:"totalItems"`
	CurrentPage int64             `json:"currentPage"`
	PageSize    int64             `json:"pageSize"`
	TotalPages  int64             `json:"totalPages"`
	Items       []InventoryRecord `json:"items"`
}
