package handlers

import (
	"time"

	"github.com/mamadbah2/stockledger/internal/service/ledger"
)

type createRecordRequest struct {
	SKU             string   `json:"sku"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Material        string   `json:"material"`
	Weight          *float64 `json:"weight"`
	Images          []string `json:"images"`
	Price           *float64 `json:"price"`
	Stock           *int64   `json:"stock"`
	Status          *bool    `json:"status"`
	LowerThan       *float64 `json:"lowerThan"`
	HigherThan      *float64 `json:"higherThan"`
	ReorderPoint    *float64 `json:"reorderPoint"`
	ReorderQuantity *float64 `json:"reorderQuantity"`
}

func (r createRecordRequest) input() ledger.CreateInput {
	return ledger.CreateInput{
		SKU:             r.SKU,
		Name:            r.Name,
		Description:     r.Description,
		Category:        r.Category,
		Material:        r.Material,
		Weight:          r.Weight,
		Images:          r.Images,
		Price:           r.Price,
		Stock:           r.Stock,
		Status:          r.Status,
		LowerThan:       r.LowerThan,
		HigherThan:      r.HigherThan,
		ReorderPoint:    r.ReorderPoint,
		ReorderQuantity: r.ReorderQuantity,
	}
}

type updateRecordRequest struct {
	SKU             *string   `json:"sku"`
	Name            *string   `json:"name"`
	Description     *string   `json:"description"`
	Category        *string   `json:"category"`
	Material        *string   `json:"material"`
	Weight          *float64  `json:"weight"`
	Images          *[]string `json:"images"`
	Price           *float64  `json:"price"`
	Status          *bool     `json:"status"`
	LowerThan       *float64  `json:"lowerThan"`
	HigherThan      *float64  `json:"higherThan"`
	ReorderPoint    *float64  `json:"reorderPoint"`
	ReorderQuantity *float64  `json:"reorderQuantity"`
}

func (r updateRecordRequest) patch() ledger.RecordPatch {
	return ledger.RecordPatch{
		SKU:             r.SKU,
		Name:            r.Name,
		Description:     r.Description,
		Category:        r.Category,
		Material:        r.Material,
		Weight:          r.Weight,
		Images:          r.Images,
		Price:           r.Price,
		Status:          r.Status,
		LowerThan:       r.LowerThan,
		HigherThan:      r.HigherThan,
		ReorderPoint:    r.ReorderPoint,
		ReorderQuantity: r.ReorderQuantity,
	}
}

type adjustStockRequest struct {
	Change    *int64 `json:"change"`
	UpdatedBy string `json:"updatedBy"`
	Reason    string `json:"reason"`
}

type recordSaleRequest struct {
	SKU       string     `json:"sku"`
	Date      *time.Time `json:"date"`
	OrderID   string     `json:"orderId"`
	StockSold *int64     `json:"stockSold"`
}

type pendingReceiptRequest struct {
	Quantity *int64     `json:"quantity"`
	DueDate  *time.Time `json:"dueDate"`
}

type productRequestRequest struct {
	RequestBy string `json:"requestBy"`
}

type statusRequest struct {
	Status *bool `json:"status"`
}

type alertThresholdsRequest struct {
	SKU        string   `json:"sku"`
	LowerThan  *float64 `json:"lowerThan"`
	HigherThan *float64 `json:"higherThan"`
}

type reorderPolicyRequest struct {
	SKU             string   `json:"sku"`
	ReorderPoint    *float64 `json:"reorderPoint"`
	ReorderQuantity *float64 `json:"reorderQuantity"`
}

type deactivateRequest struct {
	IDs  []string `json:"ids"`
	SKUs []string `json:"skus"`
}

type sheetImportRequest struct {
	Range     string `json:"range"`
	UpdatedBy string `json:"updatedBy"`
}
