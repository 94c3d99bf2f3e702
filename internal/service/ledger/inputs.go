package ledger

import (
	"strings"
	"time"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository"
)

// CreateInput carries the fields of a new record. Pointers distinguish
// "absent" from zero.
type CreateInput struct {
	SKU             string
	Name            string
	Description     string
	Category        string
	Material        string
	Weight          *float64
	Images          []string
	Price           *float64
	Stock           *int64
	Status          *bool
	LowerThan       *float64
	HigherThan      *float64
	ReorderPoint    *float64
	ReorderQuantity *float64
}

func (in CreateInput) validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", in.Name},
		{"description", in.Description},
		{"category", in.Category},
		{"sku", in.SKU},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if in.Price == nil {
		missing = append(missing, "price")
	}
	if in.Stock == nil {
		missing = append(missing, "stock")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	if !validNumber(in.Price) || *in.Price < 0 {
		return apperr.Validation("price must be a non-negative number")
	}
	if !models.InStockRange(*in.Stock) {
		return apperr.Validation("stock must be between -%d and %d", models.MaxStockChange, models.MaxStockChange)
	}
	for name, v := range map[string]*float64{
		"weight":          in.Weight,
		"lowerThan":       in.LowerThan,
		"higherThan":      in.HigherThan,
		"reorderPoint":    in.ReorderPoint,
		"reorderQuantity": in.ReorderQuantity,
	} {
		if v != nil && !validNumber(v) {
			return apperr.Validation("%s must be a finite number", name)
		}
	}
	return nil
}

// SaleInput carries one sale.
type SaleInput struct {
	SKU       string
	Date      *time.Time
	OrderID   string
	StockSold *int64
}

// RecordPatch lists descriptive fields to replace on UpdateRecord.
type RecordPatch struct {
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
}

func (p RecordPatch) validate() error {
	for name, v := range map[string]*string{
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return apperr.Validation("%s must not be empty", name)
		}
	}
	if p.Price != nil && (!validNumber(p.Price) || *p.Price < 0) {
		return apperr.Validation("price must be a non-negative number")
	}
	for name, v := range map[string]*float64{
		"weight":          p.Weight,
		"lowerThan":       p.LowerThan,
		"higherThan":      p.HigherThan,
		"reorderPoint":    p.ReorderPoint,
		"reorderQuantity": p.ReorderQuantity,
	} {
		if v != nil && !validNumber(v) {
			return apperr.Validation("%s must be a finite number", name)
		}
	}
	return nil
}

func (p RecordPatch) fieldSet() repository.FieldSet {
	return repository.FieldSet{
		SKU:             p.SKU,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		Material:        p.Material,
		Weight:          p.Weight,
		Images:          p.Images,
		Price:           p.Price,
		Status:          p.Status,
		LowerThan:       p.LowerThan,
		HigherThan:      p.HigherThan,
		ReorderPoint:    p.ReorderPoint,
		ReorderQuantity: p.ReorderQuantity,
	}
}

// ListQuery filters and optionally pages a listing.
type ListQuery struct {
	Category string
	Status   *bool
	Page     int64
	PageSize int64
}

func (q ListQuery) filter() repository.Filter {
	return repository.Filter{Category: q.Category, Status: q.Status}
}
