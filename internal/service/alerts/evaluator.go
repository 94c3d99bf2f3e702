package alerts

import (
	"fmt"
	"strconv"

	"github.com/mamadbah2/stockledger/internal/domain/models"
)

// Evaluate decides which threshold notifications a record's current stock
// calls for. Both thresholds are checked independently; a record whose
// lowerThan exceeds higherThan can fire both.
func Evaluate(rec models.InventoryRecord) []models.Notification {
	var out []models.Notification
	stock := float64(rec.Stock)

	if rec.LowerThan != nil && stock < *rec.LowerThan {
		out = append(out, models.Notification{
			Kind:      models.AlertLowStock,
			SKU:       rec.SKU,
			Stock:     rec.Stock,
			Threshold: *rec.LowerThan,
			Subject:   fmt.Sprintf("Low Stock Alert for SKU: %s", rec.SKU),
			Body: fmt.Sprintf("The stock for SKU %s has fallen below the set threshold of %s. Current stock: %d",
				rec.SKU, formatThreshold(*rec.LowerThan), rec.Stock),
		})
	}

	if rec.HigherThan != nil && stock > *rec.HigherThan {
		out = append(out, models.Notification{
			Kind:      models.AlertHighStock,
			SKU:       rec.SKU,
			Stock:     rec.Stock,
			Threshold: *rec.HigherThan,
			Subject:   fmt.Sprintf("High Stock Alert for SKU: %s", rec.SKU),
			Body: fmt.Sprintf("The stock for SKU %s has exceeded the set threshold of %s. Current stock: %d",
				rec.SKU, formatThreshold(*rec.HigherThan), rec.Stock),
		})
	}

	return out
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
