package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/stockledger/internal/repository"
)

func buildFilter(f repository.Filter) bson.D {
	filter := bson.D{}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	if f.Status != nil {
		filter = append(filter, bson.E{Key: "status", Value: *f.Status})
	}

	stock := bson.D{}
	if f.StockBelow != nil {
		stock = append(stock, bson.E{Key: "$lt", Value: *f.StockBelow})
	}
	if f.StockAbove != nil {
		stock = append(stock, bson.E{Key: "$gt", Value: *f.StockAbove})
	}
	if f.StockEquals != nil {
		stock = append(stock, bson.E{Key: "$eq", Value: *f.StockEquals})
	}
	if len(stock) > 0 {
		filter = append(filter, bson.E{Key: "stock", Value: stock})
	}

	if f.HasRequests {
		filter = append(filter, bson.E{Key: "productRequests.0", Value: bson.D{{Key: "$exists", Value: true}}})
	}
	if len(f.SKUs) > 0 {
		filter = append(filter, bson.E{Key: "sku", Value: bson.D{{Key: "$in", Value: f.SKUs}}})
	}
	return filter
}

func guardFilter(key bson.D, m repository.Mutation) bson.D {
	if m.MinStock == nil {
		return key
	}
	filter := append(bson.D{}, key...)
	return append(filter, bson.E{Key: "stock", Value: bson.D{{Key: "$gte", Value: *m.MinStock}}})
}

func buildUpdate(m repository.Mutation) bson.D {
	update := bson.D{}

	if m.StockDelta != 0 {
		update = append(update, bson.E{Key: "$inc", Value: bson.D{{Key: "stock", Value: m.StockDelta}}})
	}

	push := bson.D{}
	if len(m.AppendHistory) > 0 {
		push = append(push, bson.E{Key: "stockHistory", Value: bson.D{{Key: "$each", Value: m.AppendHistory}}})
	}
	if len(m.AppendSales) > 0 {
		push = append(push, bson.E{Key: "soldHistory", Value: bson.D{{Key: "$each", Value: m.AppendSales}}})
	}
	if len(m.AppendRequests) > 0 {
		push = append(push, bson.E{Key: "productRequests", Value: bson.D{{Key: "$each", Value: m.AppendRequests}}})
	}
	if len(push) > 0 {
		update = append(update, bson.E{Key: "$push", Value: push})
	}

	if m.RemoveRequest != nil {
		update = append(update, bson.E{Key: "$pull", Value: bson.D{
			{Key: "productRequests", Value: bson.D{{Key: "_id", Value: *m.RemoveRequest}}},
		}})
	}

	set := fieldSet(m.Set)
	if !m.UpdatedAt.IsZero() {
		set = append(set, bson.E{Key: "updatedAt", Value: m.UpdatedAt})
	}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}

	return update
}

func fieldSet(s repository.FieldSet) bson.D {
	set := bson.D{}
	add := func(key string, ok bool, value func() any) {
		if ok {
			set = append(set, bson.E{Key: key, Value: value()})
		}
	}

	add("sku", s.SKU != nil, func() any { return *s.SKU })
	add("name", s.Name != nil, func() any { return *s.Name })
	add("description", s.Description != nil, func() any { return *s.Description })
	add("category", s.Category != nil, func() any { return *s.Category })
	add("material", s.Material != nil, func() any { return *s.Material })
	add("weight", s.Weight != nil, func() any { return *s.Weight })
	add("images", s.Images != nil, func() any { return *s.Images })
	add("price", s.Price != nil, func() any { return *s.Price })
	add("status", s.Status != nil, func() any { return *s.Status })
	add("lowerThan", s.LowerThan != nil, func() any { return *s.LowerThan })
	add("higherThan", s.HigherThan != nil, func() any { return *s.HigherThan })
	add("reorderPoint", s.ReorderPoint != nil, func() any { return *s.ReorderPoint })
	add("reorderQuantity", s.ReorderQuantity != nil, func() any { return *s.ReorderQuantity })
	add("stockNeedToReceived", s.PendingReceipt != nil, func() any { return *s.PendingReceipt })

	return set
}

func incrementUpdate(d repository.StockDelta) bson.D {
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "stock", Value: d.Delta}}}}
	if len(d.History) > 0 {
		update = append(update, bson.E{Key: "$push", Value: bson.D{
			{Key: "stockHistory", Value: bson.D{{Key: "$each", Value: d.History}}},
		}})
	}
	return update
}

func statusFilter(ids []primitive.ObjectID, skus []string, status bool) bson.D {
	or := bson.A{}
	if len(ids) > 0 {
		or = append(or, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	}
	if len(skus) > 0 {
		or = append(or, bson.D{{Key: "sku", Value: bson.D{{Key: "$in", Value: skus}}}})
	}
	if len(or) == 0 {
		return nil
	}
	return bson.D{
		{Key: "$or", Value: or},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: status}}},
	}
}

func categoryPipeline() mongo.Pipeline {
	pending := bson.D{{Key: "$ifNull", Value: bson.A{"$stockNeedToReceived.quantity", 0}}}
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "stockTotal", Value: bson.D{{Key: "$sum", Value: "$stock"}}},
			{Key: "pendingTotal", Value: bson.D{{Key: "$sum", Value: pending}}},
			{Key: "stockValue", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$multiply", Value: bson.A{"$stock", "$price"}}}}}},
			{Key: "pendingValue", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$multiply", Value: bson.A{pending, "$price"}}}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
