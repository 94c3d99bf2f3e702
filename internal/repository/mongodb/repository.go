package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/repository"
)

// MongoDBRepository implements repository.Store on a single MongoDB collection.
type MongoDBRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects, pings and ensures the sku unique index.
func NewMongoDBRepository(ctx context.Context, uri, dbName, collName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{
		client: client,
		coll:   client.Database(dbName).Collection(collName),
		logger: logger,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true).SetName("sku_unique")},
		{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category")},
	})
	if err != nil {
		return fmt.Errorf("create inventory indexes: %w", err)
	}
	return nil
}

// FindBySKU loads one record by sku.
func (r *MongoDBRepository) FindBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error) {
	return r.findOne(ctx, bson.D{{Key: "sku", Value: sku}})
}

// FindByID loads one record by id.
func (r *MongoDBRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.InventoryRecord, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoDBRepository) findOne(ctx context.Context, filter bson.D) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	if err := r.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find inventory record: %w", err)
	}
	return &rec, nil
}

// FindAll lists records in insertion order.
func (r *MongoDBRepository) FindAll(ctx context.Context, filter repository.Filter, page *repository.Page) ([]models.InventoryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if page != nil && page.Size > 0 {
		opts.SetSkip(page.Skip()).SetLimit(page.Size)
	}

	cur, err := r.coll.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find inventory records: %w", err)
	}

	out := make([]models.InventoryRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode inventory records: %w", err)
	}
	return out, nil
}

// Count counts records matching filter.
func (r *MongoDBRepository) Count(ctx context.Context, filter repository.Filter) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count inventory records: %w", err)
	}
	return n, nil
}

// Insert stores a new record and assigns its id.
func (r *MongoDBRepository) Insert(ctx context.Context, record *models.InventoryRecord) error {
	normalize(record)
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateSKU
		}
		return fmt.Errorf("insert inventory record: %w", err)
	}
	return nil
}

// UpdateBySKU applies m to the record with the given sku and returns the result.
func (r *MongoDBRepository) UpdateBySKU(ctx context.Context, sku string, m repository.Mutation) (*models.InventoryRecord, error) {
	return r.updateOne(ctx, bson.D{{Key: "sku", Value: sku}}, m)
}

// UpdateByID applies m to the record with the given id and returns the result.
func (r *MongoDBRepository) UpdateByID(ctx context.Context, id primitive.ObjectID, m repository.Mutation) (*models.InventoryRecord, error) {
	return r.updateOne(ctx, bson.D{{Key: "_id", Value: id}}, m)
}

func (r *MongoDBRepository) updateOne(ctx context.Context, key bson.D, m repository.Mutation) (*models.InventoryRecord, error) {
	filter := guardFilter(key, m)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.InventoryRecord
	err := r.coll.FindOneAndUpdate(ctx, filter, buildUpdate(m), opts).Decode(&rec)
	switch {
	case err == nil:
		return &rec, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, repository.ErrDuplicateSKU
	case !errors.Is(err, mongo.ErrNoDocuments):
		return nil, fmt.Errorf("update inventory record: %w", err)
	case m.MinStock == nil:
		return nil, repository.ErrNotFound
	}

	// The guarded filter missed; tell an unknown key from a failed floor.
	n, err := r.coll.CountDocuments(ctx, key, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("check inventory record: %w", err)
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrInsufficientStock
}

// DeleteByID hard-deletes a record.
func (r *MongoDBRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete inventory record: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// SetStatusMany flips status on all matching records in one UpdateMany.
func (r *MongoDBRepository) SetStatusMany(ctx context.Context, ids []primitive.ObjectID, skus []string, status bool) (int64, error) {
	filter := statusFilter(ids, skus, status)
	if filter == nil {
		return 0, nil
	}

	res, err := r.coll.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: status}}}})
	if err != nil {
		return 0, fmt.Errorf("update inventory status: %w", err)
	}
	return res.ModifiedCount, nil
}

// BulkIncrement issues one unordered bulk write of $inc/$push updates keyed by sku.
func (r *MongoDBRepository) BulkIncrement(ctx context.Context, deltas []repository.StockDelta) (repository.BulkResult, error) {
	if len(deltas) == 0 {
		return repository.BulkResult{}, nil
	}

	writes := make([]mongo.WriteModel, 0, len(deltas))
	for _, d := range deltas {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "sku", Value: d.SKU}}).
			SetUpdate(incrementUpdate(d)))
	}

	res, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return repository.BulkResult{}, fmt.Errorf("bulk increment stock: %w", err)
	}

	r.logger.Debug("bulk increment applied",
		zap.Int("operations", len(writes)),
		zap.Int64("matched", res.MatchedCount),
		zap.Int64("modified", res.ModifiedCount))

	return repository.BulkResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

// AggregateByCategory groups records by category server-side.
func (r *MongoDBRepository) AggregateByCategory(ctx context.Context) ([]repository.CategoryAggregate, error) {
	cur, err := r.coll.Aggregate(ctx, categoryPipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate inventory by category: %w", err)
	}

	out := make([]repository.CategoryAggregate, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode category aggregate: %w", err)
	}
	return out, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// normalize replaces nil collections so later $push operations find arrays.
func normalize(rec *models.InventoryRecord) {
	if rec.StockHistory == nil {
		rec.StockHistory = []models.StockChangeEntry{}
	}
	if rec.SoldHistory == nil {
		rec.SoldHistory = []models.SaleEntry{}
	}
	if rec.ProductRequests == nil {
		rec.ProductRequests = []models.ProductRequest{}
	}
}
