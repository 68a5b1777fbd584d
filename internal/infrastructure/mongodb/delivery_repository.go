package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

// terminalStatuses are the stored status values that exclude a record from
// future carrier scans.
var terminalStatuses = []string{
	domain.LocalStatusDelivered, "delivered",
	domain.LocalStatusReturned, "retour", "returned",
	domain.LocalStatusAbandoned, "annulé", "cancelled",
}

// DeliveryRepository persists local delivery records keyed by rowId.
type DeliveryRepository struct {
	collection *mongo.Collection
	metrics    *metrics.Metrics
}

// NewDeliveryRepository creates a delivery repository.
func NewDeliveryRepository(db *mongo.Database, m *metrics.Metrics) *DeliveryRepository {
	repo := &DeliveryRepository{
		collection: db.Collection("deliveries"),
		metrics:    m,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *DeliveryRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "rowId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "deliveryType", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Save upserts a delivery record by rowId.
func (r *DeliveryRepository) Save(ctx context.Context, record *domain.DeliveryRecord) error {
	start := time.Now()
	record.UpdatedAt = time.Now().UTC()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"rowId": record.RowID}
	update := bson.M{"$set": record}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	r.metrics.RecordMongoDBOperation("deliveries", "updateOne", err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to save delivery record: %w", err)
	}
	return nil
}

// FindByRowID returns the record for one row address, or
// domain.ErrDeliveryNotFound.
func (r *DeliveryRepository) FindByRowID(ctx context.Context, rowID string) (*domain.DeliveryRecord, error) {
	start := time.Now()

	var record domain.DeliveryRecord
	err := r.collection.FindOne(ctx, bson.M{"rowId": rowID}).Decode(&record)
	r.metrics.RecordMongoDBOperation("deliveries", "findOne", err == nil || errors.Is(err, mongo.ErrNoDocuments), time.Since(start))

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find delivery record: %w", err)
	}
	return &record, nil
}

// FindPending returns every record whose status is not terminal.
func (r *DeliveryRepository) FindPending(ctx context.Context) ([]*domain.DeliveryRecord, error) {
	start := time.Now()

	filter := bson.M{"status": bson.M{"$nin": terminalStatuses}}
	cursor, err := r.collection.Find(ctx, filter)
	r.metrics.RecordMongoDBOperation("deliveries", "find", err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeRecords(ctx, cursor)
}

// UpdateStatus sets the stored status for one row address.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, rowID, status string) error {
	start := time.Now()

	update := bson.M{"$set": bson.M{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"rowId": rowID}, update)
	r.metrics.RecordMongoDBOperation("deliveries", "updateOne", err == nil, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrDeliveryNotFound
	}
	return nil
}

// List returns records in insertion order for the observability endpoints.
func (r *DeliveryRepository) List(ctx context.Context, limit, offset int) ([]*domain.DeliveryRecord, error) {
	start := time.Now()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	r.metrics.RecordMongoDBOperation("deliveries", "find", err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery records: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeRecords(ctx, cursor)
}

func decodeRecords(ctx context.Context, cursor *mongo.Cursor) ([]*domain.DeliveryRecord, error) {
	var records []*domain.DeliveryRecord
	for cursor.Next(ctx) {
		var record domain.DeliveryRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode delivery record: %w", err)
		}
		records = append(records, &record)
	}
	return records, cursor.Err()
}
