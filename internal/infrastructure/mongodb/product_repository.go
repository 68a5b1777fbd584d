package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

// ProductRepository persists catalog products. The stock adjustments are
// single conditional updates: the filter pins the matched document and
// variant (and, for the guarded path, the minimum quantity) so a concurrent
// adjustment can never lose a write.
type ProductRepository struct {
	collection *mongo.Collection
	metrics    *metrics.Metrics
}

// NewProductRepository creates a product repository.
func NewProductRepository(db *mongo.Database, m *metrics.Metrics) *ProductRepository {
	repo := &ProductRepository{
		collection: db.Collection("products"),
		metrics:    m,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *ProductRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// FindByCode returns the product with the exact code, or
// domain.ErrProductNotFound.
func (r *ProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	start := time.Now()

	var doc productDocument
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	r.metrics.RecordMongoDBOperation("products", "findOne", err == nil || errors.Is(err, mongo.ErrNoDocuments), time.Since(start))

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by code: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByNameContains returns products whose name matches the searched name
// by case-insensitive regex containment in either direction: the stored
// name contains the search, or the search contains the stored name.
func (r *ProductRepository) FindByNameContains(ctx context.Context, name string) ([]*domain.Product, error) {
	start := time.Now()

	filter := bson.M{"$or": bson.A{
		bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(name), "$options": "i"}},
		bson.M{"$expr": bson.M{"$regexMatch": bson.M{
			"input":   name,
			"regex":   "$name",
			"options": "i",
		}}},
	}}

	cursor, err := r.collection.Find(ctx, filter)
	r.metrics.RecordMongoDBOperation("products", "find", err == nil, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to search products by name: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.toDomain())
	}
	return products, cursor.Err()
}

// DecrementAllowNegative subtracts qty from the matched variant regardless
// of the resulting sign. Over-sold (negative) stock is a valid state.
func (r *ProductRepository) DecrementAllowNegative(ctx context.Context, productID, variantName string, qty int) error {
	return r.adjust(ctx, productID, bson.M{"name": variantName}, -qty, domain.ErrVariantNotFound)
}

// DecrementGuarded subtracts qty only when the variant holds at least qty
// units. The quantity guard sits in the update filter, so the check and the
// decrement are one atomic operation.
func (r *ProductRepository) DecrementGuarded(ctx context.Context, productID, variantName string, qty int) error {
	return r.adjust(ctx, productID, bson.M{
		"name":     variantName,
		"quantity": bson.M{"$gte": qty},
	}, -qty, domain.ErrInsufficientStock)
}

// Increment adds qty unconditionally.
func (r *ProductRepository) Increment(ctx context.Context, productID, variantName string, qty int) error {
	return r.adjust(ctx, productID, bson.M{"name": variantName}, qty, domain.ErrVariantNotFound)
}

func (r *ProductRepository) adjust(ctx context.Context, productID string, variantMatch bson.M, delta int, noMatchErr error) error {
	start := time.Now()

	filter := bson.M{
		"_id":      toObjectID(productID),
		"variants": bson.M{"$elemMatch": variantMatch},
	}
	update := bson.M{"$inc": bson.M{"variants.$.quantity": delta}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	r.metrics.RecordMongoDBOperation("products", "updateOne", err == nil, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return noMatchErr
	}
	return nil
}

// toObjectID accepts both hex ObjectIDs and plain string IDs so seeded
// catalogs with string keys keep working.
func toObjectID(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

type productDocument struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Code     string             `bson:"code,omitempty"`
	Name     string             `bson:"name"`
	Variants []variantDocument  `bson:"variants"`
}

type variantDocument struct {
	Name     string `bson:"name"`
	Quantity int    `bson:"quantity"`
}

func (d *productDocument) toDomain() *domain.Product {
	variants := make([]domain.Variant, 0, len(d.Variants))
	for _, v := range d.Variants {
		variants = append(variants, domain.Variant{Name: v.Name, Quantity: v.Quantity})
	}
	return &domain.Product{
		ID:       d.ID.Hex(),
		Code:     d.Code,
		Name:     d.Name,
		Variants: variants,
	}
}
