package points

import (
	"context"
	"fmt"
	"time"

	"slotbook/pkg/config"
	"slotbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Point_ledger"

// LedgerRepository appends point adjustments. A unique index on
// (event_id, kind) makes replayed events no-ops, which is what lets
// the reactor consume at-least-once delivery safely.
type LedgerRepository interface {
	Append(ctx context.Context, entry *model.LedgerEntry) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error)
	BalanceDelta(ctx context.Context, userID string) (int64, error)
}

type mongoLedgerRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewLedgerRepository(cfg *config.Config) LedgerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLedgerRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// Append inserts the entry. Returns false when the (event_id, kind)
// pair was already applied.
func (r *mongoLedgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return true, nil
}

func (r *mongoLedgerRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, nil
}

// BalanceDelta sums the user's adjustments recorded by this ledger.
func (r *mongoLedgerRepository) BalanceDelta(ctx context.Context, userID string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$points"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate ledger: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode ledger aggregate: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}
