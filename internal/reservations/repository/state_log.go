package repository

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

const logCollectionName = "State_change_logs"

// StateLogRepository appends to and reads the transition audit trail.
// Rows are append-only; there is deliberately no update or delete.
type StateLogRepository interface {
	Append(ctx context.Context, entry *model.StateChangeLog) error
	ListByReservation(ctx context.Context, reservationID string) ([]*model.StateChangeLog, error)
}

type mongoStateLogRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewStateLogRepository(cfg *config.Config) StateLogRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStateLogRepository{
		cfg:        cfg,
		collection: db.Collection(logCollectionName),
	}
}

func (r *mongoStateLogRepository) Append(ctx context.Context, entry *model.StateChangeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append state change log: %w", err)
	}

	return nil
}

// ListByReservation returns the reservation's audit trail oldest first.
func (r *mongoStateLogRepository) ListByReservation(ctx context.Context, reservationID string) ([]*model.StateChangeLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"reservation_id": reservationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find state change logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.StateChangeLog
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode state change logs: %w", err)
	}

	return entries, nil
}
