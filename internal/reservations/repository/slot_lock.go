package repository

import (
	"context"
	"fmt"
	"time"

	reserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/config"
	"slotbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const lockCollectionName = "Slot_locks"

// SlotLockRepository provides advisory locks over bookable slots. The
// unique _id insert is the mutual exclusion primitive; a TTL index on
// expires_at reaps locks abandoned by crashed creators.
type SlotLockRepository interface {
	Acquire(ctx context.Context, slotKey string) (*model.SlotLock, error)
	Release(ctx context.Context, slotKey string) error
}

type mongoSlotLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		cfg:        cfg,
		collection: db.Collection(lockCollectionName),
	}
}

// Acquire inserts the lock document. A duplicate key error means a
// concurrent creation holds the slot and comes back as ErrSlotLocked.
func (r *mongoSlotLockRepository) Acquire(ctx context.Context, slotKey string) (*model.SlotLock, error) {
	now := time.Now().UTC()
	lock := &model.SlotLock{
		ID:        slotKey,
		ExpiresAt: now.Add(r.cfg.SlotLockTTL),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, reserrors.ErrSlotLocked
		}
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	return lock, nil
}

// Release removes an advisory lock
func (r *mongoSlotLockRepository) Release(ctx context.Context, slotKey string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": slotKey})
	return err
}
