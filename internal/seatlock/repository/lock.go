package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitbook/pkg/config"
	mongotx "fitbook/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Session_locks"
)

var (
	// ErrLockHeld is returned when another owner holds an unexpired lock on the key.
	ErrLockHeld = errors.New("lock is held by another owner")
	// ErrLockLost is returned by Fence once another owner has taken the key over.
	ErrLockLost = errors.New("lock is no longer held by owner")
)

type LockRepository interface {
	// TryAcquire takes the lock for owner if it is free or expired.
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) error
	// Fence writes the lock record inside the caller's transaction, failing
	// with ErrLockLost if owner no longer holds it. Two transactions fencing
	// the same key cannot both commit.
	Fence(ctx context.Context, key, owner string) error
	// Release drops the lock only if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

type mongoLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLockRepository(cfg *config.Config) LockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLockRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// TryAcquire upserts the lock document matching only an expired holder. When a
// live holder exists the filter misses, the upsert collides on _id and the
// duplicate key error is reported as ErrLockHeld.
func (r *mongoLockRepository) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.M{
		"_id":        key,
		"expires_at": bson.M{"$lte": now},
	}
	update := bson.M{"$set": bson.M{
		"owner":      owner,
		"expires_at": now.Add(ttl),
		"created_at": now,
	}}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrLockHeld
		}
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return nil
}

// Fence bumps the fence counter of the lock document. Running inside the
// transaction, the write conflicts with any takeover upsert of the same key,
// so a writer whose lease lapsed either aborts or sees the new owner here.
func (r *mongoLockRepository) Fence(ctx context.Context, key, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": key, "owner": owner},
		bson.M{"$inc": bson.M{"fence": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to fence lock %s: %w", key, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, key)
	}
	return nil
}

func (r *mongoLockRepository) Release(ctx context.Context, key, owner string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
