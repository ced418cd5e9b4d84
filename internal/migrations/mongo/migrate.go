package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitbook/internal/migrations/mongo/validators"
	"fitbook/pkg/logger"
)

const (
	SessionsCollection     = "Sessions"
	ReservationsCollection = "Reservations"
	SessionLocksCollection = "Session_locks"
	ActivityCollection     = "Activity"
)

var (
	SessionsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "instructor_id", Value: 1},
				{Key: "starts_at", Value: 1},
				{Key: "ends_at", Value: 1},
			},
			Options: options.Index().SetName("instructor_schedule"),
		},
		{Keys: bson.D{{Key: "starts_at", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "member_id", Value: 1},
				{Key: "session_id", Value: 1},
			},
			Options: options.Index().SetName("one_seat_per_member").SetUnique(true),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	// Expired leases are also taken over by TryAcquire; the TTL index only
	// keeps the collection small.
	SessionLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("lease_ttl").SetExpireAfterSeconds(0),
		},
	}

	ActivityIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("event_once").SetUnique(true),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
	}
)

type CollectionDefinition struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Definitions() []CollectionDefinition {
	return []CollectionDefinition{
		{Name: SessionsCollection, Indexes: SessionsIndexes, Validator: validators.SessionValidator},
		{Name: ReservationsCollection, Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
		{Name: SessionLocksCollection, Indexes: SessionLocksIndexes, Validator: validators.SessionLockValidator},
		{Name: ActivityCollection, Indexes: ActivityIndexes, Validator: validators.ActivityValidator},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Definitions() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	created, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", created)
	return nil
}
