package repository

import (
	"context"
	"fmt"

	"fitbook/pkg/config"
	mongotx "fitbook/pkg/db/mongo"
	"fitbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Activity"
)

// ActivityRepository stores the audit trail of catalog and admission events.
type ActivityRepository interface {
	// Append records the entry once per event id. Redelivered events are
	// ignored and reported as inserted == false.
	Append(ctx context.Context, a *model.Activity) (inserted bool, err error)
	FindBySession(ctx context.Context, sessionID string, limit int) ([]*model.Activity, error)
}

type mongoActivityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoActivityRepository(cfg *config.Config) ActivityRepository {
	return &mongoActivityRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoActivityRepository) Append(ctx context.Context, a *model.Activity) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"event_id": a.EventID},
		bson.M{"$setOnInsert": bson.M{
			"event_id":    a.EventID,
			"event_type":  a.EventType,
			"session_id":  a.SessionID,
			"member_id":   a.MemberID,
			"occurred_at": a.OccurredAt,
			"recorded_at": a.RecordedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to append activity: %w", err)
	}
	return result.UpsertedCount > 0, nil
}

func (r *mongoActivityRepository) FindBySession(ctx context.Context, sessionID string, limit int) ([]*model.Activity, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*model.Activity, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}
	return entries, nil
}
