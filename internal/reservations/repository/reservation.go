package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "fitbook/internal/reservations/errors"
	"fitbook/pkg/config"
	mongotx "fitbook/pkg/db/mongo"
	"fitbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type ReservationRepository interface {
	// Create fails with ErrDuplicate when the member already holds a seat in the session.
	Create(ctx context.Context, r *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByMemberAndSession(ctx context.Context, memberID, sessionID string) (*model.Reservation, error)
	FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, error)
	FindByMember(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	CountByMember(ctx context.Context, memberID string) (int64, error)
	// Delete and DeleteByMemberAndSession return the removed reservation.
	Delete(ctx context.Context, id string) (*model.Reservation, error)
	DeleteByMemberAndSession(ctx context.Context, memberID, sessionID string) (*model.Reservation, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo, cfg.AdmissionMaxAttempts, cfg.Log),
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, res)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: member %s session %s", reservationserrors.ErrDuplicate, res.MemberID, res.SessionID)
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		res.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID}, id)
}

func (r *mongoReservationRepository) FindByMemberAndSession(ctx context.Context, memberID, sessionID string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, memberSessionFilter(memberID, sessionID), memberID+"/"+sessionID)
}

func (r *mongoReservationRepository) findOne(ctx context.Context, filter bson.M, ref string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationRepository) FindBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{"session_id": sessionID}, limit, offset)
}

func (r *mongoReservationRepository) FindByMember(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{"member_id": memberID}, limit, offset)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer cursor.Close(ctx)

	reservations := make([]*model.Reservation, 0)
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return r.count(ctx, bson.M{"session_id": sessionID})
}

func (r *mongoReservationRepository) CountByMember(ctx context.Context, memberID string) (int64, error) {
	return r.count(ctx, bson.M{"member_id": memberID})
}

func (r *mongoReservationRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) Delete(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}
	return r.deleteOne(ctx, bson.M{"_id": objectID}, id)
}

func (r *mongoReservationRepository) DeleteByMemberAndSession(ctx context.Context, memberID, sessionID string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.deleteOne(ctx, memberSessionFilter(memberID, sessionID), memberID+"/"+sessionID)
}

func (r *mongoReservationRepository) deleteOne(ctx context.Context, filter bson.M, ref string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.collection.FindOneAndDelete(ctx, filter).Decode(&res)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to delete reservation: %w", err)
	}
	return &res, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func memberSessionFilter(memberID, sessionID string) bson.M {
	return bson.M{"member_id": memberID, "session_id": sessionID}
}
