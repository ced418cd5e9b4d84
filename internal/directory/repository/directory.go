package repository

import (
	"context"
	"errors"
	"fmt"

	"fitbook/pkg/config"
	mongotx "fitbook/pkg/db/mongo"
	"fitbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	UsersCollection      = "Users"
	CategoriesCollection = "Categories"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Directory resolves the users and categories that sessions and reservations
// refer to. Both are owned by an external system and only read here.
type Directory interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
}

type mongoDirectory struct {
	cfg        *config.Config
	users      *mongo.Collection
	categories *mongo.Collection
}

func NewMongoDirectory(cfg *config.Config) Directory {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDirectory{
		cfg:        cfg,
		users:      db.Collection(UsersCollection),
		categories: db.Collection(CategoriesCollection),
	}
}

func (d *mongoDirectory) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := d.findByID(ctx, d.users, id, &user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &user, nil
}

func (d *mongoDirectory) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	if err := d.findByID(ctx, d.categories, id, &category); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category %s: %w", id, err)
	}
	return &category, nil
}

func (d *mongoDirectory) findByID(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	return coll.FindOne(ctx, bson.M{"_id": oid}).Decode(out)
}
