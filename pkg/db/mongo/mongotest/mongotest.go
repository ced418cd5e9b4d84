// Package mongotest connects tests to a real MongoDB replica set. Tests that
// use it are skipped unless FITBOOK_TEST_MONGO_URI is set.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	mongoMigration "fitbook/internal/migrations/mongo"
	"fitbook/pkg/client"
	"fitbook/pkg/config"
	"fitbook/pkg/logger"
)

const (
	EnvTestMongoURI   = "FITBOOK_TEST_MONGO_URI"
	ConnectionTimeout = 10 * time.Second
)

// Config returns a default configuration connected to a fresh, migrated
// database. The database is dropped when the test ends.
func Config(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv(EnvTestMongoURI)
	if uri == "" {
		t.Skipf("%s not set, skipping MongoDB test", EnvTestMongoURI)
	}

	cfg := config.Defaults()
	cfg.Log = logger.New(logger.Config{Service: "test", Level: logger.WARN})
	cfg.MongoURI = uri
	cfg.MongoDatabaseName = "fitbook_test_" + strings.ToLower(primitive.NewObjectID().Hex())

	cfg.Client = client.NewClient()
	cfg.Client.SetMongo(cfg.Log, uri, ConnectionTimeout)

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("warning: failed to drop test database: %v", err)
		}
		cfg.GracefulShutdown()
	})
	return cfg
}
