package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SetupTestMongoDB connects to TEST_MONGO_URI and returns the client and a
// fresh database name. The test is skipped when the variable is unset. The
// cleanup drops the database and disconnects the client.
func SetupTestMongoDB(t *testing.T, dbNamePrefix string) (*mongo.Client, string, func()) {
	t.Helper()

	mongoURI := os.Getenv("TEST_MONGO_URI")
	if mongoURI == "" {
		t.Skip("TEST_MONGO_URI not set (needs a replica set for transactions)")
	}

	dbName := fmt.Sprintf("%s_%d", dbNamePrefix, time.Now().UnixNano())

	clientOpts := options.Client().ApplyURI(mongoURI)
	clientOpts.SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	clientOpts.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		t.Fatalf("Failed to create MongoDB client: %v", err)
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("Failed to connect to MongoDB (ping failed): %v", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Database(dbName).Drop(ctx); err != nil {
			t.Logf("Warning: Failed to drop database %s: %v", dbName, err)
		}
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Warning: Failed to disconnect MongoDB client: %v", err)
		}
	}

	return client, dbName, cleanup
}
