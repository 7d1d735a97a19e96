package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupApplierTest connects to the MongoDB named by MONGODB_URI and returns
// an applier over a throwaway database. Tests are skipped when the variable
// is unset.
func setupApplierTest(t *testing.T) (*MongoApplier, *mongo.Database) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB integration test: MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database(fmt.Sprintf("applier_test_%d", time.Now().UnixNano()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return NewMongoApplier(db, logging.Logger), db
}

func TestMongoApplier_Add(t *testing.T) {
	applier, db := setupApplierTest(t)
	ctx := context.Background()

	op := models.NewOperation(models.KindAdd, "expenses", "", json.RawMessage(`{"amount":25,"category":"food"}`))
	require.NoError(t, applier.Apply(ctx, op))

	var doc bson.M
	err := db.Collection("expenses").FindOne(ctx, bson.M{"_id": op.ID}).Decode(&doc)
	require.NoError(t, err)
	assert.EqualValues(t, 25, doc["amount"])
	assert.Equal(t, "food", doc["category"])

	// Retrying an add that already landed is not an error
	require.NoError(t, applier.Apply(ctx, op))

	count, err := db.Collection("expenses").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMongoApplier_Update(t *testing.T) {
	applier, db := setupApplierTest(t)
	ctx := context.Background()

	_, err := db.Collection("budgets").InsertOne(ctx, bson.M{"_id": "budget-1", "limit": 100})
	require.NoError(t, err)

	op := models.NewOperation(models.KindUpdate, "budgets", "budget-1", json.RawMessage(`{"limit":250}`))
	require.NoError(t, applier.Apply(ctx, op))

	var doc bson.M
	require.NoError(t, db.Collection("budgets").FindOne(ctx, bson.M{"_id": "budget-1"}).Decode(&doc))
	assert.EqualValues(t, 250, doc["limit"])
}

func TestMongoApplier_Update_UpsertsMissing(t *testing.T) {
	applier, db := setupApplierTest(t)
	ctx := context.Background()

	op := models.NewOperation(models.KindUpdate, "goals", "goal-9", json.RawMessage(`{"target":5000}`))
	require.NoError(t, applier.Apply(ctx, op))

	var doc bson.M
	require.NoError(t, db.Collection("goals").FindOne(ctx, bson.M{"_id": "goal-9"}).Decode(&doc))
	assert.EqualValues(t, 5000, doc["target"])
}

func TestMongoApplier_Delete(t *testing.T) {
	applier, db := setupApplierTest(t)
	ctx := context.Background()

	_, err := db.Collection("expenses").InsertOne(ctx, bson.M{"_id": "exp-1", "amount": 10})
	require.NoError(t, err)

	op := models.NewOperation(models.KindDelete, "expenses", "exp-1", nil)
	require.NoError(t, applier.Apply(ctx, op))

	count, err := db.Collection("expenses").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, count)

	// Deleting an already removed document is a success
	require.NoError(t, applier.Apply(ctx, op))
}

func TestMongoApplier_InvalidPayload(t *testing.T) {
	applier, _ := setupApplierTest(t)

	op := models.NewOperation(models.KindAdd, "expenses", "", json.RawMessage(`not json`))
	err := applier.Apply(context.Background(), op)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode payload")
}
