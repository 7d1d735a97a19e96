package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Applier delivers one operation to the remote document store. Any returned
// error is treated uniformly as a failed attempt; the per-attempt timeout is
// owned by the implementation, not by the coordinator.
type Applier interface {
	Apply(ctx context.Context, op *models.Operation) error
}

// ApplierFunc adapts a function to the Applier interface
type ApplierFunc func(ctx context.Context, op *models.Operation) error

// Apply calls f
func (f ApplierFunc) Apply(ctx context.Context, op *models.Operation) error {
	return f(ctx, op)
}

const applyTimeout = 30 * time.Second

// MongoApplier applies operations against MongoDB collections. Documents are
// addressed by _id; conflict handling is last-write-wins.
type MongoApplier struct {
	mongo  *mongo.Database
	logger *logging.SafeLogger
}

// NewMongoApplier creates an applier writing to the given database
func NewMongoApplier(db *mongo.Database, logger *logging.SafeLogger) *MongoApplier {
	return &MongoApplier{
		mongo:  db,
		logger: logger,
	}
}

// Apply maps add/update/delete to InsertOne/UpdateOne/DeleteOne
func (a *MongoApplier) Apply(ctx context.Context, op *models.Operation) error {
	ctx, cancel := context.WithTimeout(ctx, applyTimeout)
	defer cancel()

	switch op.Kind {
	case models.KindAdd:
		return a.applyAdd(ctx, op)
	case models.KindUpdate:
		return a.applyUpdate(ctx, op)
	case models.KindDelete:
		return a.applyDelete(ctx, op)
	default:
		return fmt.Errorf("%w: %q", models.ErrInvalidKind, op.Kind)
	}
}

func (a *MongoApplier) applyAdd(ctx context.Context, op *models.Operation) error {
	doc, err := decodePayload(op.Payload)
	if err != nil {
		return err
	}

	// The operation ID doubles as _id so a retried add that already landed
	// hits the unique index instead of inserting a duplicate.
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = op.ID
	}

	_, err = a.mongo.Collection(op.Collection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Already applied by an earlier attempt whose ack was lost
			a.logger.Debug("duplicate key during add, treating as applied",
				zap.String("operation_id", op.ID),
				zap.String("collection", op.Collection))
			return nil
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

func (a *MongoApplier) applyUpdate(ctx context.Context, op *models.Operation) error {
	doc, err := decodePayload(op.Payload)
	if err != nil {
		return err
	}
	delete(doc, "_id")

	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err = a.mongo.Collection(op.Collection).UpdateOne(ctx, bson.M{"_id": op.DocumentID}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	return nil
}

func (a *MongoApplier) applyDelete(ctx context.Context, op *models.Operation) error {
	// Deleting a missing document is a success; the retry may simply have
	// arrived after an earlier attempt already removed it.
	_, err := a.mongo.Collection(op.Collection).DeleteOne(ctx, bson.M{"_id": op.DocumentID})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

func decodePayload(payload json.RawMessage) (bson.M, error) {
	var doc bson.M
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return doc, nil
}
