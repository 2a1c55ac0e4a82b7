package catalog

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/forager-sh/forager/internal/config"
	"github.com/forager-sh/forager/internal/types"
)

// Mongo upserts canonical items into a MongoDB collection keyed by
// the canonical ID in _id.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// OpenMongo connects and pings within a bounded window so a dead
// MongoDB fails the run setup instead of the first flush.
func OpenMongo(ctx context.Context, cfg *config.CatalogConfig, logger *slog.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, &types.CatalogError{Sink: "mongo", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, &types.CatalogError{Sink: "mongo", Err: err}
	}
	return &Mongo{
		client: client,
		coll:   client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
		logger: logger.With("component", "catalog", "sink", "mongo"),
	}, nil
}

func (m *Mongo) Name() string { return "mongo" }

func (m *Mongo) Upsert(ctx context.Context, items []types.CanonicalItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(items))
	for _, it := range items {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": it.ID}).
			SetReplacement(it).
			SetUpsert(true))
	}
	opts := options.BulkWrite().SetOrdered(false)
	res, err := m.coll.BulkWrite(ctx, models, opts)
	if err != nil {
		return &types.CatalogError{Sink: "mongo", Err: err}
	}
	m.logger.Debug("bulk upsert", "upserted", res.UpsertedCount, "modified", res.ModifiedCount)
	return nil
}

// Flush is a no-op; BulkWrite is already durable on return.
func (m *Mongo) Flush(context.Context) error { return nil }

func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return &types.CatalogError{Sink: "mongo", Err: err}
	}
	return nil
}
