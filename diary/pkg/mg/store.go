package mg

import (
	"context"
	"fmt"
	"time"

	"glyko/diary/defs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	GlucoseCollection = "glucose"
	InsulinCollection = "insulin"
	CarbsCollection   = "carbs"
)

type GlucoseStore interface {
	WriteGlucose(ctx context.Context, gr *defs.GlucoseReading) (*mongo.UpdateResult, error)
	ReadGlucose(ctx context.Context, start, end time.Time) ([]defs.GlucoseReading, error)
}

type InsulinStore interface {
	WriteInsulin(ctx context.Context, in *defs.Insulin) (*mongo.UpdateResult, error)
	ReadInsulin(ctx context.Context, start, end time.Time) ([]defs.Insulin, error)
}

type CarbStore interface {
	WriteCarbs(ctx context.Context, c *defs.Carb) (*mongo.UpdateResult, error)
	ReadCarbs(ctx context.Context, start, end time.Time) ([]defs.Carb, error)
}

type MongoStore struct {
	Client *mongo.Client
	Logger *zap.Logger

	DBName string
}

func New(ctx context.Context, cfg defs.MongoConfig, dbName string, logger *zap.Logger) (*MongoStore, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		opts = opts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}

	return &MongoStore{
		Client: mongoClient,
		Logger: logger,
		DBName: dbName,
	}, nil
}

// InsertIfNew writes doc only when no document matches filter, so
// repeated imports of overlapping windows stay idempotent.
func (ms *MongoStore) InsertIfNew(ctx context.Context, collection string, filter bson.M, doc interface{}) (*mongo.UpdateResult, error) {
	ms.Logger.Debug(
		"inserting document",
		zap.String("collection", collection),
		zap.Any("filter", filter),
	)

	res, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		UpdateOne(ctx, filter,
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
	if err != nil {
		return nil, fmt.Errorf("unable to insert if new: %w", err)
	}

	return res, err
}

func (ms *MongoStore) Upsert(ctx context.Context, collection string, filter bson.M, doc interface{}) (*mongo.UpdateResult, error) {
	ms.Logger.Debug(
		"upserting document",
		zap.String("collection", collection),
		zap.Any("document", doc),
	)

	res, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		UpdateOne(ctx, filter,
			bson.M{"$set": doc},
			options.Update().SetUpsert(true),
		)
	if err != nil {
		ms.Logger.Debug(
			"unable to upsert document",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return nil, fmt.Errorf("unable to upsert document: %w", err)
	}

	return res, err
}

// getEventsBetween reads [start, end] sorted ascending by time, which
// is what keeps downstream windows order-invariant.
func (ms *MongoStore) getEventsBetween(ctx context.Context, collection string, start, end time.Time, slicePtr interface{}) error {
	ms.Logger.Debug(
		"reading events",
		zap.String("collection", collection),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	findOptions := options.Find()
	findOptions.SetSort(bson.D{primitive.E{Key: "time", Value: 1}})

	cur, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		Find(ctx, bson.M{
			"time": bson.M{
				"$gte": primitive.NewDateTimeFromTime(start),
				"$lte": primitive.NewDateTimeFromTime(end),
			},
		}, findOptions)
	if err != nil {
		ms.Logger.Debug(
			"unable to read events",
			zap.String("collection", collection),
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err),
		)
		return fmt.Errorf("unable to read events: %w", err)
	}

	return cur.All(ctx, slicePtr)
}

func (ms *MongoStore) WriteGlucose(ctx context.Context, gr *defs.GlucoseReading) (*mongo.UpdateResult, error) {
	filter := bson.M{"time": gr.Time}
	return ms.InsertIfNew(ctx, GlucoseCollection, filter, gr)
}

func (ms *MongoStore) ReadGlucose(ctx context.Context, start, end time.Time) ([]defs.GlucoseReading, error) {
	var grs []defs.GlucoseReading
	if err := ms.getEventsBetween(ctx, GlucoseCollection, start, end, &grs); err != nil {
		return nil, fmt.Errorf("unable to read glucose: %w", err)
	}
	return grs, nil
}

func (ms *MongoStore) WriteInsulin(ctx context.Context, in *defs.Insulin) (*mongo.UpdateResult, error) {
	filter := bson.M{}
	if in.ID != nil {
		filter["_id"] = in.ID
	} else {
		filter["time"] = in.Time
	}
	return ms.Upsert(ctx, InsulinCollection, filter, in)
}

func (ms *MongoStore) ReadInsulin(ctx context.Context, start, end time.Time) ([]defs.Insulin, error) {
	var ins []defs.Insulin
	if err := ms.getEventsBetween(ctx, InsulinCollection, start, end, &ins); err != nil {
		return nil, fmt.Errorf("unable to read insulin: %w", err)
	}
	return ins, nil
}

func (ms *MongoStore) WriteCarbs(ctx context.Context, c *defs.Carb) (*mongo.UpdateResult, error) {
	filter := bson.M{}
	if c.ID != nil {
		filter["_id"] = c.ID
	} else {
		filter["time"] = c.Time
	}
	return ms.Upsert(ctx, CarbsCollection, filter, c)
}

func (ms *MongoStore) ReadCarbs(ctx context.Context, start, end time.Time) ([]defs.Carb, error) {
	var carbs []defs.Carb
	if err := ms.getEventsBetween(ctx, CarbsCollection, start, end, &carbs); err != nil {
		return nil, fmt.Errorf("unable to read carbs: %w", err)
	}
	return carbs, nil
}
