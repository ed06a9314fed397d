package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/neuroleaf/neuroleaf/detection"
)

// MongoArchive implements Archive on MongoDB.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "neuroleaf",
		Collection: "detection_reports",
	}
}

type mongoReport struct {
	SessionID string            `bson:"session_id"`
	Report    *detection.Report `bson:"report"`
	CreatedAt time.Time         `bson:"created_at"`
}

// NewMongoArchive creates a MongoDB-backed report archive.
func NewMongoArchive(config *MongoConfig) (*MongoArchive, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	archive := &MongoArchive{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}

	if err := archive.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return archive, nil
}

func (a *MongoArchive) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	}
	_, err := a.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Save appends a report to the session's archive.
func (a *MongoArchive) Save(ctx context.Context, sessionID string, report *detection.Report) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	doc := mongoReport{
		SessionID: sessionID,
		Report:    report,
		CreatedAt: report.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

// History returns the session's reports, most recent first.
func (a *MongoArchive) History(ctx context.Context, sessionID string) ([]*detection.Report, error) {
	cursor, err := a.collection.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoReport
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode report history: %w", err)
	}

	out := make([]*detection.Report, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Report)
	}
	return out, nil
}

// Close closes the MongoDB connection.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
