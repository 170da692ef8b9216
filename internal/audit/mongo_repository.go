package audit

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection is the collection auth attempts are written to.
const DefaultCollection = "auth_logs"

type mongoRecord struct {
	ID          string  `bson:"_id"`
	Identity    string  `bson:"identity"`
	Intent      string  `bson:"intent"`
	DeviceID    string  `bson:"deviceId"`
	ChallengeID *string `bson:"challengeId"`
	RequestID   string  `bson:"requestId,omitempty"`
	Outcome     string  `bson:"outcome"`
	ErrorKind   string  `bson:"errorKind,omitempty"`
	Timestamp   int64   `bson:"timestamp"`
}

// MongoRepository stores records as documents.
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository builds a repository writing to collection.
func NewMongoRepository(collection *mongo.Collection) *MongoRepository {
	return &MongoRepository{collection: collection}
}

// EnsureIndexes creates the lookup index by identity and time.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "identity", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("identity_timestamp"),
	})
	return err
}

// Append inserts one document.
func (r *MongoRepository) Append(ctx context.Context, rec Record) error {
	_, err := r.collection.InsertOne(ctx, mongoRecord{
		ID:          rec.ID,
		Identity:    rec.Identity,
		Intent:      rec.Intent,
		DeviceID:    rec.DeviceID,
		ChallengeID: rec.ChallengeID,
		RequestID:   rec.RequestID,
		Outcome:     rec.Outcome,
		ErrorKind:   rec.ErrorKind,
		Timestamp:   rec.CreatedAt.UTC().UnixMilli(),
	})
	return err
}
