package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/tidepool-org/glucose-alerts/readings"
)

const (
	ManualReadingsCollectionName = "glucoseReadings"
	EntriesCollectionName        = "glucoseEntries"

	ManualSourceName = "reading"
	EntrySourceName  = "entry"
)

// document is the stored shape shared by both reading collections
type document struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	UserId         string             `bson:"userId"`
	EncryptedValue string             `bson:"encryptedValue"`
	RecordedAt     time.Time          `bson:"recordedAt"`
	Backfilled     bool               `bson:"backfilled,omitempty"`
}

type SourceResult struct {
	fx.Out

	Source readings.Source `group:"readingSources"`
}

type source struct {
	name       string
	collection *mongo.Collection
	// filter is merged into every selector
	filter bson.M
}

// NewManualSource lists glucose readings entered by the patient or imported from meters.
func NewManualSource(db *mongo.Database, lifecycle fx.Lifecycle) SourceResult {
	return newSource(ManualSourceName, db.Collection(ManualReadingsCollectionName), bson.M{}, lifecycle)
}

// NewEntrySource lists CGM entries. Entries backfilled from the live sensor stream are
// excluded because the live stream already reports them.
func NewEntrySource(db *mongo.Database, lifecycle fx.Lifecycle) SourceResult {
	return newSource(EntrySourceName, db.Collection(EntriesCollectionName), bson.M{"backfilled": bson.M{"$ne": true}}, lifecycle)
}

func newSource(name string, collection *mongo.Collection, filter bson.M, lifecycle fx.Lifecycle) SourceResult {
	s := &source{
		name:       name,
		collection: collection,
		filter:     filter,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Initialize(ctx)
		},
	})

	return SourceResult{Source: s}
}

func (s *source) Initialize(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "recordedAt", Value: -1},
			},
			Options: options.Index().
				SetName("UserIdRecordedAt"),
		},
	})
	return err
}

func (s *source) Name() string {
	return s.name
}

func (s *source) List(ctx context.Context, userId string, since time.Time) ([]readings.Record, error) {
	selector := bson.M{
		"userId":     userId,
		"recordedAt": bson.M{"$gte": since},
	}
	for key, value := range s.filter {
		selector[key] = value
	}

	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}})
	cursor, err := s.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing %s records: %w", s.name, err)
	}

	var documents []document
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("error decoding %s records: %w", s.name, err)
	}

	result := make([]readings.Record, 0, len(documents))
	for _, d := range documents {
		result = append(result, readings.Record{
			Id:         d.Id.Hex(),
			Source:     s.name,
			Ciphertext: d.EncryptedValue,
			Time:       d.RecordedAt,
		})
	}
	return result, nil
}
