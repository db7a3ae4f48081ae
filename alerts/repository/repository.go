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
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/store"
)

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (alerts.Repository, error) {
	repo := &repository{
		collection: db.Collection(alerts.CollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetName("UserIdKindCreatedTime"),
		},
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetName("UserIdCreatedTime"),
		},
	})
	return err
}

func (r *repository) Create(ctx context.Context, alert alerts.Alert) (*alerts.Alert, error) {
	id := primitive.NewObjectID()
	alert.Id = &id
	if alert.CreatedTime.IsZero() {
		alert.CreatedTime = time.Now()
	}
	alert.Acknowledged = false
	alert.AcknowledgedTime = nil

	if _, err := r.collection.InsertOne(ctx, alert); err != nil {
		return nil, fmt.Errorf("error creating alert: %w", err)
	}

	return &alert, nil
}

func (r *repository) FindLatest(ctx context.Context, userId string, kind alerts.Kind, since time.Time) (*alerts.Alert, error) {
	selector := bson.M{
		"userId":      userId,
		"kind":        kind,
		"createdTime": bson.M{"$gte": since},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdTime", Value: -1}})

	result := &alerts.Alert{}
	err := r.collection.FindOne(ctx, selector, opts).Decode(result)
	if store.IsNoDocuments(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("error finding latest %s alert: %w", kind, err)
	}

	return result, nil
}

func (r *repository) List(ctx context.Context, filter alerts.Filter, pagination store.Pagination) ([]*alerts.Alert, error) {
	selector := bson.M{"userId": filter.UserId}
	if filter.Kind != nil {
		selector["kind"] = *filter.Kind
	}
	if filter.Acknowledged != nil {
		selector["acknowledged"] = *filter.Acknowledged
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdTime", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(pagination.Offset)).
		SetLimit(int64(pagination.Limit))

	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}

	result := make([]*alerts.Alert, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("error decoding alerts: %w", err)
	}

	return result, nil
}

func (r *repository) Acknowledge(ctx context.Context, userId string, alertId string) (*alerts.Alert, error) {
	id, err := primitive.ObjectIDFromHex(alertId)
	if err != nil {
		return nil, alerts.ErrNotFound
	}

	selector := bson.M{
		"_id":          id,
		"userId":       userId,
		"acknowledged": false,
	}
	update := bson.M{
		"$set": bson.M{
			"acknowledged":     true,
			"acknowledgedTime": time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	result := &alerts.Alert{}
	err = r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(result)
	if store.IsNoDocuments(err) {
		// Already acknowledged or not owned by the user
		delete(selector, "acknowledged")
		err = r.collection.FindOne(ctx, selector).Decode(result)
	}
	if store.IsNoDocuments(err) {
		return nil, alerts.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error acknowledging alert: %w", err)
	}

	return result, nil
}
