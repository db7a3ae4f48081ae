package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/settings"
	"github.com/tidepool-org/glucose-alerts/store"
)

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (settings.Repository, error) {
	repo := &repository{
		collection: db.Collection(settings.CollectionName),
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
			},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueUserId"),
		},
	})
	return err
}

func (r *repository) GetOrCreate(ctx context.Context, userId string) (*settings.AlertSettings, error) {
	now := time.Now()
	defaults := settings.NewDefaultSettings(userId)
	defaults.CreatedTime = now
	defaults.UpdatedTime = now

	onInsert, err := toDocument(defaults)
	if err != nil {
		return nil, err
	}
	delete(onInsert, "userId")

	selector := bson.M{"userId": userId}
	update := bson.M{"$setOnInsert": onInsert}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	result := &settings.AlertSettings{}
	err = r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(result)
	if store.IsDuplicateKeyError(err) {
		// A concurrent request created the document between the match and the insert
		err = r.collection.FindOne(ctx, selector).Decode(result)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get alert settings: %w", err)
	}

	return result, nil
}

func (r *repository) Update(ctx context.Context, userId string, update settings.Update) (*settings.AlertSettings, error) {
	set := setFields(update)
	set["updatedTime"] = time.Now()

	selector := bson.M{"userId": userId}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	result := &settings.AlertSettings{}
	err := r.collection.FindOneAndUpdate(ctx, selector, bson.M{"$set": set}, opts).Decode(result)
	if store.IsNoDocuments(err) {
		return nil, settings.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to update alert settings: %w", err)
	}

	return result, nil
}

func toDocument(s settings.AlertSettings) (bson.M, error) {
	raw, err := bson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal alert settings: %w", err)
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unable to unmarshal alert settings: %w", err)
	}
	return doc, nil
}

func setFields(u settings.Update) bson.M {
	set := bson.M{}
	put := func(key string, present bool, value func() any) {
		if present {
			set[key] = value()
		}
	}

	put("alertsEnabled", u.AlertsEnabled != nil, func() any { return *u.AlertsEnabled })
	put("hypoglycemiaEnabled", u.HypoglycemiaEnabled != nil, func() any { return *u.HypoglycemiaEnabled })
	put("severeHypoglycemiaEnabled", u.SevereHypoglycemiaEnabled != nil, func() any { return *u.SevereHypoglycemiaEnabled })
	put("hyperglycemiaEnabled", u.HyperglycemiaEnabled != nil, func() any { return *u.HyperglycemiaEnabled })
	put("persistentHyperglycemiaEnabled", u.PersistentHyperglycemiaEnabled != nil, func() any { return *u.PersistentHyperglycemiaEnabled })
	put("severeHypoglycemiaThreshold", u.SevereHypoglycemiaThreshold != nil, func() any { return *u.SevereHypoglycemiaThreshold })
	put("hypoglycemiaThreshold", u.HypoglycemiaThreshold != nil, func() any { return *u.HypoglycemiaThreshold })
	put("hyperglycemiaThreshold", u.HyperglycemiaThreshold != nil, func() any { return *u.HyperglycemiaThreshold })
	put("persistentHyperglycemiaThreshold", u.PersistentHyperglycemiaThreshold != nil, func() any { return *u.PersistentHyperglycemiaThreshold })
	put("persistentHyperglycemiaWindowHours", u.PersistentHyperglycemiaWindowHours != nil, func() any { return *u.PersistentHyperglycemiaWindowHours })
	put("persistentHyperglycemiaMinReadings", u.PersistentHyperglycemiaMinReadings != nil, func() any { return *u.PersistentHyperglycemiaMinReadings })
	if u.NotificationChannels != nil {
		put("notificationChannels.dashboard", u.NotificationChannels.Dashboard != nil, func() any { return *u.NotificationChannels.Dashboard })
		put("notificationChannels.email", u.NotificationChannels.Email != nil, func() any { return *u.NotificationChannels.Email })
		put("notificationChannels.push", u.NotificationChannels.Push != nil, func() any { return *u.NotificationChannels.Push })
	}
	put("quietHoursEnabled", u.QuietHoursEnabled != nil, func() any { return *u.QuietHoursEnabled })
	put("quietHoursStart", u.QuietHoursStart != nil, func() any { return *u.QuietHoursStart })
	put("quietHoursEnd", u.QuietHoursEnd != nil, func() any { return *u.QuietHoursEnd })
	put("criticalAlertsIgnoreQuietHours", u.CriticalAlertsIgnoreQuietHours != nil, func() any { return *u.CriticalAlertsIgnoreQuietHours })
	put("notificationFrequency", u.NotificationFrequency != nil, func() any { return string(*u.NotificationFrequency) })

	return set
}
