package users

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/store"
)

type repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

var _ Repository = &repository{}

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository, error) {
	repo := &repository{
		collection: db.Collection(CollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

func (r *repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("UniqueUserId"),
		},
	})
	return err
}

func (r *repository) Get(ctx context.Context, userId string) (*User, error) {
	user := &User{}
	err := r.collection.FindOne(ctx, bson.M{"userId": userId}).Decode(user)
	if store.IsNoDocuments(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to get user: %w", err)
	}
	return user, nil
}
