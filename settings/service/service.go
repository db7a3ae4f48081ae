package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/settings"
	"github.com/tidepool-org/glucose-alerts/store"
)

type Params struct {
	fx.In

	Repository settings.Repository
	DbClient   *mongo.Client `optional:"true"`
	Logger     *zap.SugaredLogger
}

func NewService(p Params) (settings.Service, error) {
	return &service{
		repository: p.Repository,
		dbClient:   p.DbClient,
		logger:     p.Logger,
	}, nil
}

type service struct {
	repository settings.Repository
	dbClient   *mongo.Client
	logger     *zap.SugaredLogger
}

var _ settings.Service = &service{}

func (s *service) Get(ctx context.Context, userId string) (*settings.AlertSettings, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", errors.BadRequest)
	}
	return s.repository.GetOrCreate(ctx, userId)
}

func (s *service) Update(ctx context.Context, userId string, update settings.Update) (*settings.AlertSettings, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", errors.BadRequest)
	}

	return store.RunInTransaction(ctx, s.dbClient, func(ctx context.Context) (*settings.AlertSettings, error) {
		return s.update(ctx, userId, update)
	})
}

func (s *service) UpdateMany(ctx context.Context, userIds []string, update settings.Update) ([]*settings.AlertSettings, error) {
	if len(userIds) == 0 {
		return nil, fmt.Errorf("%w: at least one user id is required", errors.BadRequest)
	}
	for _, userId := range userIds {
		if userId == "" {
			return nil, fmt.Errorf("%w: user id is required", errors.BadRequest)
		}
	}

	return store.RunInTransaction(ctx, s.dbClient, func(ctx context.Context) ([]*settings.AlertSettings, error) {
		// Validate against every patient before writing so an invalid update leaves all of
		// them unchanged even without transaction support
		for _, userId := range userIds {
			current, err := s.repository.GetOrCreate(ctx, userId)
			if err != nil {
				return nil, err
			}
			if err := settings.Validate(*current, update); err != nil {
				return nil, fmt.Errorf("invalid settings for user %s: %w", userId, err)
			}
		}

		result := make([]*settings.AlertSettings, 0, len(userIds))
		for _, userId := range userIds {
			updated, err := s.repository.Update(ctx, userId, update)
			if err != nil {
				return nil, err
			}
			result = append(result, updated)
		}

		s.logger.Infow("applied alert settings to users", "userIds", userIds)
		return result, nil
	})
}

func (s *service) update(ctx context.Context, userId string, update settings.Update) (*settings.AlertSettings, error) {
	current, err := s.repository.GetOrCreate(ctx, userId)
	if err != nil {
		return nil, err
	}

	if err := settings.Validate(*current, update); err != nil {
		s.logger.Debugw("rejected alert settings update", "userId", userId, zap.Error(err))
		return nil, err
	}
	if update.IsEmpty() {
		return current, nil
	}

	return s.repository.Update(ctx, userId, update)
}
