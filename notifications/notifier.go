package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/outbox"
)

type Config struct {
	DispatchTimeout time.Duration `envconfig:"TIDEPOOL_ALERTS_NOTIFICATION_TIMEOUT" default:"30s"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Notification is an email about a single alert.
type Notification struct {
	CorrelationId  string
	UserId         string
	RecipientEmail string
	RecipientName  *string
	AlertId        string
	Kind           alerts.Kind
	Severity       alerts.Severity
	Message        string
}

//go:generate mockgen -source=./notifier.go -destination=./test/mock_notifier.go -package test

type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}

// OutboxNotifier hands notifications to the mail worker through the transactional outbox.
type OutboxNotifier struct {
	outbox outbox.Repository
	logger *zap.SugaredLogger
}

func NewOutboxNotifier(repository outbox.Repository, logger *zap.SugaredLogger) Notifier {
	return &OutboxNotifier{
		outbox: repository,
		logger: logger,
	}
}

func (o *OutboxNotifier) Send(ctx context.Context, notification Notification) error {
	payload := outbox.SendGlucoseAlertEmailPayload{
		UserId:         notification.UserId,
		RecipientEmail: notification.RecipientEmail,
		RecipientName:  notification.RecipientName,
		AlertId:        notification.AlertId,
		Kind:           string(notification.Kind),
		Severity:       string(notification.Severity),
		Message:        notification.Message,
	}

	event, err := outbox.NewEvent(outbox.EventTypeSendGlucoseAlertEmail, notification.CorrelationId, payload)
	if err != nil {
		return err
	}
	if err := o.outbox.Create(ctx, event); err != nil {
		return fmt.Errorf("unable to queue alert email: %w", err)
	}

	o.logger.Infow("queued alert email",
		"userId", notification.UserId,
		"alertId", notification.AlertId,
		"correlationId", notification.CorrelationId,
	)
	return nil
}
