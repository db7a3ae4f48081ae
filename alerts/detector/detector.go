package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/alerts/persistent"
	"github.com/tidepool-org/glucose-alerts/clock"
	"github.com/tidepool-org/glucose-alerts/metrics"
	"github.com/tidepool-org/glucose-alerts/notifications"
	"github.com/tidepool-org/glucose-alerts/settings"
)

const (
	statusAlert    = "alert"
	statusNone     = "none"
	statusRejected = "rejected"
	statusFailed   = "failed"
)

//go:generate mockgen -source=./detector.go -destination=./test/mock_detector.go -package test

// Resolver resolves persistent hyperglycemia candidates.
type Resolver interface {
	Resolve(ctx context.Context, sample alerts.Sample, s *settings.AlertSettings, now time.Time) (persistent.Resolution, error)
}

// Dispatcher starts the notification of a stored alert without waiting for it.
type Dispatcher interface {
	Dispatch(alert alerts.Alert, s settings.AlertSettings)
}

type detector struct {
	settings   settings.Service
	resolver   Resolver
	alerts     alerts.Repository
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *zap.SugaredLogger
}

var _ alerts.Detector = &detector{}

type Params struct {
	fx.In

	Settings         settings.Service
	Resolver         Resolver
	AlertsRepository alerts.Repository
	Dispatcher       Dispatcher
	Clock            clock.Clock
	Logger           *zap.SugaredLogger
}

func NewDetector(p Params) alerts.Detector {
	return &detector{
		settings:   p.Settings,
		resolver:   p.Resolver,
		alerts:     p.AlertsRepository,
		dispatcher: p.Dispatcher,
		clock:      p.Clock,
		logger:     p.Logger,
	}
}

func NewResolver(tracker *persistent.Tracker) Resolver {
	return tracker
}

func NewDispatcher(dispatcher *notifications.Dispatcher) Dispatcher {
	return dispatcher
}

// Detect classifies the sample against the settings of the user and stores at most one alert.
// It returns nil when no alert was created. Notification of the created alert happens in the
// background and never fails the detection.
func (d *detector) Detect(ctx context.Context, sample alerts.Sample) (alert *alerts.Alert, err error) {
	timer := prometheus.NewTimer(metrics.DetectionDuration)
	defer timer.ObserveDuration()

	if err := sample.Validate(); err != nil {
		metrics.SamplesEvaluatedTotal.WithLabelValues(statusRejected).Inc()
		return nil, err
	}

	defer func() {
		switch {
		case err != nil:
			metrics.SamplesEvaluatedTotal.WithLabelValues(statusFailed).Inc()
		case alert != nil:
			metrics.SamplesEvaluatedTotal.WithLabelValues(statusAlert).Inc()
		default:
			metrics.SamplesEvaluatedTotal.WithLabelValues(statusNone).Inc()
		}
	}()

	s, err := d.settings.Get(ctx, sample.UserId)
	if err != nil {
		return nil, fmt.Errorf("unable to get alert settings: %w", err)
	}
	if !s.AlertsEnabled {
		return nil, nil
	}

	now := d.clock.Now()
	verdict, err := d.classify(ctx, sample, s, now)
	if err != nil || verdict == nil {
		return nil, err
	}

	create := alerts.Alert{
		UserId:      sample.UserId,
		Kind:        verdict.Kind,
		Severity:    verdict.Severity,
		Message:     verdict.Message,
		Value:       verdict.Value,
		Threshold:   verdict.Threshold,
		ReadingId:   sample.ReadingId,
		EntryId:     sample.EntryId,
		CreatedTime: now,
	}
	if !sample.Time.IsZero() {
		sampleTime := sample.Time
		create.SampleTime = &sampleTime
	}

	alert, err = d.alerts.Create(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("unable to create alert: %w", err)
	}

	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Kind), string(alert.Severity)).Inc()
	d.logger.Infow("created glucose alert",
		"userId", alert.UserId,
		"alertId", alert.Id,
		"kind", alert.Kind,
		"severity", alert.Severity,
	)

	d.dispatcher.Dispatch(*alert, *s)
	return alert, nil
}

func (d *detector) classify(ctx context.Context, sample alerts.Sample, s *settings.AlertSettings, now time.Time) (*alerts.Verdict, error) {
	verdict := alerts.Classify(sample.Value, s)
	if verdict == nil || verdict.Kind != alerts.KindPersistentHyperglycemia {
		return verdict, nil
	}

	resolution, err := d.resolver.Resolve(ctx, sample, s, now)
	if err != nil {
		return nil, err
	}
	if resolution.Fire {
		return alerts.PersistentVerdict(sample.Value, s, resolution.Count), nil
	}
	if resolution.FallbackToRegularHyper {
		return alerts.Fallback(sample.Value, s), nil
	}
	return nil, nil
}
