package persistent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/metrics"
	"github.com/tidepool-org/glucose-alerts/readings"
	"github.com/tidepool-org/glucose-alerts/settings"
)

//go:generate mockgen -source=./tracker.go -destination=./test/mock_tracker.go -package test

// History returns the decrypted readings of a user recorded at or after since.
type History interface {
	Since(ctx context.Context, userId string, since time.Time) ([]readings.HistoricalReading, error)
}

// Resolution is the outcome of a persistent hyperglycemia candidate.
type Resolution struct {
	// Fire is set when a new persistent hyperglycemia alert has to be created
	Fire bool
	// FallbackToRegularHyper is set when the candidate is downgraded to a regular
	// hyperglycemia verdict
	FallbackToRegularHyper bool
	// Count of qualifying readings in the window, the current sample included
	Count int
}

type Tracker struct {
	history History
	alerts  alerts.Repository
	logger  *zap.SugaredLogger
}

type Params struct {
	fx.In

	History          History
	AlertsRepository alerts.Repository
	Logger           *zap.SugaredLogger
}

func NewTracker(p Params) *Tracker {
	return &Tracker{
		history: p.History,
		alerts:  p.AlertsRepository,
		logger:  p.Logger,
	}
}

// Resolve decides whether the sample completes a persistent hyperglycemia condition. At most
// one persistent alert is created per rolling window, samples qualifying while one exists fall
// back to regular hyperglycemia.
func (t *Tracker) Resolve(ctx context.Context, sample alerts.Sample, s *settings.AlertSettings, now time.Time) (Resolution, error) {
	windowStart := now.Add(-s.PersistentWindow())

	history, err := t.history.Since(ctx, sample.UserId, windowStart)
	if err != nil {
		return Resolution{}, fmt.Errorf("unable to fetch glucose history: %w", err)
	}

	// the current sample qualifies by construction
	count := 1
	for _, reading := range history {
		if sample.IsSource(reading.Id) {
			continue
		}
		if reading.Value > s.PersistentHyperglycemiaThreshold {
			count++
		}
	}

	if count < s.PersistentHyperglycemiaMinReadings {
		t.logger.Debugw("persistent hyperglycemia not reached",
			"userId", sample.UserId,
			"count", count,
			"minReadings", s.PersistentHyperglycemiaMinReadings,
		)
		return Resolution{FallbackToRegularHyper: true, Count: count}, nil
	}

	existing, err := t.alerts.FindLatest(ctx, sample.UserId, alerts.KindPersistentHyperglycemia, windowStart)
	if err != nil {
		return Resolution{}, fmt.Errorf("unable to find existing persistent alert: %w", err)
	}
	if existing != nil {
		metrics.PersistentSuppressedTotal.Inc()
		t.logger.Infow("persistent hyperglycemia alert already created in window",
			"userId", sample.UserId,
			"alertId", existing.Id,
			"windowStart", windowStart,
		)
		return Resolution{FallbackToRegularHyper: true, Count: count}, nil
	}

	return Resolution{Fire: true, Count: count}, nil
}

func NewHistory(aggregator *readings.Aggregator) History {
	return aggregator
}
