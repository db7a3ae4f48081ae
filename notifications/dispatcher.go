package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/clock"
	"github.com/tidepool-org/glucose-alerts/config"
	"github.com/tidepool-org/glucose-alerts/metrics"
	"github.com/tidepool-org/glucose-alerts/settings"
	"github.com/tidepool-org/glucose-alerts/users"
)

// Dispatcher decides and sends the notification of a stored alert without blocking the caller.
type Dispatcher struct {
	gate            *Gate
	notifier        Notifier
	users           users.Repository
	clock           clock.Clock
	config          *Config
	defaultTimezone string
	logger          *zap.SugaredLogger

	mu       sync.Mutex
	inFlight int
	// idle is closed when the last in-flight notification completes, nil while idle
	idle    chan struct{}
	stopped bool
}

type DispatcherParams struct {
	fx.In

	Gate            *Gate
	Notifier        Notifier
	UsersRepository users.Repository
	Clock           clock.Clock
	Config          *Config
	AppConfig       *config.Config
	Logger          *zap.SugaredLogger
	Lifecycle       fx.Lifecycle
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	d := &Dispatcher{
		gate:            p.Gate,
		notifier:        p.Notifier,
		users:           p.UsersRepository,
		clock:           p.Clock,
		config:          p.Config,
		defaultTimezone: p.AppConfig.DefaultTimezone,
		logger:          p.Logger,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})

	return d
}

// Dispatch evaluates the gate for the alert in a detached goroutine. Failures are logged and
// never reported to the caller. Alerts dispatched after Stop are dropped.
func (d *Dispatcher) Dispatch(alert alerts.Alert, s settings.AlertSettings) {
	if !d.acquire() {
		metrics.NotificationsTotal.WithLabelValues(metrics.NotificationOutcomeFailed).Inc()
		d.logger.Warnw("dropping alert notification after shutdown",
			"userId", alert.UserId,
			"alertId", alert.Id,
		)
		return
	}

	go func() {
		defer d.release()
		defer func() {
			if r := recover(); r != nil {
				metrics.NotificationsTotal.WithLabelValues(metrics.NotificationOutcomeFailed).Inc()
				d.logger.Errorw("recovered from panic while dispatching notification",
					"userId", alert.UserId,
					"alertId", alert.Id,
					"panic", r,
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.config.DispatchTimeout)
		defer cancel()

		outcome, err := d.dispatch(ctx, alert, &s)
		metrics.NotificationsTotal.WithLabelValues(outcome).Inc()
		if err != nil {
			d.logger.Errorw("unable to dispatch alert notification",
				"userId", alert.UserId,
				"alertId", alert.Id,
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, alert alerts.Alert, s *settings.AlertSettings) (string, error) {
	if !d.gate.Requested(s) {
		return metrics.NotificationOutcomeSuppressed, nil
	}

	user, err := d.users.Get(ctx, alert.UserId)
	if err != nil {
		return metrics.NotificationOutcomeFailed, fmt.Errorf("unable to get recipient: %w", err)
	}
	if user.Email == "" {
		return metrics.NotificationOutcomeFailed, fmt.Errorf("recipient %s has no email address", alert.UserId)
	}

	timezone := user.Timezone
	if timezone == "" {
		timezone = d.defaultTimezone
	}

	if !d.gate.ShouldNotify(alert, s, timezone, d.clock.Now()) {
		d.logger.Infow("alert notification suppressed by quiet hours",
			"userId", alert.UserId,
			"alertId", alert.Id,
			"severity", alert.Severity,
		)
		return metrics.NotificationOutcomeSuppressed, nil
	}

	notification := Notification{
		CorrelationId:  uuid.NewString(),
		UserId:         alert.UserId,
		RecipientEmail: user.Email,
		RecipientName:  user.FullName,
		Kind:           alert.Kind,
		Severity:       alert.Severity,
		Message:        alert.Message,
	}
	if alert.Id != nil {
		notification.AlertId = alert.Id.Hex()
	}

	if err := d.notifier.Send(ctx, notification); err != nil {
		return metrics.NotificationOutcomeFailed, err
	}
	return metrics.NotificationOutcomeSent, nil
}

func (d *Dispatcher) acquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if d.inFlight == 0 {
		d.idle = make(chan struct{})
	}
	d.inFlight++
	return true
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inFlight--
	if d.inFlight == 0 {
		close(d.idle)
		d.idle = nil
	}
}

// Drain waits until no notification is in flight or ctx is done. Dispatching may continue
// while draining.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		d.logger.Warnw("notifications still in flight", "count", d.pending())
		return ctx.Err()
	}
}

// Stop rejects further dispatches and drains the in-flight notifications.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	return d.Drain(ctx)
}

func (d *Dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}
