package notifications

import (
	"time"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/pointer"
	"github.com/tidepool-org/glucose-alerts/quiethours"
	"github.com/tidepool-org/glucose-alerts/settings"
)

//go:generate mockgen -source=./gate.go -destination=./test/mock_gate.go -package test

// QuietHours reports whether now falls into the quiet hours of a recipient.
type QuietHours interface {
	IsQuiet(start, end, timezone string, now time.Time) bool
}

// Gate decides whether an email is sent for a newly created alert. The dashboard channel is
// satisfied by the stored alert and is not gated.
type Gate struct {
	quietHours QuietHours
}

func NewGate(quietHours QuietHours) *Gate {
	return &Gate{quietHours: quietHours}
}

func NewQuietHours(evaluator *quiethours.Evaluator) QuietHours {
	return evaluator
}

// Requested reports whether the recipient asked for email notifications at all.
func (g *Gate) Requested(s *settings.AlertSettings) bool {
	return s != nil && s.NotificationChannels.Email
}

func (g *Gate) ShouldNotify(alert alerts.Alert, s *settings.AlertSettings, timezone string, now time.Time) bool {
	if !g.Requested(s) {
		return false
	}
	if !s.HasQuietHours() {
		return true
	}
	if timezone == "" {
		timezone = quiethours.FallbackTimezone
	}

	start := pointer.ToString(s.QuietHoursStart)
	end := pointer.ToString(s.QuietHoursEnd)
	if !g.quietHours.IsQuiet(start, end, timezone, now) {
		return true
	}

	return alert.Severity == alerts.SeverityCritical && s.CriticalAlertsIgnoreQuietHours
}
