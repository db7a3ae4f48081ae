package api

import (
	"fmt"
	"time"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/settings"
)

type GlucoseSample struct {
	Value     *float64   `json:"value"`
	Time      *time.Time `json:"time,omitempty"`
	ReadingId *string    `json:"readingId,omitempty"`
	EntryId   *string    `json:"entryId,omitempty"`
}

type AlertSettingsForUsersUpdate struct {
	UserIds  []string        `json:"userIds"`
	Settings settings.Update `json:"settings"`
}

type Alert struct {
	Id               string          `json:"id"`
	UserId           string          `json:"userId"`
	Kind             alerts.Kind     `json:"kind"`
	Severity         alerts.Severity `json:"severity"`
	Message          string          `json:"message"`
	Value            float64         `json:"value"`
	Threshold        float64         `json:"threshold"`
	ReadingId        *string         `json:"readingId,omitempty"`
	EntryId          *string         `json:"entryId,omitempty"`
	SampleTime       *time.Time      `json:"sampleTime,omitempty"`
	CreatedTime      time.Time       `json:"createdTime"`
	Acknowledged     bool            `json:"acknowledged"`
	AcknowledgedTime *time.Time      `json:"acknowledgedTime,omitempty"`
}

func NewSample(userId string, dto GlucoseSample, now time.Time) (alerts.Sample, error) {
	if dto.Value == nil {
		return alerts.Sample{}, badRequest("value is required")
	}

	sample := alerts.Sample{
		UserId:    userId,
		Value:     *dto.Value,
		Time:      now,
		ReadingId: dto.ReadingId,
		EntryId:   dto.EntryId,
	}
	if dto.Time != nil {
		sample.Time = *dto.Time
	}
	return sample, nil
}

func NewAlertDto(alert *alerts.Alert) Alert {
	dto := Alert{
		UserId:           alert.UserId,
		Kind:             alert.Kind,
		Severity:         alert.Severity,
		Message:          alert.Message,
		Value:            alert.Value,
		Threshold:        alert.Threshold,
		ReadingId:        alert.ReadingId,
		EntryId:          alert.EntryId,
		SampleTime:       alert.SampleTime,
		CreatedTime:      alert.CreatedTime,
		Acknowledged:     alert.Acknowledged,
		AcknowledgedTime: alert.AcknowledgedTime,
	}
	if alert.Id != nil {
		dto.Id = alert.Id.Hex()
	}
	return dto
}

func NewAlertsDto(list []*alerts.Alert) []Alert {
	dtos := make([]Alert, 0, len(list))
	for _, alert := range list {
		dtos = append(dtos, NewAlertDto(alert))
	}
	return dtos
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.BadRequest, fmt.Sprintf(format, args...))
}
