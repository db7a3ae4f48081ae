package settings

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/glucose-alerts/errors"
)

const CollectionName = "alertSettings"

var ErrNotFound = fmt.Errorf("alert settings %w", errors.NotFound)

type NotificationFrequency string

const (
	NotificationFrequencyImmediate NotificationFrequency = "IMMEDIATE"
	NotificationFrequencyDaily     NotificationFrequency = "DAILY"
	NotificationFrequencyWeekly    NotificationFrequency = "WEEKLY"
)

const (
	DefaultSevereHypoglycemiaThreshold        = 54.0
	DefaultHypoglycemiaThreshold              = 70.0
	DefaultHyperglycemiaThreshold             = 180.0
	DefaultPersistentHyperglycemiaThreshold   = 250.0
	DefaultPersistentHyperglycemiaWindowHours = 4
	DefaultPersistentHyperglycemiaMinReadings = 3
)

//go:generate mockgen -source=./settings.go -destination=./test/mock_settings.go -package test

type Service interface {
	// Get returns the settings of the user, creating the defaults on first access.
	Get(ctx context.Context, userId string) (*AlertSettings, error)
	Update(ctx context.Context, userId string, update Update) (*AlertSettings, error)
	// UpdateMany applies the same update to every user. The update is rejected for all
	// users if it is invalid for any of them.
	UpdateMany(ctx context.Context, userIds []string, update Update) ([]*AlertSettings, error)
}

type Repository interface {
	GetOrCreate(ctx context.Context, userId string) (*AlertSettings, error)
	Update(ctx context.Context, userId string, update Update) (*AlertSettings, error)
}

type NotificationChannels struct {
	Dashboard bool `bson:"dashboard" json:"dashboard"`
	Email     bool `bson:"email" json:"email"`
	Push      bool `bson:"push" json:"push"`
}

type AlertSettings struct {
	Id     *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserId string              `bson:"userId" json:"userId"`

	AlertsEnabled                  bool `bson:"alertsEnabled" json:"alertsEnabled"`
	HypoglycemiaEnabled            bool `bson:"hypoglycemiaEnabled" json:"hypoglycemiaEnabled"`
	SevereHypoglycemiaEnabled      bool `bson:"severeHypoglycemiaEnabled" json:"severeHypoglycemiaEnabled"`
	HyperglycemiaEnabled           bool `bson:"hyperglycemiaEnabled" json:"hyperglycemiaEnabled"`
	PersistentHyperglycemiaEnabled bool `bson:"persistentHyperglycemiaEnabled" json:"persistentHyperglycemiaEnabled"`

	SevereHypoglycemiaThreshold      float64 `bson:"severeHypoglycemiaThreshold" json:"severeHypoglycemiaThreshold"`
	HypoglycemiaThreshold            float64 `bson:"hypoglycemiaThreshold" json:"hypoglycemiaThreshold"`
	HyperglycemiaThreshold           float64 `bson:"hyperglycemiaThreshold" json:"hyperglycemiaThreshold"`
	PersistentHyperglycemiaThreshold float64 `bson:"persistentHyperglycemiaThreshold" json:"persistentHyperglycemiaThreshold"`

	PersistentHyperglycemiaWindowHours int `bson:"persistentHyperglycemiaWindowHours" json:"persistentHyperglycemiaWindowHours"`
	PersistentHyperglycemiaMinReadings int `bson:"persistentHyperglycemiaMinReadings" json:"persistentHyperglycemiaMinReadings"`

	NotificationChannels           NotificationChannels  `bson:"notificationChannels" json:"notificationChannels"`
	QuietHoursEnabled              bool                  `bson:"quietHoursEnabled" json:"quietHoursEnabled"`
	QuietHoursStart                *string               `bson:"quietHoursStart,omitempty" json:"quietHoursStart,omitempty"`
	QuietHoursEnd                  *string               `bson:"quietHoursEnd,omitempty" json:"quietHoursEnd,omitempty"`
	CriticalAlertsIgnoreQuietHours bool                  `bson:"criticalAlertsIgnoreQuietHours" json:"criticalAlertsIgnoreQuietHours"`
	NotificationFrequency          NotificationFrequency `bson:"notificationFrequency" json:"notificationFrequency"`

	CreatedTime time.Time `bson:"createdTime" json:"createdTime"`
	UpdatedTime time.Time `bson:"updatedTime" json:"updatedTime"`
}

// PersistentWindow returns the rolling window used for persistent hyperglycemia.
func (s *AlertSettings) PersistentWindow() time.Duration {
	return time.Duration(s.PersistentHyperglycemiaWindowHours) * time.Hour
}

// HasQuietHours reports whether quiet hours are enabled and both bounds are set.
func (s *AlertSettings) HasQuietHours() bool {
	return s.QuietHoursEnabled && s.QuietHoursStart != nil && s.QuietHoursEnd != nil
}

func NewDefaultSettings(userId string) AlertSettings {
	return AlertSettings{
		UserId:                             userId,
		AlertsEnabled:                      true,
		HypoglycemiaEnabled:                true,
		SevereHypoglycemiaEnabled:          true,
		HyperglycemiaEnabled:               true,
		PersistentHyperglycemiaEnabled:     true,
		SevereHypoglycemiaThreshold:        DefaultSevereHypoglycemiaThreshold,
		HypoglycemiaThreshold:              DefaultHypoglycemiaThreshold,
		HyperglycemiaThreshold:             DefaultHyperglycemiaThreshold,
		PersistentHyperglycemiaThreshold:   DefaultPersistentHyperglycemiaThreshold,
		PersistentHyperglycemiaWindowHours: DefaultPersistentHyperglycemiaWindowHours,
		PersistentHyperglycemiaMinReadings: DefaultPersistentHyperglycemiaMinReadings,
		NotificationChannels: NotificationChannels{
			Dashboard: true,
		},
		CriticalAlertsIgnoreQuietHours: true,
		NotificationFrequency:          NotificationFrequencyImmediate,
	}
}

type NotificationChannelsUpdate struct {
	Dashboard *bool `json:"dashboard,omitempty"`
	Email     *bool `json:"email,omitempty"`
	Push      *bool `json:"push,omitempty"`
}

// Update is a partial settings mutation. Nil fields keep their stored value.
type Update struct {
	AlertsEnabled                  *bool `json:"alertsEnabled,omitempty"`
	HypoglycemiaEnabled            *bool `json:"hypoglycemiaEnabled,omitempty"`
	SevereHypoglycemiaEnabled      *bool `json:"severeHypoglycemiaEnabled,omitempty"`
	HyperglycemiaEnabled           *bool `json:"hyperglycemiaEnabled,omitempty"`
	PersistentHyperglycemiaEnabled *bool `json:"persistentHyperglycemiaEnabled,omitempty"`

	SevereHypoglycemiaThreshold      *float64 `json:"severeHypoglycemiaThreshold,omitempty"`
	HypoglycemiaThreshold            *float64 `json:"hypoglycemiaThreshold,omitempty"`
	HyperglycemiaThreshold           *float64 `json:"hyperglycemiaThreshold,omitempty"`
	PersistentHyperglycemiaThreshold *float64 `json:"persistentHyperglycemiaThreshold,omitempty"`

	PersistentHyperglycemiaWindowHours *int `json:"persistentHyperglycemiaWindowHours,omitempty"`
	PersistentHyperglycemiaMinReadings *int `json:"persistentHyperglycemiaMinReadings,omitempty"`

	NotificationChannels           *NotificationChannelsUpdate `json:"notificationChannels,omitempty"`
	QuietHoursEnabled              *bool                       `json:"quietHoursEnabled,omitempty"`
	QuietHoursStart                *string                     `json:"quietHoursStart,omitempty"`
	QuietHoursEnd                  *string                     `json:"quietHoursEnd,omitempty"`
	CriticalAlertsIgnoreQuietHours *bool                       `json:"criticalAlertsIgnoreQuietHours,omitempty"`
	NotificationFrequency          *NotificationFrequency      `json:"notificationFrequency,omitempty"`
}

// ApplyTo overwrites the fields of s that are set in the update.
func (u Update) ApplyTo(s *AlertSettings) {
	setIfPresent(&s.AlertsEnabled, u.AlertsEnabled)
	setIfPresent(&s.HypoglycemiaEnabled, u.HypoglycemiaEnabled)
	setIfPresent(&s.SevereHypoglycemiaEnabled, u.SevereHypoglycemiaEnabled)
	setIfPresent(&s.HyperglycemiaEnabled, u.HyperglycemiaEnabled)
	setIfPresent(&s.PersistentHyperglycemiaEnabled, u.PersistentHyperglycemiaEnabled)
	setIfPresent(&s.SevereHypoglycemiaThreshold, u.SevereHypoglycemiaThreshold)
	setIfPresent(&s.HypoglycemiaThreshold, u.HypoglycemiaThreshold)
	setIfPresent(&s.HyperglycemiaThreshold, u.HyperglycemiaThreshold)
	setIfPresent(&s.PersistentHyperglycemiaThreshold, u.PersistentHyperglycemiaThreshold)
	setIfPresent(&s.PersistentHyperglycemiaWindowHours, u.PersistentHyperglycemiaWindowHours)
	setIfPresent(&s.PersistentHyperglycemiaMinReadings, u.PersistentHyperglycemiaMinReadings)
	if u.NotificationChannels != nil {
		setIfPresent(&s.NotificationChannels.Dashboard, u.NotificationChannels.Dashboard)
		setIfPresent(&s.NotificationChannels.Email, u.NotificationChannels.Email)
		setIfPresent(&s.NotificationChannels.Push, u.NotificationChannels.Push)
	}
	setIfPresent(&s.QuietHoursEnabled, u.QuietHoursEnabled)
	if u.QuietHoursStart != nil {
		start := *u.QuietHoursStart
		s.QuietHoursStart = &start
	}
	if u.QuietHoursEnd != nil {
		end := *u.QuietHoursEnd
		s.QuietHoursEnd = &end
	}
	setIfPresent(&s.CriticalAlertsIgnoreQuietHours, u.CriticalAlertsIgnoreQuietHours)
	setIfPresent(&s.NotificationFrequency, u.NotificationFrequency)
}

// IsEmpty reports whether the update does not change any field.
func (u Update) IsEmpty() bool {
	return u == Update{}
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
