package alerts

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/store"
)

const CollectionName = "alerts"

var ErrNotFound = fmt.Errorf("alert %w", errors.NotFound)

type Kind string

const (
	KindSevereHypoglycemia      Kind = "SEVERE_HYPOGLYCEMIA"
	KindHypoglycemia            Kind = "HYPOGLYCEMIA"
	KindHyperglycemia           Kind = "HYPERGLYCEMIA"
	KindPersistentHyperglycemia Kind = "PERSISTENT_HYPERGLYCEMIA"
)

var kinds = mapset.NewSet(
	KindSevereHypoglycemia,
	KindHypoglycemia,
	KindHyperglycemia,
	KindPersistentHyperglycemia,
)

func (k Kind) IsValid() bool {
	return kinds.Contains(k)
}

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

type Alert struct {
	Id               *primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserId           string              `bson:"userId" json:"userId"`
	Kind             Kind                `bson:"kind" json:"kind"`
	Severity         Severity            `bson:"severity" json:"severity"`
	Message          string              `bson:"message" json:"message"`
	Value            float64             `bson:"value" json:"value"`
	Threshold        float64             `bson:"threshold" json:"threshold"`
	ReadingId        *string             `bson:"readingId,omitempty" json:"readingId,omitempty"`
	EntryId          *string             `bson:"entryId,omitempty" json:"entryId,omitempty"`
	SampleTime       *time.Time          `bson:"sampleTime,omitempty" json:"sampleTime,omitempty"`
	CreatedTime      time.Time           `bson:"createdTime" json:"createdTime"`
	Acknowledged     bool                `bson:"acknowledged" json:"acknowledged"`
	AcknowledgedTime *time.Time          `bson:"acknowledgedTime,omitempty" json:"acknowledgedTime,omitempty"`
}

type Filter struct {
	UserId string
	Kind   *Kind
	// Acknowledged restricts the result to alerts in the given acknowledgement state
	Acknowledged *bool
}

//go:generate mockgen -source=./alerts.go -destination=./test/mock_alerts.go -package test

type Repository interface {
	// Create stores a new alert. The id and creation time are assigned by the repository.
	Create(ctx context.Context, alert Alert) (*Alert, error)
	// FindLatest returns the most recent alert of the kind created at or after since, or
	// nil when there is none.
	FindLatest(ctx context.Context, userId string, kind Kind, since time.Time) (*Alert, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) ([]*Alert, error)
	Acknowledge(ctx context.Context, userId string, alertId string) (*Alert, error)
}

// Detector runs alert detection for a single glucose sample.
type Detector interface {
	Detect(ctx context.Context, sample Sample) (*Alert, error)
}
