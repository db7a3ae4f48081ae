package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const CollectionName = "outbox"

// EventType identifies the kind of event
type EventType string

const (
	EventTypeSendGlucoseAlertEmail EventType = "sendGlucoseAlertEmail"
)

// Event is the common envelope for all outbox events. Events are consumed by the mail worker.
type Event struct {
	Id            *primitive.ObjectID `bson:"_id,omitempty"`
	EventType     EventType           `bson:"eventType"`
	CorrelationId string              `bson:"correlationId"`
	CreatedTime   time.Time           `bson:"createdTime"`
	Payload       bson.Raw            `bson:"payload"`
}

// SendGlucoseAlertEmailPayload is the payload for sendGlucoseAlertEmail events
type SendGlucoseAlertEmailPayload struct {
	UserId         string  `bson:"userId"`
	RecipientEmail string  `bson:"recipientEmail"`
	RecipientName  *string `bson:"recipientName,omitempty"`
	AlertId        string  `bson:"alertId"`
	Kind           string  `bson:"kind"`
	Severity       string  `bson:"severity"`
	Message        string  `bson:"message"`
}

//go:generate mockgen -source=./outbox.go -destination=./test/mock_outbox.go -package test

type Repository interface {
	Create(ctx context.Context, event Event) error
	Initialize(ctx context.Context) error
}

// NewEvent creates an Event from a typed payload
func NewEvent(eventType EventType, correlationId string, payload interface{}) (Event, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("error marshaling outbox event payload: %w", err)
	}

	return Event{
		EventType:     eventType,
		CorrelationId: correlationId,
		CreatedTime:   time.Now(),
		Payload:       bson.Raw(raw),
	}, nil
}
