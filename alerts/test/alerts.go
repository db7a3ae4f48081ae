package test

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/test"
)

func RandomAlert(userId string) alerts.Alert {
	kind := alerts.Kind(test.Faker.RandomStringElement([]string{
		string(alerts.KindSevereHypoglycemia),
		string(alerts.KindHypoglycemia),
		string(alerts.KindHyperglycemia),
		string(alerts.KindPersistentHyperglycemia),
	}))
	return alerts.Alert{
		UserId:    userId,
		Kind:      kind,
		Severity:  alerts.SeverityHigh,
		Message:   test.Faker.Lorem().Sentence(8),
		Value:     test.RandomGlucoseValue(20, 400),
		Threshold: float64(test.Faker.IntBetween(54, 250)),
	}
}

// Stored returns a copy of alert as the repository would return it after creation.
func Stored(alert alerts.Alert, created time.Time) *alerts.Alert {
	id := primitive.NewObjectID()
	alert.Id = &id
	alert.CreatedTime = created
	return &alert
}
