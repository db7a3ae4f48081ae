package outbox_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/outbox"
	"github.com/tidepool-org/glucose-alerts/pointer"
	dbTest "github.com/tidepool-org/glucose-alerts/store/test"
)

var _ = Describe("Outbox Repository", func() {
	var repo outbox.Repository
	var database *mongo.Database
	var collection *mongo.Collection

	payload := outbox.SendGlucoseAlertEmailPayload{
		UserId:         "1234567890",
		RecipientEmail: "patient@example.com",
		RecipientName:  pointer.FromAny("John Doe"),
		AlertId:        "65f2c3a1e4b0a1b2c3d4e5f6",
		Kind:           "SEVERE_HYPOGLYCEMIA",
		Severity:       "CRITICAL",
		Message:        "Severe hypoglycemia: glucose 50 mg/dL is below 54 mg/dL",
	}

	BeforeEach(func() {
		database = dbTest.GetTestDatabase()
		collection = database.Collection(outbox.CollectionName)
		lifecycle := fxtest.NewLifecycle(GinkgoT())

		var err error
		repo, err = outbox.NewRepository(database, zap.NewNop().Sugar(), lifecycle)
		Expect(err).ToNot(HaveOccurred())
		Expect(repo).ToNot(BeNil())
		lifecycle.RequireStart()
	})

	AfterEach(func() {
		_, _ = collection.DeleteMany(context.Background(), bson.M{})
	})

	Describe("Create", func() {
		It("inserts an event and fields persist correctly", func() {
			event, err := outbox.NewEvent(outbox.EventTypeSendGlucoseAlertEmail, "correlation-1", payload)
			Expect(err).ToNot(HaveOccurred())

			err = repo.Create(context.Background(), event)
			Expect(err).ToNot(HaveOccurred())

			var result outbox.Event
			err = collection.FindOne(context.Background(), bson.M{"eventType": string(outbox.EventTypeSendGlucoseAlertEmail)}).Decode(&result)
			Expect(err).ToNot(HaveOccurred())

			Expect(result.Id).ToNot(BeNil())
			Expect(result.EventType).To(Equal(outbox.EventTypeSendGlucoseAlertEmail))
			Expect(result.CorrelationId).To(Equal("correlation-1"))
			Expect(result.CreatedTime).ToNot(BeZero())
			Expect(result.Payload).ToNot(BeEmpty())

			var decodedPayload outbox.SendGlucoseAlertEmailPayload
			Expect(bson.Unmarshal(result.Payload, &decodedPayload)).To(Succeed())
			Expect(decodedPayload).To(Equal(payload))
		})

		It("rejects a second event with the same correlation id", func() {
			event, err := outbox.NewEvent(outbox.EventTypeSendGlucoseAlertEmail, "correlation-2", payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(repo.Create(context.Background(), event)).To(Succeed())

			err = repo.Create(context.Background(), event)
			Expect(err).To(MatchError(outbox.ErrDuplicateEvent))
			Expect(err).To(MatchError(errors.Duplicate))
		})
	})
})
