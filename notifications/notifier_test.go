package notifications_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/notifications"
	"github.com/tidepool-org/glucose-alerts/outbox"
	outboxTest "github.com/tidepool-org/glucose-alerts/outbox/test"
	"github.com/tidepool-org/glucose-alerts/test"
)

var _ = Describe("OutboxNotifier", func() {
	var ctrl *gomock.Controller
	var repository *outboxTest.MockRepository
	var notifier notifications.Notifier

	notification := notifications.Notification{
		CorrelationId:  "correlation-1",
		UserId:         "1234567890",
		RecipientEmail: "patient@example.com",
		AlertId:        "65f2c3a1e4b0a1b2c3d4e5f6",
		Kind:           alerts.KindHypoglycemia,
		Severity:       alerts.SeverityHigh,
		Message:        "Hypoglycemia: glucose 60 mg/dL is below 70 mg/dL",
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		repository = outboxTest.NewMockRepository(ctrl)
		notifier = notifications.NewOutboxNotifier(repository, zap.NewNop().Sugar())
	})

	It("queues a glucose alert email event", func() {
		repository.EXPECT().Create(gomock.Any(), test.Match(func(event outbox.Event) bool {
			payload := outbox.SendGlucoseAlertEmailPayload{}
			if err := bson.Unmarshal(event.Payload, &payload); err != nil {
				return false
			}
			return event.EventType == outbox.EventTypeSendGlucoseAlertEmail &&
				event.CorrelationId == "correlation-1" &&
				payload.RecipientEmail == "patient@example.com" &&
				payload.Kind == "HYPOGLYCEMIA" &&
				payload.Severity == "HIGH" &&
				payload.Message == notification.Message
		})).Return(nil)

		Expect(notifier.Send(context.Background(), notification)).To(Succeed())
	})

	It("returns outbox errors", func() {
		repository.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("write conflict"))

		Expect(notifier.Send(context.Background(), notification)).To(MatchError(ContainSubstring("unable to queue alert email")))
	})
})
