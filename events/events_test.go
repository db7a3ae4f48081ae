package events_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/segmentio/kafka-go"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tidepool-org/glucose-alerts/alerts"
	alertsTest "github.com/tidepool-org/glucose-alerts/alerts/test"
	glucoseErrors "github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/events"
	eventsTest "github.com/tidepool-org/glucose-alerts/events/test"
	"github.com/tidepool-org/glucose-alerts/pointer"
)

var _ = Describe("Consumer", func() {
	var ctrl *gomock.Controller
	var reader *eventsTest.MockMessageReader
	var detector *alertsTest.MockDetector
	var logs *observer.ObservedLogs
	var consumer *events.Consumer

	published := time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		reader = eventsTest.NewMockMessageReader(ctrl)
		detector = alertsTest.NewMockDetector(ctrl)

		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		cfg := &events.Config{RetryDelay: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond}
		consumer = events.New(reader, detector, cfg, zap.New(core).Sugar())
	})

	Describe("Handle", func() {
		It("runs detection for the decoded sample", func() {
			msg := kafka.Message{
				Value: []byte(`{"userId":"1234567890","value":280,"time":"2024-03-14T11:55:00Z","entryId":"e1"}`),
				Time:  published,
			}
			detector.EXPECT().Detect(gomock.Any(), alerts.Sample{
				UserId:  "1234567890",
				Value:   280,
				Time:    time.Date(2024, time.March, 14, 11, 55, 0, 0, time.UTC),
				EntryId: pointer.FromAny("e1"),
			}).Return(nil, nil)

			Expect(consumer.Handle(context.Background(), msg)).To(Succeed())
		})

		It("uses the message time when the sample has none", func() {
			msg := kafka.Message{Value: []byte(`{"userId":"1234567890","value":60}`), Time: published}
			detector.EXPECT().Detect(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, sample alerts.Sample) (*alerts.Alert, error) {
				Expect(sample.Time).To(Equal(published))
				return nil, nil
			})

			Expect(consumer.Handle(context.Background(), msg)).To(Succeed())
		})

		It("rejects malformed messages", func() {
			err := consumer.Handle(context.Background(), kafka.Message{Value: []byte(`{"value":`)})
			Expect(err).To(MatchError(glucoseErrors.BadRequest))
		})
	})

	Describe("Run", func() {
		var ctx context.Context
		var cancel context.CancelFunc

		stopOnNextFetch := func() *gomock.Call {
			return reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
				cancel()
				return kafka.Message{}, context.Canceled
			})
		}

		BeforeEach(func() {
			ctx, cancel = context.WithCancel(context.Background())
		})

		AfterEach(func() {
			cancel()
		})

		It("commits handled messages and stops when the context is cancelled", func() {
			first := kafka.Message{Offset: 1, Value: []byte(`{"userId":"1234567890","value":50}`)}
			second := kafka.Message{Offset: 2, Value: []byte(`{"userId":"1234567890","value":60}`)}

			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(first, nil),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(nil, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), first).Return(nil),
				reader.EXPECT().FetchMessage(gomock.Any()).Return(second, nil),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(nil, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), second).Return(nil),
				stopOnNextFetch(),
			)

			Expect(consumer.Run(ctx)).To(Succeed())
		})

		It("retries a sample whose detection failed with a storage error before committing it", func() {
			msg := kafka.Message{Offset: 7, Value: []byte(`{"userId":"u1","value":40}`)}
			storageErr := errors.New("mongo: server selection timeout")

			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(nil, storageErr).Times(2),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(&alerts.Alert{UserId: "u1"}, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
				stopOnNextFetch(),
			)

			Expect(consumer.Run(ctx)).To(Succeed())
			Expect(logs.FilterMessage("retrying kafka glucose sample consumer").Len()).To(Equal(2))
		})

		It("does not commit a sample while detection keeps failing with a storage error", func() {
			msg := kafka.Message{Offset: 7, Value: []byte(`{"userId":"u1","value":40}`)}
			attempts := 0

			reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil)
			detector.EXPECT().Detect(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, alerts.Sample) (*alerts.Alert, error) {
				attempts++
				if attempts == 3 {
					cancel()
				}
				return nil, errors.New("mongo: server selection timeout")
			}).Times(3)

			Expect(consumer.Run(ctx)).To(Succeed())
			Expect(logs.FilterMessage("discarding glucose sample that cannot be processed").Len()).To(Equal(0))
		})

		It("commits malformed messages without retrying them", func() {
			msg := kafka.Message{Offset: 3, Value: []byte(`{"value":`)}

			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
				stopOnNextFetch(),
			)

			Expect(consumer.Run(ctx)).To(Succeed())
			Expect(logs.FilterMessage("discarding glucose sample that cannot be processed").Len()).To(Equal(1))
			Expect(logs.FilterMessage("retrying kafka glucose sample consumer").Len()).To(Equal(0))
		})

		It("commits samples rejected by validation without retrying them", func() {
			msg := kafka.Message{Offset: 4, Value: []byte(`{"userId":"1234567890","value":1200}`)}

			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("%w: glucose value out of range", glucoseErrors.BadRequest)),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
				stopOnNextFetch(),
			)

			Expect(consumer.Run(ctx)).To(Succeed())
			Expect(logs.FilterMessage("discarding glucose sample that cannot be processed").Len()).To(Equal(1))
		})

		It("keeps consuming after a fetch error", func() {
			msg := kafka.Message{Offset: 5, Value: []byte(`{"userId":"1234567890","value":50}`)}

			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker unavailable")),
				reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(nil, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
				stopOnNextFetch(),
			)

			Expect(consumer.Run(ctx)).To(Succeed())
			Expect(logs.FilterMessage("retrying kafka glucose sample consumer").Len()).To(Equal(1))
		})

		It("retries a failed commit without evaluating the sample again", func() {
			msg := kafka.Message{Offset: 6, Value: []byte(`{"userId":"1234567890","value":50}`)}

			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
				detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(nil, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(errors.New("coordinator not available")),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
				stopOnNextFetch(),
			)

			Expect(consumer.Run(ctx)).To(Succeed())
		})
	})
})
