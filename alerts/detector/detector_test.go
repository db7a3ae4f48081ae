package detector_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts"
	"github.com/tidepool-org/glucose-alerts/alerts/detector"
	detectorTest "github.com/tidepool-org/glucose-alerts/alerts/detector/test"
	"github.com/tidepool-org/glucose-alerts/alerts/persistent"
	persistentTest "github.com/tidepool-org/glucose-alerts/alerts/persistent/test"
	alertsTest "github.com/tidepool-org/glucose-alerts/alerts/test"
	"github.com/tidepool-org/glucose-alerts/clock"
	"github.com/tidepool-org/glucose-alerts/config"
	glucoseErrors "github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/notifications"
	notificationsTest "github.com/tidepool-org/glucose-alerts/notifications/test"
	"github.com/tidepool-org/glucose-alerts/pointer"
	"github.com/tidepool-org/glucose-alerts/readings"
	"github.com/tidepool-org/glucose-alerts/settings"
	settingsTest "github.com/tidepool-org/glucose-alerts/settings/test"
	"github.com/tidepool-org/glucose-alerts/users"
	usersTest "github.com/tidepool-org/glucose-alerts/users/test"
)

var _ = Describe("Detector", func() {
	var ctrl *gomock.Controller
	var settingsService *settingsTest.MockService
	var alertsRepository *alertsTest.MockRepository
	var history *persistentTest.MockHistory
	var notifier *notificationsTest.MockNotifier
	var usersRepository *usersTest.MockRepository
	var dispatcher *notifications.Dispatcher
	var d alerts.Detector
	var s settings.AlertSettings

	userId := "1234567890"
	now := time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

	sample := func(value float64) alerts.Sample {
		return alerts.Sample{UserId: userId, Value: value, Time: now}
	}

	created := func() {
		alertsRepository.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, alert alerts.Alert) (*alerts.Alert, error) {
			return alertsTest.Stored(alert, alert.CreatedTime), nil
		})
	}

	detect := func(sample alerts.Sample) (*alerts.Alert, error) {
		alert, err := d.Detect(context.Background(), sample)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(dispatcher.Drain(ctx)).To(Succeed())
		return alert, err
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		settingsService = settingsTest.NewMockService(ctrl)
		alertsRepository = alertsTest.NewMockRepository(ctrl)
		history = persistentTest.NewMockHistory(ctrl)
		notifier = notificationsTest.NewMockNotifier(ctrl)
		usersRepository = usersTest.NewMockRepository(ctrl)
		logger := zap.NewNop().Sugar()

		tracker := persistent.NewTracker(persistent.Params{
			History:          history,
			AlertsRepository: alertsRepository,
			Logger:           logger,
		})
		dispatcher = notifications.NewDispatcher(notifications.DispatcherParams{
			Gate:            notifications.NewGate(notificationsTest.NewMockQuietHours(ctrl)),
			Notifier:        notifier,
			UsersRepository: usersRepository,
			Clock:           clock.Fixed(now),
			Config:          &notifications.Config{DispatchTimeout: time.Second},
			AppConfig:       &config.Config{DefaultTimezone: "UTC"},
			Logger:          logger,
			Lifecycle:       fxtest.NewLifecycle(GinkgoT()),
		})
		d = detector.NewDetector(detector.Params{
			Settings:         settingsService,
			Resolver:         detector.NewResolver(tracker),
			AlertsRepository: alertsRepository,
			Dispatcher:       detector.NewDispatcher(dispatcher),
			Clock:            clock.Fixed(now),
			Logger:           logger,
		})

		s = settings.NewDefaultSettings(userId)
		settingsService.EXPECT().Get(gomock.Any(), userId).DoAndReturn(func(context.Context, string) (*settings.AlertSettings, error) {
			return &s, nil
		}).AnyTimes()
	})

	It("creates a single severe hypoglycemia alert without notifying when email is disabled", func() {
		s.NotificationChannels.Email = false
		alertsRepository.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, alert alerts.Alert) (*alerts.Alert, error) {
			Expect(alert.Kind).To(Equal(alerts.KindSevereHypoglycemia))
			Expect(alert.Severity).To(Equal(alerts.SeverityCritical))
			Expect(alert.Value).To(Equal(50.0))
			Expect(alert.Threshold).To(Equal(54.0))
			Expect(alert.CreatedTime).To(Equal(now))
			return alertsTest.Stored(alert, alert.CreatedTime), nil
		}).Times(1)

		alert, err := detect(sample(50))
		Expect(err).ToNot(HaveOccurred())
		Expect(alert).ToNot(BeNil())
		Expect(alert.Id).ToNot(BeNil())
	})

	It("notifies the recipient when email is enabled", func() {
		s.NotificationChannels.Email = true
		created()
		usersRepository.EXPECT().Get(gomock.Any(), userId).Return(&users.User{UserId: userId, Email: "patient@example.com"}, nil)
		notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		_, err := detect(sample(60))
		Expect(err).ToNot(HaveOccurred())
	})

	It("returns the alert even when the notification fails", func() {
		s.NotificationChannels.Email = true
		created()
		usersRepository.EXPECT().Get(gomock.Any(), userId).Return(&users.User{UserId: userId, Email: "patient@example.com"}, nil)
		notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp unavailable"))

		alert, err := detect(sample(60))
		Expect(err).ToNot(HaveOccurred())
		Expect(alert.Kind).To(Equal(alerts.KindHypoglycemia))
	})

	It("does not create an alert for a value in range", func() {
		alert, err := detect(sample(120))
		Expect(err).ToNot(HaveOccurred())
		Expect(alert).To(BeNil())
	})

	It("does not create alerts when alerts are disabled", func() {
		s.AlertsEnabled = false
		for _, value := range []float64{20, 50, 65, 200, 300, 600} {
			alert, err := detect(sample(value))
			Expect(err).ToNot(HaveOccurred())
			Expect(alert).To(BeNil())
		}
	})

	It("keeps the references to the originating records", func() {
		alertsRepository.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, alert alerts.Alert) (*alerts.Alert, error) {
			Expect(alert.ReadingId).To(Equal(pointer.FromAny("reading-1")))
			Expect(alert.EntryId).To(Equal(pointer.FromAny("entry-1")))
			return alertsTest.Stored(alert, alert.CreatedTime), nil
		})

		current := sample(200)
		current.ReadingId = pointer.FromAny("reading-1")
		current.EntryId = pointer.FromAny("entry-1")
		alert, err := detect(current)
		Expect(err).ToNot(HaveOccurred())
		Expect(alert.Kind).To(Equal(alerts.KindHyperglycemia))
	})

	It("stores the measurement time of the sample separately from the creation time", func() {
		measured := now.Add(-7 * time.Minute)
		alertsRepository.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, alert alerts.Alert) (*alerts.Alert, error) {
			Expect(alert.SampleTime).ToNot(BeNil())
			Expect(*alert.SampleTime).To(Equal(measured))
			Expect(alert.CreatedTime).To(Equal(now))
			return alertsTest.Stored(alert, alert.CreatedTime), nil
		})

		current := sample(50)
		current.Time = measured
		alert, err := detect(current)
		Expect(err).ToNot(HaveOccurred())
		Expect(*alert.SampleTime).To(Equal(measured))
	})

	It("does not store a measurement time when the sample has none", func() {
		alertsRepository.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, alert alerts.Alert) (*alerts.Alert, error) {
			Expect(alert.SampleTime).To(BeNil())
			return alertsTest.Stored(alert, alert.CreatedTime), nil
		})

		current := sample(50)
		current.Time = time.Time{}
		_, err := detect(current)
		Expect(err).ToNot(HaveOccurred())
	})

	It("rejects invalid samples before loading settings", func() {
		_, err := d.Detect(context.Background(), alerts.Sample{Value: 100})
		Expect(err).To(MatchError(glucoseErrors.BadRequest))
	})

	It("fails when the alert cannot be stored", func() {
		alertsRepository.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		alert, err := detect(sample(50))
		Expect(err).To(MatchError(ContainSubstring("unable to create alert")))
		Expect(alert).To(BeNil())
	})

	Describe("persistent hyperglycemia", func() {
		windowStart := now.Add(-4 * time.Hour)

		BeforeEach(func() {
			s.PersistentHyperglycemiaThreshold = 250
			s.PersistentHyperglycemiaMinReadings = 2
			s.PersistentHyperglycemiaWindowHours = 4
		})

		It("fires with one prior qualifying reading", func() {
			history.EXPECT().Since(gomock.Any(), userId, windowStart).Return([]readings.HistoricalReading{
				{Id: "e1", Source: "entry", Value: 260, Time: now.Add(-time.Hour)},
			}, nil)
			alertsRepository.EXPECT().FindLatest(gomock.Any(), userId, alerts.KindPersistentHyperglycemia, windowStart).Return(nil, nil)
			created()

			alert, err := detect(sample(280))
			Expect(err).ToNot(HaveOccurred())
			Expect(alert.Kind).To(Equal(alerts.KindPersistentHyperglycemia))
			Expect(alert.Severity).To(Equal(alerts.SeverityHigh))
		})

		It("falls back to hyperglycemia when a persistent alert exists in the window", func() {
			existing := alertsTest.Stored(alerts.Alert{UserId: userId, Kind: alerts.KindPersistentHyperglycemia}, now.Add(-30*time.Minute))
			history.EXPECT().Since(gomock.Any(), userId, windowStart).Return([]readings.HistoricalReading{
				{Id: "e1", Source: "entry", Value: 260, Time: now.Add(-time.Hour)},
				{Id: "e2", Source: "entry", Value: 280, Time: now.Add(-30 * time.Minute)},
			}, nil)
			alertsRepository.EXPECT().FindLatest(gomock.Any(), userId, alerts.KindPersistentHyperglycemia, windowStart).Return(existing, nil)
			created()

			alert, err := detect(sample(290))
			Expect(err).ToNot(HaveOccurred())
			Expect(alert.Kind).To(Equal(alerts.KindHyperglycemia))
			Expect(alert.Severity).To(Equal(alerts.SeverityMedium))
		})

		It("creates nothing when the condition is not reached and hyperglycemia is disabled", func() {
			s.HyperglycemiaEnabled = false
			history.EXPECT().Since(gomock.Any(), userId, windowStart).Return(nil, nil)

			alert, err := detect(sample(280))
			Expect(err).ToNot(HaveOccurred())
			Expect(alert).To(BeNil())
		})

		It("fails when the history cannot be fetched", func() {
			history.EXPECT().Since(gomock.Any(), userId, windowStart).Return(nil, errors.New("timeout"))

			alert, err := detect(sample(280))
			Expect(err).To(HaveOccurred())
			Expect(alert).To(BeNil())
		})
	})

	Describe("with a mocked resolver", func() {
		It("uses the count of the resolution in the message", func() {
			resolver := detectorTest.NewMockResolver(ctrl)
			dispatch := detectorTest.NewMockDispatcher(ctrl)
			d = detector.NewDetector(detector.Params{
				Settings:         settingsService,
				Resolver:         resolver,
				AlertsRepository: alertsRepository,
				Dispatcher:       dispatch,
				Clock:            clock.Fixed(now),
				Logger:           zap.NewNop().Sugar(),
			})

			resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), &s, now).Return(persistent.Resolution{Fire: true, Count: 5}, nil)
			created()
			dispatch.EXPECT().Dispatch(gomock.Any(), s).Times(1)

			alert, err := d.Detect(context.Background(), sample(300))
			Expect(err).ToNot(HaveOccurred())
			Expect(alert.Message).To(ContainSubstring("5 readings"))
		})
	})
})
