package settings_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/pointer"
	"github.com/tidepool-org/glucose-alerts/settings"
)

var _ = Describe("Validate", func() {
	var current settings.AlertSettings

	BeforeEach(func() {
		current = settings.NewDefaultSettings("1234567890")
	})

	It("accepts an empty update", func() {
		Expect(settings.Validate(current, settings.Update{})).To(Succeed())
	})

	It("accepts thresholds inside their bounds", func() {
		update := settings.Update{
			SevereHypoglycemiaThreshold:        pointer.FromAny(45.0),
			HypoglycemiaThreshold:              pointer.FromAny(75.0),
			HyperglycemiaThreshold:             pointer.FromAny(200.0),
			PersistentHyperglycemiaThreshold:   pointer.FromAny(300.0),
			PersistentHyperglycemiaWindowHours: pointer.FromAny(6),
			PersistentHyperglycemiaMinReadings: pointer.FromAny(2),
		}
		Expect(settings.Validate(current, update)).To(Succeed())
	})

	Context("severe hypoglycemia threshold must stay below the hypoglycemia threshold", func() {
		It("rejects a severe threshold equal to the stored hypoglycemia threshold", func() {
			current.HypoglycemiaThreshold = 60
			err := settings.Validate(current, settings.Update{SevereHypoglycemiaThreshold: pointer.FromAny(60.0)})
			Expect(err).To(MatchError(errors.ConstraintViolation))
		})

		It("rejects a hypoglycemia threshold below the stored severe threshold", func() {
			current.SevereHypoglycemiaThreshold = 55
			err := settings.Validate(current, settings.Update{HypoglycemiaThreshold: pointer.FromAny(50.0)})
			Expect(err).To(MatchError(errors.ConstraintViolation))
		})

		It("rejects an update that crosses both values at once", func() {
			err := settings.Validate(current, settings.Update{
				SevereHypoglycemiaThreshold: pointer.FromAny(58.0),
				HypoglycemiaThreshold:       pointer.FromAny(50.0),
			})
			Expect(err).To(MatchError(errors.ConstraintViolation))
		})

		It("accepts moving both values when the result is ordered", func() {
			current.SevereHypoglycemiaThreshold = 54
			current.HypoglycemiaThreshold = 70
			err := settings.Validate(current, settings.Update{
				SevereHypoglycemiaThreshold: pointer.FromAny(59.0),
				HypoglycemiaThreshold:       pointer.FromAny(62.0),
			})
			Expect(err).ToNot(HaveOccurred())
		})

		It("reports a bad request when bounds are also violated", func() {
			err := settings.Validate(current, settings.Update{
				SevereHypoglycemiaThreshold: pointer.FromAny(60.0),
				HypoglycemiaThreshold:       pointer.FromAny(40.0),
				HyperglycemiaThreshold:      pointer.FromAny(500.0),
			})
			Expect(err).To(MatchError(errors.BadRequest))

			validationErr := &errors.ValidationError{}
			Expect(err).To(BeAssignableToTypeOf(validationErr))
			Expect(err.(*errors.ValidationError).Fields).To(ContainElement(HaveField("Field", "severeHypoglycemiaThreshold")))
		})
	})

	DescribeTable("field bounds",
		func(update settings.Update, field string) {
			err := settings.Validate(current, update)
			Expect(err).To(MatchError(errors.BadRequest))
			Expect(err.(*errors.ValidationError).Fields).To(ContainElement(HaveField("Field", field)))
		},
		Entry("severe below 30", settings.Update{SevereHypoglycemiaThreshold: pointer.FromAny(29.0)}, "severeHypoglycemiaThreshold"),
		Entry("hypo above 80", settings.Update{HypoglycemiaThreshold: pointer.FromAny(81.0)}, "hypoglycemiaThreshold"),
		Entry("hyper below 180", settings.Update{HyperglycemiaThreshold: pointer.FromAny(179.9)}, "hyperglycemiaThreshold"),
		Entry("persistent above 400", settings.Update{PersistentHyperglycemiaThreshold: pointer.FromAny(401.0)}, "persistentHyperglycemiaThreshold"),
		Entry("window of 1 hour", settings.Update{PersistentHyperglycemiaWindowHours: pointer.FromAny(1)}, "persistentHyperglycemiaWindowHours"),
		Entry("window of 25 hours", settings.Update{PersistentHyperglycemiaWindowHours: pointer.FromAny(25)}, "persistentHyperglycemiaWindowHours"),
		Entry("single reading", settings.Update{PersistentHyperglycemiaMinReadings: pointer.FromAny(1)}, "persistentHyperglycemiaMinReadings"),
		Entry("eleven readings", settings.Update{PersistentHyperglycemiaMinReadings: pointer.FromAny(11)}, "persistentHyperglycemiaMinReadings"),
		Entry("malformed quiet hours start", settings.Update{QuietHoursStart: pointer.FromAny("7pm")}, "quietHoursStart"),
		Entry("out of range quiet hours end", settings.Update{QuietHoursEnd: pointer.FromAny("24:00")}, "quietHoursEnd"),
		Entry("unknown frequency", settings.Update{NotificationFrequency: pointer.FromAny(settings.NotificationFrequency("HOURLY"))}, "notificationFrequency"),
	)

	Context("quiet hours", func() {
		It("requires both bounds when enabled", func() {
			err := settings.Validate(current, settings.Update{
				QuietHoursEnabled: pointer.FromAny(true),
				QuietHoursStart:   pointer.FromAny("22:00"),
			})
			Expect(err).To(MatchError(errors.BadRequest))
		})

		It("accepts enabling quiet hours when the bounds are already stored", func() {
			current.QuietHoursStart = pointer.FromAny("22:00")
			current.QuietHoursEnd = pointer.FromAny("07:00")
			Expect(settings.Validate(current, settings.Update{QuietHoursEnabled: pointer.FromAny(true)})).To(Succeed())
		})

		It("does not mutate the current settings", func() {
			_ = settings.Validate(current, settings.Update{
				QuietHoursEnabled: pointer.FromAny(true),
				QuietHoursStart:   pointer.FromAny("22:00"),
				QuietHoursEnd:     pointer.FromAny("07:00"),
			})
			Expect(current.QuietHoursEnabled).To(BeFalse())
			Expect(current.QuietHoursStart).To(BeNil())
		})
	})
})
