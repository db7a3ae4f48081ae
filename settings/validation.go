package settings

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/mohae/deepcopy"

	"github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/quiethours"
)

type bounds[T int | float64] struct {
	min T
	max T
}

func (b bounds[T]) contains(v T) bool {
	return v >= b.min && v <= b.max
}

var (
	SevereHypoglycemiaThresholdBounds        = bounds[float64]{30, 60}
	HypoglycemiaThresholdBounds              = bounds[float64]{40, 80}
	HyperglycemiaThresholdBounds             = bounds[float64]{180, 400}
	PersistentHyperglycemiaThresholdBounds   = bounds[float64]{180, 400}
	PersistentHyperglycemiaWindowHoursBounds = bounds[int]{2, 24}
	PersistentHyperglycemiaMinReadingsBounds = bounds[int]{2, 10}
)

var notificationFrequencies = mapset.NewSet(
	NotificationFrequencyImmediate,
	NotificationFrequencyDaily,
	NotificationFrequencyWeekly,
)

// Validate checks the update against the field bounds and against the settings that would
// result from applying it to current.
func Validate(current AlertSettings, update Update) error {
	result := &errors.ValidationError{Kind: errors.BadRequest}

	checkBounds(result, "severeHypoglycemiaThreshold", update.SevereHypoglycemiaThreshold, SevereHypoglycemiaThresholdBounds)
	checkBounds(result, "hypoglycemiaThreshold", update.HypoglycemiaThreshold, HypoglycemiaThresholdBounds)
	checkBounds(result, "hyperglycemiaThreshold", update.HyperglycemiaThreshold, HyperglycemiaThresholdBounds)
	checkBounds(result, "persistentHyperglycemiaThreshold", update.PersistentHyperglycemiaThreshold, PersistentHyperglycemiaThresholdBounds)
	checkBounds(result, "persistentHyperglycemiaWindowHours", update.PersistentHyperglycemiaWindowHours, PersistentHyperglycemiaWindowHoursBounds)
	checkBounds(result, "persistentHyperglycemiaMinReadings", update.PersistentHyperglycemiaMinReadings, PersistentHyperglycemiaMinReadingsBounds)

	checkTimeOfDay(result, "quietHoursStart", update.QuietHoursStart)
	checkTimeOfDay(result, "quietHoursEnd", update.QuietHoursEnd)

	if update.NotificationFrequency != nil && !notificationFrequencies.Contains(*update.NotificationFrequency) {
		result.Add("notificationFrequency", fmt.Sprintf("unsupported value %q", *update.NotificationFrequency))
	}

	effective := deepcopy.Copy(current).(AlertSettings)
	update.ApplyTo(&effective)

	if effective.QuietHoursEnabled && (effective.QuietHoursStart == nil || effective.QuietHoursEnd == nil) {
		result.Add("quietHours", "start and end are required when quiet hours are enabled")
	}

	if effective.SevereHypoglycemiaThreshold >= effective.HypoglycemiaThreshold {
		if !result.HasErrors() {
			result.Kind = errors.ConstraintViolation
		}
		result.Add("severeHypoglycemiaThreshold", fmt.Sprintf(
			"must be below the hypoglycemia threshold (%v >= %v)",
			effective.SevereHypoglycemiaThreshold, effective.HypoglycemiaThreshold,
		))
	}

	return result.OrNil()
}

func checkBounds[T int | float64](result *errors.ValidationError, field string, value *T, b bounds[T]) {
	if value != nil && !b.contains(*value) {
		result.Add(field, fmt.Sprintf("must be between %v and %v", b.min, b.max))
	}
}

func checkTimeOfDay(result *errors.ValidationError, field string, value *string) {
	if value == nil {
		return
	}
	if _, err := quiethours.ParseTimeOfDay(*value); err != nil {
		result.Add(field, err.Error())
	}
}
