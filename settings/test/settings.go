package test

import (
	"github.com/tidepool-org/glucose-alerts/settings"
	"github.com/tidepool-org/glucose-alerts/test"
)

// RandomSettings returns valid settings with every alert kind enabled and thresholds
// picked inside their bounds.
func RandomSettings(userId string) settings.AlertSettings {
	s := settings.NewDefaultSettings(userId)
	s.SevereHypoglycemiaThreshold = float64(test.Faker.IntBetween(30, 50))
	s.HypoglycemiaThreshold = float64(test.Faker.IntBetween(60, 80))
	s.HyperglycemiaThreshold = float64(test.Faker.IntBetween(180, 240))
	s.PersistentHyperglycemiaThreshold = float64(test.Faker.IntBetween(250, 300))
	s.PersistentHyperglycemiaWindowHours = test.Faker.IntBetween(2, 24)
	s.PersistentHyperglycemiaMinReadings = test.Faker.IntBetween(2, 10)
	s.NotificationChannels.Email = test.Faker.Bool()
	return s
}
