package alerts

import (
	"fmt"
	"math"
	"time"

	"github.com/tidepool-org/glucose-alerts/errors"
)

// MaxGlucoseValue is the largest measurement in mg/dL accepted for detection.
const MaxGlucoseValue = 1000.0

// Sample is a single glucose measurement submitted for detection. Time is when the value
// was measured and is kept on the created alert as SampleTime.
type Sample struct {
	UserId string    `json:"userId"`
	Value  float64   `json:"value"`
	Time   time.Time `json:"time"`
	// ReadingId references a manually entered glucose reading
	ReadingId *string `json:"readingId,omitempty"`
	// EntryId references a CGM entry
	EntryId *string `json:"entryId,omitempty"`
}

func (s Sample) Validate() error {
	if s.UserId == "" {
		return fmt.Errorf("%w: user id is required", errors.BadRequest)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return fmt.Errorf("%w: glucose value must be a finite number", errors.BadRequest)
	}
	if s.Value <= 0 || s.Value > MaxGlucoseValue {
		return fmt.Errorf("%w: glucose value %v mg/dL is outside of (0, %v]", errors.BadRequest, s.Value, MaxGlucoseValue)
	}
	return nil
}

// IsSource reports whether the record id identifies the reading or entry the sample was
// created from.
func (s Sample) IsSource(id string) bool {
	return (s.ReadingId != nil && *s.ReadingId == id) || (s.EntryId != nil && *s.EntryId == id)
}
