package quiethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a local time of day expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	hours, minutes, ok := strings.Cut(value, ":")
	if !ok || !isTwoDigits(hours) || !isTwoDigits(minutes) {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", value)
	}

	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in time of day %q", value)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in time of day %q", value)
	}

	return TimeOfDay(h*60 + m), nil
}

// TimeOfDayOf returns the time of day of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Contains reports whether current falls in the interval starting at start and ending at
// end. The end is exclusive. An interval whose start is after its end wraps midnight.
func Contains(start, end, current TimeOfDay) bool {
	if start <= end {
		return current >= start && current < end
	}
	return current >= start || current < end
}

func isTwoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}
