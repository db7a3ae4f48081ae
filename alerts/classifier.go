package alerts

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tidepool-org/glucose-alerts/settings"
)

// ErrInvariantViolation is raised when a glucose value would qualify for a low and a high
// alert at the same time. Validated settings make this unreachable.
var ErrInvariantViolation = errors.New("alert classification invariant violation")

var printer = message.NewPrinter(language.English)

// Verdict is the outcome of classifying a glucose value.
type Verdict struct {
	Kind      Kind
	Severity  Severity
	Value     float64
	Threshold float64
	Message   string
}

type rule struct {
	kind     Kind
	severity Severity
	enabled  func(s *settings.AlertSettings) bool
	// matches must only look at the band of the rule, priority is given by rule order
	matches   func(value float64, s *settings.AlertSettings) bool
	threshold func(s *settings.AlertSettings) float64
	message   string
}

var (
	severeHypoglycemiaRule = rule{
		kind:     KindSevereHypoglycemia,
		severity: SeverityCritical,
		enabled:  func(s *settings.AlertSettings) bool { return s.SevereHypoglycemiaEnabled },
		matches: func(value float64, s *settings.AlertSettings) bool {
			return value < s.SevereHypoglycemiaThreshold
		},
		threshold: func(s *settings.AlertSettings) float64 { return s.SevereHypoglycemiaThreshold },
		message:   "Severe hypoglycemia: glucose %v mg/dL is below %v mg/dL",
	}
	hypoglycemiaRule = rule{
		kind:     KindHypoglycemia,
		severity: SeverityHigh,
		enabled:  func(s *settings.AlertSettings) bool { return s.HypoglycemiaEnabled },
		matches: func(value float64, s *settings.AlertSettings) bool {
			return value >= s.SevereHypoglycemiaThreshold && value < s.HypoglycemiaThreshold
		},
		threshold: func(s *settings.AlertSettings) float64 { return s.HypoglycemiaThreshold },
		message:   "Hypoglycemia: glucose %v mg/dL is below %v mg/dL",
	}
	persistentHyperglycemiaRule = rule{
		kind:     KindPersistentHyperglycemia,
		severity: SeverityHigh,
		enabled:  func(s *settings.AlertSettings) bool { return s.PersistentHyperglycemiaEnabled },
		matches: func(value float64, s *settings.AlertSettings) bool {
			return value > s.PersistentHyperglycemiaThreshold
		},
		threshold: func(s *settings.AlertSettings) float64 { return s.PersistentHyperglycemiaThreshold },
		message:   "Persistent hyperglycemia candidate: glucose %v mg/dL is above %v mg/dL",
	}
	hyperglycemiaRule = rule{
		kind:     KindHyperglycemia,
		severity: SeverityMedium,
		enabled:  func(s *settings.AlertSettings) bool { return s.HyperglycemiaEnabled },
		matches: func(value float64, s *settings.AlertSettings) bool {
			return value > s.HyperglycemiaThreshold
		},
		threshold: func(s *settings.AlertSettings) float64 { return s.HyperglycemiaThreshold },
		message:   "Hyperglycemia: glucose %v mg/dL is above %v mg/dL",
	}
)

// rules are evaluated in order and the first enabled match wins
var rules = []rule{
	severeHypoglycemiaRule,
	hypoglycemiaRule,
	persistentHyperglycemiaRule,
	hyperglycemiaRule,
}

func (r rule) evaluate(value float64, s *settings.AlertSettings) *Verdict {
	if !r.enabled(s) || !r.matches(value, s) {
		return nil
	}
	threshold := r.threshold(s)
	return &Verdict{
		Kind:      r.kind,
		Severity:  r.severity,
		Value:     value,
		Threshold: threshold,
		Message:   printer.Sprintf(r.message, value, threshold),
	}
}

// Classify returns the verdict of the highest priority enabled rule matching value, or
// nil. A PERSISTENT_HYPERGLYCEMIA verdict is only a candidate and has to be resolved
// against the history of the user before an alert is created.
func Classify(value float64, s *settings.AlertSettings) *Verdict {
	if s == nil || !s.AlertsEnabled {
		return nil
	}

	assertExclusive(value, s)
	for _, r := range rules {
		if verdict := r.evaluate(value, s); verdict != nil {
			return verdict
		}
	}
	return nil
}

// Fallback returns the regular hyperglycemia verdict used when a persistent candidate does
// not fire.
func Fallback(value float64, s *settings.AlertSettings) *Verdict {
	if s == nil || !s.AlertsEnabled {
		return nil
	}
	return hyperglycemiaRule.evaluate(value, s)
}

// PersistentVerdict returns the verdict of a persistent hyperglycemia condition confirmed
// by count qualifying readings inside the window.
func PersistentVerdict(value float64, s *settings.AlertSettings, count int) *Verdict {
	return &Verdict{
		Kind:      KindPersistentHyperglycemia,
		Severity:  SeverityHigh,
		Value:     value,
		Threshold: s.PersistentHyperglycemiaThreshold,
		Message: printer.Sprintf(
			"Persistent hyperglycemia: glucose %v mg/dL is above %v mg/dL with %d readings above the threshold in the last %d hours",
			value, s.PersistentHyperglycemiaThreshold, count, s.PersistentHyperglycemiaWindowHours,
		),
	}
}

func assertExclusive(value float64, s *settings.AlertSettings) {
	low := 0
	for _, r := range []rule{severeHypoglycemiaRule, hypoglycemiaRule} {
		if r.enabled(s) && r.matches(value, s) {
			low++
		}
	}
	high := false
	for _, r := range []rule{persistentHyperglycemiaRule, hyperglycemiaRule} {
		if r.enabled(s) && r.matches(value, s) {
			high = true
		}
	}
	if low > 1 || (low == 1 && high) {
		panic(fmt.Errorf("%w: glucose value %v matches low and high alert bands", ErrInvariantViolation, value))
	}
}
