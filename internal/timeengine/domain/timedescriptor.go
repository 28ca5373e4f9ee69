package domain

import (
	"errors"
	"time"
)

var ErrTimeDescriptorMixed = errors.New("a time descriptor may hold calendar items or time events, never both")

// TimeDescriptor is the time-based condition of a rule: either a list
// of CalendarItems (window-containment, always OR-connected) or a list
// of TimeEventItems (edge-triggered, always OR-connected), never both.
type TimeDescriptor struct {
	CalendarItems  []CalendarItem
	TimeEventItems []TimeEventItem
}

// IsEmpty reports whether neither list carries anything.
func (d TimeDescriptor) IsEmpty() bool {
	return len(d.CalendarItems) == 0 && len(d.TimeEventItems) == 0
}

// IsValid reports whether exactly one of the two lists is populated.
func (d TimeDescriptor) IsValid() error {
	if (len(d.CalendarItems) > 0) == (len(d.TimeEventItems) > 0) {
		return ErrTimeDescriptorMixed
	}
	return nil
}

// Evaluate reports whether this descriptor is satisfied for the tick
// from lastEvaluationTime to now: true if any CalendarItem currently
// contains now, or any TimeEventItem fires on this tick.
func (d TimeDescriptor) Evaluate(lastEvaluationTime, now time.Time) bool {
	for _, item := range d.CalendarItems {
		if item.Evaluate(now) {
			return true
		}
	}
	for _, item := range d.TimeEventItems {
		if item.Evaluate(lastEvaluationTime, now) {
			return true
		}
	}
	return false
}
