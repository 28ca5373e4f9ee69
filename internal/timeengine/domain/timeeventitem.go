package domain

import (
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
)

// TimeEventItem is an edge-triggered instant: it fires once when the
// dispatcher clock crosses it, rather than describing a window like
// CalendarItem does. Exactly one of DateTime or Time must be set, with
// the same DateTime-plus-yearly-repeating exception as CalendarItem.
type TimeEventItem struct {
	ID ids.TimeEventItemID

	// DateTime anchors a one-shot event, or - combined with
	// RepeatingModeYearly - the month, day and time-of-day that
	// recurs every year.
	DateTime time.Time

	// Time anchors an hourly/daily/weekly/monthly repeating event to
	// a time-of-day, as an offset since midnight.
	Time    time.Duration
	HasTime bool

	Repeating RepeatingOption
}

// IsValid reports whether the anchor and repeating option combination
// make sense: exactly one of DateTime/Time must be set, and a DateTime
// anchor combined with a non-empty repeating option is only valid in
// yearly mode.
func (t TimeEventItem) IsValid() error {
	if t.HasTime == !t.DateTime.IsZero() {
		return ErrCalendarItemNoAnchor
	}
	if !t.DateTime.IsZero() && !t.Repeating.IsEmpty() && t.Repeating.Mode != RepeatingModeYearly {
		return ErrCalendarItemYearlyAnchor
	}
	return t.Repeating.Validate()
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// Evaluate reports whether this event fires crossing from
// lastEvaluationTime (exclusive) to now (inclusive).
func (t TimeEventItem) Evaluate(lastEvaluationTime, now time.Time) bool {
	if t.HasTime {
		switch t.Repeating.Mode {
		case RepeatingModeHourly:
			// Hourly events compare only the minute/second
			// components, ignoring which hour it is.
			begin := timeOfDay(lastEvaluationTime) % time.Hour
			end := timeOfDay(now) % time.Hour
			at := t.Time % time.Hour
			return begin < at && at <= end
		case RepeatingModeWeekly:
			return t.Repeating.EvaluateWeekDay(now) &&
				timeOfDay(lastEvaluationTime) < t.Time && t.Time <= timeOfDay(now)
		case RepeatingModeMonthly:
			return t.Repeating.EvaluateMonthDay(now) &&
				timeOfDay(lastEvaluationTime) < t.Time && t.Time <= timeOfDay(now)
		case RepeatingModeYearly:
			// A bare Time has no month/day to anchor a yearly
			// recurrence to.
			return false
		default:
			// RepeatingModeNone is treated as daily.
			return timeOfDay(lastEvaluationTime) < t.Time && t.Time <= timeOfDay(now)
		}
	}

	if t.Repeating.Mode == RepeatingModeYearly {
		// A Feb 29 anchor has no occurrence in a non-leap year, rather
		// than being normalized to March 1 by time.Date.
		if t.DateTime.Month() == time.February && t.DateTime.Day() == 29 && !isLeapYear(now.Year()) {
			return false
		}
		adjusted := time.Date(now.Year(), t.DateTime.Month(), t.DateTime.Day(),
			t.DateTime.Hour(), t.DateTime.Minute(), t.DateTime.Second(), t.DateTime.Nanosecond(), now.Location())
		return lastEvaluationTime.Before(adjusted) && !adjusted.After(now)
	}

	return lastEvaluationTime.Before(t.DateTime) && !t.DateTime.After(now)
}
