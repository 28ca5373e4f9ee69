package domain

import (
	"errors"
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
)

var (
	ErrCalendarItemNoAnchor     = errors.New("calendar item needs exactly one of dateTime or startTime")
	ErrCalendarItemNoDuration   = errors.New("calendar item duration must be greater than zero")
	ErrCalendarItemYearlyAnchor = errors.New("a dateTime anchor combined with a repeating option is only valid for yearly mode")
)

// CalendarItem is a recurring or one-shot window of time. Exactly one
// of DateTime (a fixed instant, used standalone or as the month/day/
// time-of-day anchor for RepeatingModeYearly) or StartTime (a
// time-of-day, used with every other repeating mode) must be set.
type CalendarItem struct {
	ID ids.CalendarItemID

	// DateTime anchors a one-shot window, or - combined with
	// RepeatingModeYearly - the month, day and time-of-day that
	// recurs every year.
	DateTime time.Time

	// StartTime anchors an Hourly/Daily/Weekly/Monthly repeating
	// window to a time-of-day, as an offset since midnight.
	StartTime    time.Duration
	HasStartTime bool

	// DurationMinutes is how long the window stays open once it
	// opens.
	DurationMinutes int

	Repeating RepeatingOption
}

// IsValid reports whether the anchor, duration and repeating option
// combination make sense: exactly one of DateTime/StartTime must be
// set, duration must be positive, and a DateTime anchor combined with
// a non-empty repeating option is only valid in yearly mode.
func (c CalendarItem) IsValid() error {
	if c.DurationMinutes <= 0 {
		return ErrCalendarItemNoDuration
	}
	if c.HasStartTime == !c.DateTime.IsZero() {
		return ErrCalendarItemNoAnchor
	}
	if !c.DateTime.IsZero() && !c.Repeating.IsEmpty() && c.Repeating.Mode != RepeatingModeYearly {
		return ErrCalendarItemYearlyAnchor
	}
	if err := c.Repeating.Validate(); err != nil {
		return err
	}
	return nil
}

func (c CalendarItem) duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// within reports whether t falls in [start, end).
func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// atTimeOfDay returns the instant on day's date at the given offset
// since midnight, in day's location.
func atTimeOfDay(day time.Time, offset time.Duration) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(offset)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Evaluate returns true if now falls within this calendar item's
// window, dispatching on the repeating mode the same way spec.md
// §4.4's window-containment table describes.
func (c CalendarItem) Evaluate(now time.Time) bool {
	if c.HasStartTime {
		switch c.Repeating.Mode {
		case RepeatingModeHourly:
			return c.evaluateHourly(now)
		case RepeatingModeWeekly:
			return c.evaluateWeekly(now)
		case RepeatingModeMonthly:
			return c.evaluateMonthly(now)
		case RepeatingModeYearly:
			// A bare StartTime has no month/day to anchor a yearly
			// recurrence to; yearly requires a DateTime anchor.
			return false
		default:
			// RepeatingModeNone is treated as daily.
			return c.evaluateDaily(now)
		}
	}

	if c.Repeating.Mode == RepeatingModeYearly {
		return c.evaluateYearly(now)
	}

	return within(now, c.DateTime, c.DateTime.Add(c.duration()))
}

func (c CalendarItem) evaluateHourly(now time.Time) bool {
	// A window at least an hour long is always open.
	if c.DurationMinutes >= 60 {
		return true
	}

	minute := int(c.StartTime/time.Minute) % 60
	start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, now.Location())
	end := start.Add(c.duration())

	return within(now, start, end) && c.Repeating.EvaluateWeekDay(now) && c.Repeating.EvaluateMonthDay(now)
}

func (c CalendarItem) evaluateDaily(now time.Time) bool {
	// A window at least a day long is always open.
	if c.DurationMinutes >= 1440 {
		return true
	}

	start := atTimeOfDay(now, c.StartTime)
	end := start.Add(c.duration())
	if within(now, start, end) {
		return true
	}

	// A window that started yesterday and spans past midnight.
	yesterdayStart := atTimeOfDay(now.AddDate(0, 0, -1), c.StartTime)
	yesterdayEnd := yesterdayStart.Add(c.duration())
	return within(now, yesterdayStart, yesterdayEnd)
}

func (c CalendarItem) evaluateWeekly(now time.Time) bool {
	// A window at least a week long is always open.
	if c.DurationMinutes >= 10080 {
		return true
	}

	// The Sunday preceding this ISO week's Monday; weekDay offsets
	// 1..7 (Monday..Sunday) are then added on top of it.
	weekAnchor := atTimeOfDay(now.AddDate(0, 0, -isoWeekday(now)), c.StartTime)

	for _, weekDay := range c.Repeating.WeekDays {
		start := weekAnchor.AddDate(0, 0, weekDay)
		end := start.Add(c.duration())
		if within(now, start, end) {
			return true
		}

		sy, sw := start.ISOWeek()
		ey, ew := end.ISOWeek()
		if sy != ey || sw != ew {
			prevStart := start.AddDate(0, 0, -7)
			prevEnd := prevStart.Add(c.duration())
			if within(now, prevStart, prevEnd) {
				return true
			}
		}
	}

	return false
}

func (c CalendarItem) evaluateMonthly(now time.Time) bool {
	monthAnchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Add(c.StartTime)

	for _, monthDay := range c.Repeating.MonthDays {
		start := monthAnchor.AddDate(0, 0, monthDay-1)
		end := start.Add(c.duration())

		// This month's occurrence is still in the future; fall back
		// to last month's.
		if start.After(now) {
			start = start.AddDate(0, -1, 0)
			end = start.Add(c.duration())
		}

		if within(now, start, end) {
			return true
		}
	}

	return false
}

func (c CalendarItem) evaluateYearly(now time.Time) bool {
	anchor := c.DateTime
	duration := c.duration()

	if anchor.Month() == time.February && anchor.Day() == 29 {
		if isLeapYear(now.Year()) {
			start := time.Date(now.Year(), time.February, 29, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), now.Location())
			return within(now, start, start.Add(duration))
		}
		// Non-leap years deterministically have no occurrence of
		// this anchor; only a window carried over from the previous
		// leap year's Feb 29 can still be open.
		prevYear := now.Year() - 1
		if isLeapYear(prevYear) {
			start := time.Date(prevYear, time.February, 29, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), now.Location())
			return within(now, start, start.Add(duration))
		}
		return false
	}

	start := time.Date(now.Year(), anchor.Month(), anchor.Day(), anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), now.Location())
	end := start.Add(duration)
	if within(now, start, end) {
		return true
	}

	if start.Year() != end.Year() {
		prevStart := start.AddDate(-1, 0, 0)
		prevEnd := prevStart.Add(duration)
		if within(now, prevStart, prevEnd) {
			return true
		}
	}

	return false
}
