package domain

import (
	"time"

	"github.com/nymea-go/thingd/internal/catalogue"
	timeenginedomain "github.com/nymea-go/thingd/internal/timeengine/domain"
	"github.com/nymea-go/thingd/pkg/ids"
)

// Rule generalizes the teacher's flat AutomationRule (events +
// ConditionOperator-joined conditions) into the tree-structured model
// spec.md §4.5 requires: an OR-matched set of EventDescriptors, an
// optional recursive StateEvaluator, an optional edge-triggered
// TimeDescriptor, and separate entry/exit action lists driven by an
// explicit active/inactive transition rather than a cooldown window.
type Rule struct {
	ID         ids.RuleID
	Name       string
	Enabled    bool
	Executable bool

	Events         []EventDescriptor
	TimeDescriptor *timeenginedomain.TimeDescriptor
	StateEvaluator *StateEvaluator

	Actions     []RuleAction
	ExitActions []RuleAction

	// Active is the rule's last-computed activity state, persisted
	// across evaluations so Transition can detect the false->true and
	// true->false edges spec.md §4.5 fires actions/exitActions on.
	Active bool
}

// TracksActivity reports whether this rule has an activity concept at
// all: rules with neither a StateEvaluator nor calendar items only ever
// trigger on events, per spec.md §4.5 "Rules without a stateEvaluator
// and without calendarItems do not track activity".
func (r Rule) TracksActivity() bool {
	return r.StateEvaluator != nil || (r.TimeDescriptor != nil && len(r.TimeDescriptor.CalendarItems) > 0)
}

// ComputeActive evaluates whether the rule is active right now: its
// StateEvaluator (if any) must be true, and - if its TimeDescriptor
// carries calendar items - at least one must contain now. A rule with
// neither is never active.
func (r Rule) ComputeActive(now time.Time, resolver ThingStateResolver) bool {
	if !r.TracksActivity() {
		return false
	}

	if r.StateEvaluator != nil && !r.StateEvaluator.Evaluate(resolver) {
		return false
	}

	if r.TimeDescriptor != nil && len(r.TimeDescriptor.CalendarItems) > 0 {
		inWindow := false
		for _, item := range r.TimeDescriptor.CalendarItems {
			if item.Evaluate(now) {
				inWindow = true
				break
			}
		}
		if !inWindow {
			return false
		}
	}

	return true
}

// Transition recomputes activity and reports which edge, if any, was
// just crossed. The caller is responsible for executing r.Actions on
// becameActive and r.ExitActions on becameInactive.
func (r *Rule) Transition(now time.Time, resolver ThingStateResolver) (becameActive, becameInactive bool) {
	wasActive := r.Active
	r.Active = r.ComputeActive(now, resolver)

	if !wasActive && r.Active {
		return true, false
	}
	if wasActive && !r.Active {
		return false, true
	}
	return false, false
}

// Triggered reports whether an inbound event fires this rule: any event
// descriptor matches, and - if present - the StateEvaluator is true and
// the TimeDescriptor's edge-trigger fires over (lastTick, now].
func (r Rule) Triggered(event EventDescriptorMatch, lastTick, now time.Time, resolver ThingStateResolver) bool {
	matched := false
	for _, d := range r.Events {
		if d.Matches(event.Event, event.FiringClass) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if r.StateEvaluator != nil && !r.StateEvaluator.Evaluate(resolver) {
		return false
	}

	if r.TimeDescriptor != nil && !r.TimeDescriptor.Evaluate(lastTick, now) {
		return false
	}

	return true
}

// EventDescriptorMatch bundles an inbound event with the catalogue class
// of the thing that fired it, resolved once by the caller (the
// application layer, which has access to the Thing Registry and Type
// Catalogue) rather than by the domain model itself.
type EventDescriptorMatch struct {
	Event       ThingEvent
	FiringClass *catalogue.ThingClass
}
