package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	timeenginedomain "github.com/nymea-go/thingd/internal/timeengine/domain"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

func TestRuleWithoutStateEvaluatorOrCalendarItemsNeverTracksActivity(t *testing.T) {
	rule := Rule{Events: []EventDescriptor{{ThingID: ptrThingID(ids.NewThingID())}}}
	assert.False(t, rule.TracksActivity())
	assert.False(t, rule.ComputeActive(time.Now(), newFakeResolver()))
}

func TestRuleComputeActiveRequiresStateEvaluatorTrue(t *testing.T) {
	resolver := newFakeResolver()
	thingID := ids.NewThingID()
	stateTypeID := ids.NewStateTypeID()
	resolver.setState(thingID, stateTypeID, values.Bool(true))

	rule := Rule{
		StateEvaluator: &StateEvaluator{StateDescriptor: &StateDescriptor{ThingID: &thingID, StateTypeID: stateTypeID, Operator: ComparisonEqual, Value: values.Bool(true)}},
	}
	assert.True(t, rule.ComputeActive(time.Now(), resolver))

	resolver.setState(thingID, stateTypeID, values.Bool(false))
	assert.False(t, rule.ComputeActive(time.Now(), resolver))
}

func TestRuleComputeActiveRequiresACalendarWindow(t *testing.T) {
	resolver := newFakeResolver()
	now := time.Date(2026, 8, 3, 9, 15, 0, 0, time.UTC)

	rule := Rule{
		TimeDescriptor: &timeenginedomain.TimeDescriptor{
			CalendarItems: []timeenginedomain.CalendarItem{
				{HasStartTime: true, StartTime: 9 * time.Hour, DurationMinutes: 30},
			},
		},
	}
	assert.True(t, rule.ComputeActive(now, resolver))
	assert.False(t, rule.ComputeActive(now.Add(time.Hour), resolver))
}

func TestRuleTransitionFiresEdgesOnce(t *testing.T) {
	resolver := newFakeResolver()
	thingID := ids.NewThingID()
	stateTypeID := ids.NewStateTypeID()
	resolver.setState(thingID, stateTypeID, values.Bool(false))

	rule := &Rule{
		StateEvaluator: &StateEvaluator{StateDescriptor: &StateDescriptor{ThingID: &thingID, StateTypeID: stateTypeID, Operator: ComparisonEqual, Value: values.Bool(true)}},
	}

	becameActive, becameInactive := rule.Transition(time.Now(), resolver)
	assert.False(t, becameActive)
	assert.False(t, becameInactive)

	resolver.setState(thingID, stateTypeID, values.Bool(true))
	becameActive, becameInactive = rule.Transition(time.Now(), resolver)
	assert.True(t, becameActive)
	assert.False(t, becameInactive)

	// Staying active fires neither edge again.
	becameActive, becameInactive = rule.Transition(time.Now(), resolver)
	assert.False(t, becameActive)
	assert.False(t, becameInactive)

	resolver.setState(thingID, stateTypeID, values.Bool(false))
	becameActive, becameInactive = rule.Transition(time.Now(), resolver)
	assert.False(t, becameActive)
	assert.True(t, becameInactive)
}

func TestRuleTriggeredRequiresAnEventMatch(t *testing.T) {
	thingID := ids.NewThingID()
	eventTypeID := ids.NewEventTypeID()
	rule := Rule{Events: []EventDescriptor{{ThingID: &thingID, EventTypeID: eventTypeID, HasEventTypeID: true}}}

	match := EventDescriptorMatch{Event: ThingEvent{ThingID: thingID, EventTypeID: eventTypeID}}
	now := time.Now()
	assert.True(t, rule.Triggered(match, now, now, newFakeResolver()))

	other := ids.NewThingID()
	miss := EventDescriptorMatch{Event: ThingEvent{ThingID: other, EventTypeID: eventTypeID}}
	assert.False(t, rule.Triggered(miss, now, now, newFakeResolver()))
}

func TestRuleTriggeredAlsoRequiresStateEvaluatorAndTimeDescriptor(t *testing.T) {
	resolver := newFakeResolver()
	thingID := ids.NewThingID()
	eventTypeID := ids.NewEventTypeID()
	stateTypeID := ids.NewStateTypeID()
	resolver.setState(thingID, stateTypeID, values.Bool(true))

	eventTimeID := ids.NewTimeEventItemID()
	rule := Rule{
		Events:         []EventDescriptor{{ThingID: &thingID, EventTypeID: eventTypeID, HasEventTypeID: true}},
		StateEvaluator: &StateEvaluator{StateDescriptor: &StateDescriptor{ThingID: &thingID, StateTypeID: stateTypeID, Operator: ComparisonEqual, Value: values.Bool(true)}},
		TimeDescriptor: &timeenginedomain.TimeDescriptor{
			TimeEventItems: []timeenginedomain.TimeEventItem{
				{ID: eventTimeID, DateTime: time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)},
			},
		},
	}

	match := EventDescriptorMatch{Event: ThingEvent{ThingID: thingID, EventTypeID: eventTypeID}}
	last := time.Date(2026, 8, 3, 8, 59, 0, 0, time.UTC)
	now := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	assert.True(t, rule.Triggered(match, last, now, resolver))

	resolver.setState(thingID, stateTypeID, values.Bool(false))
	assert.False(t, rule.Triggered(match, last, now, resolver))
}

func ptrThingID(id ids.ThingID) *ids.ThingID { return &id }
