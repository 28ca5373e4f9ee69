package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

func TestEventDescriptorMatchesByThingIDAndEventTypeID(t *testing.T) {
	thingID := ids.NewThingID()
	eventTypeID := ids.NewEventTypeID()

	d := EventDescriptor{ThingID: &thingID, EventTypeID: eventTypeID, HasEventTypeID: true}
	event := ThingEvent{ThingID: thingID, EventTypeID: eventTypeID, At: time.Now()}

	assert.True(t, d.Matches(event, nil))

	other := ids.NewThingID()
	assert.False(t, d.Matches(ThingEvent{ThingID: other, EventTypeID: eventTypeID}, nil))
}

func TestEventDescriptorMatchesByInterfaceAndEventName(t *testing.T) {
	eventTypeID := ids.NewEventTypeID()
	class := &catalogue.ThingClass{
		Interfaces: []string{"motionSensor"},
		EventTypes: []catalogue.EventType{{ID: eventTypeID, Name: "motionDetected"}},
	}

	d := EventDescriptor{InterfaceName: "motionSensor", EventName: "motionDetected"}
	event := ThingEvent{ThingID: ids.NewThingID(), EventTypeID: eventTypeID}

	assert.True(t, d.Matches(event, class))

	wrongClass := &catalogue.ThingClass{Interfaces: []string{"somethingElse"}}
	assert.False(t, d.Matches(event, wrongClass))
}

func TestEventDescriptorParamFilters(t *testing.T) {
	thingID := ids.NewThingID()
	eventTypeID := ids.NewEventTypeID()
	brightnessParam := ids.NewParamTypeID()

	d := EventDescriptor{
		ThingID:        &thingID,
		EventTypeID:    eventTypeID,
		HasEventTypeID: true,
		ParamFilters: []ParamFilter{
			{ParamTypeID: brightnessParam, Operator: ComparisonGreaterOrEqual, Value: values.Int(50)},
		},
	}

	bright := ThingEvent{ThingID: thingID, EventTypeID: eventTypeID, Params: map[ids.ParamTypeID]values.Value{brightnessParam: values.Int(80)}}
	assert.True(t, d.Matches(bright, nil))

	dim := ThingEvent{ThingID: thingID, EventTypeID: eventTypeID, Params: map[ids.ParamTypeID]values.Value{brightnessParam: values.Int(10)}}
	assert.False(t, d.Matches(dim, nil))

	missing := ThingEvent{ThingID: thingID, EventTypeID: eventTypeID}
	assert.False(t, d.Matches(missing, nil))
}

func TestEventDescriptorIsValid(t *testing.T) {
	thingID := ids.NewThingID()
	eventTypeID := ids.NewEventTypeID()

	assert.Error(t, EventDescriptor{}.IsValid())
	assert.Error(t, EventDescriptor{ThingID: &thingID}.IsValid())
	assert.NoError(t, EventDescriptor{ThingID: &thingID, EventTypeID: eventTypeID, HasEventTypeID: true}.IsValid())
	assert.NoError(t, EventDescriptor{InterfaceName: "motionSensor", EventName: "motionDetected"}.IsValid())
}
