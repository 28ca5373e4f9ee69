package sdk

import (
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// ThingEvent is a plugin-originated occurrence (a button press, a motion
// trigger, a completed download) that did not arise from a state change the
// Thing Registry already tracks. It is the plugin-side counterpart of
// internal/things.StateChangeNotifier, delivered by push rather than by the
// Registry diffing a setState call.
type ThingEvent struct {
	ThingID     ids.ThingID
	EventTypeID ids.EventTypeID
	Params      map[string]values.Value
	OccurredAt  time.Time
}

// EventSink is implemented by whatever owns the Dispatcher's inbound
// channel. A plugin calls ExecutionContext.EmitEvent at any point during or
// after a capability call — including from its own goroutines started by
// StartMonitoringAutoThings — and the call returns once the event has been
// handed off, never blocking on how the Dispatcher processes it.
type EventSink interface {
	EmitThingEvent(event ThingEvent)
}
