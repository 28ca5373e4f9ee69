package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// ThingEvent is one event emitted by a Thing, the Dispatcher's first
// inbound stream (spec.md §4.6).
type ThingEvent struct {
	ThingID     ids.ThingID
	EventTypeID ids.EventTypeID
	Params      map[ids.ParamTypeID]values.Value
	At          time.Time
}

// ParamFilter narrows an EventDescriptor match to events carrying a
// matching value for one of the event type's params.
type ParamFilter struct {
	ParamTypeID ids.ParamTypeID
	Operator    ComparisonOperator
	Value       values.Value
}

// Matches reports whether the incoming event's param satisfies this
// filter. A param absent from the event never matches.
func (f ParamFilter) Matches(params map[ids.ParamTypeID]values.Value) bool {
	v, ok := params[f.ParamTypeID]
	if !ok {
		return false
	}
	return Compare(v, f.Operator, f.Value)
}

// EventDescriptor matches an incoming ThingEvent either by a concrete
// ThingID or by any thing implementing InterfaceName, and either by a
// concrete EventTypeID or by EventName resolved against the firing
// thing's class, per spec.md §4.5.
type EventDescriptor struct {
	ThingID       *ids.ThingID
	InterfaceName string

	EventTypeID    ids.EventTypeID
	HasEventTypeID bool
	EventName      string

	ParamFilters []ParamFilter
}

// Matches reports whether event, fired by a thing of firingClass,
// satisfies this descriptor's thing match, event-type match, and every
// param filter.
func (d EventDescriptor) Matches(event ThingEvent, firingClass *catalogue.ThingClass) bool {
	if d.ThingID != nil {
		if *d.ThingID != event.ThingID {
			return false
		}
	} else if d.InterfaceName != "" {
		if firingClass == nil || !firingClass.ImplementsInterface(d.InterfaceName) {
			return false
		}
	}

	if d.HasEventTypeID {
		if d.EventTypeID != event.EventTypeID {
			return false
		}
	} else if d.EventName != "" {
		if firingClass == nil {
			return false
		}
		matched := false
		for _, et := range firingClass.EventTypes {
			if et.Name == d.EventName && et.ID == event.EventTypeID {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, f := range d.ParamFilters {
		if !f.Matches(event.Params) {
			return false
		}
	}

	return true
}

// IsValid reports whether exactly one thing match and one event-type
// match are configured.
func (d EventDescriptor) IsValid() error {
	if d.ThingID == nil && d.InterfaceName == "" {
		return ErrEventDescriptorNoThingMatch
	}
	if !d.HasEventTypeID && d.EventName == "" {
		return ErrEventDescriptorNoEventMatch
	}
	if d.EventTypeID.UUID == uuid.Nil && d.HasEventTypeID {
		return ErrEventDescriptorNoEventMatch
	}
	return nil
}
