// Package sdk defines the capability interfaces a Thing plugin implements,
// the gRPC boundary between the Plugin Host and an out-of-process plugin
// binary, and the ExecutionContext every plugin call carries.
package sdk

import (
	"context"
	"log/slog"
	"time"

	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/observability"
	"github.com/nymea-go/thingd/pkg/values"
)

// PluginMetadata identifies a plugin binary and its compatibility
// requirements, the plugin-side analogue of EngineMetadata.
type PluginMetadata struct {
	ID            ids.PluginID
	Name          string
	VendorName    string
	Version       string
	MinAPIVersion string
}

// Plugin is the base capability every Thing plugin implements: identity,
// initialization, and shutdown. Optional capabilities (discovery, pairing,
// action execution, browsing) are expressed as separate interfaces a
// plugin may additionally satisfy — the Host type-asserts for each one
// rather than requiring one monolithic interface. Action execution and
// discovery on a plugin without the capability return
// corerr.ErrUnsupported; setup and removal notifications to a plugin
// without ThingSetup or ThingRemover complete without error.
type Plugin interface {
	Metadata() PluginMetadata
	Init(ctx *ExecutionContext) error
	Shutdown(ctx *ExecutionContext) error
}

// AutoThingMonitor is implemented by plugins that create Things on their
// own initiative (e.g. a gateway that discovers its own child devices)
// rather than waiting for an explicit Discover call.
type AutoThingMonitor interface {
	StartMonitoringAutoThings(ctx *ExecutionContext) error
}

// Discoverer is implemented by plugins whose ThingClass supports
// CreateMethodDiscovery. Discover returns as soon as the scan has been
// accepted; the plugin reports what it found by calling
// reply.FinishResults once the scan completes, rather than blocking the
// caller for the scan's duration.
type Discoverer interface {
	Discover(ctx *ExecutionContext, reply *DiscoveryReply, thingClassID ids.ThingClassID, params map[string]values.Value) error
}

// Pairer is implemented by plugins whose ThingClass requires an
// interactive setup flow (SetupMethodDisplayPin, EnterPin, PushButton,
// OAuth).
type Pairer interface {
	StartPairing(ctx *ExecutionContext, thingID ids.ThingID) (*PairingInfo, error)
	ConfirmPairing(ctx *ExecutionContext, thingID ids.ThingID, secret string) error
}

// ThingSetup is implemented by every plugin with at least one ThingClass;
// SetupThing runs validation/connection logic for a newly added or
// reconfigured Thing and returns as soon as that work has been accepted,
// reporting the actual outcome later by calling reply.Finish.
// PostSetupThing runs once the Thing is visible to the rest of the system
// (e.g. to kick off an initial state poll); it stays synchronous and
// best-effort, since nothing downstream waits on it.
type ThingSetup interface {
	SetupThing(ctx *ExecutionContext, reply *Reply, thingID ids.ThingID, params map[string]values.Value) error
	PostSetupThing(ctx *ExecutionContext, thingID ids.ThingID) error
}

// ActionExecutor is implemented by plugins with at least one writable
// StateType or standalone ActionType. ExecuteAction returns as soon as
// the action has been accepted; the plugin reports the action's actual
// outcome later by calling reply.Finish, which may happen after
// ExecuteAction has already returned for actions that take real time to
// settle on the device.
type ActionExecutor interface {
	ExecuteAction(ctx *ExecutionContext, reply *Reply, thingID ids.ThingID, actionTypeID ids.ActionTypeID, params map[string]values.Value) error
}

// ThingRemover is notified when one of its Things is deleted from the
// Thing Registry, so it can release any held hardware resource.
type ThingRemover interface {
	ThingRemoved(ctx *ExecutionContext, thingID ids.ThingID) error
}

// Browser is implemented by plugins exposing a hierarchical content
// browser (e.g. a media-server plugin).
type Browser interface {
	HandleBrowse(ctx *ExecutionContext, thingID ids.ThingID, itemID string) (*BrowseResult, error)
	ExecuteBrowserItemAction(ctx *ExecutionContext, thingID ids.ThingID, itemID string, actionTypeID ids.ActionTypeID, params map[string]values.Value) error
}

// ExecutionContext carries per-call identity, cancellation, logging, and
// metrics into a plugin call — the plugin-host analogue of
// internal/engine/sdk.ExecutionContext, with the user identity dropped
// (Thing plugins act on behalf of the controller, not a specific user)
// and a PluginID/RequestID substituted.
type ExecutionContext struct {
	ctx       context.Context
	PluginID  ids.PluginID
	RequestID string
	Logger    *slog.Logger
	Metrics   observability.Metrics
	StartTime time.Time
	sink      EventSink
}

// NewExecutionContext constructs an ExecutionContext for one plugin call.
func NewExecutionContext(ctx context.Context, pluginID ids.PluginID, requestID string) *ExecutionContext {
	return &ExecutionContext{
		ctx:       ctx,
		PluginID:  pluginID,
		RequestID: requestID,
		Logger:    slog.Default(),
		Metrics:   observability.NoopMetrics{},
		StartTime: time.Now(),
	}
}

func (ec *ExecutionContext) Context() context.Context          { return ec.ctx }
func (ec *ExecutionContext) Deadline() (time.Time, bool)        { return ec.ctx.Deadline() }
func (ec *ExecutionContext) Done() <-chan struct{}              { return ec.ctx.Done() }
func (ec *ExecutionContext) Err() error                         { return ec.ctx.Err() }
func (ec *ExecutionContext) Value(key any) any                  { return ec.ctx.Value(key) }
func (ec *ExecutionContext) Elapsed() time.Duration             { return time.Since(ec.StartTime) }

// WithLogger attaches plugin/request-scoped fields to logger.
func (ec *ExecutionContext) WithLogger(logger *slog.Logger) *ExecutionContext {
	ec.Logger = logger.With("plugin_id", ec.PluginID.String(), "request_id", ec.RequestID)
	return ec
}

// WithMetrics overrides the metrics recorder.
func (ec *ExecutionContext) WithMetrics(m observability.Metrics) *ExecutionContext {
	ec.Metrics = m
	return ec
}

// WithEventSink attaches the sink EmitEvent hands ThingEvents to.
func (ec *ExecutionContext) WithEventSink(sink EventSink) *ExecutionContext {
	ec.sink = sink
	return ec
}

// EmitEvent hands a ThingEvent to the Dispatcher. It is a no-op if the
// ExecutionContext was never given a sink (e.g. in plugin unit tests), so
// plugin code need not special-case test harnesses.
func (ec *ExecutionContext) EmitEvent(thingID ids.ThingID, eventTypeID ids.EventTypeID, params map[string]values.Value) {
	if ec.sink == nil {
		return
	}
	ec.sink.EmitThingEvent(ThingEvent{
		ThingID:     thingID,
		EventTypeID: eventTypeID,
		Params:      params,
		OccurredAt:  time.Now(),
	})
}
