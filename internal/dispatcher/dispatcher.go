// Package dispatcher implements the single-owner control loop that ties
// the Thing Registry, Plugin Host, and Rule Engine together: it is the
// only goroutine that ever evaluates rules or asks the Plugin Host to
// act, grounded on the teacher's cmd/worker/main.go signal-handling and
// single-select dispatch loop, generalized from "poll the outbox on an
// interval" to "select over three inbound streams and process each to
// completion before the next receive" (spec.md §4.6/§5).
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/internal/dispatcher/dedupe"
	"github.com/nymea-go/thingd/internal/dispatcher/eventbus"
	"github.com/nymea-go/thingd/internal/pluginhost"
	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
	"github.com/nymea-go/thingd/internal/rules/application/services"
	"github.com/nymea-go/thingd/internal/rules/domain"
	"github.com/nymea-go/thingd/internal/things"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/observability"
	"github.com/nymea-go/thingd/pkg/values"
)

// actionDispatchTTL bounds how long a PendingAction's reply id is held
// in the dedupe cache, long enough to outlast the Plugin Host's own
// action deadline.
const actionDispatchTTL = 2 * time.Minute

// stateChange is the Dispatcher's second inbound stream: a Thing's state
// value transitioned, delivered synchronously from
// things.Registry.SetStateValue via ThingStateChanged.
type stateChange struct {
	thingID    ids.ThingID
	stateType  ids.StateTypeID
	oldValue   values.Value
	newValue   values.Value
	at         time.Time
}

// Dispatcher is the single-threaded core loop described in spec.md §4.6:
// it owns the only goroutine permitted to call into the Rule Engine or
// the Plugin Host's mutating operations.
type Dispatcher struct {
	registry  *things.Registry
	catalogue *catalogue.Catalogue
	host      *pluginhost.Host
	processor *services.RuleProcessor
	executor  *services.ActionExecutor

	events  chan domain.ThingEvent
	states  chan stateChange
	tickInterval time.Duration

	publisher eventbus.Publisher
	dedupe    dedupe.Cache

	logger  *slog.Logger
	metrics observability.Metrics

	mu       sync.Mutex
	lastTick time.Time
	replies  map[ids.ReplyID]context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
}

// Config configures queue sizing and the tick cadence, sourced from
// pkg/config.Config's DispatcherQueueSize/DispatcherTickInterval.
type Config struct {
	QueueSize    int
	TickInterval time.Duration
}

// New wires a Dispatcher over its already-constructed collaborators. The
// Thing Registry itself is supplied afterward via BindRegistry: the
// Registry's own constructor takes a Dispatcher as its
// things.StateChangeNotifier, so the two can't be built in one pass.
func New(
	cat *catalogue.Catalogue,
	host *pluginhost.Host,
	processor *services.RuleProcessor,
	executor *services.ActionExecutor,
	publisher eventbus.Publisher,
	dedupeCache dedupe.Cache,
	cfg Config,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if publisher == nil {
		publisher = eventbus.NewNoopPublisher(logger)
	}
	if dedupeCache == nil {
		dedupeCache = dedupe.NewInMemoryCache()
	}
	return &Dispatcher{
		catalogue:    cat,
		host:         host,
		processor:    processor,
		executor:     executor,
		events:       make(chan domain.ThingEvent, cfg.QueueSize),
		states:       make(chan stateChange, cfg.QueueSize),
		tickInterval: cfg.TickInterval,
		publisher:    publisher,
		dedupe:       dedupeCache,
		logger:       logger,
		metrics:      metrics,
		lastTick:     time.Now().UTC(),
		replies:      make(map[ids.ReplyID]context.CancelFunc),
		closed:       make(chan struct{}),
	}
}

// BindRegistry supplies the Thing Registry once it has been constructed
// with this Dispatcher as its notifier, and must be called before Run.
func (d *Dispatcher) BindRegistry(registry *things.Registry) {
	d.registry = registry
}

// EnqueueEvent enqueues an inbound domain ThingEvent. It never blocks past
// the configured queue size: a full queue means the Dispatcher is falling
// behind, and the caller is expected to log and drop rather than stall.
func (d *Dispatcher) EnqueueEvent(ctx context.Context, event domain.ThingEvent) bool {
	select {
	case d.events <- event:
		return true
	case <-ctx.Done():
		return false
	default:
		d.logger.Warn("dispatcher event queue full, dropping event",
			"thing_id", event.ThingID, "event_type_id", event.EventTypeID)
		d.metrics.Counter("thingd.dispatcher.events_dropped", 1)
		return false
	}
}

// EmitThingEvent implements sdk.EventSink, the contract a plugin's
// ExecutionContext.EmitEvent calls into. A plugin reports its event by
// name-keyed params (sdk.ThingEvent); the Dispatcher's own queue and the
// Rule Engine work in ParamTypeID-keyed domain.ThingEvent, so this
// translates through the Type Catalogue before enqueuing. Translation
// failures are logged and dropped: a plugin event naming an unknown type
// or param can never wedge the single control-loop goroutine.
func (d *Dispatcher) EmitThingEvent(event sdk.ThingEvent) {
	converted, err := d.toDomainEvent(event)
	if err != nil {
		d.logger.Warn("dropping plugin event, cannot translate", "thing_id", event.ThingID, "event_type_id", event.EventTypeID, "error", err)
		d.metrics.Counter("thingd.dispatcher.events_dropped", 1)
		return
	}
	d.EnqueueEvent(context.Background(), converted)
}

var _ sdk.EventSink = (*Dispatcher)(nil)

// toDomainEvent resolves event.ThingID's ThingClass and the EventType
// matching event.EventTypeID, then converts the name-keyed params a plugin
// reports into the ParamTypeID-keyed map domain.ThingEvent carries.
func (d *Dispatcher) toDomainEvent(event sdk.ThingEvent) (domain.ThingEvent, error) {
	t, err := d.registry.Get(event.ThingID)
	if err != nil {
		return domain.ThingEvent{}, err
	}
	class, err := d.catalogue.ThingClass(t.ThingClassID())
	if err != nil {
		return domain.ThingEvent{}, err
	}

	var eventType catalogue.EventType
	found := false
	for _, et := range class.EventTypes {
		if et.ID == event.EventTypeID {
			eventType, found = et, true
			break
		}
	}
	if !found {
		return domain.ThingEvent{}, fmt.Errorf("event type %s not found on thing class %s", event.EventTypeID, class.ID)
	}

	params := make(map[ids.ParamTypeID]values.Value, len(event.Params))
	for name, v := range event.Params {
		pt, err := catalogue.FindParamTypeByName(eventType.ParamTypes, name)
		if err != nil {
			return domain.ThingEvent{}, err
		}
		params[pt.ID] = v
	}

	return domain.ThingEvent{
		ThingID:     event.ThingID,
		EventTypeID: event.EventTypeID,
		Params:      params,
		At:          event.OccurredAt,
	}, nil
}

// ThingStateChanged implements things.StateChangeNotifier: the Thing
// Registry calls this synchronously from SetStateValue, so it only
// enqueues; the actual rule re-evaluation happens on the Dispatcher's own
// goroutine in Run, preserving the single-writer invariant.
func (d *Dispatcher) ThingStateChanged(thingID ids.ThingID, stateTypeID ids.StateTypeID, oldValue, newValue values.Value, at time.Time) {
	sc := stateChange{thingID: thingID, stateType: stateTypeID, oldValue: oldValue, newValue: newValue, at: at}
	select {
	case d.states <- sc:
	default:
		d.logger.Warn("dispatcher state queue full, dropping state change", "thing_id", thingID, "state_type_id", stateTypeID)
		d.metrics.Counter("thingd.dispatcher.state_changes_dropped", 1)
	}
}

var _ things.StateChangeNotifier = (*Dispatcher)(nil)

// Run drains the three inbound streams until ctx is cancelled, processing
// exactly one item to completion before the next receive. On shutdown it
// cancels every outstanding action dispatch and closes the event bus
// publisher.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.registry == nil {
		return fmt.Errorf("dispatcher: BindRegistry must be called before Run")
	}

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()
	defer close(d.closed)

	d.logger.Info("dispatcher started", "tick_interval", d.tickInterval)

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return ctx.Err()

		case event := <-d.events:
			d.handleEvent(ctx, event)

		case sc := <-d.states:
			d.handleStateChange(ctx, sc)

		case now := <-ticker.C:
			d.handleTick(ctx, now.UTC())
		}
	}
}

// Done reports when Run has fully returned, letting cmd/thingd wait for
// the control loop to drain before the process exits.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.closed
}

func (d *Dispatcher) handleEvent(ctx context.Context, event domain.ThingEvent) {
	thing, err := d.registry.Get(event.ThingID)
	if err != nil {
		d.logger.Warn("event for unknown thing", "thing_id", event.ThingID, "error", err)
		return
	}
	class, err := d.catalogue.ThingClass(thing.ThingClassID())
	if err != nil {
		d.logger.Warn("event for thing with unresolvable class", "thing_id", event.ThingID, "error", err)
		return
	}

	d.publishJSON(ctx, eventbus.RoutingKeyThingEvent, event)

	now := time.Now().UTC()
	d.mu.Lock()
	lastTick := d.lastTick
	d.mu.Unlock()

	result, err := d.processor.ProcessEvent(ctx, domain.EventDescriptorMatch{Event: event, FiringClass: class}, lastTick, now)
	if err != nil {
		d.logger.Error("process event failed", "thing_id", event.ThingID, "error", err)
		return
	}
	d.dispatchFirings(ctx, result)
}

func (d *Dispatcher) handleStateChange(ctx context.Context, sc stateChange) {
	d.publishJSON(ctx, eventbus.RoutingKeyThingStateChanged, stateChangedPayload{
		ThingID:     sc.thingID.String(),
		StateTypeID: sc.stateType.String(),
		OldValue:    sc.oldValue.String(),
		NewValue:    sc.newValue.String(),
		At:          sc.at,
	})

	result, err := d.processor.ProcessStateChange(ctx, time.Now().UTC())
	if err != nil {
		d.logger.Error("process state change failed", "thing_id", sc.thingID, "error", err)
		return
	}
	d.dispatchFirings(ctx, result)
}

func (d *Dispatcher) handleTick(ctx context.Context, now time.Time) {
	d.mu.Lock()
	lastTick := d.lastTick
	d.lastTick = now
	d.mu.Unlock()

	result, err := d.processor.ProcessTick(ctx, lastTick, now)
	if err != nil {
		d.logger.Error("process tick failed", "error", err)
		return
	}
	d.dispatchFirings(ctx, result)
}

// dispatchFirings resolves every Firing's actions and enqueues each
// PendingAction's plugin dispatch on its own goroutine, bounded by an
// errgroup so Run's receive loop is never blocked waiting on a plugin
// call, per spec.md §4.6's "enqueue without awaiting" rule. The errgroup
// itself is not waited on here: the calling goroutines it spawns
// outlive one pass through Run's select loop by design.
func (d *Dispatcher) dispatchFirings(ctx context.Context, result *services.ProcessResult) {
	if result == nil {
		return
	}
	for _, firing := range result.Firings {
		pending, results, err := d.executor.Resolve(ctx, firing)
		if err != nil {
			d.logger.Error("resolve firing failed", "rule_id", firing.Rule.ID, "error", err)
			continue
		}
		for _, r := range results {
			if r.Status != "success" {
				d.logger.Warn("action resolution failed", "rule_id", firing.Rule.ID, "thing_id", r.ThingID, "error", r.Error)
			}
		}
		d.publishJSON(ctx, eventbus.RoutingKeyRuleFired, ruleFiredPayload{RuleID: firing.Rule.ID.String(), ExecutionID: firing.Execution.ID.String(), ActionCount: len(pending)})

		var g errgroup.Group
		for _, pa := range pending {
			pa := pa
			g.Go(func() error {
				d.dispatchAction(ctx, pa)
				return nil
			})
		}
		// Errors are recorded per-action inside dispatchAction rather than
		// surfaced here: one rule's actions failing never aborts another's.
		// The wait runs on its own goroutine so Run's loop goes on to the
		// next item without awaiting the plugin calls.
		go func() { _ = g.Wait() }()
	}
}

type stateChangedPayload struct {
	ThingID     string    `json:"thingId"`
	StateTypeID string    `json:"stateTypeId"`
	OldValue    string    `json:"oldValue"`
	NewValue    string    `json:"newValue"`
	At          time.Time `json:"at"`
}

type ruleFiredPayload struct {
	RuleID      string `json:"ruleId"`
	ExecutionID string `json:"executionId"`
	ActionCount int    `json:"actionCount"`
}

// dispatchAction sends one resolved PendingAction to the Plugin Host,
// deduplicating by reply id and tracking a cancellation handle so
// shutdown can abort any still-running call.
func (d *Dispatcher) dispatchAction(ctx context.Context, pa *domain.PendingAction) {
	acquired, err := d.dedupe.MarkInFlight(ctx, pa.ID.String(), actionDispatchTTL)
	if err != nil {
		d.logger.Warn("dedupe check failed, dispatching anyway", "reply_id", pa.ID, "error", err)
	} else if !acquired {
		d.logger.Debug("action already in flight, skipping duplicate dispatch", "reply_id", pa.ID)
		return
	}
	defer func() {
		if err := d.dedupe.Clear(context.Background(), pa.ID.String()); err != nil {
			d.logger.Warn("dedupe clear failed", "reply_id", pa.ID, "error", err)
		}
	}()

	pluginID, err := d.pluginIDFor(pa.ThingID)
	if err != nil {
		pa.Fail(err.Error())
		d.logger.Error("cannot resolve plugin for action", "thing_id", pa.ThingID, "error", err)
		return
	}

	params, err := d.paramsByName(pa)
	if err != nil {
		pa.Fail(err.Error())
		d.logger.Error("cannot resolve action params", "thing_id", pa.ThingID, "error", err)
		return
	}

	actionCtx, cancel := context.WithCancel(ctx)
	d.trackReply(pa.ID, cancel)
	defer d.untrackReply(pa.ID)

	if err := d.host.ExecuteAction(actionCtx, pluginID, pa.ThingID, pa.ActionTypeID, params); err != nil {
		pa.Fail(err.Error())
		d.logger.Error("execute action failed", "thing_id", pa.ThingID, "action_type_id", pa.ActionTypeID, "error", err)
		return
	}
	pa.Execute()
}

func (d *Dispatcher) pluginIDFor(thingID ids.ThingID) (ids.PluginID, error) {
	t, err := d.registry.Get(thingID)
	if err != nil {
		return ids.PluginID{}, err
	}
	return t.PluginID(), nil
}

// paramsByName converts a PendingAction's ParamTypeID-keyed, loosely
// typed params back into the name-keyed values.Value map the plugin SDK
// expects, resolving each ParamTypeID's name and value kind through the
// Type Catalogue.
func (d *Dispatcher) paramsByName(pa *domain.PendingAction) (map[string]values.Value, error) {
	t, err := d.registry.Get(pa.ThingID)
	if err != nil {
		return nil, err
	}
	class, err := d.catalogue.ThingClass(t.ThingClassID())
	if err != nil {
		return nil, err
	}
	var actionType catalogue.ActionType
	found := false
	for _, at := range class.ActionTypes {
		if at.ID == pa.ActionTypeID {
			actionType, found = at, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("action type %s not found on thing class %s", pa.ActionTypeID, class.ID)
	}

	out := make(map[string]values.Value, len(pa.Params))
	for paramTypeID, raw := range pa.Params {
		pt, err := catalogue.FindParamTypeByID(actionType.ParamTypes, paramTypeID)
		if err != nil {
			return nil, err
		}
		out[pt.Name] = anyToValue(raw, pt.ValueKind)
	}
	return out, nil
}

// anyToValue is the inverse of
// internal/rules/application/services.valueAny: it rehydrates the
// loosely typed value a PendingAction stores back into a values.Value of
// the param's declared kind.
func anyToValue(raw any, kind values.Kind) values.Value {
	switch kind {
	case values.KindBool:
		if b, ok := raw.(bool); ok {
			return values.Bool(b)
		}
	case values.KindInt:
		if i, ok := raw.(int64); ok {
			return values.Int(i)
		}
	case values.KindUint:
		if u, ok := raw.(uint64); ok {
			return values.Uint(u)
		}
	case values.KindDouble:
		if f, ok := raw.(float64); ok {
			return values.Double(f)
		}
	case values.KindString:
		if s, ok := raw.(string); ok {
			return values.String(s)
		}
	}
	return values.String(fmt.Sprintf("%v", raw))
}

func (d *Dispatcher) trackReply(id ids.ReplyID, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replies[id] = cancel
}

func (d *Dispatcher) untrackReply(id ids.ReplyID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.replies, id)
}

// shutdown cancels every outstanding action dispatch and closes the
// event bus publisher.
func (d *Dispatcher) shutdown() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		for id, cancel := range d.replies {
			cancel()
			delete(d.replies, id)
		}
		d.mu.Unlock()

		if err := d.publisher.Close(); err != nil {
			d.logger.Warn("event bus publisher close failed", "error", err)
		}
		d.logger.Info("dispatcher shut down")
	})
}

func (d *Dispatcher) publishJSON(ctx context.Context, routingKey string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn("marshal event payload failed", "routing_key", routingKey, "error", err)
		return
	}
	if err := d.publisher.Publish(ctx, routingKey, b); err != nil {
		d.logger.Warn("publish event failed", "routing_key", routingKey, "error", err)
	}
}
