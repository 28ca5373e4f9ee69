package pluginhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/observability"
	"github.com/nymea-go/thingd/pkg/values"
)

// HostConfig configures circuit breaker and deadline behavior, the
// plugin-host analogue of internal/engine/runtime.ExecutorConfig.
type HostConfig struct {
	CircuitBreakerEnabled bool
	MaxRequests           uint32
	Interval              time.Duration
	Timeout               time.Duration
	FailureThreshold      uint32
	SetupTimeout          time.Duration
	ActionTimeout         time.Duration
}

// DefaultHostConfig returns the deadlines named in spec.md §4.3
// (PluginSetupTimeout=30s, PluginActionTimeout=45s) alongside a
// five-consecutive-failure breaker threshold.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		CircuitBreakerEnabled: true,
		MaxRequests:           3,
		Interval:              10 * time.Second,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		SetupTimeout:          30 * time.Second,
		ActionTimeout:         45 * time.Second,
	}
}

// Host dispatches calls to loaded plugins, one circuit breaker per
// plugin, mirroring internal/engine/runtime.Executor's getBreaker/execute
// pattern generalized from engine ids to plugin ids.
type Host struct {
	registry *Registry
	loader   *Loader

	mu       sync.Mutex
	breakers map[ids.PluginID]*gobreaker.CircuitBreaker[any]

	metrics observability.Metrics
	logger  *slog.Logger
	config  HostConfig

	sink sdk.EventSink
}

// NewHost constructs a Host over an already-populated plugin Registry.
func NewHost(registry *Registry, loader *Loader, metrics observability.Metrics, logger *slog.Logger, config HostConfig) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Host{
		registry: registry,
		loader:   loader,
		breakers: make(map[ids.PluginID]*gobreaker.CircuitBreaker[any]),
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// Snapshot exposes plugin readiness counts for PluginHostHealthChecker.
func (h *Host) Snapshot() (ready, failed, total int) {
	return h.registry.Counts()
}

func (h *Host) getBreaker(pluginID ids.PluginID) *gobreaker.CircuitBreaker[any] {
	if !h.config.CircuitBreakerEnabled {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.breakers[pluginID]; ok {
		return b
	}

	name := pluginID.String()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: h.config.MaxRequests,
		Interval:    h.config.Interval,
		Timeout:     h.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= h.config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Info("plugin circuit breaker state changed", "plugin_id", name, "from", from.String(), "to", to.String())
			h.metrics.Gauge("thingd.pluginhost.circuit_breaker.open", stateToGauge(to), observability.T("plugin_id", name))
		},
	}

	b := gobreaker.NewCircuitBreaker[any](settings)
	h.breakers[pluginID] = b
	return b
}

func stateToGauge(s gobreaker.State) float64 {
	if s == gobreaker.StateOpen {
		return 1
	}
	return 0
}

// execute runs fn through pluginID's circuit breaker, recording a
// per-operation timing and outcome counter.
func (h *Host) execute(ctx context.Context, pluginID ids.PluginID, operation string, fn func() (any, error)) (any, error) {
	start := time.Now()
	breaker := h.getBreaker(pluginID)

	var result any
	var err error
	if breaker != nil {
		result, err = breaker.Execute(fn)
		if err == gobreaker.ErrOpenState {
			h.metrics.Counter("thingd.pluginhost.circuit_open", 1, observability.T("plugin_id", pluginID.String()), observability.T("operation", operation))
			return nil, fmt.Errorf("%w: plugin %s", corerr.ErrCircuitOpen, pluginID)
		}
	} else {
		result, err = fn()
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.Timing("thingd.pluginhost.call_duration", time.Since(start),
		observability.T("plugin_id", pluginID.String()),
		observability.T("operation", operation),
		observability.T("outcome", outcome))

	return result, err
}

func (h *Host) executionContext(ctx context.Context, pluginID ids.PluginID) *sdk.ExecutionContext {
	ec := sdk.NewExecutionContext(ctx, pluginID, ids.NewReplyID().String())
	ec.WithLogger(h.logger)
	ec.WithMetrics(h.metrics)
	if h.sink != nil {
		ec.WithEventSink(h.sink)
	}
	return ec
}

// SetEventSink supplies the Dispatcher's EventSink after construction,
// the same deferred-binding idiom things.Registry.SetNotifier uses: a
// plugin's ExecutionContext needs an EventSink the moment Init runs, but
// the Dispatcher that implements it is itself built over a RuleProcessor/
// ActionExecutor that needs the Thing Registry this Host feeds
// setupThing/executeAction calls into.
func (h *Host) SetEventSink(sink sdk.EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
}

// RequestSetup implements things.SetupRequester: it hands pluginID's
// implementation a Reply armed with the configured setup deadline and
// waits on it, rather than blocking the plugin call itself for the
// deadline's duration. SetupThing's own return only reports whether the
// plugin accepted the request; a plugin that accepts is then obligated to
// call reply.Finish once setup actually completes, and the Reply's own
// timer resolves it as ReplyCompletedTimeout if the plugin never does.
// Per spec.md §4.3, a plugin that does not implement ThingSetup completes
// immediately (SetupMethodJustAdd).
func (h *Host) RequestSetup(ctx context.Context, pluginID ids.PluginID, thingID ids.ThingID, params map[string]values.Value) error {
	plug, err := h.registry.Get(pluginID)
	if err != nil {
		return err
	}

	setup, ok := plug.(sdk.ThingSetup)
	if !ok {
		return nil
	}

	ec := h.executionContext(ctx, pluginID)
	reply := sdk.NewReply(h.config.SetupTimeout)

	_, err = h.execute(ctx, pluginID, "setupThing", func() (any, error) {
		return nil, setup.SetupThing(ec, reply, thingID, params)
	})
	if err != nil {
		_ = reply.Finish(err)
		return fmt.Errorf("%w: %v", corerr.ErrSetupFailed, err)
	}

	if _, waitErr := reply.Wait(ctx); waitErr != nil {
		return fmt.Errorf("%w: %v", corerr.ErrSetupFailed, waitErr)
	}

	if _, err := h.execute(ctx, pluginID, "postSetupThing", func() (any, error) {
		return nil, setup.PostSetupThing(ec, thingID)
	}); err != nil {
		h.logger.Warn("postSetupThing failed", "plugin_id", pluginID, "thing_id", thingID, "error", err)
	}

	return nil
}

// ExecuteAction dispatches an action call to the plugin owning thingID.
// executor.ExecuteAction is only the accept phase: a nil return means the
// plugin took on the action and will call reply.Finish once the device
// actually responds, which ExecuteAction then waits for bounded by the
// Reply's own deadline timer rather than a context derived from
// ActionTimeout.
func (h *Host) ExecuteAction(ctx context.Context, pluginID ids.PluginID, thingID ids.ThingID, actionTypeID ids.ActionTypeID, params map[string]values.Value) error {
	plug, err := h.registry.Get(pluginID)
	if err != nil {
		return err
	}

	executor, ok := plug.(sdk.ActionExecutor)
	if !ok {
		return fmt.Errorf("%w: plugin %s does not implement ActionExecutor", corerr.ErrUnsupported, pluginID)
	}

	ec := h.executionContext(ctx, pluginID)
	reply := sdk.NewReply(h.config.ActionTimeout)

	_, err = h.execute(ctx, pluginID, "executeAction", func() (any, error) {
		return nil, executor.ExecuteAction(ec, reply, thingID, actionTypeID, params)
	})
	if err != nil {
		_ = reply.Finish(err)
		return err
	}

	_, waitErr := reply.Wait(ctx)
	return waitErr
}

// Discover dispatches a discovery call to pluginID. As with ExecuteAction,
// discoverer.Discover only reports whether the scan was accepted; the
// plugin calls reply.FinishResults once the scan actually completes.
func (h *Host) Discover(ctx context.Context, pluginID ids.PluginID, thingClassID ids.ThingClassID, params map[string]values.Value) ([]sdk.DiscoveryResult, error) {
	plug, err := h.registry.Get(pluginID)
	if err != nil {
		return nil, err
	}

	discoverer, ok := plug.(sdk.Discoverer)
	if !ok {
		return nil, fmt.Errorf("%w: plugin %s does not implement Discoverer", corerr.ErrUnsupported, pluginID)
	}

	ec := h.executionContext(ctx, pluginID)
	reply := sdk.NewDiscoveryReply(h.config.SetupTimeout)

	_, err = h.execute(ctx, pluginID, "discover", func() (any, error) {
		return nil, discoverer.Discover(ec, reply, thingClassID, params)
	})
	if err != nil {
		_ = reply.Finish(err)
		return nil, err
	}

	if _, waitErr := reply.Wait(ctx); waitErr != nil {
		return nil, waitErr
	}
	return reply.Results(), nil
}

// ThingRemoved notifies pluginID that thingID has been removed, if the
// plugin implements ThingRemover.
func (h *Host) ThingRemoved(ctx context.Context, pluginID ids.PluginID, thingID ids.ThingID) error {
	plug, err := h.registry.Get(pluginID)
	if err != nil {
		return err
	}

	remover, ok := plug.(sdk.ThingRemover)
	if !ok {
		return nil
	}

	ec := h.executionContext(ctx, pluginID)
	_, err = h.execute(ctx, pluginID, "thingRemoved", func() (any, error) {
		return nil, remover.ThingRemoved(ec, thingID)
	})
	return err
}

// LoadPlugin loads manifest's binary, initializes the dispensed
// implementation, and records the outcome in the Registry.
func (h *Host) LoadPlugin(ctx context.Context, manifest *Manifest, secureMode bool) error {
	id := h.registry.RegisterManifest(manifest)
	h.registry.MarkLoading(id)

	impl, err := h.loader.Load(ctx, LoadOptions{Manifest: manifest, SecureMode: secureMode})
	if err != nil {
		h.registry.MarkFailed(id, err)
		return err
	}

	ec := h.executionContext(ctx, id)
	if err := impl.Init(ec); err != nil {
		h.loader.Unload(manifest.ID)
		h.registry.MarkFailed(id, err)
		return fmt.Errorf("pluginhost: init plugin %s: %w", manifest.ID, err)
	}

	h.registry.MarkReady(id, impl)

	if monitor, ok := impl.(sdk.AutoThingMonitor); ok {
		if err := monitor.StartMonitoringAutoThings(ec); err != nil {
			h.logger.Warn("start auto thing monitoring failed", "plugin_id", id, "error", err)
		}
	}

	return nil
}

// ShutdownAll shuts down every ready plugin and stops its process.
func (h *Host) ShutdownAll(ctx context.Context) {
	for id, entry := range h.registry.List() {
		if entry.Status != PluginStatusReady || entry.Plugin == nil {
			continue
		}
		ec := h.executionContext(ctx, id)
		if err := entry.Plugin.Shutdown(ec); err != nil {
			h.logger.Warn("plugin shutdown error", "plugin_id", id, "error", err)
		}
		if entry.Manifest != nil {
			h.loader.Unload(entry.Manifest.ID)
		}
		h.registry.MarkShutdown(id)
	}
}
