package things

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nymea-go/thingd/internal/catalogue"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
	"github.com/nymea-go/thingd/pkg/values"
)

// SetupRequester begins the asynchronous setupThing flow on the plugin
// that owns a Thing. Implemented by internal/pluginhost; Registry depends
// only on this narrow interface to avoid a Thing Registry → Plugin Host
// import cycle (the Plugin Host in turn depends on Registry to resolve
// Things it routes calls to).
type SetupRequester interface {
	RequestSetup(ctx context.Context, pluginID ids.PluginID, thingID ids.ThingID, params map[string]values.Value) error
}

// StateChangeNotifier is notified whenever a Thing's state value changes,
// the Dispatcher's second inbound stream per spec.md §4.6.
type StateChangeNotifier interface {
	ThingStateChanged(thingID ids.ThingID, stateTypeID ids.StateTypeID, oldValue, newValue values.Value, at time.Time)
}

// RuleReferencePruner removes or disables rule fragments that reference a
// thing being removed, per spec.md §4.2 removeThing. Implemented by
// internal/rules.
type RuleReferencePruner interface {
	PruneThingReferences(ctx context.Context, thingID ids.ThingID, cascade bool) error
}

// Registry owns every configured Thing: their lifecycle, persistence, and
// state-change publication. Mirrors the mutex-guarded map idiom of
// internal/engine/registry.Registry, generalized from engines to things.
type Registry struct {
	mu        sync.RWMutex
	things    map[ids.ThingID]*Thing
	catalogue *catalogue.Catalogue
	repo      Repository
	setup     SetupRequester
	notifier  StateChangeNotifier
	pruner    RuleReferencePruner
	logger    *slog.Logger
}

// NewRegistry constructs a Thing Registry over the given Type Catalogue and
// persistence/collaborator dependencies.
func NewRegistry(cat *catalogue.Catalogue, repo Repository, setup SetupRequester, notifier StateChangeNotifier, pruner RuleReferencePruner, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		things:    make(map[ids.ThingID]*Thing),
		catalogue: cat,
		repo:      repo,
		setup:     setup,
		notifier:  notifier,
		pruner:    pruner,
		logger:    logger,
	}
}

// SetNotifier supplies the StateChangeNotifier after construction, for
// callers (the Dispatcher) that themselves need a *Registry to be built
// before they exist: wire the Registry with a nil notifier first, build
// the Dispatcher over it, then call SetNotifier once.
func (r *Registry) SetNotifier(notifier StateChangeNotifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = notifier
}

// SetPruner supplies the RuleReferencePruner after construction, the same
// deferred-binding idiom SetNotifier uses: the Rule Engine's RuleProcessor
// is the pruner, but it is itself built over a resolver that wraps this
// same Registry, so it cannot exist yet when NewRegistry is called.
func (r *Registry) SetPruner(pruner RuleReferencePruner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruner = pruner
}

// LoadAll replays the persisted store at startup: cached state values are
// restored before setupThing is re-run for every loaded thing; non-cached
// states reset to their declared defaults.
func (r *Registry) LoadAll(ctx context.Context) error {
	stored, err := r.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("things: load all: %w", err)
	}

	r.mu.Lock()
	for _, t := range stored {
		r.things[t.ID()] = t
	}
	r.mu.Unlock()

	for _, t := range stored {
		tc, err := r.catalogue.ThingClass(t.ThingClassID())
		if err != nil {
			r.logger.Warn("thing references unknown class at load", "thing_id", t.ID(), "error", err)
			continue
		}
		for _, st := range tc.StateTypes {
			if !st.Cached {
				t.InitState(st.StateTypeID, st.DefaultValue, time.Now().UTC())
			}
		}
		if err := r.setup.RequestSetup(ctx, t.PluginID(), t.ID(), t.Params()); err != nil {
			r.logger.Error("setupThing failed at load", "thing_id", t.ID(), "error", err)
		}
	}

	return nil
}

// AddThing validates params against the ClassParamTypes, persists a new
// Thing, initializes its declared states, and begins the (possibly
// asynchronous) setup flow. Implements spec.md §4.2 addThing.
func (r *Registry) AddThing(ctx context.Context, thingClassID ids.ThingClassID, params map[string]values.Value, parentID *ids.ThingID) (*Thing, error) {
	tc, err := r.catalogue.ThingClass(thingClassID)
	if err != nil {
		return nil, err
	}

	if err := catalogue.ValidateParams(tc.ParamTypes, params); err != nil {
		return nil, err
	}

	t := NewThing(thingClassID, tc.PluginID, tc.Name, params, parentID)

	now := time.Now().UTC()
	for _, st := range tc.StateTypes {
		t.InitState(st.StateTypeID, st.DefaultValue, now)
	}

	if tc.SetupMethod != catalogue.SetupMethodJustAdd {
		t.SetSetupStatus(SetupStatusInProgress)
	}

	if err := r.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("things: add thing: %w", err)
	}

	r.mu.Lock()
	r.things[t.ID()] = t
	r.mu.Unlock()

	if err := r.setup.RequestSetup(ctx, t.PluginID(), t.ID(), t.Params()); err != nil {
		t.SetSetupStatus(SetupStatusFailed)
		_ = r.repo.Update(ctx, t)
		return t, fmt.Errorf("%w: %v", corerr.ErrSetupFailed, err)
	}

	return t, nil
}

// ReconfigureThing re-runs setupThing with new params.
func (r *Registry) ReconfigureThing(ctx context.Context, thingID ids.ThingID, params map[string]values.Value) error {
	t, err := r.get(thingID)
	if err != nil {
		return err
	}

	tc, err := r.catalogue.ThingClass(t.ThingClassID())
	if err != nil {
		return err
	}
	if err := catalogue.ValidateParams(tc.ParamTypes, params); err != nil {
		return err
	}

	t.Reconfigure(params)
	if err := r.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("things: reconfigure: %w", err)
	}

	return r.setup.RequestSetup(ctx, t.PluginID(), t.ID(), t.Params())
}

// RemoveThing deletes a Thing and applies the requested rule-reference
// policy.
func (r *Registry) RemoveThing(ctx context.Context, thingID ids.ThingID, policy RemovalPolicy) error {
	if _, err := r.get(thingID); err != nil {
		return err
	}

	if r.pruner != nil {
		if err := r.pruner.PruneThingReferences(ctx, thingID, policy == RemovalCascade); err != nil {
			return fmt.Errorf("things: remove thing: prune rules: %w", err)
		}
	}

	if err := r.repo.Delete(ctx, thingID); err != nil {
		return fmt.Errorf("things: remove thing: %w", err)
	}

	r.mu.Lock()
	delete(r.things, thingID)
	r.mu.Unlock()

	return nil
}

// SetStateValue validates and (if changed) applies a new state value,
// persists it, and notifies the Dispatcher. Implements spec.md §4.2
// setStateValue.
func (r *Registry) SetStateValue(ctx context.Context, thingID ids.ThingID, stateTypeID ids.StateTypeID, v values.Value, at time.Time) error {
	t, err := r.get(thingID)
	if err != nil {
		return err
	}

	tc, err := r.catalogue.ThingClass(t.ThingClassID())
	if err != nil {
		return err
	}
	st, err := catalogue.FindStateTypeByID(tc.StateTypes, stateTypeID)
	if err != nil {
		return err
	}

	old, hadOld := t.State(stateTypeID)

	changed, err := t.SetStateValue(st, v, at)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := r.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("things: set state value: %w", err)
	}

	if r.notifier != nil {
		var oldVal values.Value
		if hadOld {
			oldVal = old.Value
		}
		r.notifier.ThingStateChanged(thingID, stateTypeID, oldVal, v, at)
	}

	return nil
}

// FindConfiguredThings returns every Thing of the given class.
func (r *Registry) FindConfiguredThings(thingClassID ids.ThingClassID) []*Thing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Thing
	for _, t := range r.things {
		if t.ThingClassID() == thingClassID {
			out = append(out, t)
		}
	}
	return out
}

// FindByParent returns every Thing whose parentID matches.
func (r *Registry) FindByParent(parentID ids.ThingID) []*Thing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Thing
	for _, t := range r.things {
		if t.ParentID() != nil && *t.ParentID() == parentID {
			out = append(out, t)
		}
	}
	return out
}

// FindByInterface returns every Thing whose ThingClass implements the
// named interface.
func (r *Registry) FindByInterface(interfaceName string) []*Thing {
	classes := r.catalogue.ThingClassesByInterface(interfaceName)
	classIDs := make(map[ids.ThingClassID]struct{}, len(classes))
	for _, tc := range classes {
		classIDs[tc.ID] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Thing
	for _, t := range r.things {
		if _, ok := classIDs[t.ThingClassID()]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Get returns a single Thing by id.
func (r *Registry) Get(thingID ids.ThingID) (*Thing, error) {
	return r.get(thingID)
}

func (r *Registry) get(thingID ids.ThingID) (*Thing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.things[thingID]
	if !ok {
		return nil, fmt.Errorf("%w: thing %s", corerr.ErrNotFound, thingID)
	}
	return t, nil
}
