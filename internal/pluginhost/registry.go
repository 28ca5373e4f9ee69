package pluginhost

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
)

// PluginStatus tracks a plugin's lifecycle within the Host, generalizing
// internal/engine/registry.EngineStatus from one loaded engine to one
// loaded plugin process.
type PluginStatus string

const (
	PluginStatusUnloaded PluginStatus = "unloaded"
	PluginStatusLoading  PluginStatus = "loading"
	PluginStatusReady    PluginStatus = "ready"
	PluginStatusFailed   PluginStatus = "failed"
	PluginStatusShutdown PluginStatus = "shutdown"
)

// PluginEntry holds one registered plugin: its implementation (once
// loaded), manifest, and current status.
type PluginEntry struct {
	Plugin   sdk.Plugin
	Manifest *Manifest
	Status   PluginStatus
	Error    error
}

// Registry tracks every plugin known to the Host, loaded or not.
type Registry struct {
	mu      sync.RWMutex
	entries map[ids.PluginID]PluginEntry
	logger  *slog.Logger
}

// NewRegistry constructs an empty plugin Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{entries: make(map[ids.PluginID]PluginEntry), logger: logger}
}

// RegisterManifest records a discovered-but-not-yet-loaded plugin.
func (r *Registry) RegisterManifest(m *Manifest) ids.PluginID {
	id := m.PluginID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = PluginEntry{Manifest: m, Status: PluginStatusUnloaded}
	return id
}

// MarkLoading transitions a plugin to PluginStatusLoading.
func (r *Registry) MarkLoading(id ids.PluginID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[id]
	entry.Status = PluginStatusLoading
	r.entries[id] = entry
}

// MarkReady attaches the loaded implementation and transitions to Ready.
func (r *Registry) MarkReady(id ids.PluginID, p sdk.Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[id]
	entry.Plugin = p
	entry.Status = PluginStatusReady
	entry.Error = nil
	r.entries[id] = entry
	r.logger.Info("plugin ready", "plugin_id", id)
}

// MarkFailed records a load/init failure.
func (r *Registry) MarkFailed(id ids.PluginID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[id]
	entry.Status = PluginStatusFailed
	entry.Error = err
	r.entries[id] = entry
	r.logger.Error("plugin failed", "plugin_id", id, "error", err)
}

// MarkShutdown transitions a plugin to PluginStatusShutdown, clearing its
// implementation.
func (r *Registry) MarkShutdown(id ids.PluginID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[id]
	entry.Plugin = nil
	entry.Status = PluginStatusShutdown
	r.entries[id] = entry
}

// Get returns the plugin implementation for id while it is ready. An
// unknown id yields an ErrNotFound-wrapping error, a failed plugin its
// recorded load error, and any other status a plain error naming it.
func (r *Registry) Get(id ids.PluginID) (sdk.Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: plugin %s", corerr.ErrNotFound, id)
	}
	switch entry.Status {
	case PluginStatusReady:
		return entry.Plugin, nil
	case PluginStatusFailed:
		return nil, entry.Error
	default:
		return nil, fmt.Errorf("plugin %s is %s", id, entry.Status)
	}
}

// Entry returns a copy of the registry entry for id.
func (r *Registry) Entry(id ids.PluginID) (PluginEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// List returns every registered plugin entry, keyed by id.
func (r *Registry) List() map[ids.PluginID]PluginEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ids.PluginID]PluginEntry, len(r.entries))
	for id, e := range r.entries {
		out[id] = e
	}
	return out
}

// Counts reports how many plugins are ready/failed/total, the snapshot
// PluginHostHealthChecker needs.
func (r *Registry) Counts() (ready, failed, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		total++
		switch e.Status {
		case PluginStatusReady:
			ready++
		case PluginStatusFailed:
			failed++
		}
	}
	return ready, failed, total
}

// Unregister removes a plugin entirely.
func (r *Registry) Unregister(id ids.PluginID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}
