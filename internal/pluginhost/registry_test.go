package pluginhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
)

type fakePlugin struct {
	meta sdk.PluginMetadata
}

func (p *fakePlugin) Metadata() sdk.PluginMetadata     { return p.meta }
func (p *fakePlugin) Init(ctx *sdk.ExecutionContext) error { return nil }
func (p *fakePlugin) Shutdown(ctx *sdk.ExecutionContext) error { return nil }

func testManifest(t *testing.T, id string) *Manifest {
	t.Helper()
	return &Manifest{ID: id, Name: id, Version: "1.0.0", MinAPIVersion: "1.0.0", BinaryPath: "plugin"}
}

func TestRegistryLifecycleTransitions(t *testing.T) {
	reg := NewRegistry(nil)
	m := testManifest(t, "acme.lamp")
	id := reg.RegisterManifest(m)

	entry, ok := reg.Entry(id)
	require.True(t, ok)
	assert.Equal(t, PluginStatusUnloaded, entry.Status)

	reg.MarkLoading(id)
	entry, _ = reg.Entry(id)
	assert.Equal(t, PluginStatusLoading, entry.Status)

	impl := &fakePlugin{meta: sdk.PluginMetadata{ID: id}}
	reg.MarkReady(id, impl)

	got, err := reg.Get(id)
	require.NoError(t, err)
	assert.Same(t, impl, got)

	reg.MarkShutdown(id)
	entry, _ = reg.Entry(id)
	assert.Equal(t, PluginStatusShutdown, entry.Status)
	assert.Nil(t, entry.Plugin)
}

func TestRegistryGetUnknownPlugin(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Get(testManifest(t, "acme.unknown").PluginID())
	assert.Error(t, err)
}

func TestRegistryGetFailedPlugin(t *testing.T) {
	reg := NewRegistry(nil)
	m := testManifest(t, "acme.broken")
	id := reg.RegisterManifest(m)

	failure := errors.New("binary crashed")
	reg.MarkFailed(id, failure)

	_, err := reg.Get(id)
	assert.ErrorIs(t, err, failure)
}

func TestRegistryGetLoadingPluginIsNotReady(t *testing.T) {
	reg := NewRegistry(nil)
	m := testManifest(t, "acme.loading")
	id := reg.RegisterManifest(m)
	reg.MarkLoading(id)

	_, err := reg.Get(id)
	assert.Error(t, err)
}

func TestRegistryCounts(t *testing.T) {
	reg := NewRegistry(nil)

	readyID := reg.RegisterManifest(testManifest(t, "acme.a"))
	reg.MarkReady(readyID, &fakePlugin{})

	failedID := reg.RegisterManifest(testManifest(t, "acme.b"))
	reg.MarkFailed(failedID, errors.New("nope"))

	reg.RegisterManifest(testManifest(t, "acme.c"))

	ready, failed, total := reg.Counts()
	assert.Equal(t, 1, ready)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, total)
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry(nil)
	id := reg.RegisterManifest(testManifest(t, "acme.gone"))
	reg.Unregister(id)

	_, ok := reg.Entry(id)
	assert.False(t, ok)
}

func TestRegistryListReturnsSnapshot(t *testing.T) {
	reg := NewRegistry(nil)
	id := reg.RegisterManifest(testManifest(t, "acme.list"))

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, PluginStatusUnloaded, list[id].Status)
}
