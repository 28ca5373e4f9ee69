// Package grpc provides gRPC-based plugin communication for thingd plugins.
// It uses HashiCorp's go-plugin library for process isolation and
// management, generalizing orbita's per-engine-type plugin wrappers
// down to the single sdk.Plugin capability-interface family every Thing
// plugin implements.
package grpc

import (
	"github.com/hashicorp/go-plugin"

	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
)

// HandshakeConfig is used to verify that the plugin process speaks the
// same protocol as the Host. Both the daemon and plugin binaries must
// use this exact handshake.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "THINGD_PLUGIN",
	MagicCookieValue: "thingd-plugin-v1",
}

// PluginDispenseName is the single dispensed plugin name every Thing
// plugin binary registers under, since — unlike orbita's four distinct
// engine types — a Thing plugin is always the same kind of thing: an
// implementation of sdk.Plugin plus whichever optional capability
// interfaces it supports.
const PluginDispenseName = "plugin"

// PluginMap is the map of plugins a Host dispenses from a connected
// plugin process.
var PluginMap = map[string]plugin.Plugin{
	PluginDispenseName: &ThingPlugin{},
}

// ThingPlugin is the plugin.Plugin implementation shared by every Thing
// plugin, regardless of which optional capability interfaces (Discoverer,
// Pairer, ThingSetup, ActionExecutor, ThingRemover, Browser,
// AutoThingMonitor) its Impl additionally satisfies.
type ThingPlugin struct {
	plugin.Plugin
	// Impl is the concrete implementation (plugin-side only).
	Impl sdk.Plugin
}

var _ plugin.GRPCPlugin = (*ThingPlugin)(nil)
