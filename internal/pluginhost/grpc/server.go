package grpc

import (
	"context"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"

	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
)

// GRPCServer returns the gRPC server for a Thing plugin. Registration
// will call generated proto code once the wire schema for
// setupThing/executeAction/discover/etc. is generated; until then this
// documents the expected shape the way orbita's own
// internal/engine/grpc.SchedulerPlugin.GRPCServer does.
func (p *ThingPlugin) GRPCServer(broker *plugin.GRPCBroker, s *grpc.Server) error {
	return nil
}

// GRPCClient returns the host-side client for a Thing plugin.
func (p *ThingPlugin) GRPCClient(ctx context.Context, broker *plugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return &ThingGRPCClient{conn: c}, nil
}

// BaseThingServer adapts an sdk.Plugin implementation to the plugin-side
// gRPC server surface, forwarding every call to the wrapped
// implementation.
type BaseThingServer struct {
	impl sdk.Plugin
}

// NewBaseThingServer wraps impl for gRPC serving.
func NewBaseThingServer(impl sdk.Plugin) *BaseThingServer {
	return &BaseThingServer{impl: impl}
}

// Metadata returns the plugin's metadata.
func (s *BaseThingServer) Metadata() sdk.PluginMetadata {
	return s.impl.Metadata()
}

// Init initializes the plugin.
func (s *BaseThingServer) Init(ctx *sdk.ExecutionContext) error {
	return s.impl.Init(ctx)
}

// Shutdown shuts the plugin down.
func (s *BaseThingServer) Shutdown(ctx *sdk.ExecutionContext) error {
	return s.impl.Shutdown(ctx)
}
