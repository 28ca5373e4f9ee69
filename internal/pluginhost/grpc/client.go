package grpc

import (
	"google.golang.org/grpc"

	"github.com/nymea-go/thingd/internal/pluginhost/sdk"
)

// ThingGRPCClient is the host-side gRPC client dispensed for a connected
// plugin process. Every method body below will call the matching gRPC
// RPC once the wire schema is generated; for now each mirrors orbita's
// own unfinished internal/engine/grpc client stubs, returning safe zero
// values so the Host can be built and tested against the sdk.Plugin
// interface before the transport is wired end to end.
type ThingGRPCClient struct {
	conn *grpc.ClientConn
}

var _ sdk.Plugin = (*ThingGRPCClient)(nil)

// Metadata returns the plugin's metadata.
func (c *ThingGRPCClient) Metadata() sdk.PluginMetadata {
	// Will call gRPC Metadata RPC when proto is generated.
	return sdk.PluginMetadata{}
}

// Init initializes the plugin.
func (c *ThingGRPCClient) Init(ctx *sdk.ExecutionContext) error {
	// Will call gRPC Init RPC when proto is generated.
	return nil
}

// Shutdown shuts the plugin down.
func (c *ThingGRPCClient) Shutdown(ctx *sdk.ExecutionContext) error {
	// Will call gRPC Shutdown RPC when proto is generated.
	return nil
}
