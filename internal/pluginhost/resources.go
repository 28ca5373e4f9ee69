package pluginhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nymea-go/thingd/pkg/corerr"
)

// ResourceKind names a shared piece of hardware multiple plugins may
// want to use (e.g. two Zigbee plugins cannot both open the same radio).
// Generalizes the single-shared-*pgxpool.Pool/*redis.Client ownership
// idiom of the Container in internal/app — there, one process owns the
// database/cache handle and every subsystem is constructor-injected a
// reference to it; here, one process owns each named hardware resource
// and arbitrates writes to it across however many plugins ask for it.
type ResourceKind string

const (
	ResourceTimer       ResourceKind = "timer"
	ResourceRadio433    ResourceKind = "radio433"
	ResourceRadio868    ResourceKind = "radio868"
	ResourceBluetoothLE ResourceKind = "bluetooth_le"
	ResourceUPnP        ResourceKind = "upnp"
	ResourceZigbee      ResourceKind = "zigbee"
	ResourceNetwork     ResourceKind = "network"
)

// writeRequest is one plugin's request to transmit on a shared medium.
type writeRequest struct {
	payload []byte
	done    chan error
}

// sharedResource serializes writes through a single owning goroutine
// while allowing any number of plugins to read the resource's inbound
// broadcast stream concurrently.
type sharedResource struct {
	kind    ResourceKind
	writeCh chan writeRequest
	readMu  sync.RWMutex
	readers []chan []byte

	writeFn func(ctx context.Context, payload []byte) error
}

// ResourceRegistry arbitrates access to named hardware resources shared
// across plugins, so e.g. two Zigbee plugins don't both try to open the
// same radio, and concurrent transmits on the same 433MHz band don't
// collide mid-air.
type ResourceRegistry struct {
	mu        sync.Mutex
	resources map[ResourceKind]*sharedResource
	logger    *slog.Logger
}

// NewResourceRegistry constructs an empty ResourceRegistry.
func NewResourceRegistry(logger *slog.Logger) *ResourceRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceRegistry{resources: make(map[ResourceKind]*sharedResource), logger: logger}
}

// Register installs the owning writeFn for kind, starting its serialized
// write loop. Only one writeFn may own a given kind at a time.
func (r *ResourceRegistry) Register(kind ResourceKind, writeFn func(ctx context.Context, payload []byte) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[kind]; exists {
		return fmt.Errorf("pluginhost: resource %s already registered", kind)
	}

	res := &sharedResource{
		kind:    kind,
		writeCh: make(chan writeRequest, 16),
		writeFn: writeFn,
	}
	r.resources[kind] = res
	go res.run()
	return nil
}

// Unregister stops kind's write loop and releases its readers.
func (r *ResourceRegistry) Unregister(kind ResourceKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[kind]
	if !ok {
		return
	}
	close(res.writeCh)
	res.readMu.Lock()
	for _, ch := range res.readers {
		close(ch)
	}
	res.readMu.Unlock()
	delete(r.resources, kind)
}

// Write serializes payload onto kind's resource, blocking until the
// owning writeFn has processed it or ctx is cancelled first.
func (r *ResourceRegistry) Write(ctx context.Context, kind ResourceKind, payload []byte) error {
	res, err := r.get(kind)
	if err != nil {
		return err
	}

	req := writeRequest{payload: payload, done: make(chan error, 1)}
	select {
	case res.writeCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving every payload Broadcast delivers
// for kind, for plugins that need to observe inbound traffic on a shared
// medium (e.g. a 433MHz receiver shared by several plugins).
func (r *ResourceRegistry) Subscribe(kind ResourceKind) (<-chan []byte, error) {
	res, err := r.get(kind)
	if err != nil {
		return nil, err
	}
	ch := make(chan []byte, 16)
	res.readMu.Lock()
	res.readers = append(res.readers, ch)
	res.readMu.Unlock()
	return ch, nil
}

// Broadcast fans payload out to every current subscriber of kind. A
// subscriber whose buffer is full misses this payload rather than
// blocking the rest; it stays subscribed.
func (r *ResourceRegistry) Broadcast(kind ResourceKind, payload []byte) {
	res, err := r.get(kind)
	if err != nil {
		return
	}
	res.readMu.RLock()
	defer res.readMu.RUnlock()
	for _, ch := range res.readers {
		select {
		case ch <- payload:
		default:
			r.logger.Warn("dropping resource broadcast to slow subscriber", "resource", kind)
		}
	}
}

func (r *ResourceRegistry) get(kind ResourceKind) (*sharedResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[kind]
	if !ok {
		return nil, fmt.Errorf("%w: resource %s", corerr.ErrHardwareNotAvailable, kind)
	}
	return res, nil
}

func (res *sharedResource) run() {
	for req := range res.writeCh {
		err := res.writeFn(context.Background(), req.payload)
		req.done <- err
	}
}
