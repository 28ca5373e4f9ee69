package sdk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
)

// ReplyStatus is the state of an in-flight async plugin call.
type ReplyStatus string

const (
	ReplyPending          ReplyStatus = "pending"
	ReplyCompletedOk      ReplyStatus = "completedOk"
	ReplyCompletedErr     ReplyStatus = "completedErr"
	ReplyCompletedTimeout ReplyStatus = "completedTimeout"
	ReplyCancelled        ReplyStatus = "cancelled"
)

// Reply is the info/reply object a Host call hands a plugin: setupThing,
// executeAction, and discover all return immediately with one of these
// rather than blocking until the underlying device responds, and the
// plugin is obligated to eventually call Finish. A deadline timer armed at
// construction finishes the Reply with ReplyCompletedTimeout if the plugin
// never does, so a caller waiting on Wait is never stuck forever even when
// a plugin misbehaves (spec scenario: "plugin never calls finish on an
// action"). Pending -> CompletedOk/CompletedErr/CompletedTimeout/Cancelled,
// and every transition out of Pending is final.
type Reply struct {
	id     ids.ReplyID
	mu     sync.Mutex
	status ReplyStatus
	err    error
	done   chan struct{}
	timer  *time.Timer
}

// NewReply creates a Reply in ReplyPending, arming a deadline timer that
// finishes it with ReplyCompletedTimeout if nothing else finishes it
// first.
func NewReply(deadline time.Duration) *Reply {
	r := &Reply{
		id:     ids.NewReplyID(),
		status: ReplyPending,
		done:   make(chan struct{}),
	}
	r.timer = time.AfterFunc(deadline, func() {
		_ = r.finish(ReplyCompletedTimeout, corerr.ErrTimeout)
	})
	return r
}

// ID returns the Reply's identifier, used to correlate a later
// out-of-band completion (e.g. a plugin callback) back to this Reply.
func (r *Reply) ID() ids.ReplyID { return r.id }

// Finish transitions a Pending Reply to CompletedOk (err == nil) or
// CompletedErr, stopping the deadline timer, and is the call a plugin
// makes when its device has actually responded. Finish on a Reply that
// already resolved — by the deadline timer, a prior Finish, or a Cancel —
// is a programming error and returns a non-nil error rather than
// silently discarding the second completion.
func (r *Reply) Finish(err error) error {
	status := ReplyCompletedOk
	if err != nil {
		status = ReplyCompletedErr
	}
	return r.finish(status, err)
}

// Cancel transitions a Pending Reply to Cancelled, stopping the deadline
// timer.
func (r *Reply) Cancel() error {
	return r.finish(ReplyCancelled, corerr.ErrCancelled)
}

func (r *Reply) finish(status ReplyStatus, err error) error {
	r.mu.Lock()
	if r.status != ReplyPending {
		prev := r.status
		r.mu.Unlock()
		return fmt.Errorf("reply %s: already %s, cannot finish as %s", r.id, prev, status)
	}
	r.status = status
	r.err = err
	r.mu.Unlock()

	r.timer.Stop()
	close(r.done)
	return nil
}

// Status returns the Reply's current state.
func (r *Reply) Status() ReplyStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Wait blocks until the Reply resolves or ctx is cancelled, whichever
// comes first, and returns the resolved status and error.
func (r *Reply) Wait(ctx context.Context) (ReplyStatus, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.status, r.err
	case <-ctx.Done():
		return ReplyPending, ctx.Err()
	}
}

// DiscoveryReply is the Reply variant Discover hands back: in addition to
// the Pending/Completed status it carries the discovered things once the
// plugin finishes it with FinishResults.
type DiscoveryReply struct {
	*Reply
	mu      sync.Mutex
	results []DiscoveryResult
}

// NewDiscoveryReply creates a DiscoveryReply in ReplyPending.
func NewDiscoveryReply(deadline time.Duration) *DiscoveryReply {
	return &DiscoveryReply{Reply: NewReply(deadline)}
}

// FinishResults records the discovered things and resolves the underlying
// Reply, the Discoverer analogue of Reply.Finish.
func (d *DiscoveryReply) FinishResults(results []DiscoveryResult, err error) error {
	d.mu.Lock()
	d.results = results
	d.mu.Unlock()
	return d.Reply.Finish(err)
}

// Results returns the discovered things recorded by FinishResults. Only
// meaningful once Wait reports ReplyCompletedOk.
func (d *DiscoveryReply) Results() []DiscoveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results
}
