package hsnet

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/mxk/go-flowrate/flowrate"
)

// RateLimited wraps an Adapter, applying a per-peer byte-rate ceiling to
// Broadcast and SendTo so one noisy or malicious peer's outbound traffic
// cannot starve another's (spec.md §4.7's per-peer fairness obligation,
// applied symmetrically to the sending side).
type RateLimited struct {
	next Adapter

	bytesPerSec int64

	mu       sync.Mutex
	limiters map[PeerID]*flowrate.Writer
}

// NewRateLimited returns an Adapter wrapping next, limiting each peer's
// outbound byte rate to bytesPerSec.
func NewRateLimited(next Adapter, bytesPerSec int64) *RateLimited {
	return &RateLimited{
		next:        next,
		bytesPerSec: bytesPerSec,
		limiters:    make(map[PeerID]*flowrate.Writer),
	}
}

func (r *RateLimited) limiterFor(peer PeerID) *flowrate.Writer {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.limiters[peer]
	if !ok {
		w = flowrate.NewWriter(io.Discard, r.bytesPerSec)
		r.limiters[peer] = w
	}
	return w
}

func (r *RateLimited) throttle(peer PeerID, msg []byte) {
	w := r.limiterFor(peer)
	w.SetLimit(r.bytesPerSec)
	_, _ = io.Copy(w, bytes.NewReader(msg))
}

// Broadcast implements Adapter, throttling accounting against a shared
// "broadcast" peer bucket before delegating.
func (r *RateLimited) Broadcast(ctx context.Context, msg []byte) error {
	r.throttle("*broadcast*", msg)
	return r.next.Broadcast(ctx, msg)
}

// SendTo implements Adapter, throttling against peer's own bucket before
// delegating.
func (r *RateLimited) SendTo(ctx context.Context, peer PeerID, msg []byte) error {
	r.throttle(peer, msg)
	return r.next.SendTo(ctx, peer, msg)
}

// Recv implements Adapter.
func (r *RateLimited) Recv(ctx context.Context) (Envelope, error) { return r.next.Recv(ctx) }

// ScorePeer implements Adapter.
func (r *RateLimited) ScorePeer(peer PeerID, delta int) { r.next.ScorePeer(peer, delta) }

// Close implements Adapter.
func (r *RateLimited) Close() error { return r.next.Close() }
