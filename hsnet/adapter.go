// Package hsnet defines the polymorphic network adapter consensus tasks
// use to exchange wire messages, and the capability set every transport
// variant (hsgossip, hsrelay, hscombined) implements: broadcast, send_to,
// recv, peer_scoring, shutdown.
//
// Grounded on the teacher's tm/tmp2p.Connection/Network abstraction
// (tmp2p/tmlibp2p/tmlibp2pintegration/libp2p.go shows the
// Network/GossipStrategy split this package generalizes into one
// interface), adapted from Tendermint-style round broadcasting to
// HotShot's unicast-with-broadcast-fallback model (spec.md §4.7).
package hsnet

import (
	"context"
	"errors"
)

// PeerID identifies a peer, independent of transport (a libp2p peer ID, an
// HTTP relay address, or an in-memory test peer name).
type PeerID string

// Envelope is one received message, tagged with its sender.
type Envelope struct {
	From    PeerID
	Payload []byte
}

// ErrClosed is returned by Recv once an Adapter has been shut down and its
// inbound queue drained.
var ErrClosed = errors.New("hsnet: adapter closed")

// Adapter is the capability set every transport variant implements.
// Broadcast eventually delivers to every correct peer; duplication is
// permitted and ordering across messages or peers is not guaranteed.
// SendTo is best-effort: a returned error is not a consensus error, only a
// signal for the caller to retry or fall back to Broadcast.
type Adapter interface {
	Broadcast(ctx context.Context, msg []byte) error
	SendTo(ctx context.Context, peer PeerID, msg []byte) error

	// Recv blocks until the next inbound message, ctx is canceled, or the
	// adapter is closed (ErrClosed).
	Recv(ctx context.Context) (Envelope, error)

	// ScorePeer adjusts peer's reputation by delta; implementations may
	// disconnect or deprioritize peers whose score falls below a
	// transport-specific floor. Negative deltas are used for framing and
	// cryptographic-verification failures (spec.md §4.7, §7).
	ScorePeer(peer PeerID, delta int)

	Close() error
}

// RetryBudget bounds how many times a unicast SendTo is retried with
// backoff before the caller should fall back to Broadcast, per spec.md §5's
// "Timeouts" paragraph.
type RetryBudget struct {
	MaxAttempts int
}

// DefaultRetryBudget matches the teacher's own modest per-request retry
// allowance for round-message delivery.
var DefaultRetryBudget = RetryBudget{MaxAttempts: 3}
