// Package hscombined implements the "combined-with-failover" transport
// variant named in spec.md §4.7: a primary and a fallback hsnet.Adapter,
// switching a given peer's unicast traffic to the fallback once it has
// failed K consecutive times within a sliding window W, per the Open
// Question decision recorded in DESIGN.md. Broadcast always goes out on
// both transports, since broadcast has no per-peer failure signal to key
// off of.
package hscombined

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hotshot-consensus/hotshot/hsnet"
)

// Config configures the failover policy.
type Config struct {
	// ConsecutiveFailureThreshold is K: the number of consecutive SendTo
	// failures to a peer, within Window, that triggers failover.
	ConsecutiveFailureThreshold int
	// Window is W: failures older than Window are forgotten and do not
	// count toward the threshold.
	Window time.Duration
	// RetryBudget bounds how many times SendTo itself is retried with
	// backoff before the call returns an error to the caller.
	RetryBudget hsnet.RetryBudget
}

// DefaultConfig trips failover after 3 consecutive failures within a
// 10-second window.
var DefaultConfig = Config{
	ConsecutiveFailureThreshold: 3,
	Window:                      10 * time.Second,
	RetryBudget:                 hsnet.DefaultRetryBudget,
}

type peerState struct {
	mu               sync.Mutex
	consecutiveFails int
	windowStart      time.Time
	usingFallback    bool
}

// Adapter multiplexes a primary and fallback hsnet.Adapter.
type Adapter struct {
	cfg Config

	primary  hsnet.Adapter
	fallback hsnet.Adapter

	mu     sync.Mutex
	states map[hsnet.PeerID]*peerState
}

// New returns an Adapter that prefers primary, falling back to fallback
// per-peer once the failure policy in cfg trips.
func New(cfg Config, primary, fallback hsnet.Adapter) *Adapter {
	return &Adapter{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		states:   make(map[hsnet.PeerID]*peerState),
	}
}

func (a *Adapter) stateFor(peer hsnet.PeerID) *peerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.states[peer]
	if !ok {
		s = &peerState{}
		a.states[peer] = s
	}
	return s
}

// Broadcast implements hsnet.Adapter: fans out on both transports so a
// partial outage of one never silently drops the broadcast obligation.
func (a *Adapter) Broadcast(ctx context.Context, msg []byte) error {
	err1 := a.primary.Broadcast(ctx, msg)
	err2 := a.fallback.Broadcast(ctx, msg)
	if err1 != nil {
		return err1
	}
	return err2
}

// SendTo implements hsnet.Adapter, retrying with backoff on the
// currently-selected transport for peer before reporting failure, and
// switching peer to the fallback transport once the consecutive-failure
// policy trips.
func (a *Adapter) SendTo(ctx context.Context, peer hsnet.PeerID, msg []byte) error {
	st := a.stateFor(peer)

	st.mu.Lock()
	useFallback := st.usingFallback
	st.mu.Unlock()

	transport := a.primary
	if useFallback {
		transport = a.fallback
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(a.cfg.RetryBudget.MaxAttempts)), ctx)

	err := backoff.Retry(func() error {
		return transport.SendTo(ctx, peer, msg)
	}, b)

	st.mu.Lock()
	defer st.mu.Unlock()

	if err != nil {
		now := time.Now()
		if st.windowStart.IsZero() || now.Sub(st.windowStart) > a.cfg.Window {
			st.windowStart = now
			st.consecutiveFails = 0
		}
		st.consecutiveFails++

		if !st.usingFallback && st.consecutiveFails >= a.cfg.ConsecutiveFailureThreshold {
			st.usingFallback = true
			st.consecutiveFails = 0
			// Retry once on the fallback immediately, so a trip doesn't
			// also cost this call's message.
			return a.fallback.SendTo(ctx, peer, msg)
		}
		return err
	}

	st.consecutiveFails = 0
	return nil
}

// Recv implements hsnet.Adapter, merging both transports' inbound
// streams.
func (a *Adapter) Recv(ctx context.Context) (hsnet.Envelope, error) {
	type result struct {
		env hsnet.Envelope
		err error
	}
	out := make(chan result, 2)

	go func() {
		env, err := a.primary.Recv(ctx)
		out <- result{env, err}
	}()
	go func() {
		env, err := a.fallback.Recv(ctx)
		out <- result{env, err}
	}()

	select {
	case <-ctx.Done():
		return hsnet.Envelope{}, ctx.Err()
	case r := <-out:
		return r.env, r.err
	}
}

// ScorePeer implements hsnet.Adapter, applying delta to both transports.
func (a *Adapter) ScorePeer(peer hsnet.PeerID, delta int) {
	a.primary.ScorePeer(peer, delta)
	a.fallback.ScorePeer(peer, delta)
}

// Close implements hsnet.Adapter.
func (a *Adapter) Close() error {
	err1 := a.primary.Close()
	err2 := a.fallback.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
