// Package hsnettest provides an in-memory hsnet.Adapter with programmable
// delay and drop distributions, for deterministic consensus tests (spec.md
// §9 Design Notes: "Dynamic dispatch over transports... Tests substitute an
// in-memory transport with programmable delay and drop distributions").
//
// Grounded on the teacher's tm/tmp2p/tmp2ptest and tm/tmgossip/tmgossiptest
// packages (DaisyChainNetwork's shared-network-of-peers shape), adapted from
// a fixed daisy-chain topology to a fully-connected mesh with per-link fault
// injection.
package hsnettest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hotshot-consensus/hotshot/hsnet"
)

// Fault describes the delay and drop behavior applied to messages crossing
// one link in the network.
type Fault struct {
	// MinDelay/MaxDelay bound a uniformly distributed artificial delivery
	// delay. Zero values deliver immediately.
	MinDelay, MaxDelay time.Duration

	// DropProbability in [0,1] is the chance a message is silently dropped
	// instead of delivered.
	DropProbability float64
}

// Network is a shared fully-connected set of in-memory peers. All peers
// constructed via NewPeer share the same Network and can reach each other.
type Network struct {
	mu    sync.Mutex
	peers map[hsnet.PeerID]*Peer
	rng   *rand.Rand

	fault Fault
}

// NewNetwork returns an empty Network applying fault to every link.
func NewNetwork(fault Fault, seed int64) *Network {
	return &Network{
		peers: make(map[hsnet.PeerID]*Peer),
		rng:   rand.New(rand.NewSource(seed)),
		fault: fault,
	}
}

// NewPeer registers and returns a new Adapter named id, joining n.
func (n *Network) NewPeer(id hsnet.PeerID, inboxSize int) *Peer {
	n.mu.Lock()
	defer n.mu.Unlock()

	p := &Peer{
		id:     id,
		net:    n,
		inbox:  make(chan hsnet.Envelope, inboxSize),
		closed: make(chan struct{}),
		scores: make(map[hsnet.PeerID]int),
	}
	n.peers[id] = p
	return p
}

func (n *Network) roll() (time.Duration, bool) {
	n.mu.Lock()
	f := n.fault
	r := n.rng.Float64()
	var delay time.Duration
	if f.MaxDelay > f.MinDelay {
		delay = f.MinDelay + time.Duration(n.rng.Int63n(int64(f.MaxDelay-f.MinDelay)))
	} else {
		delay = f.MinDelay
	}
	n.mu.Unlock()

	return delay, r < f.DropProbability
}

func (n *Network) snapshotPeers() []*Peer {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

func (n *Network) peer(id hsnet.PeerID) (*Peer, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.peers[id]
	return p, ok
}

// Peer is an in-memory hsnet.Adapter.
type Peer struct {
	id  hsnet.PeerID
	net *Network

	inbox  chan hsnet.Envelope
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	scores map[hsnet.PeerID]int
}

var _ hsnet.Adapter = (*Peer)(nil)

// Broadcast delivers msg to every other registered peer, subject to the
// network's fault distribution.
func (p *Peer) Broadcast(ctx context.Context, msg []byte) error {
	for _, other := range p.net.snapshotPeers() {
		if other.id == p.id {
			continue
		}
		p.deliver(ctx, other, msg)
	}
	return nil
}

// SendTo delivers msg to peer only, subject to the network's fault
// distribution. Returns nil even if the message is dropped by the fault
// distribution, mirroring SendTo's best-effort contract; an error is
// returned only if peer is unknown.
func (p *Peer) SendTo(ctx context.Context, peer hsnet.PeerID, msg []byte) error {
	other, ok := p.net.peer(peer)
	if !ok {
		return &unknownPeerError{peer: peer}
	}
	p.deliver(ctx, other, msg)
	return nil
}

func (p *Peer) deliver(ctx context.Context, dst *Peer, msg []byte) {
	delay, drop := p.net.roll()
	if drop {
		return
	}

	env := hsnet.Envelope{From: p.id, Payload: append([]byte(nil), msg...)}

	go func() {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-dst.closed:
				return
			case <-t.C:
			}
		}

		select {
		case dst.inbox <- env:
		case <-dst.closed:
		default:
			// Backpressure: bounded inbox depth per spec.md §4.7; drop
			// rather than block the sender.
		}
	}()
}

// Recv implements hsnet.Adapter.
func (p *Peer) Recv(ctx context.Context) (hsnet.Envelope, error) {
	select {
	case <-ctx.Done():
		return hsnet.Envelope{}, ctx.Err()
	case <-p.closed:
		return hsnet.Envelope{}, hsnet.ErrClosed
	case env := <-p.inbox:
		return env, nil
	}
}

// ScorePeer implements hsnet.Adapter.
func (p *Peer) ScorePeer(peer hsnet.PeerID, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scores[peer] += delta
}

// Score returns peer's accumulated score, for test assertions.
func (p *Peer) Score(peer hsnet.PeerID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scores[peer]
}

// Close implements hsnet.Adapter.
func (p *Peer) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

type unknownPeerError struct{ peer hsnet.PeerID }

func (e *unknownPeerError) Error() string {
	return "hsnettest: unknown peer " + string(e.peer)
}
