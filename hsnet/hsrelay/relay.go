// Package hsrelay implements hsnet.Adapter over plain HTTP: broadcast
// fans out a POST to every known peer's relay address, unicast POSTs
// directly to one peer, and recv is served by an inbound HTTP handler
// that enqueues received bodies.
//
// Grounded on the teacher's cmd/gcosmos HTTP server wiring, which uses
// github.com/gorilla/mux for routing; github.com/rs/cors (present in the
// pack's canopy go.mod) guards the inbound endpoint, and
// github.com/tv42/httpunix (present in the teacher's own go.mod) serves
// the same-host variant used by hsnettest-adjacent local deployments.
package hsrelay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/tv42/httpunix"

	"github.com/hotshot-consensus/hotshot/hsnet"
)

// PeerAddr is a relay-reachable address for a peer: either an "http(s)://"
// URL, or a "unix://<socket-name>/" URL served by httpunix for same-host
// deployments.
type PeerAddr string

// Adapter is an hsnet.Adapter backed by an HTTP relay server and client.
type Adapter struct {
	log *slog.Logger

	self  hsnet.PeerID
	peers map[hsnet.PeerID]PeerAddr

	client     *http.Client
	unixClient *http.Client
	server     *http.Server

	inbox chan hsnet.Envelope

	mu     sync.Mutex
	scores map[hsnet.PeerID]int
}

// Config configures a relay Adapter.
type Config struct {
	Self PeerID
	// ListenAddr is the local address the inbound relay server binds.
	ListenAddr string
	// Peers maps every other validator's logical PeerID to its relay
	// address.
	Peers map[hsnet.PeerID]PeerAddr
	// RequestTimeout bounds a single outbound POST.
	RequestTimeout time.Duration
}

// PeerID is re-exported for Config ergonomics.
type PeerID = hsnet.PeerID

// New starts an Adapter: an inbound HTTP server on cfg.ListenAddr and an
// outbound client configured with httpunix support for "unix://" peer
// addresses.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Adapter, error) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	unixTransport := &httpunix.Transport{DialTimeout: time.Second}
	for peerID, addr := range cfg.Peers {
		if isUnixAddr(addr) {
			unixTransport.RegisterLocation(string(peerID), string(addr)[len(unixScheme+"://"):])
		}
	}

	a := &Adapter{
		log:         log,
		self:        cfg.Self,
		peers:       cfg.Peers,
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		unixClient:  &http.Client{Timeout: cfg.RequestTimeout, Transport: unixTransport},
		inbox:       make(chan hsnet.Envelope, 256),
		scores:      make(map[hsnet.PeerID]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/hotshot/v1/msg", a.handleInbound).Methods(http.MethodPost)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost},
	}).Handler(r)

	a.server = &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Relay server exited", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = a.server.Close()
	}()

	return a, nil
}

func (a *Adapter) handleInbound(w http.ResponseWriter, r *http.Request) {
	from := hsnet.PeerID(r.Header.Get("X-Hotshot-From"))

	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	select {
	case a.inbox <- hsnet.Envelope{From: from, Payload: body}:
		w.WriteHeader(http.StatusAccepted)
	default:
		// Backpressure: bounded inbox depth, per spec.md §4.7.
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}
}

const unixScheme = "unix"

func isUnixAddr(addr PeerAddr) bool {
	return len(addr) > len(unixScheme)+3 && string(addr)[:len(unixScheme)+3] == unixScheme+"://"
}

// postTo issues the POST against peer's relay address, routing unix://
// addresses through httpunix and everything else through a plain client.
func (a *Adapter) postTo(ctx context.Context, peerID hsnet.PeerID, addr PeerAddr, msg []byte) error {
	client := a.client
	url := string(addr) + "/hotshot/v1/msg"
	if isUnixAddr(addr) {
		client = a.unixClient
		url = "http+unix://" + string(peerID) + "/hotshot/v1/msg"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg))
	if err != nil {
		return err
	}
	req.Header.Set("X-Hotshot-From", string(a.self))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hsrelay: peer returned status %d", resp.StatusCode)
	}
	return nil
}

// Broadcast implements hsnet.Adapter.
func (a *Adapter) Broadcast(ctx context.Context, msg []byte) error {
	var firstErr error
	for peerID, addr := range a.peers {
		if err := a.postTo(ctx, peerID, addr, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendTo implements hsnet.Adapter.
func (a *Adapter) SendTo(ctx context.Context, peer hsnet.PeerID, msg []byte) error {
	addr, ok := a.peers[peer]
	if !ok {
		return fmt.Errorf("hsrelay: unknown peer %q", peer)
	}
	return a.postTo(ctx, peer, addr, msg)
}

// Recv implements hsnet.Adapter.
func (a *Adapter) Recv(ctx context.Context) (hsnet.Envelope, error) {
	select {
	case <-ctx.Done():
		return hsnet.Envelope{}, ctx.Err()
	case env, ok := <-a.inbox:
		if !ok {
			return hsnet.Envelope{}, hsnet.ErrClosed
		}
		return env, nil
	}
}

// ScorePeer implements hsnet.Adapter.
func (a *Adapter) ScorePeer(peer hsnet.PeerID, delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scores[peer] += delta
}

// Close implements hsnet.Adapter.
func (a *Adapter) Close() error {
	close(a.inbox)
	return a.server.Close()
}
