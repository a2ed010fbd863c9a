package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsda"
	"github.com/hotshot-consensus/hotshot/hsengine"
	"github.com/hotshot-consensus/hotshot/hsmetrics"
	"github.com/hotshot-consensus/hotshot/hsnet"
	"github.com/hotshot-consensus/hotshot/hsnet/hsnettest"
	"github.com/hotshot-consensus/hotshot/hsstore"
	"github.com/hotshot-consensus/hotshot/hsstore/hssqlite"
	"github.com/hotshot-consensus/hotshot/hswatchdog"
)

// genesisValidator is one entry of the genesis file's validator list.
type genesisValidator struct {
	PubKeyHex string `json:"pubkey"`
	Stake     uint64 `json:"stake"`
}

type genesisFile struct {
	Validators []genesisValidator `json:"validators"`
	Payload    string             `json:"genesis_payload"` // hex
}

func start(ctx context.Context) error {
	log := slog.Default().With("component", "hotshotd")

	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		return err
	}

	gen, err := loadGenesis(filepath.Join(cfg.DataDir, "genesis.json"))
	if err != nil {
		return err
	}

	vs, err := buildValidatorSet(gen)
	if err != nil {
		return err
	}

	signer, err := loadSigner(filepath.Join(cfg.DataDir, "node_key.json"))
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	payload, err := hex.DecodeString(gen.Payload)
	if err != nil {
		return fmt.Errorf("hotshotd: decode genesis payload: %w", err)
	}

	genesisBlock := hsconsensus.Block{View: 0, Payload: payload}
	hashScheme := hsconsensus.Blake2bHashScheme{}
	genesisCommitment := genesisBlock.Commitment(hashScheme)

	wd := hswatchdog.New(ctx, log)

	bus := hsengine.NewBus()

	coord, err := hsengine.NewCoordinator(ctx, log, bus, hsengine.Config{
		Store:             store,
		ValidatorSet:      vs,
		Membership:        hsconsensus.RoundRobinMembership{},
		HashScheme:        hashScheme,
		SignatureScheme:   hsconsensus.Blake2bSignatureScheme{},
		ProofScheme:       hscrypto.SimpleScheme{},
		Genesis:           genesisBlock,
		GenesisCommitment: genesisCommitment,
		Signer:            signer,
		ViewTimeoutBase:   cfg.ViewTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("hotshotd: start coordinator: %w", err)
	}

	enc, err := hsda.NewEncoder(flagDataShards, flagParityShard)
	if err != nil {
		return fmt.Errorf("hotshotd: build erasure encoder: %w", err)
	}
	shardCache, err := hsda.NewCache(256)
	if err != nil {
		return fmt.Errorf("hotshotd: build shard cache: %w", err)
	}

	metrics := hsmetrics.NewCollector(prometheus.DefaultRegisterer)
	go relayMetrics(ctx, bus, metrics)

	net := hsnettest.NewNetwork(hsnettest.Fault{}, 1)
	adapter := net.NewPeer(hsnet.PeerID(cfg.ListenAddr), 256)
	defer adapter.Close()

	replica := hsengine.NewReplicaTask(log.With("task", "replica"), coord, bus)
	leader := hsengine.NewLeaderTask(log.With("task", "leader"), coord, bus, staticPayloadBuilder{})
	viewsync := hsengine.NewViewSyncTask(log.With("task", "viewsync"), coord, bus, time.Duration(cfg.ViewTimeoutMS)*time.Millisecond)
	aggregator := hsengine.NewAggregatorTask(log.With("task", "aggregator"), coord, bus)
	da := hsengine.NewDATask(log.With("task", "da"), coord, bus, enc, shardCache, uint32(flagDAFanout))

	go wd.Monitor("replica", func() error { return replica.Run(ctx) })
	go wd.Monitor("leader", func() error { return leader.Run(ctx) })
	go wd.Monitor("viewsync", func() error { return viewsync.Run(ctx) })
	go wd.Monitor("aggregator", func() error { return aggregator.Run(ctx) })
	go wd.Monitor("da", func() error { return da.Run(ctx) })

	log.Info("hotshotd running", "validators", len(vs.Validators), "listen", cfg.ListenAddr)

	coord.Wait()
	if wd.Failed() {
		return fmt.Errorf("hotshotd: a task exited unexpectedly")
	}
	return nil
}

// relayMetrics subscribes to the bus and updates the Prometheus
// collector, so metrics stay in sync with consensus state without any
// engine task needing to know hsmetrics exists.
func relayMetrics(ctx context.Context, bus *hsengine.Bus, m *hsmetrics.Collector) {
	commits := hsengine.Subscribe[hsengine.CommitEvent](bus, 32)
	qcs := hsengine.Subscribe[hsengine.QCFormedEvent](bus, 32)
	daCerts := hsengine.Subscribe[hsengine.DACertFormedEvent](bus, 32)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-commits:
			m.OnCommit(uint64(ev.View))
		case ev := <-qcs:
			m.SetCurrentView(uint64(ev.QC.View))
			m.OnQCFormed(0)
		case <-daCerts:
			m.OnDACertFormed()
		}
	}
}

func loadGenesis(path string) (genesisFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return genesisFile{}, fmt.Errorf("hotshotd: read genesis %q: %w", path, err)
	}
	var g genesisFile
	if err := json.Unmarshal(b, &g); err != nil {
		return genesisFile{}, fmt.Errorf("hotshotd: parse genesis %q: %w", path, err)
	}
	return g, nil
}

func buildValidatorSet(gen genesisFile) (hsconsensus.ValidatorSet, error) {
	vals := make([]hsconsensus.Validator, len(gen.Validators))
	for i, gv := range gen.Validators {
		raw, err := hex.DecodeString(gv.PubKeyHex)
		if err != nil {
			return hsconsensus.ValidatorSet{}, fmt.Errorf("hotshotd: decode validator %d pubkey: %w", i, err)
		}
		pk, err := hscrypto.NewEd25519PubKey(raw)
		if err != nil {
			return hsconsensus.ValidatorSet{}, fmt.Errorf("hotshotd: validator %d pubkey: %w", i, err)
		}
		vals[i] = hsconsensus.Validator{PubKey: pk, Stake: gv.Stake}
	}
	return hsconsensus.ValidatorSet{Validators: vals}, nil
}

func loadSigner(path string) (hscrypto.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hotshotd: read node key %q: %w", path, err)
	}

	var kf struct {
		PrivKeyHex string `json:"priv_key"`
	}
	if err := json.Unmarshal(b, &kf); err != nil {
		return nil, fmt.Errorf("hotshotd: parse node key %q: %w", path, err)
	}

	raw, err := hex.DecodeString(kf.PrivKeyHex)
	if err != nil {
		return nil, fmt.Errorf("hotshotd: decode node key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("hotshotd: node key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	return hscrypto.NewEd25519Signer(ed25519.PrivateKey(raw)), nil
}

func openStore(ctx context.Context, cfg fileConfig) (hsstore.ConsensusStore, error) {
	if cfg.DataDir == "" {
		return hsstore.NewMemStore(), nil
	}
	return hssqlite.Open(ctx, filepath.Join(cfg.DataDir, "hotshot.db"))
}

// staticPayloadBuilder is a placeholder ProposalBuilder until a real
// payload producer (spec.md §6's "Payload producer" collaborator
// interface) is wired in; it proposes an empty payload every view.
type staticPayloadBuilder struct{}

func (staticPayloadBuilder) BuildPayload(_ context.Context, _ hsconsensus.View, _ hsconsensus.Commitment) ([]byte, error) {
	return nil, nil
}
