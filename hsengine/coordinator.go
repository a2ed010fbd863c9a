package hsengine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/blake2b"

	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsengine/internal/hskernel"
	"github.com/hotshot-consensus/hotshot/hsstore"
)

// Config configures a Coordinator and the tasks built on top of it.
type Config struct {
	Store hsstore.ConsensusStore

	ValidatorSet hsconsensus.ValidatorSet
	Membership   hsconsensus.Membership

	HashScheme      hsconsensus.HashScheme
	SignatureScheme hsconsensus.SignatureScheme
	ProofScheme     hscrypto.CommonMessageSignatureProofScheme

	Genesis           hsconsensus.Block
	GenesisCommitment hsconsensus.Commitment

	Signer hscrypto.Signer

	// ViewTimeoutBase is the duration the view-sync task waits for a
	// commit before issuing a timeout vote for the current view.
	ViewTimeoutBase int64 // milliseconds; kept as an integer to avoid importing time into Config's wire-friendly shape
}

// Coordinator is the facade every task uses to read or mutate shared
// consensus state: it forwards every call into the internal kernel's
// single-goroutine main loop, the same way the teacher's Mirror forwards
// calls into its internal Kernel.
type Coordinator struct {
	log *slog.Logger

	k *hskernel.Kernel

	bus *Bus

	vs    hsconsensus.ValidatorSet
	mship hsconsensus.Membership

	hashScheme      hsconsensus.HashScheme
	sigScheme       hsconsensus.SignatureScheme
	proofScheme     hscrypto.CommonMessageSignatureProofScheme
	signer          hscrypto.Signer
	viewTimeoutBase int64

	commitNotifications chan hskernel.CommitNotification
}

// NewCoordinator starts a Coordinator's background kernel goroutine,
// bound to ctx.
func NewCoordinator(ctx context.Context, log *slog.Logger, bus *Bus, cfg Config) (*Coordinator, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("hsengine: Signer must not be nil")
	}

	commitCh := make(chan hskernel.CommitNotification, 8)

	k, err := hskernel.NewKernel(ctx, log.With("component", "kernel"), hskernel.Config{
		Store:             cfg.Store,
		ValidatorSet:      cfg.ValidatorSet,
		Membership:        cfg.Membership,
		HashScheme:        cfg.HashScheme,
		SignatureScheme:   cfg.SignatureScheme,
		ProofScheme:       cfg.ProofScheme,
		Genesis:           cfg.Genesis,
		GenesisCommitment: cfg.GenesisCommitment,
		CommitOut:         commitCh,
	})
	if err != nil {
		return nil, fmt.Errorf("hsengine: start kernel: %w", err)
	}

	c := &Coordinator{
		log: log,

		k: k,

		bus: bus,

		vs:    cfg.ValidatorSet,
		mship: cfg.Membership,

		hashScheme:      cfg.HashScheme,
		sigScheme:       cfg.SignatureScheme,
		proofScheme:     cfg.ProofScheme,
		signer:          cfg.Signer,
		viewTimeoutBase: cfg.ViewTimeoutBase,

		commitNotifications: commitCh,
	}

	go c.relayCommits(ctx)

	return c, nil
}

// Wait blocks until the coordinator's kernel goroutine exits.
func (c *Coordinator) Wait() { c.k.Wait() }

func (c *Coordinator) relayCommits(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.commitNotifications:
			Publish(c.bus, CommitEvent{View: n.View, Commitment: n.Commitment, Block: n.Block})
		}
	}
}

// PubKeyHash is a stable identifier for the coordinator's validator set,
// used to tag votes and certificates so peers can cheaply check they are
// talking about the same committee.
func (c *Coordinator) PubKeyHash() string {
	return validatorSetHash(c.vs)
}

func validatorSetHash(vs hsconsensus.ValidatorSet) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, v := range vs.Validators {
		h.Write(v.PubKey.PubKeyBytes())
	}
	return string(h.Sum(nil))
}
