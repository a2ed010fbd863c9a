// Package hskernel holds the engine's single-goroutine state owner: the
// Kernel. Every operation that reads or mutates consensus state --
// advancing the view, updating the high QC, inserting a block, trying to
// commit, recording a vote or timeout vote, or asking who the leader is
// -- is a request sent to the kernel's main loop and answered over a
// response channel, so the state behind them never needs its own mutex.
//
// Grounded on the teacher's tmengine/internal/tmmirror/internal/tmi.Kernel
// (referenced from tmmirror/mirror.go as the owner of the mirror's state;
// its own source was not present in the retrieved pack, so this package
// follows only the request/response channel shape that mirror.go's field
// list and call sites imply).
package hskernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hotshot-consensus/hotshot/hschan"
	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsstore"
)

// Config configures a Kernel.
type Config struct {
	Store hsstore.ConsensusStore

	ValidatorSet hsconsensus.ValidatorSet
	Membership   hsconsensus.Membership

	HashScheme      hsconsensus.HashScheme
	SignatureScheme hsconsensus.SignatureScheme
	ProofScheme     hscrypto.CommonMessageSignatureProofScheme

	Genesis           hsconsensus.Block
	GenesisCommitment hsconsensus.Commitment

	// CommitOut receives the block and commitment every time ChainCommit
	// determines a new block is safe to commit.
	CommitOut chan<- CommitNotification
}

// CommitNotification is sent on CommitOut whenever the kernel commits a
// new block.
type CommitNotification struct {
	View       hsconsensus.View
	Commitment hsconsensus.Commitment
	Block      hsconsensus.Block
}

// Kernel owns all consensus state and serializes access to it through a
// single goroutine reading from its request channels.
type Kernel struct {
	log *slog.Logger

	store hsstore.ConsensusStore
	vs    hsconsensus.ValidatorSet
	mship hsconsensus.Membership

	hashScheme hsconsensus.HashScheme
	sigScheme  hsconsensus.SignatureScheme
	proofScheme hscrypto.CommonMessageSignatureProofScheme

	commitOut chan<- CommitNotification

	advanceViewRequests       chan advanceViewRequest
	updateHighQCRequests      chan updateHighQCRequest
	updateLockedQCRequests    chan updateLockedQCRequest
	insertBlockRequests       chan insertBlockRequest
	hasBlockRequests          chan hasBlockRequest
	getBlockRequests          chan getBlockRequest
	tryCommitRequests         chan tryCommitRequest
	recordVoteRequests        chan recordVoteRequest
	recordTimeoutVoteRequests chan recordTimeoutVoteRequest
	getLeaderRequests         chan getLeaderRequest
	snapshotRequests          chan snapshotRequest
	tryVoteRequests           chan tryVoteRequest

	wg sync.WaitGroup
}

// NewKernel starts a Kernel's main loop goroutine, bound to ctx.
func NewKernel(ctx context.Context, log *slog.Logger, cfg Config) (*Kernel, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("hskernel: Store must not be nil")
	}
	if cfg.Membership == nil {
		return nil, fmt.Errorf("hskernel: Membership must not be nil")
	}

	tree := hsconsensus.NewBlockTree(cfg.Genesis, cfg.GenesisCommitment)

	k := &Kernel{
		log: log,

		store: cfg.Store,
		vs:    cfg.ValidatorSet,
		mship: cfg.Membership,

		hashScheme:  cfg.HashScheme,
		sigScheme:   cfg.SignatureScheme,
		proofScheme: cfg.ProofScheme,

		commitOut: cfg.CommitOut,

		advanceViewRequests:       make(chan advanceViewRequest),
		updateHighQCRequests:      make(chan updateHighQCRequest),
		updateLockedQCRequests:    make(chan updateLockedQCRequest),
		insertBlockRequests:       make(chan insertBlockRequest),
		hasBlockRequests:          make(chan hasBlockRequest),
		getBlockRequests:          make(chan getBlockRequest),
		tryCommitRequests:         make(chan tryCommitRequest),
		recordVoteRequests:        make(chan recordVoteRequest),
		recordTimeoutVoteRequests: make(chan recordTimeoutVoteRequest),
		getLeaderRequests:         make(chan getLeaderRequest),
		snapshotRequests:          make(chan snapshotRequest, 1),
		tryVoteRequests:           make(chan tryVoteRequest),
	}

	// The first view a replica is ever asked to process is the one right
	// after genesis; currView starts there so the "p.view == cur_view"
	// check in the replica task's very first proposal is not vacuously
	// false.
	st := state{
		tree:       tree,
		currView:   cfg.Genesis.View + 1,
		highQC:     nil,
		lockedQC:   nil,
		lastLocked: cfg.GenesisCommitment,
		lastVoted:  0,
		votes:      make(map[voteKey]hscrypto.CommonMessageSignatureProof),
		tVotes:     make(map[hsconsensus.View]hscrypto.CommonMessageSignatureProof),
		sealed:     make(map[voteKey]bool),
		tSealed:    make(map[hsconsensus.View]bool),
	}

	// Recover durable safety state, if any was persisted by a prior run,
	// so a restart can never re-vote at a view it already voted at or
	// forget a lock it already held.
	if saved, err := cfg.Store.LoadSafetyState(ctx); err != nil {
		log.Warn("Failed to load persisted safety state, starting fresh", "err", err)
	} else {
		st.lastVoted = saved.LastVotedView
		st.lockedQC = saved.LockedQC
		st.highQC = saved.HighQC
	}

	k.wg.Add(1)
	go k.mainLoop(ctx, st)

	return k, nil
}

// Wait blocks until the kernel's main loop exits, which happens only
// after its context is canceled.
func (k *Kernel) Wait() { k.wg.Wait() }

func (k *Kernel) mainLoop(ctx context.Context, st state) {
	defer k.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-k.advanceViewRequests:
			if req.View > st.currView {
				st.currView = req.View
			}
			hschan.SendC(ctx, k.log, req.Resp, struct{}{}, "advanceView response")

		case req := <-k.updateHighQCRequests:
			updated := false
			if req.QC != nil && (st.highQC == nil || req.QC.View > st.highQC.View) {
				st.highQC = req.QC
				updated = true
			}
			hschan.SendC(ctx, k.log, req.Resp, updateHighQCResponse{Updated: updated, HighQC: st.highQC}, "updateHighQC response")

		case req := <-k.updateLockedQCRequests:
			updated := false
			if req.QC != nil && (st.lockedQC == nil || req.QC.View > st.lockedQC.View) {
				st.lockedQC = req.QC
				updated = true
			}
			hschan.SendC(ctx, k.log, req.Resp, updateLockedQCResponse{Updated: updated, LockedQC: st.lockedQC}, "updateLockedQC response")

		case req := <-k.insertBlockRequests:
			inserted := st.tree.Insert(req.Commitment, req.Block)
			hschan.SendC(ctx, k.log, req.Resp, insertBlockResponse{Inserted: inserted}, "insertBlock response")

		case req := <-k.hasBlockRequests:
			_, has := st.tree.Get(req.Commitment)
			hschan.SendC(ctx, k.log, req.Resp, hasBlockResponse{Has: has}, "hasBlock response")

		case req := <-k.getBlockRequests:
			block, has := st.tree.Get(req.Commitment)
			hschan.SendC(ctx, k.log, req.Resp, getBlockResponse{Block: block, Has: has}, "getBlock response")

		case req := <-k.tryVoteRequests:
			resp := k.handleTryVote(ctx, &st, req)
			hschan.SendC(ctx, k.log, req.Resp, resp, "tryVote response")

		case req := <-k.tryCommitRequests:
			resp := k.handleTryCommit(ctx, &st, req)
			hschan.SendC(ctx, k.log, req.Resp, resp, "tryCommit response")

		case req := <-k.recordVoteRequests:
			resp := k.handleRecordVote(&st, req)
			hschan.SendC(ctx, k.log, req.Resp, resp, "recordVote response")

		case req := <-k.recordTimeoutVoteRequests:
			resp := k.handleRecordTimeoutVote(&st, req)
			hschan.SendC(ctx, k.log, req.Resp, resp, "recordTimeoutVote response")

		case req := <-k.getLeaderRequests:
			idx := k.mship.LeaderForView(k.vs, req.View)
			var pk hscrypto.PubKey
			if idx >= 0 {
				pk = k.vs.Validators[idx].PubKey
			}
			hschan.SendC(ctx, k.log, req.Resp, getLeaderResponse{Index: idx, PubKey: pk}, "getLeader response")

		case req := <-k.snapshotRequests:
			hschan.SendC(ctx, k.log, req.Resp, snapshotResponse{
				View:     st.currView,
				HighQC:   st.highQC,
				LockedQC: st.lockedQC,
			}, "snapshot response")
		}
	}
}

// state is the kernel's unexported consensus state, touched only from
// the main loop goroutine.
type state struct {
	tree *hsconsensus.BlockTree

	currView   hsconsensus.View
	highQC     *hsconsensus.QuorumCert
	lockedQC   *hsconsensus.QuorumCert
	lastLocked hsconsensus.Commitment

	// lastVoted is the highest view this replica has cast a vote at. A
	// vote for view v is only ever emitted once lastVoted < v, and
	// lastVoted is persisted before the vote goes out, so a correct
	// replica never votes twice at the same view even across a restart.
	lastVoted hsconsensus.View

	// votes accumulates per-(view, commitment) signature proofs as votes
	// arrive, until a quorum forms.
	votes map[voteKey]hscrypto.CommonMessageSignatureProof

	// tVotes accumulates per-view timeout signature proofs.
	tVotes map[hsconsensus.View]hscrypto.CommonMessageSignatureProof

	// sealed marks a (view, commitment) key once its QC has already been
	// formed and reported, so a vote arriving after the quorum was
	// reached does not cause a second QCFormedEvent for the same key.
	sealed map[voteKey]bool

	// tSealed is sealed's timeout-vote counterpart, keyed by view.
	tSealed map[hsconsensus.View]bool
}

type voteKey struct {
	view       hsconsensus.View
	commitment hsconsensus.Commitment
}

func (k *Kernel) handleTryCommit(ctx context.Context, st *state, req tryCommitRequest) tryCommitResponse {
	commitment, ok := hsconsensus.ChainCommit(st.tree, req.QCCommitment, req.QCView)
	if !ok {
		return tryCommitResponse{Committed: false}
	}

	block, _ := st.tree.Get(commitment)

	if err := k.store.SaveCommit(ctx, block.View, commitment, block); err != nil {
		k.log.Error("Failed to persist commit", "view", block.View, "err", err)
		return tryCommitResponse{Committed: false, Err: err}
	}

	if k.commitOut != nil {
		hschan.SendC(ctx, k.log, k.commitOut, CommitNotification{
			View:       block.View,
			Commitment: commitment,
			Block:      block,
		}, "commit notification")
	}

	st.tree.PruneBelow(block.View, commitment)

	return tryCommitResponse{Committed: true, Commitment: commitment, Block: block}
}

func (k *Kernel) handleRecordVote(st *state, req recordVoteRequest) recordVoteResponse {
	key := voteKey{view: req.Target.View, commitment: req.Target.Commitment}

	// Once a QC has already been formed and reported for this key, a
	// late-arriving vote is dropped, so it can never re-cross the
	// threshold and publish a second QCFormedEvent.
	if st.sealed[key] {
		return recordVoteResponse{}
	}

	proof, ok := st.votes[key]
	if !ok {
		p, err := k.proofScheme.New(req.Target.SignBytes(k.sigScheme), k.vs.PubKeys(), req.PubKeyHash)
		if err != nil {
			return recordVoteResponse{Err: err}
		}
		proof = p
		st.votes[key] = proof
	}

	if err := proof.AddSignature(req.Sig, req.Signer); err != nil {
		return recordVoteResponse{Err: err}
	}

	stake := proof.AccumulatedStake(k.vs.Stakes())
	if stake >= k.vs.QuorumThreshold() {
		st.sealed[key] = true
		return recordVoteResponse{
			QuorumReached: true,
			QC: &hsconsensus.QuorumCert{
				View:       req.Target.View,
				Commitment: req.Target.Commitment,
				PubKeyHash: req.PubKeyHash,
				Proof:      proof.Finalize(),
			},
		}
	}

	return recordVoteResponse{}
}

func (k *Kernel) handleRecordTimeoutVote(st *state, req recordTimeoutVoteRequest) recordTimeoutVoteResponse {
	// Same sealing rule as handleRecordVote: a TC already formed for this
	// view must not be re-reported when a late timeout vote arrives.
	if st.tSealed[req.View] {
		return recordTimeoutVoteResponse{}
	}

	proof, ok := st.tVotes[req.View]
	if !ok {
		p, err := k.proofScheme.New(k.sigScheme.TimeoutSignBytes(req.View, req.HighQC), k.vs.PubKeys(), req.PubKeyHash)
		if err != nil {
			return recordTimeoutVoteResponse{Err: err}
		}
		proof = p
		st.tVotes[req.View] = proof
	}

	if err := proof.AddSignature(req.Sig, req.Signer); err != nil {
		return recordTimeoutVoteResponse{Err: err}
	}

	if req.HighQC != nil && (st.highQC == nil || req.HighQC.View > st.highQC.View) {
		st.highQC = req.HighQC
	}

	stake := proof.AccumulatedStake(k.vs.Stakes())
	if stake >= k.vs.TimeoutThreshold() {
		st.tSealed[req.View] = true
		return recordTimeoutVoteResponse{
			ThresholdReached: true,
			TC: &hsconsensus.TimeoutCert{
				View:       req.View,
				HighQC:     st.highQC,
				PubKeyHash: req.PubKeyHash,
				Proof:      proof.Finalize(),
			},
		}
	}

	return recordTimeoutVoteResponse{}
}

// handleTryVote enforces the vote-once invariant: a vote for view is
// only permitted, and view recorded as the new lastVoted, if
// lastVoted < view. The new safety state is persisted before the
// response is sent, so the caller never observes permission to vote
// before that permission is durable.
func (k *Kernel) handleTryVote(ctx context.Context, st *state, req tryVoteRequest) tryVoteResponse {
	if req.View <= st.lastVoted {
		return tryVoteResponse{Allowed: false}
	}

	if err := k.store.SaveSafetyState(ctx, hsstore.SafetyState{
		LastVotedView: req.View,
		LockedQC:      st.lockedQC,
		HighQC:        st.highQC,
	}); err != nil {
		return tryVoteResponse{Allowed: false, Err: err}
	}

	st.lastVoted = req.View
	return tryVoteResponse{Allowed: true}
}
