package hsengine

import (
	"context"
	"log/slog"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// ReplicaTask is the task every validator runs regardless of whether it
// leads the current view: it receives proposals, checks them against the
// safe-node predicate, inserts them into the shared block tree, and
// votes when safe to do so.
//
// Grounded on the shape of the teacher's tmengine.Engine, which delegates
// inbound proposed-header handling to the Mirror and outbound vote
// production to the state machine; this task folds both halves into one
// loop since HotStuff's voting rule needs only the locked QC and block
// tree, not Tendermint's separate prevote/precommit phases.
type ReplicaTask struct {
	log   *slog.Logger
	coord *Coordinator
	bus   *Bus

	// backlog holds proposals received before their parent block, keyed
	// by the parent's commitment; a proposal's own insertion drains
	// whatever was waiting on it.
	backlog *proposalBacklog
}

// NewReplicaTask constructs a ReplicaTask; call Run in its own goroutine.
func NewReplicaTask(log *slog.Logger, coord *Coordinator, bus *Bus) *ReplicaTask {
	return &ReplicaTask{log: log, coord: coord, bus: bus, backlog: newProposalBacklog(16)}
}

// Run processes proposals until ctx is canceled.
func (t *ReplicaTask) Run(ctx context.Context) error {
	proposals := Subscribe[ProposalEvent](t.bus, 32)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-proposals:
			t.handleProposal(ctx, ev)
		}
	}
}

// handleProposal inserts ev's block if its parent is already known, and
// replays any backlogged descendants that were waiting on ev's own
// commitment. A proposal whose parent has not arrived yet is queued
// rather than processed, since the safe-node check and commit rule both
// need the parent chain present in the block tree.
func (t *ReplicaTask) handleProposal(ctx context.Context, ev ProposalEvent) {
	if !t.coord.HasBlock(ctx, ev.Block.ParentCommitment) {
		if !t.backlog.add(ev.Block.ParentCommitment, ev) {
			t.log.Info("Dropping proposal: backlog full for parent", "view", ev.Block.View)
		}
		return
	}

	t.insertAndVote(ctx, ev)

	for _, queued := range t.backlog.drain(ev.Commitment) {
		t.handleProposal(ctx, queued)
	}
}

func (t *ReplicaTask) insertAndVote(ctx context.Context, ev ProposalEvent) {
	currView, _, lockedQC, ok := t.coord.Snapshot(ctx)
	if !ok {
		return
	}

	// A proposal only belongs to the view the local replica is currently
	// in; one for any other view is either stale or premature and must
	// never be inserted or voted on.
	if ev.Block.View != currView {
		t.log.Info("Dropping proposal: view does not match current view", "proposal_view", ev.Block.View, "current_view", currView)
		return
	}

	inserted, ok := t.coord.InsertBlock(ctx, ev.Commitment, ev.Block)
	if !ok {
		return
	}
	if !inserted {
		t.log.Debug("Ignoring already-known block", "view", ev.Block.View)
		return
	}

	if updated, newLocked, ok := t.coord.UpdateLockedQC(ctx, ev.Block.Justify); ok && updated {
		lockedQC = newLocked
	}
	t.coord.UpdateHighQC(ctx, ev.Block.Justify)

	if ev.Block.Justify != nil {
		if committed, commitment, block, err, ok := t.coord.TryCommit(ctx, ev.Block.Justify.View, ev.Block.Justify.Commitment); ok && committed && err == nil {
			t.log.Info("Committed block", "view", block.View, "commitment_len", len(commitment))
		}
	}

	if !safeToVote(ctx, t.coord, ev.Block, ev.Block.TC, lockedQC) {
		t.log.Info("Refusing to vote: proposal fails safe-node predicate", "view", ev.Block.View)
		return
	}

	allowed, err, ok := t.coord.TryVote(ctx, ev.Block.View)
	if !ok {
		return
	}
	if err != nil {
		t.log.Error("Failed to persist vote-once state", "view", ev.Block.View, "err", err)
		return
	}
	if !allowed {
		t.log.Info("Refusing to vote: already voted at this view or later", "view", ev.Block.View)
		return
	}

	vote, err := t.coord.SignVote(ctx, hsconsensus.VoteTarget{View: ev.Block.View, Commitment: ev.Commitment})
	if err != nil {
		t.log.Error("Failed to sign vote", "err", err)
		return
	}

	t.coord.AdvanceView(ctx, ev.Block.View+1)
	Publish(t.bus, OutboundVoteEvent{Vote: vote})
}

// safeToVote applies the same rule as hsconsensus.SafeNode against the
// coordinator's state; kept here rather than calling SafeNode because the
// coordinator's live block tree is not exported, so the safety branch
// walks b's ancestors one Coordinator.GetBlock at a time looking for the
// locked block.
func safeToVote(ctx context.Context, coord *Coordinator, b hsconsensus.Block, tc *hsconsensus.TimeoutCert, lockedQC *hsconsensus.QuorumCert) bool {
	if lockedQC == nil {
		return true
	}
	if tc != nil && tc.View > lockedQC.View {
		return true
	}
	for c := b.ParentCommitment; c != ""; {
		if c == lockedQC.Commitment {
			return true
		}
		parent, ok := coord.GetBlock(ctx, c)
		if !ok {
			return false
		}
		c = parent.ParentCommitment
	}
	return false
}
