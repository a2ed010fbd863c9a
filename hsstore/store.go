// Package hsstore defines the persistence interfaces the replica task
// uses to survive restarts without violating safety: the last voted
// view, the locked QC, and the high QC must be durable before a vote or
// a proposal referencing them is sent, per spec.md §6.
//
// Grounded on the shape of the teacher's tm/tmstore.FinalizationStore,
// generalized from height+round finalizations to the view-keyed
// safety state this protocol needs.
package hsstore

import (
	"context"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// SafetyState is the durable state a replica must persist before
// sending any vote, so that a crash and restart can never cause it to
// violate the locked-QC or last-voted-view invariants.
type SafetyState struct {
	LastVotedView hsconsensus.View
	LockedQC      *hsconsensus.QuorumCert
	HighQC        *hsconsensus.QuorumCert
}

// ConsensusStore persists a replica's safety state and commit history.
type ConsensusStore interface {
	// SaveSafetyState atomically overwrites the stored safety state.
	// Callers must call this, and have it return successfully, before
	// acting on the state it describes (e.g. sending a vote for
	// LastVotedView).
	SaveSafetyState(ctx context.Context, s SafetyState) error

	// LoadSafetyState returns the most recently saved safety state, or
	// the zero value if none has ever been saved.
	LoadSafetyState(ctx context.Context) (SafetyState, error)

	// SaveCommit records that commitment was committed at view, extending
	// the chain from the previously committed block. block.Height is
	// persisted alongside view, since a timed-out view with no block
	// leaves the two counters diverged.
	SaveCommit(ctx context.Context, view hsconsensus.View, commitment hsconsensus.Commitment, block hsconsensus.Block) error

	// LoadCommitByView returns the block committed at view.
	LoadCommitByView(ctx context.Context, view hsconsensus.View) (hsconsensus.Commitment, hsconsensus.Block, error)

	// LastCommitView returns the highest view with a saved commit, or 0
	// with ErrNoCommits if none exists yet.
	LastCommitView(ctx context.Context) (hsconsensus.View, error)

	// LastCommitHeight returns the height of the most recently committed
	// block, or 0 with ErrNoCommits if none exists yet. Tracked
	// separately from LastCommitView because a view that times out
	// without a block advances the view counter but not the height.
	LastCommitHeight(ctx context.Context) (uint64, error)
}

// ErrNoCommits is returned by LastCommitView when no block has been
// committed yet.
type ErrNoCommits struct{}

func (ErrNoCommits) Error() string { return "hsstore: no commits recorded yet" }
