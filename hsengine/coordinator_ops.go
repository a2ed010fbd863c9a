package hsengine

import (
	"context"

	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// AdvanceView moves the shared view counter forward.
func (c *Coordinator) AdvanceView(ctx context.Context, view hsconsensus.View) bool {
	return c.k.AdvanceView(ctx, view)
}

// UpdateHighQC offers qc as a candidate high QC.
func (c *Coordinator) UpdateHighQC(ctx context.Context, qc *hsconsensus.QuorumCert) (updated bool, highQC *hsconsensus.QuorumCert, ok bool) {
	return c.k.UpdateHighQC(ctx, qc)
}

// UpdateLockedQC offers qc as a candidate locked QC, per the locking
// rule: the lock only ever moves to a strictly higher view.
func (c *Coordinator) UpdateLockedQC(ctx context.Context, qc *hsconsensus.QuorumCert) (updated bool, lockedQC *hsconsensus.QuorumCert, ok bool) {
	return c.k.UpdateLockedQC(ctx, qc)
}

// InsertBlock adds a received or locally-built block to the block tree.
func (c *Coordinator) InsertBlock(ctx context.Context, commitment hsconsensus.Commitment, block hsconsensus.Block) (inserted, ok bool) {
	return c.k.InsertBlock(ctx, commitment, block)
}

// HasBlock reports whether commitment is already present in the block
// tree.
func (c *Coordinator) HasBlock(ctx context.Context, commitment hsconsensus.Commitment) bool {
	return c.k.HasBlock(ctx, commitment)
}

// GetBlock returns the block stored under commitment, if any.
func (c *Coordinator) GetBlock(ctx context.Context, commitment hsconsensus.Commitment) (hsconsensus.Block, bool) {
	return c.k.GetBlock(ctx, commitment)
}

// TryVote enforces the vote-once invariant, durably persisting the new
// LastVotedView before reporting the vote allowed.
func (c *Coordinator) TryVote(ctx context.Context, view hsconsensus.View) (allowed bool, err error, ok bool) {
	return c.k.TryVote(ctx, view)
}

// TryCommit applies the three-chain commit rule.
func (c *Coordinator) TryCommit(ctx context.Context, qcView hsconsensus.View, qcCommitment hsconsensus.Commitment) (committed bool, commitment hsconsensus.Commitment, block hsconsensus.Block, err error, ok bool) {
	return c.k.TryCommit(ctx, qcView, qcCommitment)
}

// RecordVote folds a vote's signature into the accumulating proof.
func (c *Coordinator) RecordVote(ctx context.Context, v hsconsensus.Vote) (*hsconsensus.QuorumCert, error, bool) {
	return c.k.RecordVote(ctx, v.Target, v.Sig, v.Signer, c.PubKeyHash())
}

// RecordTimeoutVote folds a timeout vote's signature into the
// accumulating timeout proof.
func (c *Coordinator) RecordTimeoutVote(ctx context.Context, v hsconsensus.TimeoutVote) (*hsconsensus.TimeoutCert, error, bool) {
	return c.k.RecordTimeoutVote(ctx, v.View, v.HighQC, v.Sig, v.Signer, c.PubKeyHash())
}

// GetLeader returns the validator index and public key leading view.
func (c *Coordinator) GetLeader(ctx context.Context, view hsconsensus.View) (int, hscrypto.PubKey, bool) {
	return c.k.GetLeader(ctx, view)
}

// Snapshot returns the current view, high QC, and locked QC.
func (c *Coordinator) Snapshot(ctx context.Context) (hsconsensus.View, *hsconsensus.QuorumCert, *hsconsensus.QuorumCert, bool) {
	return c.k.Snapshot(ctx)
}

// IsLocalLeader reports whether the local signer leads view.
func (c *Coordinator) IsLocalLeader(ctx context.Context, view hsconsensus.View) bool {
	_, pk, ok := c.GetLeader(ctx, view)
	if !ok || pk == nil {
		return false
	}
	return pk.Equal(c.signer.PubKey())
}

// SignVote signs vt with the local validator's key, producing a Vote.
func (c *Coordinator) SignVote(ctx context.Context, vt hsconsensus.VoteTarget) (hsconsensus.Vote, error) {
	sig, err := c.signer.Sign(ctx, vt.SignBytes(c.sigScheme))
	if err != nil {
		return hsconsensus.Vote{}, err
	}
	return hsconsensus.Vote{Target: vt, Sig: sig, Signer: c.signer.PubKey()}, nil
}

// SignTimeoutVote signs a timeout for view, carrying highQC, with the
// local validator's key.
func (c *Coordinator) SignTimeoutVote(ctx context.Context, view hsconsensus.View, highQC *hsconsensus.QuorumCert) (hsconsensus.TimeoutVote, error) {
	sig, err := c.signer.Sign(ctx, c.sigScheme.TimeoutSignBytes(view, highQC))
	if err != nil {
		return hsconsensus.TimeoutVote{}, err
	}
	return hsconsensus.TimeoutVote{View: view, HighQC: highQC, Sig: sig, Signer: c.signer.PubKey()}, nil
}

// HashScheme returns the coordinator's configured block hash scheme.
func (c *Coordinator) HashScheme() hsconsensus.HashScheme { return c.hashScheme }

// SignatureScheme returns the coordinator's configured vote/timeout sign
// byte scheme.
func (c *Coordinator) SignatureScheme() hsconsensus.SignatureScheme { return c.sigScheme }

// ValidatorSet returns the coordinator's fixed validator set.
func (c *Coordinator) ValidatorSet() hsconsensus.ValidatorSet { return c.vs }

// ViewTimeoutBase returns the configured base view-timeout duration, in
// milliseconds.
func (c *Coordinator) ViewTimeoutBase() int64 { return c.viewTimeoutBase }
