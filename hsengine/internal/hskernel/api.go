package hskernel

import (
	"context"

	"github.com/hotshot-consensus/hotshot/hschan"
	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// AdvanceView moves the kernel's current view forward. Callers should
// have already persisted the new LastVotedView (or otherwise confirmed
// it is safe to proceed) before calling this.
func (k *Kernel) AdvanceView(ctx context.Context, view hsconsensus.View) bool {
	req := advanceViewRequest{View: view, Resp: make(chan struct{}, 1)}
	_, ok := hschan.ReqResp(ctx, k.log, k.advanceViewRequests, req, req.Resp, "AdvanceView")
	return ok
}

// UpdateHighQC replaces the kernel's high QC with qc if qc's view is
// higher, returning whether the update took effect and the resulting
// high QC.
func (k *Kernel) UpdateHighQC(ctx context.Context, qc *hsconsensus.QuorumCert) (bool, *hsconsensus.QuorumCert, bool) {
	req := updateHighQCRequest{QC: qc, Resp: make(chan updateHighQCResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.updateHighQCRequests, req, req.Resp, "UpdateHighQC")
	if !ok {
		return false, nil, false
	}
	return resp.Updated, resp.HighQC, true
}

// UpdateLockedQC replaces the kernel's locked QC with qc if qc's view is
// higher, implementing the locking rule: a replica locks onto the
// highest-view QC it has formed or observed, and will refuse to vote
// off that branch without a TC proving it was abandoned.
func (k *Kernel) UpdateLockedQC(ctx context.Context, qc *hsconsensus.QuorumCert) (bool, *hsconsensus.QuorumCert, bool) {
	req := updateLockedQCRequest{QC: qc, Resp: make(chan updateLockedQCResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.updateLockedQCRequests, req, req.Resp, "UpdateLockedQC")
	if !ok {
		return false, nil, false
	}
	return resp.Updated, resp.LockedQC, true
}

// InsertBlock adds a block to the kernel's block tree.
func (k *Kernel) InsertBlock(ctx context.Context, commitment hsconsensus.Commitment, block hsconsensus.Block) (bool, bool) {
	req := insertBlockRequest{Commitment: commitment, Block: block, Resp: make(chan insertBlockResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.insertBlockRequests, req, req.Resp, "InsertBlock")
	if !ok {
		return false, false
	}
	return resp.Inserted, true
}

// HasBlock reports whether commitment is already present in the
// kernel's block tree.
func (k *Kernel) HasBlock(ctx context.Context, commitment hsconsensus.Commitment) bool {
	req := hasBlockRequest{Commitment: commitment, Resp: make(chan hasBlockResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.hasBlockRequests, req, req.Resp, "HasBlock")
	if !ok {
		return false
	}
	return resp.Has
}

// GetBlock returns the block stored under commitment, if any.
func (k *Kernel) GetBlock(ctx context.Context, commitment hsconsensus.Commitment) (hsconsensus.Block, bool) {
	req := getBlockRequest{Commitment: commitment, Resp: make(chan getBlockResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.getBlockRequests, req, req.Resp, "GetBlock")
	if !ok {
		return hsconsensus.Block{}, false
	}
	return resp.Block, resp.Has
}

// TryVote enforces the vote-once invariant for view: it reports whether
// voting is still allowed (lastVoted < view) and, if so, durably
// persists view as the new LastVotedView before returning, so a crash
// immediately after a true result can never cause a repeat vote.
func (k *Kernel) TryVote(ctx context.Context, view hsconsensus.View) (bool, error, bool) {
	req := tryVoteRequest{View: view, Resp: make(chan tryVoteResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.tryVoteRequests, req, req.Resp, "TryVote")
	if !ok {
		return false, nil, false
	}
	return resp.Allowed, resp.Err, true
}

// TryCommit applies the three-chain commit rule following the formation
// of a QC at (qcView, qcCommitment).
func (k *Kernel) TryCommit(ctx context.Context, qcView hsconsensus.View, qcCommitment hsconsensus.Commitment) (committed bool, commitment hsconsensus.Commitment, block hsconsensus.Block, err error, ok bool) {
	req := tryCommitRequest{QCView: qcView, QCCommitment: qcCommitment, Resp: make(chan tryCommitResponse, 1)}
	resp, got := hschan.ReqResp(ctx, k.log, k.tryCommitRequests, req, req.Resp, "TryCommit")
	if !got {
		return false, "", hsconsensus.Block{}, nil, false
	}
	return resp.Committed, resp.Commitment, resp.Block, resp.Err, true
}

// RecordVote folds sig into the accumulating proof for target, returning
// a formed QC if the quorum threshold was just reached.
func (k *Kernel) RecordVote(ctx context.Context, target hsconsensus.VoteTarget, sig []byte, signer hscrypto.PubKey, pubKeyHash string) (*hsconsensus.QuorumCert, error, bool) {
	req := recordVoteRequest{Target: target, Sig: sig, Signer: signer, PubKeyHash: pubKeyHash, Resp: make(chan recordVoteResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.recordVoteRequests, req, req.Resp, "RecordVote")
	if !ok {
		return nil, nil, false
	}
	if resp.Err != nil {
		return nil, resp.Err, true
	}
	if resp.QuorumReached {
		return resp.QC, nil, true
	}
	return nil, nil, true
}

// RecordTimeoutVote folds sig into the accumulating timeout proof for
// view, returning a formed TC if the timeout threshold was just reached.
func (k *Kernel) RecordTimeoutVote(ctx context.Context, view hsconsensus.View, highQC *hsconsensus.QuorumCert, sig []byte, signer hscrypto.PubKey, pubKeyHash string) (*hsconsensus.TimeoutCert, error, bool) {
	req := recordTimeoutVoteRequest{View: view, HighQC: highQC, Sig: sig, Signer: signer, PubKeyHash: pubKeyHash, Resp: make(chan recordTimeoutVoteResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.recordTimeoutVoteRequests, req, req.Resp, "RecordTimeoutVote")
	if !ok {
		return nil, nil, false
	}
	if resp.Err != nil {
		return nil, resp.Err, true
	}
	if resp.ThresholdReached {
		return resp.TC, nil, true
	}
	return nil, nil, true
}

// GetLeader returns the validator index and public key leading view.
func (k *Kernel) GetLeader(ctx context.Context, view hsconsensus.View) (int, hscrypto.PubKey, bool) {
	req := getLeaderRequest{View: view, Resp: make(chan getLeaderResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.getLeaderRequests, req, req.Resp, "GetLeader")
	if !ok {
		return -1, nil, false
	}
	return resp.Index, resp.PubKey, true
}

// Snapshot returns the kernel's current view, high QC, and locked QC.
func (k *Kernel) Snapshot(ctx context.Context) (hsconsensus.View, *hsconsensus.QuorumCert, *hsconsensus.QuorumCert, bool) {
	req := snapshotRequest{Resp: make(chan snapshotResponse, 1)}
	resp, ok := hschan.ReqResp(ctx, k.log, k.snapshotRequests, req, req.Resp, "Snapshot")
	if !ok {
		return 0, nil, nil, false
	}
	return resp.View, resp.HighQC, resp.LockedQC, true
}
