package hskernel

import (
	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// Requests and responses are plain structs, each carrying its own
// buffered response channel, following the request/response idiom in
// hschan.ReqResp.

type advanceViewRequest struct {
	View hsconsensus.View
	Resp chan struct{}
}

type updateHighQCRequest struct {
	QC   *hsconsensus.QuorumCert
	Resp chan updateHighQCResponse
}

type updateHighQCResponse struct {
	Updated bool
	HighQC  *hsconsensus.QuorumCert
}

type updateLockedQCRequest struct {
	QC   *hsconsensus.QuorumCert
	Resp chan updateLockedQCResponse
}

type updateLockedQCResponse struct {
	Updated  bool
	LockedQC *hsconsensus.QuorumCert
}

type insertBlockRequest struct {
	Commitment hsconsensus.Commitment
	Block      hsconsensus.Block
	Resp       chan insertBlockResponse
}

type insertBlockResponse struct {
	Inserted bool
}

type hasBlockRequest struct {
	Commitment hsconsensus.Commitment
	Resp       chan hasBlockResponse
}

type hasBlockResponse struct {
	Has bool
}

type getBlockRequest struct {
	Commitment hsconsensus.Commitment
	Resp       chan getBlockResponse
}

type getBlockResponse struct {
	Block hsconsensus.Block
	Has   bool
}

type tryCommitRequest struct {
	QCView       hsconsensus.View
	QCCommitment hsconsensus.Commitment
	Resp         chan tryCommitResponse
}

type tryCommitResponse struct {
	Committed  bool
	Commitment hsconsensus.Commitment
	Block      hsconsensus.Block
	Err        error
}

type recordVoteRequest struct {
	Target     hsconsensus.VoteTarget
	Sig        []byte
	Signer     hscrypto.PubKey
	PubKeyHash string
	Resp       chan recordVoteResponse
}

type recordVoteResponse struct {
	QuorumReached bool
	QC            *hsconsensus.QuorumCert
	Err           error
}

type recordTimeoutVoteRequest struct {
	View       hsconsensus.View
	HighQC     *hsconsensus.QuorumCert
	Sig        []byte
	Signer     hscrypto.PubKey
	PubKeyHash string
	Resp       chan recordTimeoutVoteResponse
}

type recordTimeoutVoteResponse struct {
	ThresholdReached bool
	TC               *hsconsensus.TimeoutCert
	Err              error
}

type getLeaderRequest struct {
	View hsconsensus.View
	Resp chan getLeaderResponse
}

type getLeaderResponse struct {
	Index  int
	PubKey hscrypto.PubKey
}

type snapshotRequest struct {
	Resp chan snapshotResponse
}

// snapshotResponse is the kernel's point-in-time view and QCs, used by
// the engine tasks to read kernel state without racing the main loop.
type snapshotResponse struct {
	View     hsconsensus.View
	HighQC   *hsconsensus.QuorumCert
	LockedQC *hsconsensus.QuorumCert
}

type tryVoteRequest struct {
	View hsconsensus.View
	Resp chan tryVoteResponse
}

type tryVoteResponse struct {
	Allowed bool
	Err     error
}
