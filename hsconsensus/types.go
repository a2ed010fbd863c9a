// Package hsconsensus defines the core HotStuff-family data model: views,
// blocks, votes, quorum and timeout certificates, the validator set and
// its leader-election Membership abstraction, and the safety/liveness
// predicates the replica and leader tasks drive.
//
// Grounded on the shape of the teacher's tm/tmconsensus package (the
// surviving prevote.go/fixture files), generalized from Tendermint-style
// height+round voting to HotStuff-style view numbering with three-chain
// commit.
package hsconsensus

import (
	"fmt"

	"github.com/hotshot-consensus/hotshot/hscrypto"
)

// View identifies a single round of the protocol. Views increase
// monotonically; a view advances either by committing a block or by
// timing out.
type View uint64

// Commitment is the hash identifying a Block, computed by a HashScheme.
type Commitment string

// Block is a single proposed unit of the chain.
type Block struct {
	View View

	// Height is the block's distance from genesis along its own branch:
	// parent.Height + 1. Unlike View, which advances on every timeout
	// whether or not a block is proposed, Height only advances when a
	// block is actually proposed, so the two diverge after any view that
	// times out empty.
	Height uint64

	// ParentCommitment is the commitment of the block this one extends.
	// The genesis block has an empty ParentCommitment.
	ParentCommitment Commitment

	// Justify carries the QC that justifies proposing this block: the
	// highest QC the leader knew of when it built the proposal.
	Justify *QuorumCert

	// TC carries the timeout certificate that justifies proposing this
	// block, when the proposal follows a view that timed out rather than
	// committed. Nil when the block was proposed directly off a QC.
	TC *TimeoutCert

	// Payload is the application-defined content. Execution semantics are
	// out of scope; this module treats it as an opaque, erasure-codable
	// byte string (see hsda).
	Payload []byte
}

// Commitment hashes b using hs.
func (b Block) Commitment(hs HashScheme) Commitment {
	return hs.BlockHash(b)
}

// VoteTarget is the message content every vote and timeout vote signs
// over: it binds a signature to a specific view and, for ordinary votes,
// a specific proposed block.
type VoteTarget struct {
	View       View
	Commitment Commitment
}

// SignBytes returns the canonical bytes a validator signs for vt, using
// ss for domain separation.
func (vt VoteTarget) SignBytes(ss SignatureScheme) []byte {
	return ss.VoteSignBytes(vt)
}

// Vote is a single validator's signed endorsement of a proposed block in
// a view.
type Vote struct {
	Target VoteTarget
	Sig    []byte
	Signer hscrypto.PubKey
}

// TimeoutVote is a single validator's signed endorsement that a view
// should be abandoned, carrying the validator's current high QC so the
// new leader can safely extend the best known chain.
type TimeoutVote struct {
	View   View
	HighQC *QuorumCert
	Sig    []byte
	Signer hscrypto.PubKey
}

// QuorumCert is formed once votes for the same (view, commitment) reach
// the quorum stake threshold.
type QuorumCert struct {
	View       View
	Commitment Commitment

	PubKeyHash string
	Proof      hscrypto.FinalizedSignatureProof
}

// String renders qc for logging.
func (qc *QuorumCert) String() string {
	if qc == nil {
		return "<nil QC>"
	}
	return fmt.Sprintf("QC(view=%d, commitment=%x)", qc.View, qc.Commitment)
}

// TimeoutCert is formed once timeout votes for the same view reach the
// timeout stake threshold (F+1), carrying the highest QC among the
// contributing timeout votes so the next leader can propose safely.
type TimeoutCert struct {
	View View

	HighQC *QuorumCert

	PubKeyHash string
	Proof      hscrypto.FinalizedSignatureProof
}

func (tc *TimeoutCert) String() string {
	if tc == nil {
		return "<nil TC>"
	}
	return fmt.Sprintf("TC(view=%d, highQC=%s)", tc.View, tc.HighQC)
}

// DACert is formed once data-availability votes for a block's erasure
// shard set reach the lower DA stake threshold (F+1), attesting that at
// least F+1 honest validators have confirmed holding a reconstructable
// share of the payload. See hsda.
type DACert struct {
	View       View
	Commitment Commitment

	PubKeyHash string
	Proof      hscrypto.FinalizedSignatureProof
}

// Validator is one member of a ValidatorSet: a verification key and its
// voting weight.
type Validator struct {
	PubKey hscrypto.PubKey
	Stake  uint64
}

// ValidatorSet is the fixed (within a view) committee membership and
// stake distribution consensus is running over.
type ValidatorSet struct {
	Validators []Validator
}

// TotalStake sums the stake of every validator in vs.
func (vs ValidatorSet) TotalStake() uint64 {
	var total uint64
	for _, v := range vs.Validators {
		total += v.Stake
	}
	return total
}

// QuorumThreshold returns Q = ceil(2T/3) + 1, the minimum stake required
// to form a quorum certificate.
func (vs ValidatorSet) QuorumThreshold() uint64 {
	t := vs.TotalStake()
	return (2*t+2)/3 + 1
}

// TimeoutThreshold returns F+1 = floor(T/3)+1, the minimum stake required
// to form a timeout certificate or a DA certificate.
func (vs ValidatorSet) TimeoutThreshold() uint64 {
	t := vs.TotalStake()
	return t/3 + 1
}

// Stakes returns the ordered stake weights of vs's validators, matching
// the candidate key order passed to a CommonMessageSignatureProofScheme.
func (vs ValidatorSet) Stakes() []uint64 {
	out := make([]uint64, len(vs.Validators))
	for i, v := range vs.Validators {
		out[i] = v.Stake
	}
	return out
}

// PubKeys returns the ordered public keys of vs's validators.
func (vs ValidatorSet) PubKeys() []hscrypto.PubKey {
	out := make([]hscrypto.PubKey, len(vs.Validators))
	for i, v := range vs.Validators {
		out[i] = v.PubKey
	}
	return out
}

// SignatureScheme provides the domain-separated sign bytes for votes and
// timeout votes, so that a signature over one cannot be replayed as the
// other.
type SignatureScheme interface {
	VoteSignBytes(VoteTarget) []byte
	TimeoutSignBytes(view View, highQC *QuorumCert) []byte
}

// HashScheme computes block commitments.
type HashScheme interface {
	BlockHash(Block) Commitment
}
