package hscrypto

import (
	"github.com/bits-and-blooms/bitset"
)

// CommonMessageSignatureProof accumulates partial signatures from a
// candidate set of public keys, all signing the same message, into a
// single proof. This is the interface the vote/QC aggregator (spec.md
// §4.5) drives: one instance tracks the partial signatures for a single
// (view, target) pair.
//
// Implementations may aggregate signatures (BLS) or simply collect them
// (Ed25519); the aggregator does not need to know which.
type CommonMessageSignatureProof interface {
	// Message is the signed content, e.g. hash(view || target).
	Message() []byte

	// PubKeyHash identifies the candidate key set, so two proofs can cheaply
	// confirm they are talking about the same validator set.
	PubKeyHash() []byte

	// AddSignature verifies sig by key over Message and adds it to the
	// proof. The vote collectors call it for every individual vote, local
	// or received from a peer; whole sparse proofs go through MergeSparse.
	AddSignature(sig []byte, key PubKey) error

	// Matches reports whether other targets the same message and key set.
	Matches(other CommonMessageSignatureProof) bool

	// Merge absorbs the signatures already verified in other.
	Merge(other CommonMessageSignatureProof) SignatureProofMergeResult

	// MergeSparse verifies and absorbs a sparse proof received from a peer.
	MergeSparse(SparseSignatureProof) SignatureProofMergeResult

	// HasSparseKeyID reports whether this proof already holds a signature
	// for the given key ID, and whether that key ID is valid for this
	// proof's candidate set at all.
	HasSparseKeyID(keyID []byte) (has, valid bool)

	// Clone returns an independent deep copy.
	Clone() CommonMessageSignatureProof

	// SignatureBitSet writes the set of candidate-key indices represented
	// in this proof into dst.
	SignatureBitSet(dst *bitset.BitSet)

	// AccumulatedStake returns the sum of stake weight for every index
	// currently represented in this proof, given the ordered stake weights
	// of the candidate set.
	AccumulatedStake(stakes []uint64) uint64

	// AsSparse returns the minimal wire representation.
	AsSparse() SparseSignatureProof

	// Finalize collapses the proof into its wire certificate form
	// (aggregated signature + bitmap, or a plain signature list).
	Finalize() FinalizedSignatureProof
}

// SparseSignatureProof is the wire-efficient representation of a proof,
// suitable for gossip.
type SparseSignatureProof struct {
	PubKeyHash string
	Signatures []SparseSignature
}

// SparseSignature represents one (or, for aggregating schemes, one
// combination of) signature over the proof's message.
type SparseSignature struct {
	// KeyID is implementation-specific: for non-aggregating schemes it is
	// a big-endian uint16 candidate index; aggregating schemes may encode
	// a set of indices.
	KeyID []byte
	Sig   []byte
}

// SignatureProofMergeResult reports what changed as a result of a merge.
type SignatureProofMergeResult struct {
	AllValidSignatures  bool
	IncreasedSignatures bool
}

// Combine folds another merge result into this one. Used when a single
// logical merge operation is implemented as several smaller merges.
func (r SignatureProofMergeResult) Combine(o SignatureProofMergeResult) SignatureProofMergeResult {
	return SignatureProofMergeResult{
		AllValidSignatures:  r.AllValidSignatures && o.AllValidSignatures,
		IncreasedSignatures: r.IncreasedSignatures || o.IncreasedSignatures,
	}
}

// FinalizedSignatureProof is the certificate-ready form of a proof: a
// quorum, timeout or DA certificate embeds it directly as its Proof.
type FinalizedSignatureProof struct {
	PubKeyHash string
	Message    []byte

	// AggSig is the combined signature. For aggregating schemes this is a
	// single compressed point; non-aggregating schemes leave it empty and
	// fill the Signatures field instead.
	AggSig []byte

	// Bitmap indicates which candidate indices are represented.
	Bitmap *bitset.BitSet

	// Signatures holds the per-signer signatures for non-aggregating
	// schemes. Empty for aggregating schemes, where AggSig suffices.
	Signatures map[int][]byte
}

// CommonMessageSignatureProofScheme constructs and validates proofs for a
// particular signature algorithm.
type CommonMessageSignatureProofScheme interface {
	New(msg []byte, candidateKeys []PubKey, pubKeyHash string) (CommonMessageSignatureProof, error)

	KeyIDChecker(keys []PubKey) KeyIDChecker

	// ValidateFinalized re-verifies a certificate that was finalized by
	// this scheme, given the original candidate key set. It returns the
	// bit set of represented signers.
	ValidateFinalized(f FinalizedSignatureProof, keys []PubKey) (*bitset.BitSet, bool)
}

// KeyIDChecker cheaply rejects key IDs that cannot possibly be valid for a
// given candidate set, without needing the full public key slice.
type KeyIDChecker interface {
	IsValid(keyID []byte) bool
}
