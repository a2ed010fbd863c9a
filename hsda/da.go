package hsda

import (
	"context"
	"fmt"

	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsmerkle"
)

// Shard erasure-codes payload and commits to the resulting shard set
// with a Merkle root, returning a ShardSet ready to cache and
// distribute.
func Shard(enc *Encoder, payload []byte) (ShardSet, error) {
	data, err := enc.Split(payload)
	if err != nil {
		return ShardSet{}, err
	}

	recovery, err := enc.Encode(data)
	if err != nil {
		return ShardSet{}, err
	}

	all := append(append([][]byte(nil), data...), recovery...)
	root := hsmerkle.Root(all)

	return ShardSet{
		DataShards:     data,
		RecoveryShards: recovery,
		MerkleRoot:     root,
		PayloadLen:     len(payload),
	}, nil
}

// Reassemble reconstructs the original payload from whatever shards are
// available (nil entries for missing ones), verifying the result against
// the expected Merkle root before returning it.
func Reassemble(enc *Encoder, dataShards, recoveryShards [][]byte, payloadLen int, expectedRoot []byte) ([]byte, error) {
	all := append(append([][]byte(nil), dataShards...), recoveryShards...)

	if err := enc.Reconstruct(all); err != nil {
		return nil, fmt.Errorf("hsda: reassemble: %w", err)
	}

	root := hsmerkle.Root(all)
	if string(root) != string(expectedRoot) {
		return nil, &hsconsensus.CryptographicError{Reason: "reconstructed shard set does not match DA commitment"}
	}

	return enc.Join(all, payloadLen)
}

// DAVoteTarget is the message a validator signs to attest it holds (or
// has reconstructed) a shard of commitment's payload.
type DAVoteTarget struct {
	View       hsconsensus.View
	Commitment hsconsensus.Commitment
	MerkleRoot []byte
}

// SignBytes returns the canonical bytes signed for a DA vote, distinct
// from ordinary vote and timeout-vote sign bytes so a signature cannot
// be replayed across message types.
func (t DAVoteTarget) SignBytes() []byte {
	out := make([]byte, 0, 8+len(t.Commitment)+len(t.MerkleRoot)+3)
	out = append(out, "DA:\x00"...)
	out = append(out, []byte(t.Commitment)...)
	out = append(out, t.MerkleRoot...)
	return out
}

// Collector accumulates DA votes for one (view, commitment) pair until
// the DA stake threshold (F+1, the same threshold as a timeout
// certificate) is reached.
//
// A separate, lighter-weight type than the engine's vote aggregator
// (hsengine.AggregatorTask) since DA votes target a (view, commitment,
// merkle root) triple rather than hsconsensus.VoteTarget, and only need
// the timeout threshold rather than the quorum threshold; kept in this
// package because only DA-aware callers need it.
type Collector struct {
	proof hscrypto.CommonMessageSignatureProof
}

// NewCollector starts a Collector for target, against candidate keys
// pubKeyHash identifies.
func NewCollector(scheme hscrypto.CommonMessageSignatureProofScheme, target DAVoteTarget, candidateKeys []hscrypto.PubKey, pubKeyHash string) (*Collector, error) {
	p, err := scheme.New(target.SignBytes(), candidateKeys, pubKeyHash)
	if err != nil {
		return nil, err
	}
	return &Collector{proof: p}, nil
}

// Add folds in a validator's DA vote signature, returning a finalized
// DACert once vs's timeout threshold is met.
func (c *Collector) Add(ctx context.Context, target DAVoteTarget, sig []byte, signer hscrypto.PubKey, vs hsconsensus.ValidatorSet, pubKeyHash string) (*hsconsensus.DACert, error) {
	if err := c.proof.AddSignature(sig, signer); err != nil {
		return nil, err
	}

	stake := c.proof.AccumulatedStake(vs.Stakes())
	if stake < vs.TimeoutThreshold() {
		return nil, nil
	}

	return &hsconsensus.DACert{
		View:       target.View,
		Commitment: target.Commitment,
		PubKeyHash: pubKeyHash,
		Proof:      c.proof.Finalize(),
	}, nil
}

// VerifyDACert re-verifies cert's proof against vs's timeout threshold.
func VerifyDACert(cert *hsconsensus.DACert, vs hsconsensus.ValidatorSet, scheme hscrypto.CommonMessageSignatureProofScheme) error {
	if cert == nil {
		return &hsconsensus.ProtocolError{Reason: "nil DA certificate"}
	}

	bs, ok := scheme.ValidateFinalized(cert.Proof, vs.PubKeys())
	if !ok {
		return &hsconsensus.CryptographicError{Reason: "DA certificate signature proof failed validation"}
	}

	var stake uint64
	stakes := vs.Stakes()
	for u, ok := bs.NextSet(0); ok; u, ok = bs.NextSet(u + 1) {
		if int(u) < len(stakes) {
			stake += stakes[u]
		}
	}

	if stake < vs.TimeoutThreshold() {
		return &hsconsensus.CryptographicError{Reason: "DA certificate does not meet DA stake threshold"}
	}

	return nil
}
