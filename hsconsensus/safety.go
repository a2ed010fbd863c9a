package hsconsensus

import "github.com/hotshot-consensus/hotshot/hscrypto"

// VerifyQC re-verifies qc's finalized signature proof against vs and
// reports whether the represented stake meets vs's quorum threshold.
func VerifyQC(qc *QuorumCert, vs ValidatorSet, scheme hscrypto.CommonMessageSignatureProofScheme, ss SignatureScheme) error {
	if qc == nil {
		return &ProtocolError{Reason: "nil QC"}
	}

	keys := vs.PubKeys()
	bs, ok := scheme.ValidateFinalized(qc.Proof, keys)
	if !ok {
		return &CryptographicError{Reason: "quorum certificate signature proof failed validation"}
	}

	var stake uint64
	stakes := vs.Stakes()
	for u, ok := bs.NextSet(0); ok; u, ok = bs.NextSet(u + 1) {
		if int(u) < len(stakes) {
			stake += stakes[u]
		}
	}

	if stake < vs.QuorumThreshold() {
		return &CryptographicError{Reason: "quorum certificate does not meet quorum stake threshold"}
	}

	return nil
}

// VerifyTC re-verifies tc the same way VerifyQC does, against the
// timeout stake threshold, and recursively verifies the embedded high QC
// if present.
func VerifyTC(tc *TimeoutCert, vs ValidatorSet, scheme hscrypto.CommonMessageSignatureProofScheme, ss SignatureScheme) error {
	if tc == nil {
		return &ProtocolError{Reason: "nil TC"}
	}

	if tc.HighQC != nil {
		if err := VerifyQC(tc.HighQC, vs, scheme, ss); err != nil {
			return err
		}
	}

	keys := vs.PubKeys()
	bs, ok := scheme.ValidateFinalized(tc.Proof, keys)
	if !ok {
		return &CryptographicError{Reason: "timeout certificate signature proof failed validation"}
	}

	var stake uint64
	stakes := vs.Stakes()
	for u, ok := bs.NextSet(0); ok; u, ok = bs.NextSet(u + 1) {
		if int(u) < len(stakes) {
			stake += stakes[u]
		}
	}

	if stake < vs.TimeoutThreshold() {
		return &CryptographicError{Reason: "timeout certificate does not meet timeout stake threshold"}
	}

	return nil
}

// SafeNode implements the HotStuff safe-node predicate: a replica may
// vote for a proposed block b (carrying tc = b.TC when it follows a
// timed-out view) only if either
//
//   - b extends the currently locked block (safety rule), or
//   - b carries a timeout certificate proving the locked view was
//     abandoned at a strictly greater view (liveness rule).
//
// lockedQC may be nil before the first lock is established, in which
// case every proposal is safe to vote for.
func SafeNode(tree *BlockTree, b Block, tc *TimeoutCert, lockedQC *QuorumCert) bool {
	if lockedQC == nil {
		return true
	}

	if tc != nil && tc.View > lockedQC.View {
		return true
	}

	// Safety rule: b must extend the locked block. Walk ancestors of b's
	// parent looking for the locked commitment.
	for _, c := range tree.Ancestors(b.ParentCommitment, len(tree.nodes)+1) {
		if c == lockedQC.Commitment {
			return true
		}
	}

	return false
}

// ChainCommit implements the three-chain commit rule: given the
// commitment that just received a QC (qcCommitment, at qc.View), it
// walks up to two more ancestor links. If the three blocks form a
// consecutive view chain (each extends the previous with no gap), the
// grandparent is safe to commit.
//
// Returns the commitment to commit and true, or the zero value and false
// if the three-chain has not yet formed.
func ChainCommit(tree *BlockTree, qcCommitment Commitment, qcView View) (Commitment, bool) {
	chain := tree.Ancestors(qcCommitment, 3)
	if len(chain) < 3 {
		return "", false
	}

	blocks := make([]Block, 3)
	for i, c := range chain {
		b, ok := tree.Get(c)
		if !ok {
			return "", false
		}
		blocks[i] = b
	}

	// chain[0] is qcCommitment itself; chain[1] its parent; chain[2] its
	// grandparent. Views must be consecutive: no view was skipped between
	// any adjacent pair.
	if blocks[0].View != qcView {
		return "", false
	}
	if blocks[1].View != blocks[0].View-1 {
		return "", false
	}
	if blocks[2].View != blocks[1].View-1 {
		return "", false
	}

	return chain[2], true
}
