package hsconsensus

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Blake2bHashScheme hashes blocks with blake2b-256.
//
// Grounded on the teacher's SimpleHashScheme (tmconsensustest), but using
// blake2b rather than sha256: blake2b is already an ecosystem dependency
// pulled in transitively by libp2p elsewhere in this module, and is
// faster for the block-sized payloads this hashes.
type Blake2bHashScheme struct{}

func (Blake2bHashScheme) BlockHash(b Block) Commitment {
	h, err := blake2b.New256(nil)
	if err != nil {
		// New256 only errors for a non-empty key of invalid length; nil
		// key is always valid.
		panic(err)
	}

	var viewBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], uint64(b.View))
	h.Write(viewBuf[:])

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], b.Height)
	h.Write(heightBuf[:])

	h.Write([]byte(b.ParentCommitment))

	if b.Justify != nil {
		var jBuf [8]byte
		binary.BigEndian.PutUint64(jBuf[:], uint64(b.Justify.View))
		h.Write(jBuf[:])
		h.Write([]byte(b.Justify.Commitment))
	}

	if b.TC != nil {
		var tBuf [8]byte
		binary.BigEndian.PutUint64(tBuf[:], uint64(b.TC.View))
		h.Write(tBuf[:])
		h.Write([]byte("tc"))
	}

	h.Write(b.Payload)

	return Commitment(h.Sum(nil))
}

// Blake2bSignatureScheme domain-separates vote and timeout-vote sign
// bytes with distinct prefixes, so a signature cannot be replayed across
// message types.
type Blake2bSignatureScheme struct{}

func (Blake2bSignatureScheme) VoteSignBytes(vt VoteTarget) []byte {
	var viewBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], uint64(vt.View))

	out := make([]byte, 0, 6+8+len(vt.Commitment))
	out = append(out, "VOTE:\x00"...)
	out = append(out, viewBuf[:]...)
	out = append(out, vt.Commitment...)
	return out
}

func (Blake2bSignatureScheme) TimeoutSignBytes(view View, highQC *QuorumCert) []byte {
	var viewBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], uint64(view))

	out := make([]byte, 0, 9+8+32)
	out = append(out, "TIMEOUT:\x00"...)
	out = append(out, viewBuf[:]...)
	if highQC != nil {
		var qv [8]byte
		binary.BigEndian.PutUint64(qv[:], uint64(highQC.View))
		out = append(out, qv[:]...)
		out = append(out, highQC.Commitment...)
	}
	return out
}
