package hscrypto

import (
	"bytes"
	"encoding/binary"
	"maps"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// SimpleScheme is a CommonMessageSignatureProofScheme for any
// non-aggregating signature algorithm (Ed25519, secp256k1): it just
// collects (key, signature) pairs and a bitmap, with no cryptographic
// combination step.
//
// This is adapted from the teacher's SimpleCommonMessageSignatureProofScheme,
// generalized to track stake weight (spec.md §3's quorum/timeout thresholds
// are defined in terms of stake, not signer count) and to produce the
// Finalize/ValidateFinalized shape this package's QC/TC wire format needs.
type SimpleScheme struct{}

func (SimpleScheme) New(msg []byte, candidateKeys []PubKey, pubKeyHash string) (CommonMessageSignatureProof, error) {
	return newSimpleProof(msg, candidateKeys, pubKeyHash), nil
}

func (SimpleScheme) KeyIDChecker(keys []PubKey) KeyIDChecker {
	return simpleKeyIDChecker{n: len(keys)}
}

func (SimpleScheme) ValidateFinalized(f FinalizedSignatureProof, keys []PubKey) (*bitset.BitSet, bool) {
	p := newSimpleProof(f.Message, keys, f.PubKeyHash)

	sparseSigs := make([]SparseSignature, 0, len(f.Signatures))
	for idx, sig := range f.Signatures {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(idx))
		sparseSigs = append(sparseSigs, SparseSignature{KeyID: b, Sig: sig})
	}

	res := p.MergeSparse(SparseSignatureProof{PubKeyHash: f.PubKeyHash, Signatures: sparseSigs})
	if !res.AllValidSignatures {
		return nil, false
	}

	var bs bitset.BitSet
	p.SignatureBitSet(&bs)
	return &bs, true
}

type simpleKeyIDChecker struct{ n int }

func (c simpleKeyIDChecker) IsValid(keyID []byte) bool {
	if len(keyID) != 2 {
		return false
	}
	idx := int(binary.BigEndian.Uint16(keyID))
	return idx >= 0 && idx < c.n
}

// simpleProof is the concrete type behind SimpleScheme.
type simpleProof struct {
	msg     []byte
	keys    []PubKey
	keyHash string

	keyIdxs map[string]int // string(pubkey bytes) -> index

	sigs   map[string]PubKey // string(sig bytes) -> signer
	bitset *bitset.BitSet
}

func newSimpleProof(msg []byte, candidateKeys []PubKey, pubKeyHash string) simpleProof {
	keyIdxs := make(map[string]int, len(candidateKeys))
	for i, k := range candidateKeys {
		keyIdxs[string(k.PubKeyBytes())] = i
	}

	return simpleProof{
		msg:     msg,
		keys:    candidateKeys,
		keyHash: pubKeyHash,
		keyIdxs: keyIdxs,
		sigs:    make(map[string]PubKey),
		bitset:  bitset.New(uint(len(candidateKeys))),
	}
}

func (p simpleProof) Message() []byte    { return p.msg }
func (p simpleProof) PubKeyHash() []byte { return []byte(p.keyHash) }

func (p simpleProof) AddSignature(sig []byte, key PubKey) error {
	idx, ok := p.keyIdxs[string(key.PubKeyBytes())]
	if !ok {
		return ErrUnknownKey
	}
	if !key.Verify(p.msg, sig) {
		return ErrInvalidSignature
	}
	p.sigs[string(sig)] = key
	p.bitset.Set(uint(idx))
	return nil
}

func (p simpleProof) Matches(other CommonMessageSignatureProof) bool {
	o, ok := other.(simpleProof)
	if !ok {
		return false
	}
	return bytes.Equal(p.msg, o.msg) && p.keyHash == o.keyHash
}

func (p simpleProof) Merge(other CommonMessageSignatureProof) SignatureProofMergeResult {
	o, ok := other.(simpleProof)
	if !ok || !p.Matches(o) {
		return SignatureProofMergeResult{}
	}

	res := SignatureProofMergeResult{AllValidSignatures: true}
	for sig, key := range o.sigs {
		if _, has := p.sigs[sig]; has {
			continue
		}
		if err := p.AddSignature([]byte(sig), key); err == nil {
			res.IncreasedSignatures = true
		} else {
			res.AllValidSignatures = false
		}
	}
	return res
}

func (p simpleProof) MergeSparse(s SparseSignatureProof) SignatureProofMergeResult {
	if p.keyHash != s.PubKeyHash {
		return SignatureProofMergeResult{}
	}

	res := SignatureProofMergeResult{AllValidSignatures: true}
	before := p.bitset.Count()

	for _, ss := range s.Signatures {
		if len(ss.KeyID) != 2 {
			res.AllValidSignatures = false
			continue
		}
		idx := int(binary.BigEndian.Uint16(ss.KeyID))
		if idx < 0 || idx >= len(p.keys) {
			res.AllValidSignatures = false
			continue
		}
		if err := p.AddSignature(ss.Sig, p.keys[idx]); err != nil {
			res.AllValidSignatures = false
		}
	}

	res.IncreasedSignatures = p.bitset.Count() > before
	return res
}

func (p simpleProof) HasSparseKeyID(keyID []byte) (has, valid bool) {
	if len(keyID) != 2 {
		return false, false
	}
	idx := int(binary.BigEndian.Uint16(keyID))
	if idx < 0 || idx >= len(p.keys) {
		return false, false
	}
	return p.bitset.Test(uint(idx)), true
}

func (p simpleProof) Clone() CommonMessageSignatureProof {
	return simpleProof{
		msg:     bytes.Clone(p.msg),
		keys:    p.keys,
		keyHash: p.keyHash,
		keyIdxs: maps.Clone(p.keyIdxs),
		sigs:    maps.Clone(p.sigs),
		bitset:  p.bitset.Clone(),
	}
}

func (p simpleProof) SignatureBitSet(dst *bitset.BitSet) {
	p.bitset.CopyFull(dst)
}

func (p simpleProof) AccumulatedStake(stakes []uint64) uint64 {
	var total uint64
	for u, ok := p.bitset.NextSet(0); ok; u, ok = p.bitset.NextSet(u + 1) {
		if int(u) < len(stakes) {
			total += stakes[u]
		}
	}
	return total
}

func (p simpleProof) AsSparse() SparseSignatureProof {
	out := make([]SparseSignature, 0, len(p.sigs))
	for sig, key := range p.sigs {
		idx := p.keyIdxs[string(key.PubKeyBytes())]
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(idx))
		out = append(out, SparseSignature{KeyID: b, Sig: []byte(sig)})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].KeyID, out[j].KeyID) < 0 })
	return SparseSignatureProof{PubKeyHash: p.keyHash, Signatures: out}
}

func (p simpleProof) Finalize() FinalizedSignatureProof {
	sigs := make(map[int][]byte, len(p.sigs))
	for sig, key := range p.sigs {
		sigs[p.keyIdxs[string(key.PubKeyBytes())]] = []byte(sig)
	}

	var bs bitset.BitSet
	p.SignatureBitSet(&bs)

	return FinalizedSignatureProof{
		PubKeyHash: p.keyHash,
		Message:    p.msg,
		Bitmap:     &bs,
		Signatures: sigs,
	}
}
