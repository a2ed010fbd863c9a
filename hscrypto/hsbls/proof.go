package hsbls

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/hotshot-consensus/hotshot/hscrypto"
)

// proof accumulates partial BLS signatures over a single message from a
// fixed candidate key set, summing signature points as they arrive rather
// than packing them into the teacher's combination-index wire format.
type proof struct {
	msg     []byte
	keys    []PubKey
	keyHash string

	sigs   map[int]*blst.P1Affine
	bitset *bitset.BitSet
}

func (p *proof) Message() []byte    { return p.msg }
func (p *proof) PubKeyHash() []byte { return []byte(p.keyHash) }

func (p *proof) AddSignature(sig []byte, key hscrypto.PubKey) error {
	idx := -1
	for i, k := range p.keys {
		if k.Equal(key) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return hscrypto.ErrUnknownKey
	}
	if !key.Verify(p.msg, sig) {
		return hscrypto.ErrInvalidSignature
	}

	p1a := new(blst.P1Affine).Uncompress(sig)
	if p1a == nil {
		return hscrypto.ErrInvalidSignature
	}

	if p.sigs == nil {
		p.sigs = make(map[int]*blst.P1Affine)
	}
	p.sigs[idx] = p1a
	p.bitset.Set(uint(idx))
	return nil
}

func (p *proof) Matches(other hscrypto.CommonMessageSignatureProof) bool {
	o, ok := other.(*proof)
	if !ok {
		return false
	}
	return bytes.Equal(p.msg, o.msg) && p.keyHash == o.keyHash
}

func (p *proof) Merge(other hscrypto.CommonMessageSignatureProof) hscrypto.SignatureProofMergeResult {
	o, ok := other.(*proof)
	if !ok || !p.Matches(o) {
		return hscrypto.SignatureProofMergeResult{}
	}

	res := hscrypto.SignatureProofMergeResult{AllValidSignatures: true}
	for idx, sig := range o.sigs {
		if p.bitset.Test(uint(idx)) {
			continue
		}
		if err := p.AddSignature(sig.Compress(), p.keys[idx]); err != nil {
			res.AllValidSignatures = false
			continue
		}
		res.IncreasedSignatures = true
	}
	return res
}

func (p *proof) MergeSparse(s hscrypto.SparseSignatureProof) hscrypto.SignatureProofMergeResult {
	if p.keyHash != s.PubKeyHash {
		return hscrypto.SignatureProofMergeResult{}
	}

	res := hscrypto.SignatureProofMergeResult{AllValidSignatures: true}
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

func (p *proof) HasSparseKeyID(keyID []byte) (has, valid bool) {
	if len(keyID) != 2 {
		return false, false
	}
	idx := int(binary.BigEndian.Uint16(keyID))
	if idx < 0 || idx >= len(p.keys) {
		return false, false
	}
	return p.bitset.Test(uint(idx)), true
}

func (p *proof) Clone() hscrypto.CommonMessageSignatureProof {
	sigs := make(map[int]*blst.P1Affine, len(p.sigs))
	for idx, sig := range p.sigs {
		cp := *sig
		sigs[idx] = &cp
	}
	return &proof{
		msg:     bytes.Clone(p.msg),
		keys:    p.keys,
		keyHash: p.keyHash,
		sigs:    sigs,
		bitset:  p.bitset.Clone(),
	}
}

func (p *proof) SignatureBitSet(dst *bitset.BitSet) {
	p.bitset.CopyFull(dst)
}

func (p *proof) AccumulatedStake(stakes []uint64) uint64 {
	var total uint64
	for u, ok := p.bitset.NextSet(0); ok; u, ok = p.bitset.NextSet(u + 1) {
		if int(u) < len(stakes) {
			total += stakes[u]
		}
	}
	return total
}

func (p *proof) AsSparse() hscrypto.SparseSignatureProof {
	out := make([]hscrypto.SparseSignature, 0, len(p.sigs))
	for idx, sig := range p.sigs {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(idx))
		out = append(out, hscrypto.SparseSignature{KeyID: b, Sig: sig.Compress()})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].KeyID, out[j].KeyID) < 0 })
	return hscrypto.SparseSignatureProof{PubKeyHash: p.keyHash, Signatures: out}
}

// Finalize sums the collected signature points into a single aggregate.
func (p *proof) Finalize() hscrypto.FinalizedSignatureProof {
	var bs bitset.BitSet
	p.SignatureBitSet(&bs)

	pts := make([]*blst.P1Affine, 0, len(p.sigs))
	for _, idx := range sortedKeys(p.sigs) {
		pts = append(pts, p.sigs[idx])
	}

	var aggSig []byte
	if len(pts) > 0 {
		var agg blst.P1Aggregate
		if !agg.Aggregate(pts, true) {
			panic(fmt.Errorf("hsbls: failed to aggregate %d signatures", len(pts)))
		}
		aggSig = agg.ToAffine().Compress()
	}

	return hscrypto.FinalizedSignatureProof{
		PubKeyHash: p.keyHash,
		Message:    p.msg,
		AggSig:     aggSig,
		Bitmap:     &bs,
	}
}

func sortedKeys(m map[int]*blst.P1Affine) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
