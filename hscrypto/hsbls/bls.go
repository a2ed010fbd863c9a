// Package hsbls implements PubKey, Signer, and
// CommonMessageSignatureProofScheme for minimized-signature BLS over
// BLS12-381, using the blst bindings.
//
// Grounded on the teacher's gcrypto/gblsminsig, but the aggregation
// scheme itself is simplified: rather than gblsminsig's combination-index
// bitset packing (which lets several multi-message finalized proofs share
// a compact wire encoding), this package finalizes one proof per message,
// since every quorum/timeout certificate in this module is already keyed
// by a single (view, target) pair. A plain bitmap plus one aggregated
// point is sufficient.
package hsbls

import (
	"context"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/hotshot-consensus/hotshot/hscrypto"
)

const keyTypeName = "bls-minsig"

// DomainSeparationTag follows draft-irtf-cfrg-bls-signature's ciphersuite
// naming for the minimal-signature-size basic scheme over BLS12-381 G1,
// per RFC9380 §8.8.1 and §8.10.
var DomainSeparationTag = []byte("BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_")

// Register registers the BLS key type with reg.
func Register(reg *hscrypto.Registry) {
	reg.Register(keyTypeName, PubKey{}, NewPubKey)
}

// PubKey wraps a blst.P2Affine point.
type PubKey blst.P2Affine

// NewPubKey decodes a compressed P2 affine point.
func NewPubKey(b []byte) (hscrypto.PubKey, error) {
	if len(b) != blst.BLST_P2_COMPRESS_BYTES {
		return nil, fmt.Errorf("hsbls: expected %d compressed bytes, got %d", blst.BLST_P2_COMPRESS_BYTES, len(b))
	}

	p2a := new(blst.P2Affine).Uncompress(b)
	if p2a == nil {
		return nil, errors.New("hsbls: failed to decompress public key")
	}
	if !p2a.KeyValidate() {
		return nil, errors.New("hsbls: public key failed validation")
	}

	return PubKey(*p2a), nil
}

func (k PubKey) Address() []byte {
	b := k.PubKeyBytes()
	if len(b) > 20 {
		return b[:20]
	}
	return b
}

func (k PubKey) PubKeyBytes() []byte {
	p2a := blst.P2Affine(k)
	return p2a.Compress()
}

func (k PubKey) Equal(other hscrypto.PubKey) bool {
	o, ok := other.(PubKey)
	if !ok {
		return false
	}
	p2a := blst.P2Affine(k)
	p2o := blst.P2Affine(o)
	return p2a.Equals(&p2o)
}

func (k PubKey) Verify(msg, sig []byte) bool {
	p1a := new(blst.P1Affine).Uncompress(sig)
	if p1a == nil {
		return false
	}
	if !p1a.SigValidate(false) {
		return false
	}
	p2a := blst.P2Affine(k)
	return p1a.Verify(false, &p2a, false, blst.Message(msg), DomainSeparationTag)
}

func (k PubKey) TypeName() string { return keyTypeName }

// Signer signs with a local BLS secret scalar.
type Signer struct {
	secret blst.SecretKey
	point  blst.P2Affine
}

// NewSigner derives a signer from at least 32 bytes of random key material.
func NewSigner(ikm []byte) (Signer, error) {
	if len(ikm) < blst.BLST_SCALAR_BYTES {
		return Signer{}, fmt.Errorf("hsbls: ikm too short: got %d, need at least %d", len(ikm), blst.BLST_SCALAR_BYTES)
	}

	secretKey := blst.KeyGenV5(ikm, []byte("hotshot"))
	point := new(blst.P2Affine).From(secretKey)

	return Signer{secret: *secretKey, point: *point}, nil
}

func (s Signer) PubKey() hscrypto.PubKey { return PubKey(s.point) }

func (s Signer) Sign(_ context.Context, msg []byte) ([]byte, error) {
	sig := new(blst.P1Affine).Sign(&s.secret, msg, DomainSeparationTag, true)
	if sig == nil {
		return nil, errors.New("hsbls: sign failed")
	}
	return sig.Compress(), nil
}

// Scheme implements hscrypto.CommonMessageSignatureProofScheme for
// aggregating BLS signatures.
type Scheme struct{}

func (Scheme) New(msg []byte, candidateKeys []hscrypto.PubKey, pubKeyHash string) (hscrypto.CommonMessageSignatureProof, error) {
	keys := make([]PubKey, len(candidateKeys))
	for i, k := range candidateKeys {
		bk, ok := k.(PubKey)
		if !ok {
			return nil, fmt.Errorf("hsbls: candidate key %d is %T, not hsbls.PubKey", i, k)
		}
		keys[i] = bk
	}
	return &proof{
		msg:     msg,
		keys:    keys,
		keyHash: pubKeyHash,
		bitset:  bitset.New(uint(len(keys))),
	}, nil
}

func (Scheme) KeyIDChecker(keys []hscrypto.PubKey) hscrypto.KeyIDChecker {
	return bitsetKeyIDChecker{n: len(keys)}
}

func (Scheme) ValidateFinalized(f hscrypto.FinalizedSignatureProof, keys []hscrypto.PubKey) (*bitset.BitSet, bool) {
	if f.Bitmap == nil || f.AggSig == nil {
		return nil, false
	}

	agg := new(blst.P1Affine).Uncompress(f.AggSig)
	if agg == nil {
		return nil, false
	}
	if !agg.SigValidate(false) {
		return nil, false
	}

	pts := make([]*blst.P2Affine, 0, f.Bitmap.Count())
	for u, ok := f.Bitmap.NextSet(0); ok; u, ok = f.Bitmap.NextSet(u + 1) {
		if int(u) >= len(keys) {
			return nil, false
		}
		bk, ok := keys[u].(PubKey)
		if !ok {
			return nil, false
		}
		p2a := blst.P2Affine(bk)
		pts = append(pts, &p2a)
	}
	if len(pts) == 0 {
		return nil, false
	}

	aggPub := new(blst.P2Aggregate)
	if !aggPub.AggregateCompressed(compressAll(pts), true) {
		return nil, false
	}
	aggPubAffine := aggPub.ToAffine()

	if !agg.Verify(false, aggPubAffine, false, blst.Message(f.Message), DomainSeparationTag) {
		return nil, false
	}

	return f.Bitmap.Clone(), true
}

func compressAll(pts []*blst.P2Affine) [][]byte {
	out := make([][]byte, len(pts))
	for i, p := range pts {
		out[i] = p.Compress()
	}
	return out
}

type bitsetKeyIDChecker struct{ n int }

func (c bitsetKeyIDChecker) IsValid(keyID []byte) bool {
	var bs bitset.BitSet
	if err := bs.UnmarshalBinary(keyID); err != nil {
		return false
	}
	for u, ok := bs.NextSet(0); ok; u, ok = bs.NextSet(u + 1) {
		if int(u) >= c.n {
			return false
		}
	}
	return true
}
