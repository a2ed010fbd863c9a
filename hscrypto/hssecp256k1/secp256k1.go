// Package hssecp256k1 implements PubKey and Signer for secp256k1 using
// decred's dcrec/secp256k1 bindings. Signatures do not aggregate, so
// candidate validator sets using this scheme drive hscrypto.SimpleScheme
// for vote collection rather than a dedicated scheme type.
//
// The teacher's gcrypto/secp256k1.go imports go-ethereum's crypto package,
// which is absent from the teacher's go.mod (it arrives only as an
// indirect dependency of libp2p, pulled in for its embedded secp256k1
// implementation, not for direct use). Rather than add an unused-elsewhere
// dependency, this implementation is built on
// github.com/decred/dcrd/dcrec/secp256k1/v4, promoted here from indirect
// to direct.
package hssecp256k1

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/hotshot-consensus/hotshot/hscrypto"
)

const keyTypeName = "secp256k1"

// Register registers the secp256k1 key type with reg.
func Register(reg *hscrypto.Registry) {
	reg.Register(keyTypeName, PubKey{}, NewPubKey)
}

// PubKey wraps a compressed secp256k1 public key.
type PubKey struct {
	pub *secp256k1.PublicKey
}

// NewPubKey decodes a 33-byte compressed secp256k1 public key.
func NewPubKey(b []byte) (hscrypto.PubKey, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("hssecp256k1: parse public key: %w", err)
	}
	return PubKey{pub: pub}, nil
}

func (k PubKey) Address() []byte {
	sum := sha256.Sum256(k.PubKeyBytes())
	return sum[:20]
}

func (k PubKey) PubKeyBytes() []byte {
	return k.pub.SerializeCompressed()
}

func (k PubKey) Equal(other hscrypto.PubKey) bool {
	o, ok := other.(PubKey)
	if !ok {
		return false
	}
	return k.pub.IsEqual(o.pub)
}

func (k PubKey) Verify(msg, sig []byte) bool {
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	hash := sha256.Sum256(msg)
	return s.Verify(hash[:], k.pub)
}

func (k PubKey) TypeName() string { return keyTypeName }

// Signer signs with a local secp256k1 private key.
type Signer struct {
	priv *secp256k1.PrivateKey
	pub  PubKey
}

// NewSigner wraps a 32-byte secp256k1 private scalar.
func NewSigner(priv *secp256k1.PrivateKey) Signer {
	return Signer{priv: priv, pub: PubKey{pub: priv.PubKey()}}
}

func (s Signer) PubKey() hscrypto.PubKey { return s.pub }

func (s Signer) Sign(_ context.Context, msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)
	sig := ecdsa.Sign(s.priv, hash[:])
	return sig.Serialize(), nil
}
