package hscrypto

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

// Ed25519PubKey wraps a standard-library Ed25519 public key.
//
// This is the stdlib, not a third-party scheme: there is no ecosystem
// Ed25519 implementation in the pack that improves on crypto/ed25519, and
// the teacher itself reaches straight for crypto/ed25519 rather than a
// third-party package.
type Ed25519PubKey ed25519.PublicKey

// NewEd25519PubKey decodes a raw 32-byte Ed25519 public key.
func NewEd25519PubKey(b []byte) (PubKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("hscrypto: expected %d bytes for ed25519 public key, got %d", ed25519.PublicKeySize, len(b))
	}
	return Ed25519PubKey(append(ed25519.PublicKey(nil), b...)), nil
}

// RegisterEd25519 registers the Ed25519 key type with reg.
func RegisterEd25519(reg *Registry) {
	reg.Register("ed25519", Ed25519PubKey{}, NewEd25519PubKey)
}

func (k Ed25519PubKey) Address() []byte {
	sum := sha256.Sum256(k)
	return sum[:20]
}

func (k Ed25519PubKey) PubKeyBytes() []byte {
	return []byte(k)
}

func (k Ed25519PubKey) Equal(other PubKey) bool {
	o, ok := other.(Ed25519PubKey)
	if !ok {
		return false
	}
	return ed25519.PublicKey(k).Equal(ed25519.PublicKey(o))
}

func (k Ed25519PubKey) Verify(msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(k), msg, sig)
}

func (k Ed25519PubKey) TypeName() string { return "ed25519" }

// Ed25519Signer signs with a local Ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  Ed25519PubKey
}

// NewEd25519Signer derives a signer from a 64-byte private key, as produced
// by ed25519.GenerateKey or ed25519.NewKeyFromSeed.
func NewEd25519Signer(priv ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{
		priv: priv,
		pub:  Ed25519PubKey(priv.Public().(ed25519.PublicKey)),
	}
}

func (s Ed25519Signer) PubKey() PubKey { return s.pub }

func (s Ed25519Signer) Sign(_ context.Context, msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}
