// Package hscrypto defines the signature primitives consensus depends on:
// public keys, signers, and the common-message signature proof abstraction
// that the vote/QC aggregator uses to combine partial signatures into
// certificates without caring whether the underlying scheme aggregates
// (BLS) or not (Ed25519).
package hscrypto

import "context"

// PubKey is a validator's verification key.
//
// Implementations must be comparable with Equal rather than with ==,
// since some schemes (BLS) wrap non-comparable curve point types.
type PubKey interface {
	// Address is a short, implementation-specific identifier for the key,
	// typically a hash prefix. Used only for logging.
	Address() []byte

	PubKeyBytes() []byte

	Equal(other PubKey) bool

	Verify(msg, sig []byte) bool
}

// Signer produces signatures for the local validator.
type Signer interface {
	PubKey() PubKey

	Sign(ctx context.Context, msg []byte) ([]byte, error)
}

// TypeNamed is implemented by PubKey types that want a stable string
// identifying their scheme, independent of the Registry prefix byte.
// Used in logs and metrics labels.
type TypeNamed interface {
	TypeName() string
}
