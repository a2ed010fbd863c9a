// Package hsconsensustest provides deterministic validator-set fixtures
// for tests, generalizing the teacher's tmconsensustest
// ed25519validators.go from height+round voting to a stake-weighted
// HotStuff validator set.
package hsconsensustest

import (
	petname "github.com/dustinkirkland/golang-petname"

	"github.com/hotshot-consensus/hotshot/hscrypto"
	"github.com/hotshot-consensus/hotshot/hscrypto/hscryptotest"
	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// Fixture bundles a deterministic validator set with the signers behind
// it, a registry that can decode its key type, and the signature/hash
// schemes most tests use.
type Fixture struct {
	Signers   []hscrypto.Signer
	Set       hsconsensus.ValidatorSet
	Nicknames []string // human-readable, for log/test output only

	Registry hscrypto.Registry

	SignatureScheme hsconsensus.SignatureScheme
	HashScheme      hsconsensus.HashScheme
	ProofScheme     hscrypto.CommonMessageSignatureProofScheme
}

// NewEd25519Fixture returns a Fixture with n deterministic Ed25519
// validators, each with equal stake.
func NewEd25519Fixture(n int) *Fixture {
	privs := hscryptotest.DeterministicEd25519(n)

	var reg hscrypto.Registry
	hscrypto.RegisterEd25519(&reg)

	signers := make([]hscrypto.Signer, n)
	vals := make([]hsconsensus.Validator, n)
	nicknames := make([]string, n)
	for i, priv := range privs {
		s := hscrypto.NewEd25519Signer(priv)
		signers[i] = s
		vals[i] = hsconsensus.Validator{PubKey: s.PubKey(), Stake: 1}
		nicknames[i] = petname.Generate(2, "-")
	}

	return &Fixture{
		Signers:         signers,
		Set:             hsconsensus.ValidatorSet{Validators: vals},
		Nicknames:       nicknames,
		Registry:        reg,
		SignatureScheme: hsconsensus.Blake2bSignatureScheme{},
		HashScheme:      hsconsensus.Blake2bHashScheme{},
		ProofScheme:     hscrypto.SimpleScheme{},
	}
}

// WithStakes overrides the stake of each validator in order. len(stakes)
// must equal len(f.Set.Validators).
func (f *Fixture) WithStakes(stakes []uint64) *Fixture {
	for i := range f.Set.Validators {
		f.Set.Validators[i].Stake = stakes[i]
	}
	return f
}

// Genesis returns a deterministic genesis block and its commitment under
// f's hash scheme.
func (f *Fixture) Genesis() (hsconsensus.Block, hsconsensus.Commitment) {
	b := hsconsensus.Block{View: 0, Payload: []byte("genesis")}
	return b, b.Commitment(f.HashScheme)
}
