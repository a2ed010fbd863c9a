package hsconsensus

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Membership decides who leads a given view. It is supplied to the
// engine as a constructor argument rather than hardcoded, mirroring the
// election abstraction in the original HotShot implementation's
// traits::election::Membership (see original_source/types/src/traits/election.rs).
type Membership interface {
	// LeaderForView returns the index into vs.Validators of the leader
	// for view.
	LeaderForView(vs ValidatorSet, view View) int
}

// RoundRobinMembership rotates leadership by validator index, ignoring
// stake. Deterministic and simple to reason about in tests.
type RoundRobinMembership struct{}

func (RoundRobinMembership) LeaderForView(vs ValidatorSet, view View) int {
	n := len(vs.Validators)
	if n == 0 {
		return -1
	}
	return int(uint64(view) % uint64(n))
}

// VRFMembership selects a leader pseudorandomly, weighted by stake, from a
// hash of Seed and the requested view, so that leadership cannot be
// predicted further ahead than the seed allows.
//
// This is a deterministic stand-in for a true VRF: every validator can
// compute the same answer from public information (the seed), which is
// the property consensus needs from leader election, without requiring
// the VRF proof machinery a production deployment would add on top.
type VRFMembership struct {
	// Seed is mixed into the per-view selection; callers should set this
	// to the commitment of the highest known QC so that leadership shifts
	// unpredictably as the chain advances.
	Seed []byte
}

func (m VRFMembership) LeaderForView(vs ValidatorSet, view View) int {
	total := vs.TotalStake()
	if total == 0 || len(vs.Validators) == 0 {
		return -1
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	h.Write(m.Seed)
	var viewBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], uint64(view))
	h.Write(viewBuf[:])
	digest := h.Sum(nil)

	// Take the first 8 bytes of the digest as an unbiased-enough selector
	// into [0, total). This is not a cryptographic VRF; see the type doc.
	selector := binary.BigEndian.Uint64(digest[:8]) % total

	var cum uint64
	for i, v := range vs.Validators {
		cum += v.Stake
		if selector < cum {
			return i
		}
	}
	return len(vs.Validators) - 1
}
