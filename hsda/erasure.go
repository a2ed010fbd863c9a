// Package hsda implements data availability: a block's payload is split
// into data shards, encoded with Reed-Solomon recovery shards, and
// committed to with a Merkle root over all shards. Validators vote once
// they have confirmed holding (or reconstructed) their assigned shard,
// and once F+1 stake has voted, a DACert attests the payload is
// available even if the original proposer disappears.
//
// Grounded directly on the teacher's gturbine/gtencoding.Encoder, which
// wraps klauspost/reedsolomon the same way.
package hsda

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// MaxTotalShards bounds dataShards+recoveryShards, matching the
// teacher's gtencoding.maxTotalShreds limit (reedsolomon's practical
// GF(2^8) ceiling).
const MaxTotalShards = 128

// Encoder erasure-codes a payload into data and recovery shards.
type Encoder struct {
	enc            reedsolomon.Encoder
	dataShards     int
	recoveryShards int
}

// NewEncoder returns an Encoder configured for dataShards data shards and
// recoveryShards recovery shards.
func NewEncoder(dataShards, recoveryShards int) (*Encoder, error) {
	if dataShards <= 0 {
		return nil, fmt.Errorf("hsda: data shards must be > 0")
	}
	if recoveryShards <= 0 {
		return nil, fmt.Errorf("hsda: recovery shards must be > 0")
	}
	if dataShards+recoveryShards > MaxTotalShards {
		return nil, fmt.Errorf("hsda: total shards must be <= %d", MaxTotalShards)
	}

	enc, err := reedsolomon.New(dataShards, recoveryShards)
	if err != nil {
		return nil, fmt.Errorf("hsda: create reed-solomon encoder: %w", err)
	}

	return &Encoder{enc: enc, dataShards: dataShards, recoveryShards: recoveryShards}, nil
}

// Split divides payload into e.dataShards equal-length data shards,
// zero-padding the last shard if payload's length is not an even
// multiple of the shard count.
func (e *Encoder) Split(payload []byte) ([][]byte, error) {
	shards, err := e.enc.Split(payload)
	if err != nil {
		return nil, fmt.Errorf("hsda: split payload: %w", err)
	}
	// reedsolomon's Split also allocates the empty recovery shards after
	// the data shards; only the data shards are returned.
	return shards[:e.dataShards], nil
}

// Encode produces the recovery shards for the given data shards.
func (e *Encoder) Encode(dataShards [][]byte) ([][]byte, error) {
	if len(dataShards) != e.dataShards {
		return nil, fmt.Errorf("hsda: expected %d data shards, got %d", e.dataShards, len(dataShards))
	}

	all := make([][]byte, e.dataShards+e.recoveryShards)
	copy(all, dataShards)
	for i := e.dataShards; i < len(all); i++ {
		all[i] = make([]byte, len(dataShards[0]))
	}

	if err := e.enc.Encode(all); err != nil {
		return nil, fmt.Errorf("hsda: encode: %w", err)
	}

	return all[e.dataShards:], nil
}

// Reconstruct fills in missing (nil) entries of allShards in place, given
// at least e.dataShards non-nil entries.
func (e *Encoder) Reconstruct(allShards [][]byte) error {
	if len(allShards) != e.dataShards+e.recoveryShards {
		return fmt.Errorf("hsda: expected %d total shards, got %d", e.dataShards+e.recoveryShards, len(allShards))
	}

	have := 0
	for _, s := range allShards {
		if s != nil {
			have++
		}
	}
	if have < e.dataShards {
		return fmt.Errorf("hsda: insufficient shards for reconstruction: have %d, need %d", have, e.dataShards)
	}

	if err := e.enc.Reconstruct(allShards); err != nil {
		return fmt.Errorf("hsda: reconstruct: %w", err)
	}
	return nil
}

// Join reassembles the original payload from reconstructed data shards.
func (e *Encoder) Join(dataShards [][]byte, payloadLen int) ([]byte, error) {
	out := make([]byte, 0, payloadLen)
	for _, s := range dataShards[:e.dataShards] {
		out = append(out, s...)
	}
	if len(out) < payloadLen {
		return nil, fmt.Errorf("hsda: joined shards shorter than expected payload")
	}
	return out[:payloadLen], nil
}

// DataShards returns the configured data shard count.
func (e *Encoder) DataShards() int { return e.dataShards }

// RecoveryShards returns the configured recovery shard count.
func (e *Encoder) RecoveryShards() int { return e.recoveryShards }
