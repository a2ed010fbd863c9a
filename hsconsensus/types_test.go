package hsconsensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

func TestValidatorSet_QuorumThreshold(t *testing.T) {
	t.Parallel()

	cases := []struct {
		stakes []uint64
		wantQ  uint64
		wantF  uint64
	}{
		{stakes: []uint64{1, 1, 1, 1}, wantQ: 4, wantF: 2},
		{stakes: []uint64{1, 1, 1}, wantQ: 3, wantF: 2},
		{stakes: []uint64{10, 10, 10, 10, 10, 10, 10}, wantQ: 48, wantF: 24},
	}

	for _, c := range cases {
		vs := hsconsensus.ValidatorSet{}
		for _, s := range c.stakes {
			vs.Validators = append(vs.Validators, hsconsensus.Validator{Stake: s})
		}
		require.Equal(t, c.wantQ, vs.QuorumThreshold())
		require.Equal(t, c.wantF, vs.TimeoutThreshold())
	}
}
