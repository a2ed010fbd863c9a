package hsda_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
	"github.com/hotshot-consensus/hotshot/hsconsensus/hsconsensustest"
	"github.com/hotshot-consensus/hotshot/hsda"
)

func TestShardReassemble_RoundTrip(t *testing.T) {
	t.Parallel()

	enc, err := hsda.NewEncoder(4, 2)
	require.NoError(t, err)

	payload := []byte("a payload that does not divide evenly by four shards!")

	set, err := hsda.Shard(enc, payload)
	require.NoError(t, err)
	require.NotEmpty(t, set.MerkleRoot)

	// Drop two of the six shards (within the recovery budget) and
	// reassemble from what remains.
	dataShards := append([][]byte(nil), set.DataShards...)
	recoveryShards := append([][]byte(nil), set.RecoveryShards...)
	dataShards[1] = nil
	recoveryShards[0] = nil

	got, err := hsda.Reassemble(enc, dataShards, recoveryShards, set.PayloadLen, set.MerkleRoot)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReassemble_RejectsMismatchedRoot(t *testing.T) {
	t.Parallel()

	enc, err := hsda.NewEncoder(4, 2)
	require.NoError(t, err)

	set, err := hsda.Shard(enc, []byte("some payload"))
	require.NoError(t, err)

	wrongRoot := append([]byte(nil), set.MerkleRoot...)
	wrongRoot[0] ^= 0xFF

	_, err = hsda.Reassemble(enc, set.DataShards, set.RecoveryShards, set.PayloadLen, wrongRoot)
	require.Error(t, err)
}

func TestCollector_FormsCertAtTimeoutThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := hsconsensustest.NewEd25519Fixture(4) // timeout threshold F+1 = 2

	target := hsda.DAVoteTarget{View: 1, Commitment: "c1", MerkleRoot: []byte("root")}

	col, err := hsda.NewCollector(fx.ProofScheme, target, fx.Set.PubKeys(), "hash")
	require.NoError(t, err)

	sig0, err := fx.Signers[0].Sign(ctx, target.SignBytes())
	require.NoError(t, err)
	cert, err := col.Add(ctx, target, sig0, fx.Signers[0].PubKey(), fx.Set, "hash")
	require.NoError(t, err)
	require.Nil(t, cert, "threshold should not be met after a single vote")

	sig1, err := fx.Signers[1].Sign(ctx, target.SignBytes())
	require.NoError(t, err)
	cert, err = col.Add(ctx, target, sig1, fx.Signers[1].PubKey(), fx.Set, "hash")
	require.NoError(t, err)
	require.NotNil(t, cert, "threshold should be met after the second vote")

	require.NoError(t, hsda.VerifyDACert(cert, fx.Set, fx.ProofScheme))
}

func TestVerifyDACert_RejectsNil(t *testing.T) {
	t.Parallel()

	fx := hsconsensustest.NewEd25519Fixture(4)
	err := hsda.VerifyDACert(nil, fx.Set, fx.ProofScheme)
	require.Error(t, err)

	var protoErr *hsconsensus.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}
