// Package hscryptotest provides deterministic signer fixtures for tests,
// so that test validator sets are stable across runs without needing to
// check generated keys into the repository.
//
// Grounded on the teacher's gcrypto/gblsminsig/gblsminsigtest, generalized
// across this package's three key schemes.
package hscryptotest

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/hotshot-consensus/hotshot/hscrypto/hsbls"
	"github.com/hotshot-consensus/hotshot/hscrypto/hssecp256k1"
)

var (
	muEd25519     sync.RWMutex
	ed25519Signer []ed25519Pair

	muBLS     sync.RWMutex
	blsSigner []hsbls.Signer

	muSecp     sync.RWMutex
	secpSigner []hssecp256k1.Signer
)

type ed25519Pair struct {
	priv ed25519.PrivateKey
}

// DeterministicEd25519 returns n deterministic Ed25519 private keys,
// seeded by index, generating and caching any not already produced.
func DeterministicEd25519(n int) []ed25519.PrivateKey {
	muEd25519.Lock()
	defer muEd25519.Unlock()

	for i := len(ed25519Signer); i < n; i++ {
		seed := make([]byte, ed25519.SeedSize)
		binary.BigEndian.PutUint64(seed[ed25519.SeedSize-8:], uint64(i))
		ed25519Signer = append(ed25519Signer, ed25519Pair{priv: ed25519.NewKeyFromSeed(seed)})
	}

	out := make([]ed25519.PrivateKey, n)
	for i := 0; i < n; i++ {
		out[i] = ed25519Signer[i].priv
	}
	return out
}

// DeterministicBLS returns n deterministic BLS signers.
func DeterministicBLS(n int) []hsbls.Signer {
	res := optimisticLoadBLS(n)
	if len(res) >= n {
		return res
	}

	muBLS.Lock()
	defer muBLS.Unlock()

	if len(blsSigner) < n {
		var wg sync.WaitGroup
		extended := make([]hsbls.Signer, n)
		copy(extended, blsSigner)
		for i := len(blsSigner); i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var ikm [32]byte
				binary.BigEndian.PutUint64(ikm[24:32], uint64(i))
				s, err := hsbls.NewSigner(ikm[:])
				if err != nil {
					panic(fmt.Errorf("hscryptotest: failed to make BLS signer: %w", err))
				}
				extended[i] = s
			}(i)
		}
		wg.Wait()
		blsSigner = extended
	}

	return append([]hsbls.Signer(nil), blsSigner[:n]...)
}

func optimisticLoadBLS(n int) []hsbls.Signer {
	muBLS.RLock()
	defer muBLS.RUnlock()
	if len(blsSigner) < n {
		return nil
	}
	return append([]hsbls.Signer(nil), blsSigner[:n]...)
}

// DeterministicSecp256k1 returns n deterministic secp256k1 signers.
func DeterministicSecp256k1(n int) []hssecp256k1.Signer {
	muSecp.Lock()
	defer muSecp.Unlock()

	for i := len(secpSigner); i < n; i++ {
		var scalar [32]byte
		binary.BigEndian.PutUint64(scalar[24:32], uint64(i+1))
		priv := secp256k1.PrivKeyFromBytes(scalar[:])
		secpSigner = append(secpSigner, hssecp256k1.NewSigner(priv))
	}

	out := make([]hssecp256k1.Signer, n)
	copy(out, secpSigner[:n])
	return out
}
