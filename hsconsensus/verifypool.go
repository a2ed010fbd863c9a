package hsconsensus

import (
	"github.com/gammazero/workerpool"

	"github.com/hotshot-consensus/hotshot/hscrypto"
)

// VerificationPool runs signature verifications concurrently, off the
// consensus-state lock, per spec.md §5 ("Sections that perform signature
// aggregation over many votes hold the lock only to snapshot/commit
// deltas; the verification itself runs outside the lock").
//
// Grounded on onflow-flow-go's go.mod dependency on
// github.com/gammazero/workerpool, used there the same way: a bounded
// pool of goroutines draining a submission queue, rather than an
// unbounded goroutine-per-verification fan-out.
type VerificationPool struct {
	wp *workerpool.WorkerPool
}

// NewVerificationPool starts a pool with maxWorkers concurrent verifiers.
func NewVerificationPool(maxWorkers int) *VerificationPool {
	return &VerificationPool{wp: workerpool.New(maxWorkers)}
}

// VerifyResult is delivered on the channel returned by Submit.
type VerifyResult struct {
	Valid bool
}

// Submit verifies sig against key over msg on a pool worker, returning a
// channel that receives exactly one VerifyResult.
func (p *VerificationPool) Submit(key hscrypto.PubKey, msg, sig []byte) <-chan VerifyResult {
	out := make(chan VerifyResult, 1)
	p.wp.Submit(func() {
		out <- VerifyResult{Valid: key.Verify(msg, sig)}
	})
	return out
}

// StopWait waits for submitted verifications to finish and stops
// accepting new ones.
func (p *VerificationPool) StopWait() { p.wp.StopWait() }
