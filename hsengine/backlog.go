package hsengine

import (
	"sync"

	"github.com/ef-ds/deque"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// proposalBacklog holds proposals whose parent is not yet in the block
// tree, indexed by the missing parent's commitment, so that ReplicaTask
// can replay them once the parent arrives instead of dropping them.
//
// Grounded on onflow-flow-go's engine/common/fifoqueue.FifoQueue, which
// wraps a github.com/ef-ds/deque.Deque with a capacity bound and silently
// drops pushes past it; this type keeps that shape but partitions the
// single queue into one per awaited parent commitment.
//
// Not safe for concurrent use beyond the mutex it carries; ReplicaTask is
// the only caller.
type proposalBacklog struct {
	mu          sync.Mutex
	byParent    map[hsconsensus.Commitment]*deque.Deque
	maxPerChild int
}

func newProposalBacklog(maxPerChild int) *proposalBacklog {
	return &proposalBacklog{
		byParent:    make(map[hsconsensus.Commitment]*deque.Deque),
		maxPerChild: maxPerChild,
	}
}

// add queues ev under its block's parent commitment. Returns false (and
// drops ev) if that parent's queue is already at capacity.
func (b *proposalBacklog) add(parent hsconsensus.Commitment, ev ProposalEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.byParent[parent]
	if !ok {
		q = &deque.Deque{}
		b.byParent[parent] = q
	}
	if q.Len() >= b.maxPerChild {
		return false
	}
	q.PushBack(ev)
	return true
}

// drain removes and returns every proposal that was waiting on parent,
// in FIFO order.
func (b *proposalBacklog) drain(parent hsconsensus.Commitment) []ProposalEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.byParent[parent]
	if !ok {
		return nil
	}
	delete(b.byParent, parent)

	out := make([]ProposalEvent, 0, q.Len())
	for {
		v, ok := q.PopFront()
		if !ok {
			break
		}
		out = append(out, v.(ProposalEvent))
	}
	return out
}
