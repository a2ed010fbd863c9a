package hsstore

import (
	"context"
	"sync"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// MemStore is an in-memory ConsensusStore for tests.
type MemStore struct {
	mu sync.RWMutex

	safety SafetyState

	commitsByView map[hsconsensus.View]commitEntry
	lastView      hsconsensus.View
	lastHeight    uint64
	haveCommit    bool
}

type commitEntry struct {
	commitment hsconsensus.Commitment
	block      hsconsensus.Block
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{commitsByView: make(map[hsconsensus.View]commitEntry)}
}

func (m *MemStore) SaveSafetyState(_ context.Context, s SafetyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.safety = s
	return nil
}

func (m *MemStore) LoadSafetyState(_ context.Context) (SafetyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.safety, nil
}

func (m *MemStore) SaveCommit(_ context.Context, view hsconsensus.View, commitment hsconsensus.Commitment, block hsconsensus.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitsByView[view] = commitEntry{commitment: commitment, block: block}
	if !m.haveCommit || view > m.lastView {
		m.lastView = view
		m.haveCommit = true
	}
	if block.Height > m.lastHeight {
		m.lastHeight = block.Height
	}
	return nil
}

func (m *MemStore) LoadCommitByView(_ context.Context, view hsconsensus.View) (hsconsensus.Commitment, hsconsensus.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.commitsByView[view]
	if !ok {
		return "", hsconsensus.Block{}, &hsconsensus.MissingError{}
	}
	return e.commitment, e.block, nil
}

func (m *MemStore) LastCommitView(_ context.Context) (hsconsensus.View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.haveCommit {
		return 0, ErrNoCommits{}
	}
	return m.lastView, nil
}

func (m *MemStore) LastCommitHeight(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.haveCommit {
		return 0, ErrNoCommits{}
	}
	return m.lastHeight, nil
}
