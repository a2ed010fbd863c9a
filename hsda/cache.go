package hsda

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hotshot-consensus/hotshot/hsconsensus"
)

// ShardSet holds one block's encoded shards in memory, keyed so the
// local validator can serve reconstruction requests from peers without
// re-encoding.
type ShardSet struct {
	DataShards     [][]byte
	RecoveryShards [][]byte
	MerkleRoot     []byte
	PayloadLen     int
}

// Cache bounds the number of in-flight block shard sets kept in memory,
// evicting the least recently used once a block commits and its shards
// are no longer needed for DA gossip.
//
// Grounded on the teacher's go.mod dependency on hashicorp/golang-lru
// (present only as an indirect dependency pulled in by libp2p elsewhere
// in the pack); promoted here to a direct dependency for this package's
// own use.
type Cache struct {
	lru *lru.Cache[hsconsensus.Commitment, ShardSet]
}

// NewCache returns a Cache holding at most capacity shard sets.
func NewCache(capacity int) (*Cache, error) {
	l, err := lru.New[hsconsensus.Commitment, ShardSet](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

func (c *Cache) Put(commitment hsconsensus.Commitment, s ShardSet) {
	c.lru.Add(commitment, s)
}

func (c *Cache) Get(commitment hsconsensus.Commitment) (ShardSet, bool) {
	return c.lru.Get(commitment)
}

func (c *Cache) Remove(commitment hsconsensus.Commitment) {
	c.lru.Remove(commitment)
}
