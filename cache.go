package wavemem

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arloliu/wavemem/hierarchy"
	"github.com/arloliu/wavemem/signal"
)

type blockKey struct {
	signal hierarchy.Ref
	block  signal.BlockRef
}

// blockCache is a bounded LRU of decoded blocks shared by all signals.
// The underlying cache is internally synchronized.
type blockCache struct {
	lru    *lru.Cache[blockKey, *signal.DecodedBlock]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func newBlockCache(size int) (*blockCache, error) {
	c, err := lru.New[blockKey, *signal.DecodedBlock](size)
	if err != nil {
		return nil, err
	}

	return &blockCache{lru: c}, nil
}

func (c *blockCache) get(key blockKey) (*signal.DecodedBlock, bool) {
	blk, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}

	return blk, ok
}

func (c *blockCache) add(key blockKey, blk *signal.DecodedBlock) {
	c.lru.Add(key, blk)
}

func (c *blockCache) purge() {
	c.lru.Purge()
}

// CacheStats reports decoded-block cache activity.
type CacheStats struct {
	Capacity int
	Len      int
	Hits     uint64
	Misses   uint64
}

// HitRatio returns hits / (hits + misses), or 0 before the first lookup.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}
