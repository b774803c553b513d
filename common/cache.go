// Copyright 2024 The slimchain-go Authors
// This file is part of the slimchain-go library.
//
// The slimchain-go library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The slimchain-go library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the slimchain-go library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// CacheScale lets operators scale every configured cache size up or down by
// a percentage, matching the knob klaytn exposes for tuning memory use
// across deployments of different sizes.
var CacheScale = 100

// CacheKey is implemented by types used as keys in a ShardedCache, so that
// the cache can place a key in one of its shards without taking a global
// lock on every access.
type CacheKey interface {
	ShardHash(shardMask int) int
}

// Cache is a bounded key/value store. slimchain-go uses it for the
// recent-header cache in chain.DBManager, which needs eviction but not
// persistence.
type Cache interface {
	Add(key CacheKey, value interface{}) (evicted bool)
	Get(key CacheKey) (value interface{}, ok bool)
	Contains(key CacheKey) bool
	Purge()
}

// CacheConfig builds a concrete Cache implementation.
type CacheConfig interface {
	NewCache() (Cache, error)
}

func NewCache(config CacheConfig) (Cache, error) {
	if config == nil {
		return nil, errors.New("cache config is nil")
	}
	return config.NewCache()
}

// LRUConfig builds a plain least-recently-used cache.
type LRUConfig struct {
	CacheSize int
}

func (c LRUConfig) NewCache() (Cache, error) {
	size := c.CacheSize * CacheScale / 100
	if size < 1 {
		size = 1
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruCache{l}, nil
}

type lruCache struct{ lru *lru.Cache }

func (c *lruCache) Add(key CacheKey, value interface{}) (evicted bool) {
	return c.lru.Add(key, value)
}
func (c *lruCache) Get(key CacheKey) (interface{}, bool) { return c.lru.Get(key) }
func (c *lruCache) Contains(key CacheKey) bool           { return c.lru.Contains(key) }
func (c *lruCache) Purge()                               { c.lru.Purge() }

// ARCConfig builds an adaptive replacement cache, used where both
// recency and frequency matter (e.g. chain.DBManager's recent-header
// cache).
type ARCConfig struct {
	CacheSize int
}

func (c ARCConfig) NewCache() (Cache, error) {
	size := c.CacheSize * CacheScale / 100
	if size < 1 {
		size = 1
	}
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &arcCache{arc}, nil
}

type arcCache struct{ arc *lru.ARCCache }

func (c *arcCache) Add(key CacheKey, value interface{}) (evicted bool) {
	c.arc.Add(key, value)
	return false
}
func (c *arcCache) Get(key CacheKey) (interface{}, bool) { return c.arc.Get(key) }
func (c *arcCache) Contains(key CacheKey) bool           { return c.arc.Contains(key) }
func (c *arcCache) Purge()                               { c.arc.Purge() }

// ShardedConfig builds a cache sharded across N power-of-two buckets, each
// an independent plain LRU, so concurrent producers touching different
// shards never contend on the same lock.
type ShardedConfig struct {
	CacheSize int
	NumShards int
}

const minShardSize = 10

func (c ShardedConfig) NewCache() (Cache, error) {
	size := c.CacheSize * CacheScale / 100
	if size < 1 {
		return nil, errors.New("must provide a positive cache size")
	}

	numShards := c.powOf2Shards(size)
	sharded := &shardedCache{shards: make([]*lru.Cache, numShards), shardMask: numShards - 1}
	shardSize := size / numShards
	if shardSize < 1 {
		shardSize = 1
	}
	for i := 0; i < numShards; i++ {
		shard, err := lru.New(shardSize)
		if err != nil {
			return nil, err
		}
		sharded.shards[i] = shard
	}
	return sharded, nil
}

func (c ShardedConfig) powOf2Shards(size int) int {
	maxShards := size / minShardSize
	if maxShards < 2 {
		return 2
	}
	n := c.NumShards
	if n > maxShards {
		n = maxShards
	}
	if n < 2 {
		n = 2
	}
	for n&(n-1) != 0 {
		n &= n - 1
	}
	return n
}

type shardedCache struct {
	shards    []*lru.Cache
	shardMask int
}

func (c *shardedCache) Add(key CacheKey, value interface{}) (evicted bool) {
	return c.shards[key.ShardHash(c.shardMask)].Add(key, value)
}
func (c *shardedCache) Get(key CacheKey) (interface{}, bool) {
	return c.shards[key.ShardHash(c.shardMask)].Get(key)
}
func (c *shardedCache) Contains(key CacheKey) bool {
	return c.shards[key.ShardHash(c.shardMask)].Contains(key)
}
func (c *shardedCache) Purge() {
	for _, s := range c.shards {
		s.Purge()
	}
}
