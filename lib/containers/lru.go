// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// LRUCache is an ARC-backed memoization cache for db.block: the only
// operations btreedb4 ever performs against it are a lookup by block
// index and a store of the freshly-parsed result, so that's the entire
// surface exposed here rather than the teacher's general-purpose
// cache-with-eviction-introspection wrapper.
type LRUCache[K comparable, V any] struct {
	initOnce sync.Once
	inner    *lru.ARCCache
}

// NewLRUCache returns a cache holding at most size entries.
func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	c := new(LRUCache[K, V])
	c.initOnce.Do(func() {
		c.inner, _ = lru.NewARC(size)
	})
	return c
}

func (c *LRUCache[K, V]) init() {
	c.initOnce.Do(func() {
		c.inner, _ = lru.NewARC(128)
	})
}

// Add stores value under key, evicting per the ARC policy if the cache is
// full.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.init()
	c.inner.Add(key, value)
}

// Get reports whether key is cached and, if so, its value.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	c.init()
	_value, ok := c.inner.Get(key)
	if ok {
		value = _value.(V)
	}
	return value, ok
}
