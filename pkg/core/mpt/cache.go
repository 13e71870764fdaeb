package mpt

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nspcc-dev/ethtrie/pkg/util"
)

// NodeCache keeps decoded nodes by their hashes. Only nodes that are already
// persisted get there, so evicting them never loses data. It's safe for
// concurrent use and can be shared between tries using the same storage.
type NodeCache struct {
	lru *lru.Cache[util.Uint256, Node]

	lock sync.RWMutex
	mem  map[util.Uint256]Node
}

// NewNodeCache creates a cache holding up to size nodes with LRU eviction.
// Non-positive size makes an unbounded cache.
func NewNodeCache(size int) *NodeCache {
	c := new(NodeCache)
	if size > 0 {
		// Only non-positive sizes lead to errors.
		c.lru, _ = lru.New[util.Uint256, Node](size)
	} else {
		c.mem = make(map[util.Uint256]Node)
	}
	return c
}

// Get returns the node with the given hash if it's cached.
func (c *NodeCache) Get(h util.Uint256) (Node, bool) {
	var (
		n  Node
		ok bool
	)
	if c.lru != nil {
		n, ok = c.lru.Get(h)
	} else {
		c.lock.RLock()
		n, ok = c.mem[h]
		c.lock.RUnlock()
	}
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return n, ok
}

// Add puts a flushed node into the cache.
func (c *NodeCache) Add(h util.Uint256, n Node) {
	if c.lru != nil {
		c.lru.Add(h, n)
		return
	}
	c.lock.Lock()
	c.mem[h] = n
	c.lock.Unlock()
}

// Len returns the number of cached nodes.
func (c *NodeCache) Len() int {
	if c.lru != nil {
		return c.lru.Len()
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.mem)
}

// Purge drops all cached nodes.
func (c *NodeCache) Purge() {
	if c.lru != nil {
		c.lru.Purge()
		return
	}
	c.lock.Lock()
	c.mem = make(map[util.Uint256]Node)
	c.lock.Unlock()
}
