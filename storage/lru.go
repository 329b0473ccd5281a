package storage

import (
	"sync"

	"github.com/raniellyferreira/lrukv/storage/policy"
)

// EvictionObserver is called for every entry evicted to make room. It runs
// with the cache lock held and must not call back into the cache.
type EvictionObserver func(key string, value []byte)

// LRU is a byte-bounded least-recently-used cache. All operations are
// serialized by one mutex.
type LRU struct {
	mu sync.Mutex

	capacity int64
	size     int64
	index    map[string]int32
	list     *recencyList

	admission policy.AdmissionPolicy
	observer  EvictionObserver

	// Counters
	evictions int64
	hits      int64
	misses    int64
}

// LRUOption is a function that configures an LRU instance
type LRUOption func(*LRU)

// WithInitialEntries preallocates room for n entries in the index and arena
func WithInitialEntries(n int) LRUOption {
	return func(c *LRU) {
		if n > 0 {
			c.index = make(map[string]int32, n)
			c.list = newRecencyList(n)
		}
	}
}

// WithAdmission installs an admission policy consulted before any write.
// Entries larger than the capacity are rejected regardless of the policy.
func WithAdmission(p policy.AdmissionPolicy) LRUOption {
	return func(c *LRU) {
		if p != nil {
			c.admission = p
		}
	}
}

// WithObserver registers a callback invoked for each evicted entry
func WithObserver(fn EvictionObserver) LRUOption {
	return func(c *LRU) {
		c.observer = fn
	}
}

// NewLRU creates a cache holding at most capacity bytes of keys and values
func NewLRU(capacity int64, opts ...LRUOption) *LRU {
	if capacity < 0 {
		capacity = 0
	}

	c := &LRU{
		capacity:  capacity,
		index:     make(map[string]int32),
		list:      newRecencyList(0),
		admission: policy.NoopAdmission{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// admit reports whether an entry of the given cost may ever be stored.
func (c *LRU) admit(key string, cost int64) bool {
	return cost <= c.capacity && c.admission.Allow(key, cost)
}

// Put inserts or overwrites key
func (c *LRU) Put(key string, value []byte) bool {
	cost := policy.EntryCost(key, value)
	if !c.admit(key, cost) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.updateLocked(i, value)
		return true
	}

	c.insertLocked(key, value, cost)
	return true
}

// PutIfAbsent inserts key only if it is not already present
func (c *LRU) PutIfAbsent(key string, value []byte) bool {
	cost := policy.EntryCost(key, value)
	if !c.admit(key, cost) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[key]; ok {
		return false
	}

	c.insertLocked(key, value, cost)
	return true
}

// Set overwrites the value of an existing key
func (c *LRU) Set(key string, value []byte) bool {
	if !c.admit(key, policy.EntryCost(key, value)) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return false
	}

	c.updateLocked(i, value)
	return true
}

// Delete removes key if present
func (c *LRU) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return false
	}

	c.list.remove(i)
	c.dropLocked(i)
	return true
}

// Get returns a copy of the value for key and marks the entry as most
// recently used
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.touchLocked(key)
	if !ok {
		return nil, false
	}
	return cloneBytes(e.value), true
}

// GetWithDigest is Get that also returns the digest of the value
func (c *LRU) GetWithDigest(key string) ([]byte, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.touchLocked(key)
	if !ok {
		return nil, 0, false
	}
	return cloneBytes(e.value), Digest(e.value), true
}

// Peek returns a copy of the value for key and its digest. Recency and the
// hit and miss counters are left alone.
func (c *LRU) Peek(key string) ([]byte, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return nil, 0, false
	}
	e := c.list.at(i)
	return cloneBytes(e.value), Digest(e.value), true
}

// CompareAndSwap replaces the value of key when Digest(current) == digest
func (c *LRU) CompareAndSwap(key string, digest uint64, value []byte) SwapResult {
	cost := policy.EntryCost(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return SwapNotFound
	}
	if Digest(c.list.at(i).value) != digest {
		return SwapMismatch
	}
	if !c.admit(key, cost) {
		return SwapRejected
	}

	c.updateLocked(i, value)
	return SwapStored
}

// Len returns the number of stored entries
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Size returns the bytes currently charged against the capacity
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the byte budget
func (c *LRU) Capacity() int64 {
	return c.capacity
}

// Keys returns keys ordered from most to least recently used. It does not
// change recency.
func (c *LRU) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.list.len())
	for i := c.list.head; i != nilIndex; i = c.list.at(i).next {
		out = append(out, c.list.at(i).key)
	}
	return out
}

// Stats returns a snapshot of the cache counters
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Items:     int64(len(c.index)),
		Bytes:     c.size,
		Capacity:  c.capacity,
		Evictions: c.evictions,
		Hits:      c.hits,
		Misses:    c.misses,
	}
}

func (c *LRU) touchLocked(key string) (*entry, bool) {
	i, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.list.moveToFront(i)
	return c.list.at(i), true
}

// insertLocked evicts until the new entry fits, then links it at the head.
func (c *LRU) insertLocked(key string, value []byte, cost int64) {
	c.evictLocked(cost, nilIndex)

	i := c.list.alloc(key, cloneBytes(value))
	c.list.pushFront(i)
	c.index[key] = i
	c.size += cost
}

// updateLocked replaces the value at i and moves it to the head. The entry
// is promoted before eviction so the tail walk never reaches it.
func (c *LRU) updateLocked(i int32, value []byte) {
	c.list.moveToFront(i)

	delta := int64(len(value)) - int64(len(c.list.at(i).value))
	if delta > 0 {
		c.evictLocked(delta, i)
	}

	c.list.at(i).value = cloneBytes(value)
	c.size += delta
}

// evictLocked removes tail entries until need more bytes fit. Each step
// subtracts the cost of the entry actually removed. keep is never evicted.
func (c *LRU) evictLocked(need int64, keep int32) {
	for c.size+need > c.capacity {
		victim := c.list.tail
		if victim == nilIndex || victim == keep {
			return
		}

		c.list.popBack()
		if c.observer != nil {
			e := c.list.at(victim)
			c.observer(e.key, e.value)
		}
		c.dropLocked(victim)
		c.evictions++
	}
}

// dropLocked removes an already unlinked entry from the index and releases
// its slot.
func (c *LRU) dropLocked(i int32) {
	e := c.list.at(i)
	c.size -= e.cost()
	delete(c.index, e.key)
	c.list.release(i)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ DigestStorage = (*LRU)(nil)
var _ StatsProvider = (*LRU)(nil)
