// Package storage provides the key-value capability consumed by command
// execution and its bounded LRU implementation.
//
// The LRU engine keeps a hash index from key to entry plus a recency list
// ordered from most- to least-recently-used. The sum of len(key)+len(value)
// over all entries never exceeds the configured byte capacity: inserts and
// growing updates evict from the tail of the recency list before they
// commit.
//
// Basic usage:
//
//	cache := storage.NewLRU(1 << 20)
//	cache.Put("key", []byte("value"))
//	value, ok := cache.Get("key")
//
// The package supports:
//   - Put, PutIfAbsent, Set, Delete and Get under a single mutex
//   - Byte-budget eviction of least-recently-used entries
//   - Compare-and-swap keyed on an xxhash digest of the current value
//   - Hit, miss and eviction counters
package storage
