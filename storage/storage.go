package storage

import "github.com/cespare/xxhash/v2"

// Storage is the key-value capability exposed to command execution.
// Every method is atomic with respect to every other method.
type Storage interface {
	// Put inserts or overwrites key. It returns false only when the entry
	// can never fit in the store.
	Put(key string, value []byte) bool

	// PutIfAbsent behaves like Put but returns false, leaving the store
	// unchanged, when key already exists.
	PutIfAbsent(key string, value []byte) bool

	// Set overwrites the value of an existing key. It returns false when
	// key is absent or the new entry can never fit.
	Set(key string, value []byte) bool

	// Delete removes key and reports whether it was present.
	Delete(key string) bool

	// Get returns a copy of the value stored under key. A hit counts as a
	// use of the entry.
	Get(key string) ([]byte, bool)
}

// DigestStorage extends Storage with optimistic concurrency based on a
// digest of the stored value.
type DigestStorage interface {
	Storage

	// GetWithDigest is Get that also returns Digest(value).
	GetWithDigest(key string) ([]byte, uint64, bool)

	// Peek returns the value and its digest without refreshing recency or
	// counting a hit or miss. Writers use it to read before a swap.
	Peek(key string) ([]byte, uint64, bool)

	// CompareAndSwap replaces the value of key only when the digest of the
	// current value equals digest.
	CompareAndSwap(key string, digest uint64, value []byte) SwapResult
}

// StatsProvider is implemented by stores that report usage counters.
type StatsProvider interface {
	Stats() Stats
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Items     int64
	Bytes     int64
	Capacity  int64
	Evictions int64
	Hits      int64
	Misses    int64
}

// SwapResult is the outcome of CompareAndSwap.
type SwapResult int

const (
	// SwapStored means the new value was committed.
	SwapStored SwapResult = iota
	// SwapMismatch means the key exists but its digest differs.
	SwapMismatch
	// SwapNotFound means the key does not exist.
	SwapNotFound
	// SwapRejected means the new entry can never fit in the store.
	SwapRejected
)

// String returns a readable name for the result
func (r SwapResult) String() string {
	switch r {
	case SwapStored:
		return "stored"
	case SwapMismatch:
		return "mismatch"
	case SwapNotFound:
		return "not_found"
	case SwapRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Digest returns the 64-bit xxhash of value. It is the token clients echo
// back to CompareAndSwap.
func Digest(value []byte) uint64 {
	return xxhash.Sum64(value)
}
