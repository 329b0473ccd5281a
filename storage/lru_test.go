package storage_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/lrukv/storage"
	"github.com/raniellyferreira/lrukv/storage/policy"
)

// checkInvariants verifies that Size equals the sum of entry costs and
// stays within the capacity.
func checkInvariants(t *testing.T, c *storage.LRU) {
	t.Helper()

	var total int64
	for _, k := range c.Keys() {
		v, ok := peek(c, k)
		require.True(t, ok, "key %q listed but not stored", k)
		total += int64(len(k) + len(v))
	}

	assert.Equal(t, total, c.Size(), "size must equal the aggregate entry cost")
	assert.LessOrEqual(t, c.Size(), c.Capacity())
	assert.Equal(t, len(c.Keys()), c.Len(), "index and list must hold the same entries")
}

// peek reads a value and then restores the previous recency order by
// touching every key from least to most recently used.
func peek(c *storage.LRU, key string) ([]byte, bool) {
	order := c.Keys()
	v, ok := c.Get(key)
	for i := len(order) - 1; i >= 0; i-- {
		c.Get(order[i])
	}
	return v, ok
}

func TestLRUPutGet(t *testing.T) {
	c := storage.NewLRU(64)

	require.True(t, c.Put("key1", []byte("value1")))

	v, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", string(v))
	assert.Equal(t, int64(10), c.Size())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUGetReturnsCopy(t *testing.T) {
	c := storage.NewLRU(64)
	in := []byte("value")
	c.Put("k", in)

	in[0] = 'X'
	v, _ := c.Get("k")
	assert.Equal(t, "value", string(v))

	v[0] = 'Y'
	v2, _ := c.Get("k")
	assert.Equal(t, "value", string(v2))
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	// Each entry costs 2 bytes; three fill the cache exactly.
	c := storage.NewLRU(6)

	require.True(t, c.Put("A", []byte("a")))
	require.True(t, c.Put("B", []byte("b")))
	require.True(t, c.Put("C", []byte("c")))

	_, ok := c.Get("A")
	require.True(t, ok)

	require.True(t, c.Put("D", []byte("d")))

	_, ok = c.Get("B")
	assert.False(t, ok, "B should be evicted")
	for _, k := range []string{"A", "C", "D"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should remain", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestLRUSetRefreshesRecency(t *testing.T) {
	c := storage.NewLRU(6)
	c.Put("A", []byte("a"))
	c.Put("B", []byte("b"))
	c.Put("C", []byte("c"))

	require.True(t, c.Set("A", []byte("x")))
	c.Put("D", []byte("d"))

	assert.Equal(t, []string{"D", "A", "C"}, c.Keys())
}

func TestLRUOverwrite(t *testing.T) {
	c := storage.NewLRU(100)

	require.True(t, c.Put("k", []byte("v1")))
	require.Equal(t, int64(3), c.Size())

	require.True(t, c.Put("k", []byte("value2")))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(7), c.Size())
	v, _ := c.Get("k")
	assert.Equal(t, "value2", string(v))

	require.True(t, c.Put("k", []byte("")))
	assert.Equal(t, int64(1), c.Size())
	checkInvariants(t, c)
}

func TestLRUGrowingUpdateEvictsOthersNotSelf(t *testing.T) {
	c := storage.NewLRU(10)
	c.Put("a", []byte("1111"))
	c.Put("b", []byte("2222"))

	// a is the LRU entry; growing it must evict b, never a itself.
	require.True(t, c.Put("a", []byte("111111111")))

	assert.Equal(t, []string{"a"}, c.Keys())
	assert.Equal(t, int64(10), c.Size())
	checkInvariants(t, c)
}

func TestLRUPutIfAbsent(t *testing.T) {
	c := storage.NewLRU(100)

	assert.True(t, c.PutIfAbsent("k", []byte("v1")))
	assert.False(t, c.PutIfAbsent("k", []byte("v2")))

	v, _ := c.Get("k")
	assert.Equal(t, "v1", string(v))
	assert.Equal(t, int64(3), c.Size())
}

func TestLRUPutIfAbsentExistingDoesNotEvict(t *testing.T) {
	c := storage.NewLRU(4)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	assert.False(t, c.PutIfAbsent("a", []byte("3")))
	assert.Equal(t, []string{"b", "a"}, c.Keys())
}

func TestLRUSetMissing(t *testing.T) {
	c := storage.NewLRU(100)

	assert.False(t, c.Set("k", []byte("v")))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())
}

func TestLRUOversizeRejected(t *testing.T) {
	c := storage.NewLRU(8)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	before := c.Keys()

	assert.False(t, c.Put("big", []byte("123456")))
	assert.False(t, c.PutIfAbsent("big", []byte("123456")))
	assert.False(t, c.Set("a", []byte("12345678")))

	assert.Equal(t, before, c.Keys(), "rejection must not evict")
	assert.Equal(t, int64(4), c.Size())
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestLRUExactCapacityFits(t *testing.T) {
	c := storage.NewLRU(8)
	c.Put("a", []byte("1"))

	require.True(t, c.Put("big", []byte("12345")))
	assert.Equal(t, []string{"big"}, c.Keys())
	assert.Equal(t, int64(8), c.Size())
}

func TestLRUDelete(t *testing.T) {
	c := storage.NewLRU(100)
	c.Put("k", []byte("v"))

	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Size())
	assert.Empty(t, c.Keys())
}

func TestLRUMissDoesNotMutate(t *testing.T) {
	c := storage.NewLRU(100)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	_, ok := c.Get("never")
	assert.False(t, ok)
	assert.Equal(t, []string{"b", "a"}, c.Keys())
	assert.Equal(t, int64(4), c.Size())
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestLRUCompareAndSwap(t *testing.T) {
	c := storage.NewLRU(32)
	c.Put("k", []byte("v1"))

	v, digest, ok := c.GetWithDigest("k")
	require.True(t, ok)
	assert.Equal(t, "v1", string(v))
	assert.Equal(t, storage.Digest([]byte("v1")), digest)

	assert.Equal(t, storage.SwapStored, c.CompareAndSwap("k", digest, []byte("v2")))
	assert.Equal(t, storage.SwapMismatch, c.CompareAndSwap("k", digest, []byte("v3")))
	assert.Equal(t, storage.SwapNotFound, c.CompareAndSwap("nope", digest, []byte("v3")))

	d2 := storage.Digest([]byte("v2"))
	big := make([]byte, 64)
	assert.Equal(t, storage.SwapRejected, c.CompareAndSwap("k", d2, big))

	v, _ = c.Get("k")
	assert.Equal(t, "v2", string(v))
}

func TestLRUPeekKeepsRecencyAndCounters(t *testing.T) {
	c := storage.NewLRU(6)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	v, digest, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, "1", string(v))
	assert.Equal(t, storage.Digest([]byte("1")), digest)

	_, _, ok = c.Peek("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"c", "b", "a"}, c.Keys())
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)

	// a is still the eviction victim.
	c.Put("d", []byte("4"))
	_, _, ok = c.Peek("a")
	assert.False(t, ok)
}

func TestLRUObserverSeesEvictions(t *testing.T) {
	var evicted []string
	c := storage.NewLRU(4, storage.WithObserver(func(key string, value []byte) {
		evicted = append(evicted, key+"="+string(value))
	}))

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))
	c.Delete("b")

	assert.Equal(t, []string{"a=1"}, evicted)
}

func TestLRUAdmissionPolicy(t *testing.T) {
	c := storage.NewLRU(100, storage.WithAdmission(policy.MaxEntryCost{Limit: 5}))

	assert.True(t, c.Put("k", []byte("1234")))
	assert.False(t, c.Put("k2", []byte("12345")))
	assert.False(t, c.Set("k", []byte("12345")))

	v, _ := c.Get("k")
	assert.Equal(t, "1234", string(v))
}

func TestLRUZeroCapacity(t *testing.T) {
	c := storage.NewLRU(0)

	assert.False(t, c.Put("k", []byte("v")))
	assert.Equal(t, 0, c.Len())
}

// TestLRUCapacityInvariant drives random Put/Set/PutIfAbsent/Delete/Get
// sequences and checks the byte accounting after every step.
func TestLRUCapacityInvariant(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*7))
			c := storage.NewLRU(int64(16 + rng.IntN(64)))

			for step := 0; step < 300; step++ {
				key := fmt.Sprintf("k%d", rng.IntN(12))
				value := make([]byte, rng.IntN(24))
				switch rng.IntN(5) {
				case 0:
					c.Put(key, value)
				case 1:
					c.Set(key, value)
				case 2:
					c.PutIfAbsent(key, value)
				case 3:
					c.Delete(key)
				case 4:
					c.Get(key)
				}

				stats := c.Stats()
				var total int64
				for _, k := range c.Keys() {
					v, _, ok := c.Peek(k)
					require.True(t, ok)
					total += int64(len(k) + len(v))
				}
				require.Equal(t, total, stats.Bytes, "step %d", step)
				require.LessOrEqual(t, stats.Bytes, stats.Capacity, "step %d", step)
			}
		})
	}
}

// TestLRUEvictionOrderMatchesModel compares evictions against a simple
// slice-based reference model.
func TestLRUEvictionOrderMatchesModel(t *testing.T) {
	const capacity = 20
	rng := rand.New(rand.NewPCG(42, 99))
	c := storage.NewLRU(capacity)

	type kv struct {
		key   string
		value []byte
	}
	var model []kv // front = most recently used

	cost := func() int {
		n := 0
		for _, e := range model {
			n += len(e.key) + len(e.value)
		}
		return n
	}
	find := func(key string) int {
		for i, e := range model {
			if e.key == key {
				return i
			}
		}
		return -1
	}

	for step := 0; step < 500; step++ {
		key := fmt.Sprintf("%c", 'a'+rng.IntN(8))
		if rng.IntN(3) == 0 {
			_, ok := c.Get(key)
			i := find(key)
			require.Equal(t, i >= 0, ok)
			if i >= 0 {
				e := model[i]
				model = append(model[:i], model[i+1:]...)
				model = append([]kv{e}, model...)
			}
		} else {
			value := make([]byte, rng.IntN(6))
			require.True(t, c.Put(key, value))
			if i := find(key); i >= 0 {
				model = append(model[:i], model[i+1:]...)
			}
			model = append([]kv{{key, value}}, model...)
			for cost() > capacity {
				model = model[:len(model)-1]
			}
		}

		want := make([]string, len(model))
		for i, e := range model {
			want[i] = e.key
		}
		require.Equal(t, want, c.Keys(), "step %d", step)
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := storage.NewLRU(1024)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("key%d", (g*31+i)%64)
				switch i % 4 {
				case 0:
					c.Put(key, []byte(fmt.Sprintf("value-%d-%d", g, i)))
				case 1:
					c.Get(key)
				case 2:
					c.Set(key, []byte("x"))
				case 3:
					if i%8 == 3 {
						c.Delete(key)
					} else {
						c.PutIfAbsent(key, []byte("y"))
					}
				}
			}
		}(g)
	}
	wg.Wait()

	checkInvariants(t, c)
}
