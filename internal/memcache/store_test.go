package memcache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLookupRemove(t *testing.T) {
	store := New(Options{})
	store.Insert("a", "alpha", 3)

	value, ok := store.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", value)
	assert.Equal(t, int64(3), store.TotalCost())
	assert.Equal(t, 1, store.Len())

	store.Remove("a")
	store.Remove("a")
	_, ok = store.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), store.TotalCost())
	assert.Equal(t, 0, store.Len())
}

func TestInsertReplacesCost(t *testing.T) {
	store := New(Options{})
	store.Insert("a", "v1", 5)
	store.Insert("a", "v2", 2)

	value, _ := store.Lookup("a")
	assert.Equal(t, "v2", value)
	assert.Equal(t, int64(2), store.TotalCost())
	assert.Equal(t, 1, store.Len())
}

func TestInsertNilRemoves(t *testing.T) {
	store := New(Options{})
	store.Insert("a", "v1", 1)
	store.Insert("a", nil, 1)
	assert.False(t, store.Contains("a"))
	assert.Equal(t, int64(0), store.TotalCost())
}

func TestCountLimitEvictsLeastRecentlyInserted(t *testing.T) {
	var evicted []string
	store := New(Options{MaxCount: 2, OnEvict: func(key string, _ any, _ int64) {
		evicted = append(evicted, key)
	}})
	store.Insert("A", 1, 1)
	store.Insert("B", 2, 1)
	store.Insert("C", 3, 1)

	assert.Equal(t, []string{"B", "C"}, store.Keys())
	assert.Equal(t, []string{"A"}, evicted)
}

func TestLookupRefreshesRecency(t *testing.T) {
	store := New(Options{MaxCount: 2})
	store.Insert("A", 1, 1)
	store.Insert("B", 2, 1)
	_, _ = store.Lookup("A")
	store.Insert("C", 3, 1)

	assert.Equal(t, []string{"A", "C"}, store.Keys())
}

func TestContainsDoesNotRefreshRecency(t *testing.T) {
	store := New(Options{MaxCount: 2})
	store.Insert("A", 1, 1)
	store.Insert("B", 2, 1)
	assert.True(t, store.Contains("A"))
	store.Insert("C", 3, 1)

	assert.Equal(t, []string{"B", "C"}, store.Keys())
}

func TestCostLimitHoldsAfterEveryInsert(t *testing.T) {
	store := New(Options{MaxCost: 10})
	for i := 0; i < 50; i++ {
		store.Insert(fmt.Sprintf("k%d", i), i, int64(i%4+1))
		require.LessOrEqual(t, store.TotalCost(), int64(10))
	}
}

func TestCostLimitEvictsExactlyLRUVictims(t *testing.T) {
	var evicted []string
	store := New(Options{MaxCost: 6, OnEvict: func(key string, _ any, _ int64) {
		evicted = append(evicted, key)
	}})
	store.Insert("a", 1, 2)
	store.Insert("b", 1, 2)
	store.Insert("c", 1, 2)
	_, _ = store.Lookup("a")
	store.Insert("d", 1, 3)

	assert.Equal(t, []string{"b", "c"}, evicted)
	assert.Equal(t, []string{"a", "d"}, store.Keys())
	assert.Equal(t, int64(5), store.TotalCost())
}

func TestOversizedEntryEmptiesStore(t *testing.T) {
	store := New(Options{MaxCost: 4})
	store.Insert("small", 1, 1)
	store.Insert("huge", 1, 10)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, int64(0), store.TotalCost())
}

func TestSetLimitsEvictsImmediately(t *testing.T) {
	store := New(Options{})
	for i := 0; i < 5; i++ {
		store.Insert(fmt.Sprintf("k%d", i), i, 1)
	}
	store.SetMaxCount(2)
	assert.Equal(t, []string{"k3", "k4"}, store.Keys())
	store.SetMaxCost(1)
	assert.Equal(t, []string{"k4"}, store.Keys())
	assert.Equal(t, 1, store.MaxCount())
	assert.Equal(t, int64(1), store.MaxCost())
}

func TestClearAndPurge(t *testing.T) {
	evicted := 0
	store := New(Options{OnEvict: func(string, any, int64) { evicted++ }})
	store.Insert("a", 1, 1)
	store.Insert("b", 1, 1)
	store.Clear()
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, evicted)

	store.Insert("a", 1, 1)
	store.Insert("b", 1, 1)
	assert.Equal(t, 2, store.Purge())
	assert.Equal(t, 2, evicted)
	assert.Equal(t, int64(0), store.TotalCost())
}

func TestConcurrentInsertKeepsInvariants(t *testing.T) {
	store := New(Options{MaxCost: 64, MaxCount: 16})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", g, i%20)
				store.Insert(key, i, int64(i%5))
				store.Lookup(key)
				if i%7 == 0 {
					store.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.TotalCost(), int64(64))
	assert.LessOrEqual(t, store.Len(), 16)
}
