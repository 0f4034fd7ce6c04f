package registry

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cachesRoot    = "/var/lib/moab/Caches"
	documentsRoot = "/var/lib/moab/Documents"
)

type instance struct {
	name string
}

func TestRegisterRejectsLiveDuplicate(t *testing.T) {
	reg := New[instance]()
	key := Key{Root: cachesRoot, Name: "images"}
	first := &instance{name: "first"}

	require.NoError(t, reg.Register(key, first))
	err := reg.Register(key, &instance{name: "second"})
	assert.True(t, errors.Is(err, ErrAlreadyActive))

	got, ok := reg.Lookup(key)
	require.True(t, ok)
	assert.Same(t, first, got)

	reg.Unregister(key)
	_, ok = reg.Lookup(key)
	assert.False(t, ok)
	runtime.KeepAlive(first)
}

func TestSameNameDifferentRootsAreIndependent(t *testing.T) {
	reg := New[instance]()
	a := &instance{}
	b := &instance{}
	require.NoError(t, reg.Register(Key{Root: cachesRoot, Name: "x"}, a))
	require.NoError(t, reg.Register(Key{Root: documentsRoot, Name: "x"}, b))
	assert.Equal(t, []string{"x"}, reg.Live(cachesRoot))
	assert.Equal(t, []string{"x"}, reg.Live(documentsRoot))
	assert.Equal(t, 2, reg.Len())
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestLookupOrRegisterBuildsOnce(t *testing.T) {
	reg := New[instance]()
	key := Key{Root: cachesRoot, Name: "shared"}

	var (
		mu     sync.Mutex
		builds int
		wg     sync.WaitGroup
	)
	results := make([]*instance, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, _, err := reg.LookupOrRegister(key, func() (*instance, error) {
				mu.Lock()
				builds++
				mu.Unlock()
				return &instance{name: "shared"}, nil
			})
			assert.NoError(t, err)
			results[i] = inst
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	for _, inst := range results {
		assert.Same(t, results[0], inst)
	}
}

func TestLookupOrRegisterPropagatesBuildError(t *testing.T) {
	reg := New[instance]()
	boom := errors.New("boom")
	_, _, err := reg.LookupOrRegister(Key{Name: "bad"}, func() (*instance, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, reg.Len())
}

func TestCollectedInstanceIsReleased(t *testing.T) {
	reg := New[instance]()
	key := Key{Root: cachesRoot, Name: "ephemeral"}
	func() {
		require.NoError(t, reg.Register(key, &instance{name: "ephemeral"}))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if _, ok := reg.Lookup(key); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok := reg.Lookup(key)
	assert.False(t, ok)

	replacement := &instance{name: "replacement"}
	require.NoError(t, reg.Register(key, replacement))
	runtime.KeepAlive(replacement)
}

type fakeLister struct {
	names   []string
	removed []string
}

func (f *fakeLister) Names() ([]string, error) { return f.names, nil }

func (f *fakeLister) RemoveName(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func TestSweepSkipsLiveInstances(t *testing.T) {
	reg := New[instance]()
	live := &instance{}
	require.NoError(t, reg.Register(Key{Root: cachesRoot, Name: "live"}, live))
	other := &instance{}
	require.NoError(t, reg.Register(Key{Root: documentsRoot, Name: "orphan-b"}, other))

	lister := &fakeLister{names: []string{"live", "orphan-a", "orphan-b"}}
	removed, err := reg.Sweep(cachesRoot, lister)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan-a", "orphan-b"}, removed)
	assert.Equal(t, []string{"orphan-a", "orphan-b"}, lister.removed)
	runtime.KeepAlive(live)
	runtime.KeepAlive(other)
}
