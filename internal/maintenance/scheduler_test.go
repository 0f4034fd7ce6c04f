package maintenance

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/moab-cache/internal/rootdir"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

func newManager(t *testing.T) (*moabcache.Manager, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	base := t.TempDir()
	m, err := moabcache.NewManager(moabcache.ManagerOptions{Resolver: rootdir.Fixed(base), Logger: logger})
	require.NoError(t, err)
	return m, base
}

func seedOrphan(t *testing.T, base string, kind rootdir.Kind, name string, payload []byte) {
	t.Helper()
	dir := filepath.Join(base, kind.DirName(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob"), payload, 0o644))
}

func TestNewWithoutSchedulesRegistersNothing(t *testing.T) {
	m, _ := newManager(t)
	s, err := New(Options{Manager: m})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Jobs())

	s.Start()
	assert.NoError(t, s.Stop(context.Background()))
}

func TestNewRejectsBadSchedule(t *testing.T) {
	m, _ := newManager(t)
	_, err := New(Options{Manager: m, OrphanSweepSchedule: "sometimes"})
	assert.Error(t, err)

	_, err = New(Options{})
	assert.Error(t, err)
}

func TestSweepOrphansKeepsLiveInstances(t *testing.T) {
	m, base := newManager(t)
	live, err := moabcache.Open(m, "live", rootdir.Caches, moabcache.StringCodec{}, moabcache.Options{})
	require.NoError(t, err)
	require.NoError(t, live.SetObject("k", "v"))
	live.Flush()

	seedOrphan(t, base, rootdir.Caches, "stale", []byte("x"))
	seedOrphan(t, base, rootdir.Documents, "old-docs", []byte("y"))

	s, err := New(Options{Manager: m, Kinds: []rootdir.Kind{rootdir.Caches, rootdir.Documents, rootdir.Caches}})
	require.NoError(t, err)

	removed := s.SweepOrphans()
	assert.Equal(t, []string{"stale"}, removed[rootdir.Caches])
	assert.Equal(t, []string{"old-docs"}, removed[rootdir.Documents])
	assert.True(t, live.ObjectExistsForKey("k"))
}

func TestReportSizes(t *testing.T) {
	m, base := newManager(t)
	seedOrphan(t, base, rootdir.Caches, "a", []byte("12345"))

	s, err := New(Options{Manager: m})
	require.NoError(t, err)

	sizes := s.ReportSizes()
	assert.Equal(t, int64(5), sizes[rootdir.Caches])
}

func TestScheduledSweepRuns(t *testing.T) {
	m, base := newManager(t)
	seedOrphan(t, base, rootdir.Caches, "stale", []byte("x"))

	s, err := New(Options{Manager: m, OrphanSweepSchedule: "@every 1s"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())

	s.Start()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(base, rootdir.Caches.DirName(), "stale"))
		return os.IsNotExist(err)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestJobsReadableWhileStarting(t *testing.T) {
	m, _ := newManager(t)
	s, err := New(Options{Manager: m, SizeReportSchedule: "@every 1h"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start()
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, 1, s.Jobs())
		}()
	}
	wg.Wait()
	assert.NoError(t, s.Stop(context.Background()))
}
