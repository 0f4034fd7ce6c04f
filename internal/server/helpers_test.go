package server

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/config"
	"github.com/any-hub/moab-cache/internal/rootdir"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestCatalog(t *testing.T, caches ...config.CacheConfig) *Catalog {
	t.Helper()

	if len(caches) == 0 {
		caches = []config.CacheConfig{{Name: "images", RootKind: rootdir.Caches, MaxMemoryCountLimit: 8}}
	}
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000, StoragePath: t.TempDir()},
		Caches: caches,
	}
	manager, err := moabcache.NewManager(moabcache.ManagerOptions{
		Resolver: cfg.Global.Resolver(),
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("创建 Manager 失败: %v", err)
	}
	catalog, err := NewCatalog(cfg, manager, quietLogger())
	if err != nil {
		t.Fatalf("创建 Catalog 失败: %v", err)
	}
	t.Cleanup(catalog.Flush)
	return catalog
}
