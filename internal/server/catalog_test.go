package server

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/any-hub/moab-cache/internal/config"
	"github.com/any-hub/moab-cache/internal/rootdir"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

func TestCatalogLookupAndOrder(t *testing.T) {
	catalog := newTestCatalog(t,
		config.CacheConfig{Name: "b", RootKind: rootdir.Caches},
		config.CacheConfig{Name: "a", RootKind: rootdir.Documents, Compress: true},
	)

	list := catalog.List()
	if len(list) != 2 || list[0].Config.Name != "b" || list[1].Config.Name != "a" {
		t.Fatalf("List 应保持配置顺序: %+v", list)
	}
	entry, ok := catalog.Lookup("a")
	if !ok {
		t.Fatalf("应能找到缓存 a")
	}
	if entry.Cache.RootKind() != rootdir.Documents {
		t.Fatalf("RootKind 不正确: %v", entry.Cache.RootKind())
	}
	if _, ok := catalog.Lookup("missing"); ok {
		t.Fatalf("未配置的缓存不应被找到")
	}
}

func TestCatalogRejectsDuplicateNames(t *testing.T) {
	manager, err := moabcache.NewManager(moabcache.ManagerOptions{
		Resolver: rootdir.Fixed(t.TempDir()),
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("创建 Manager 失败: %v", err)
	}
	cfg := &config.Config{Caches: []config.CacheConfig{{Name: "dup"}, {Name: "dup"}}}
	if _, err := NewCatalog(cfg, manager, quietLogger()); err == nil {
		t.Fatalf("重复缓存名应报错")
	}
}

func TestCatalogPropagatesDirectoryIsFile(t *testing.T) {
	base := t.TempDir()
	kindDir := filepath.Join(base, rootdir.Caches.DirName())
	if err := os.MkdirAll(kindDir, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(filepath.Join(kindDir, "blocked"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入占位文件失败: %v", err)
	}

	manager, err := moabcache.NewManager(moabcache.ManagerOptions{
		Resolver: rootdir.Fixed(base),
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("创建 Manager 失败: %v", err)
	}
	cfg := &config.Config{Caches: []config.CacheConfig{{Name: "blocked"}}}
	_, err = NewCatalog(cfg, manager, quietLogger())
	if !errors.Is(err, moabcache.ErrDirectoryIsFile) {
		t.Fatalf("期望 ErrDirectoryIsFile，得到 %v", err)
	}
}

func TestCompressedObjectsRoundTrip(t *testing.T) {
	catalog := newTestCatalog(t, config.CacheConfig{Name: "packed", Compress: true})
	entry, _ := catalog.Lookup("packed")

	payload := bytes.Repeat([]byte("moab "), 200)
	if err := entry.Cache.SetObject("k", Object(payload)); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	entry.Cache.Flush()
	entry.Cache.ClearMemory()

	got, ok := entry.Cache.ObjectForKey("k")
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("压缩对象应可从磁盘读回")
	}

	path, exists, err := entry.Cache.PathForObjectForKey("k")
	if err != nil || !exists {
		t.Fatalf("应能定位磁盘文件: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat 失败: %v", err)
	}
	if info.Size() >= int64(len(payload)) {
		t.Fatalf("压缩后的文件应小于原始数据: %d", info.Size())
	}
}

func TestObjectMemoryCost(t *testing.T) {
	if cost := Object("abcd").MemoryCost(); cost != 4 {
		t.Fatalf("成本应等于字节数，得到 %d", cost)
	}
}
