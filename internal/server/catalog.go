package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/config"
	"github.com/any-hub/moab-cache/pkg/moabcache"
)

// CacheEntry 将缓存配置与打开后的句柄聚合在一起，供路由层直接复用。
type CacheEntry struct {
	// Config 是 config.toml 中声明的字段副本。
	Config config.CacheConfig
	// Cache 在构建 Catalog 时打开，进程存活期间一直持有，保证实例不被当作无主目录清理。
	Cache *moabcache.Cache[Object]

	faults    atomic.Int64
	lastFault atomic.Value
}

// Faults 返回启动以来的异步磁盘故障次数与最近一次故障描述。
func (e *CacheEntry) Faults() (int64, string) {
	last, _ := e.lastFault.Load().(string)
	return e.faults.Load(), last
}

func (e *CacheEntry) observe(event moabcache.ErrorEvent) {
	e.faults.Add(1)
	e.lastFault.Store(fmt.Sprintf("%s %s: %v", event.Op, event.Key, event.Err))
}

// Catalog 提供缓存名到 CacheEntry 的查询能力。
type Catalog struct {
	manager *moabcache.Manager
	entries map[string]*CacheEntry
	ordered []*CacheEntry
}

// NewCatalog 根据配置逐个打开缓存实例。调用方应在启动阶段创建一次并复用。
func NewCatalog(cfg *config.Config, manager *moabcache.Manager, logger *logrus.Logger) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if manager == nil {
		return nil, errors.New("manager is nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	catalog := &Catalog{
		manager: manager,
		entries: make(map[string]*CacheEntry, len(cfg.Caches)),
	}

	for _, entry := range cfg.Caches {
		if _, exists := catalog.entries[entry.Name]; exists {
			return nil, fmt.Errorf("duplicate cache name detected for %s", entry.Name)
		}

		item := &CacheEntry{Config: entry}
		opened, err := moabcache.Open(manager, entry.Name, entry.RootKind, ObjectCodec(entry.Compress), moabcache.Options{
			MaxMemoryCost:       entry.MaxMemoryCost,
			MaxMemoryCountLimit: entry.MaxMemoryCountLimit,
			ErrorObserver:       item.observe,
		})
		if err != nil {
			return nil, fmt.Errorf("open cache %s: %w", entry.Name, err)
		}
		item.Cache = opened

		catalog.entries[entry.Name] = item
		catalog.ordered = append(catalog.ordered, item)
	}

	logger.WithFields(logrus.Fields{
		"action": "catalog_ready",
		"caches": config.CacheSummaries(cfg.Caches),
	}).Info("缓存实例装配完成")
	return catalog, nil
}

// Lookup 根据缓存名查找 CacheEntry。
func (c *Catalog) Lookup(name string) (*CacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries[name]
	return entry, ok
}

// List 按配置顺序返回所有缓存。
func (c *Catalog) List() []*CacheEntry {
	if c == nil || len(c.ordered) == 0 {
		return nil
	}
	return append([]*CacheEntry(nil), c.ordered...)
}

// Manager 返回打开这些实例的 Manager，供管理接口执行目录级操作。
func (c *Catalog) Manager() *moabcache.Manager {
	if c == nil {
		return nil
	}
	return c.manager
}

// Flush 等待所有缓存的排队写入落盘，用于优雅退出。
func (c *Catalog) Flush() {
	for _, entry := range c.List() {
		entry.Cache.Flush()
	}
}
