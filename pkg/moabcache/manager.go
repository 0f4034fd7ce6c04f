package moabcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/cache"
	"github.com/any-hub/moab-cache/internal/pathcodec"
	"github.com/any-hub/moab-cache/internal/registry"
	"github.com/any-hub/moab-cache/internal/rootdir"
)

// ManagerOptions 注入平台目录解析、日志与 key 长度上限。
type ManagerOptions struct {
	Resolver     rootdir.Resolver
	Logger       *logrus.Logger
	MaxKeyLength int
}

// instances 是进程级的实例表，以实例目录的绝对路径为键。所有 Manager 共用这一张表，
// 因此同一目录在进程内至多只有一个存活实例，清理时也能看到其他 Manager 打开的实例。
var instances = registry.New[instance]()

// Manager 负责把根目录类别解析为磁盘根，并在进程级实例表上打开、清理实例。
// 由宿主显式创建并传递；多个 Manager 指向同一目录时共享实例。
type Manager struct {
	resolver rootdir.Resolver
	logger   *logrus.Logger
	paths    pathcodec.Codec

	mu    sync.Mutex
	roots map[rootdir.Kind]*cache.Root
}

// InstanceInfo 描述一个存活实例，供诊断接口输出。
type InstanceInfo struct {
	Kind rootdir.Kind `json:"root_kind"`
	Name string       `json:"name"`
}

// NewManager 构建 Manager；未指定 Resolver 时使用 go-app-paths 的平台目录。
func NewManager(opts ManagerOptions) (*Manager, error) {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = rootdir.Platform{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		resolver: resolver,
		logger:   logger,
		paths:    pathcodec.New(opts.MaxKeyLength),
		roots:    make(map[rootdir.Kind]*cache.Root),
	}, nil
}

// Open 打开 (kind, name) 对应的实例。若该实例已存活，返回共享同一实例的新句柄，
// opts 被忽略；codec 总是按句柄生效。
func Open[V any](m *Manager, name string, kind rootdir.Kind, codec Codec[V], opts Options) (*Cache[V], error) {
	if m == nil {
		return nil, errors.New("manager required")
	}
	if codec == nil {
		return nil, errors.New("codec required")
	}
	root, err := m.root(kind)
	if err != nil {
		return nil, fmt.Errorf("open cache %s/%s: %w", kind, name, err)
	}
	key := registry.Key{Root: root.Dir(), Name: name}

	inst, loaded, err := instances.LookupOrRegister(key, func() (*instance, error) {
		store, err := root.Store(name)
		if err != nil {
			return nil, err
		}
		return newInstance(instanceKey{Kind: kind, Name: name}, store, m.paths, m.logger, opts), nil
	})
	if err != nil {
		return nil, fmt.Errorf("open cache %s/%s: %w", kind, name, err)
	}

	fields := logrus.Fields{
		"action":    "cache_open",
		"cache":     name,
		"root_kind": kind.String(),
		"reused":    loaded,
		"dir":       inst.store.Root(),
	}
	m.logger.WithFields(fields).Debug("缓存实例就绪")

	return &Cache[V]{inst: inst, codec: codec}, nil
}

// RemoveAllNameCache 删除默认类别（Caches）下所有没有存活实例的缓存目录。
func (m *Manager) RemoveAllNameCache() ([]string, error) {
	return m.RemoveAllNameCacheByRootKind(rootdir.Caches)
}

// RemoveAllNameCacheByRootKind 删除 kind 下所有没有存活实例的缓存目录，
// 包括此前进程遗留的目录；存活实例的目录保持不动。
func (m *Manager) RemoveAllNameCacheByRootKind(kind rootdir.Kind) ([]string, error) {
	root, err := m.root(kind)
	if err != nil {
		return nil, err
	}
	removed, err := instances.Sweep(root.Dir(), root)
	m.logger.WithFields(logrus.Fields{
		"action":    "remove_orphans",
		"root_kind": kind.String(),
		"removed":   removed,
	}).Info("清理无主缓存目录")
	return removed, err
}

// ListNamesUnder 枚举 kind 下磁盘上存在的缓存名。
func (m *Manager) ListNamesUnder(kind rootdir.Kind) ([]string, error) {
	root, err := m.root(kind)
	if err != nil {
		return nil, err
	}
	return root.Names()
}

// StatisticsCacheFolderSize 统计默认类别下所有缓存名目录的字节数。
func (m *Manager) StatisticsCacheFolderSize() (int64, error) {
	return m.StatisticsFolderSizeByRootKind(rootdir.Caches)
}

// StatisticsFolderSizeByRootKind 统计 kind 下所有缓存名目录的字节数。
func (m *Manager) StatisticsFolderSizeByRootKind(kind rootdir.Kind) (int64, error) {
	root, err := m.root(kind)
	if err != nil {
		return 0, err
	}
	size, err := root.TotalSize()
	if err != nil {
		return 0, fmt.Errorf("statistics %s: %w", kind, err)
	}
	m.logger.WithFields(logrus.Fields{
		"action":    "folder_size",
		"root_kind": kind.String(),
		"bytes":     size,
		"human":     humanize.IBytes(uint64(size)),
	}).Debug("统计缓存目录大小")
	return size, nil
}

// Instances 返回本 Manager 各类别目录下存活的实例，包括其他 Manager 打开的同目录实例。
func (m *Manager) Instances() []InstanceInfo {
	var out []InstanceInfo
	for _, kind := range rootdir.Kinds() {
		root, err := m.root(kind)
		if err != nil {
			continue
		}
		for _, name := range instances.Live(root.Dir()) {
			out = append(out, InstanceInfo{Kind: kind, Name: name})
		}
	}
	return out
}

func (m *Manager) root(kind rootdir.Kind) (*cache.Root, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if root, ok := m.roots[kind]; ok {
		return root, nil
	}
	dir, err := m.resolver.Dir(kind)
	if err != nil {
		return nil, fmt.Errorf("resolve %s directory: %w", kind, err)
	}
	root, err := cache.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	m.roots[kind] = root
	return root, nil
}
