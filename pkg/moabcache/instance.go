package moabcache

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/moab-cache/internal/cache"
	"github.com/any-hub/moab-cache/internal/logging"
	"github.com/any-hub/moab-cache/internal/memcache"
	"github.com/any-hub/moab-cache/internal/pathcodec"
	"github.com/any-hub/moab-cache/internal/rootdir"
)

// instanceKey 记录实例的类别与名称，用于日志与 ErrorEvent。
type instanceKey struct {
	Kind rootdir.Kind
	Name string
}

// instance 是同一实例目录下所有 Cache 句柄共享的状态。
type instance struct {
	key     instanceKey
	store   cache.Store
	mem     *memcache.Store
	paths   pathcodec.Codec
	writer  *writer
	logger  *logrus.Logger
	observe ErrorObserver

	// mu 串行化跨两层的变更（写内存 + 入队），以及读盘后的内存回填判断。
	mu sync.Mutex
}

func newInstance(key instanceKey, store cache.Store, paths pathcodec.Codec, logger *logrus.Logger, opts Options) *instance {
	inst := &instance{
		key:     key,
		store:   store,
		paths:   paths,
		logger:  logger,
		observe: opts.ErrorObserver,
	}
	inst.mem = memcache.New(memcache.Options{
		MaxCost:  opts.MaxMemoryCost,
		MaxCount: opts.MaxMemoryCountLimit,
		OnEvict:  inst.onEvict,
	})
	inst.writer = newWriter(store, func(op *diskOp, err error) {
		name := OpWrite
		if op.kind == opDelete {
			name = OpDelete
		}
		inst.report(name, op.key, op.rel, err)
	})
	return inst
}

func (i *instance) fields(action, key string) logrus.Fields {
	return logging.CacheFields(action, i.key.Name, i.key.Kind.String(), key)
}

func (i *instance) onEvict(key string, _ any, cost int64) {
	i.logger.WithFields(i.fields("memory_evict", key)).WithField("cost", cost).Debug("内存层淘汰条目")
}

// report 将磁盘层故障写入日志并转发给观察者；持久化是尽力而为的，从不向调用方抛出。
func (i *instance) report(op, key, rel string, err error) {
	event := ErrorEvent{
		Op:    op,
		Cache: i.key.Name,
		Kind:  i.key.Kind,
		Key:   key,
		Err:   err,
	}
	if rel != "" {
		event.Path = i.store.Path(rel)
	}
	i.logger.WithFields(i.fields("disk_"+op, key)).WithField("path", event.Path).Warn(err.Error())
	if i.observe != nil {
		i.observe(event)
	}
}

func (i *instance) removeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.mem.Clear()
	if err := i.writer.removeAll(context.Background()); err != nil {
		i.report(OpRemoveAll, "", "", err)
	}
}
