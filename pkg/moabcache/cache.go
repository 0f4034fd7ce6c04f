package moabcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/any-hub/moab-cache/internal/cache"
	"github.com/any-hub/moab-cache/internal/rootdir"
)

// Cache 是绑定了值类型 V 的句柄。同名实例的多个句柄共享内存层与磁盘层。
type Cache[V any] struct {
	inst  *instance
	codec Codec[V]
}

// Name 返回实例名。
func (c *Cache[V]) Name() string {
	return c.inst.key.Name
}

// RootKind 返回实例所在的根目录类别。
func (c *Cache[V]) RootKind() rootdir.Kind {
	return c.inst.key.Kind
}

// Dir 返回实例在磁盘上的根目录。
func (c *Cache[V]) Dir() string {
	return c.inst.store.Root()
}

// ValidateKey 按实例的 key 规则校验 key，不合法时返回 ErrInvalidKey。
func (c *Cache[V]) ValidateKey(key string) error {
	_, err := c.inst.paths.Encode(key)
	return err
}

// SetObject 写入内存层并异步落盘。value 为 nil（指针、切片、map 等）时等价于 RemoveObjectForKey。
// 只有 key 校验失败与编码失败会同步返回错误，落盘失败交给 ErrorObserver。
func (c *Cache[V]) SetObject(key string, value V) error {
	rel, err := c.inst.paths.Encode(key)
	if err != nil {
		return err
	}
	if isNil(value) {
		return c.RemoveObjectForKey(key)
	}

	data, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	c.inst.mu.Lock()
	c.inst.mem.Insert(key, value, costOf(value))
	c.inst.writer.enqueueWrite(key, rel, data)
	c.inst.mu.Unlock()
	return nil
}

// Set 是 SetObject 的下标语法糖。
func (c *Cache[V]) Set(key string, value V) error {
	return c.SetObject(key, value)
}

// ObjectForKey 先查内存层；未命中时读取尚未落盘的写入或磁盘文件，解码后回填内存层。
// 磁盘缺失、读失败与解码失败都退化为未命中。
func (c *Cache[V]) ObjectForKey(key string) (V, bool) {
	var zero V
	rel, err := c.inst.paths.Encode(key)
	if err != nil {
		return zero, false
	}

	if raw, ok := c.inst.mem.Lookup(key); ok {
		if value, ok := raw.(V); ok {
			return value, true
		}
	}

	seq := c.inst.writer.sequence()
	data, isWrite, found := c.inst.writer.pending(rel)
	if found && !isWrite {
		return zero, false
	}
	if !found {
		data, err = c.inst.store.Read(context.Background(), rel)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				c.inst.report(OpRead, key, rel, err)
			}
			return zero, false
		}
	}

	value, err := c.codec.Unmarshal(data)
	if err != nil {
		c.inst.report(OpDecode, key, rel, err)
		return zero, false
	}

	c.inst.mu.Lock()
	if c.inst.writer.sequence() == seq {
		c.inst.mem.Insert(key, value, costOf(value))
	}
	c.inst.mu.Unlock()
	return value, true
}

// Get 是 ObjectForKey 的下标语法糖。
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.ObjectForKey(key)
}

// ObjectExistsForKey 判断内存层、待落盘队列或磁盘文件中是否存在该 key。
func (c *Cache[V]) ObjectExistsForKey(key string) bool {
	rel, err := c.inst.paths.Encode(key)
	if err != nil {
		return false
	}
	if c.inst.mem.Contains(key) {
		return true
	}
	if _, isWrite, found := c.inst.writer.pending(rel); found {
		return isWrite
	}
	return c.inst.store.Exists(rel)
}

// RemoveObjectForKey 从两层删除条目。磁盘删除排在该 key 之前的写入之后执行，
// 调用返回时已完成；删除失败只记录日志，不向调用方返回。
func (c *Cache[V]) RemoveObjectForKey(key string) error {
	rel, err := c.inst.paths.Encode(key)
	if err != nil {
		return err
	}

	c.inst.mu.Lock()
	c.inst.mem.Remove(key)
	done := c.inst.writer.enqueueDelete(key, rel)
	c.inst.mu.Unlock()

	<-done
	return nil
}

// RemoveAllObjects 清空内存层并删除整个实例目录。
func (c *Cache[V]) RemoveAllObjects() {
	c.inst.removeAll()
}

// ClearMemory 仅清空内存层，磁盘不受影响。
func (c *Cache[V]) ClearMemory() {
	c.inst.mem.Clear()
}

// HandleMemoryPressure 供宿主在内存紧张时调用，淘汰内存层全部条目。
func (c *Cache[V]) HandleMemoryPressure() int {
	evicted := c.inst.mem.Purge()
	c.inst.logger.WithFields(c.inst.fields("memory_pressure", "")).WithField("evicted", evicted).Info("响应内存压力")
	return evicted
}

// PathForObjectForKey 仅在文件当前存在时返回其磁盘路径；key 为空时返回 ErrInvalidKey。
func (c *Cache[V]) PathForObjectForKey(key string) (string, bool, error) {
	rel, err := c.inst.paths.Encode(key)
	if err != nil {
		return "", false, err
	}
	if !c.inst.store.Exists(rel) {
		return "", false, nil
	}
	return c.inst.store.Path(rel), true, nil
}

// SetMaxMemoryCost 调整内存层成本上限，0 表示不限制。
func (c *Cache[V]) SetMaxMemoryCost(cost int64) {
	c.inst.mem.SetMaxCost(cost)
}

// MaxMemoryCost 返回内存层成本上限。
func (c *Cache[V]) MaxMemoryCost() int64 {
	return c.inst.mem.MaxCost()
}

// SetMaxMemoryCountLimit 调整内存层条目数上限，0 表示不限制。
func (c *Cache[V]) SetMaxMemoryCountLimit(limit int) {
	c.inst.mem.SetMaxCount(limit)
}

// MaxMemoryCountLimit 返回内存层条目数上限。
func (c *Cache[V]) MaxMemoryCountLimit() int {
	return c.inst.mem.MaxCount()
}

// Flush 阻塞到此前入队的磁盘操作全部完成。
func (c *Cache[V]) Flush() {
	c.inst.writer.wait()
}

// Stats 返回内存层与写队列的快照。
func (c *Cache[V]) Stats() Stats {
	return Stats{
		MemoryCost:          c.inst.mem.TotalCost(),
		MemoryCount:         c.inst.mem.Len(),
		MaxMemoryCost:       c.inst.mem.MaxCost(),
		MaxMemoryCountLimit: c.inst.mem.MaxCount(),
		PendingWrites:       c.inst.writer.pendingCount(),
	}
}

// DiskSize 统计实例目录占用的字节数。
func (c *Cache[V]) DiskSize() (int64, error) {
	return c.inst.store.TotalSize()
}

func costOf(value any) int64 {
	if coster, ok := value.(Coster); ok {
		return coster.MemoryCost()
	}
	return 1
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
