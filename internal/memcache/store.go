// Package memcache implements the memory tier: a cost- and count-bounded LRU
// holding decoded values. It never touches disk; evicted entries are only
// reported through the eviction callback.
package memcache

import (
	"container/list"
	"sync"
)

// EvictFunc 在条目因容量或内存压力被淘汰时调用，调用时不持有锁。
type EvictFunc func(key string, value any, cost int64)

// Options 描述容量上限，0 表示不限制。
type Options struct {
	MaxCost  int64
	MaxCount int
	OnEvict  EvictFunc
}

// Store 是线程安全的 LRU，链表头部为最近使用，尾部为最久未使用。
type Store struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	cost     int64
	maxCost  int64
	maxCount int
	onEvict  EvictFunc
}

type entry struct {
	key   string
	value any
	cost  int64
}

type victim struct {
	key   string
	value any
	cost  int64
}

// New 创建内存层。
func New(opts Options) *Store {
	return &Store{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxCost:  clampCost(opts.MaxCost),
		maxCount: max(opts.MaxCount, 0),
		onEvict:  opts.OnEvict,
	}
}

// Insert 写入或替换条目，value 为 nil 时等价于 Remove。写入后执行淘汰。
func (s *Store) Insert(key string, value any, cost int64) {
	if value == nil {
		s.Remove(key)
		return
	}
	cost = clampCost(cost)

	s.mu.Lock()
	if elem, ok := s.items[key]; ok {
		e := elem.Value.(*entry)
		s.cost += cost - e.cost
		e.value = value
		e.cost = cost
		s.order.MoveToFront(elem)
	} else {
		s.items[key] = s.order.PushFront(&entry{key: key, value: value, cost: cost})
		s.cost += cost
	}
	victims := s.evictLocked()
	s.mu.Unlock()

	s.notify(victims)
}

// Lookup 返回缓存值，并将条目标记为最近使用。
func (s *Store) Lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	return elem.Value.(*entry).value, true
}

// Contains 判断 key 是否存在，不改变淘汰顺序。
func (s *Store) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// Remove 删除条目，不存在时忽略。
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
}

// Clear 清空全部条目，不触发淘汰回调。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.cost = 0
}

// Purge 响应宿主的内存压力信号：逐个淘汰全部条目并回调，返回淘汰数量。
func (s *Store) Purge() int {
	s.mu.Lock()
	victims := make([]victim, 0, s.order.Len())
	for s.order.Len() > 0 {
		victims = append(victims, s.removeElement(s.order.Back()))
	}
	s.mu.Unlock()

	s.notify(victims)
	return len(victims)
}

// SetLimits 同时调整成本与数量上限，并立即执行淘汰。
func (s *Store) SetLimits(maxCost int64, maxCount int) {
	s.mu.Lock()
	s.maxCost = clampCost(maxCost)
	s.maxCount = max(maxCount, 0)
	victims := s.evictLocked()
	s.mu.Unlock()

	s.notify(victims)
}

// SetMaxCost 调整成本上限。
func (s *Store) SetMaxCost(maxCost int64) {
	s.SetLimits(maxCost, s.MaxCount())
}

// SetMaxCount 调整数量上限。
func (s *Store) SetMaxCount(maxCount int) {
	s.SetLimits(s.MaxCost(), maxCount)
}

// MaxCost 返回当前成本上限。
func (s *Store) MaxCost() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCost
}

// MaxCount 返回当前数量上限。
func (s *Store) MaxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCount
}

// TotalCost 返回当前所有条目成本之和。
func (s *Store) TotalCost() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cost
}

// Len 返回条目数量。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Keys 按最久未使用 → 最近使用的顺序返回 key。
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, s.order.Len())
	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}

// evictLocked 从尾部逐个移除条目，每次移除后重新检查两个上限。
func (s *Store) evictLocked() []victim {
	var victims []victim
	for s.order.Len() > 0 && s.overLimitLocked() {
		victims = append(victims, s.removeElement(s.order.Back()))
	}
	return victims
}

func (s *Store) overLimitLocked() bool {
	if s.maxCost > 0 && s.cost > s.maxCost {
		return true
	}
	return s.maxCount > 0 && s.order.Len() > s.maxCount
}

func (s *Store) removeElement(elem *list.Element) victim {
	e := elem.Value.(*entry)
	s.order.Remove(elem)
	delete(s.items, e.key)
	s.cost -= e.cost
	return victim{key: e.key, value: e.value, cost: e.cost}
}

func (s *Store) notify(victims []victim) {
	if s.onEvict == nil {
		return
	}
	for _, v := range victims {
		s.onEvict(v.key, v.value, v.cost)
	}
}

func clampCost(cost int64) int64 {
	if cost < 0 {
		return 0
	}
	return cost
}
