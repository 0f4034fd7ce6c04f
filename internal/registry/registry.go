// Package registry 维护进程内 (根目录, name) → 活跃缓存实例的映射，
// 并负责清理磁盘上没有活跃实例的缓存名目录。根目录使用解析后的绝对路径，
// 因此指向同一目录的不同 Manager 看到的是同一张表。
package registry

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"weak"
)

// ErrAlreadyActive 表示同一 (root, name) 已有存活实例。
var ErrAlreadyActive = errors.New("cache instance already active")

// Key 唯一标识一个缓存实例：Root 为根目录类别解析后的绝对路径，Name 为其下的缓存名。
type Key struct {
	Root string
	Name string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Root, k.Name)
}

// NameLister 抽象某个根目录类别下的磁盘目录枚举与删除能力。
type NameLister interface {
	Names() ([]string, error)
	RemoveName(name string) error
}

// Registry 仅持有实例的弱引用：实例被回收后自动注销，不会阻止 GC。
// 进程启动时为空，从不持久化。
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[Key]weak.Pointer[T]
}

// New 创建空注册表。
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[Key]weak.Pointer[T])}
}

// Register 登记实例；若已有存活实例则返回 ErrAlreadyActive。
func (r *Registry[T]) Register(key Key, inst *T) error {
	if inst == nil {
		return errors.New("instance required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.liveLocked(key); ok {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, key)
	}
	r.storeLocked(key, inst)
	return nil
}

// Lookup 返回存活实例。
func (r *Registry[T]) Lookup(key Key) (*T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked(key)
}

// LookupOrRegister 在同一临界区内完成“查找 → 构建 → 登记”，并发构造同名实例时
// 只有一个 build 会执行，其余调用拿到同一实例。loaded 表示返回的是既有实例。
func (r *Registry[T]) LookupOrRegister(key Key, build func() (*T, error)) (inst *T, loaded bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.liveLocked(key); ok {
		return existing, true, nil
	}
	inst, err = build()
	if err != nil {
		return nil, false, err
	}
	if inst == nil {
		return nil, false, errors.New("build returned nil instance")
	}
	r.storeLocked(key, inst)
	return inst, false, nil
}

// Unregister 移除登记，不存在时忽略。
func (r *Registry[T]) Unregister(key Key) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Live 返回根目录 root 下当前存活的实例名。
func (r *Registry[T]) Live(root string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for key := range r.entries {
		if key.Root != root {
			continue
		}
		if _, ok := r.liveLocked(key); ok {
			names = append(names, key.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Len 返回存活实例数量。
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for key := range r.entries {
		if _, ok := r.liveLocked(key); ok {
			count++
		}
	}
	return count
}

// Sweep 删除 root 下所有没有存活实例的磁盘目录，返回被删除的名称。
// 整个过程持有注册表锁，避免与同名实例的构造交错。
func (r *Registry[T]) Sweep(root string, lister NameLister) ([]string, error) {
	if lister == nil {
		return nil, errors.New("name lister required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	names, err := lister.Names()
	if err != nil {
		return nil, fmt.Errorf("list names under %s: %w", root, err)
	}

	var (
		removed []string
		errs    []error
	)
	for _, name := range names {
		if _, ok := r.liveLocked(Key{Root: root, Name: name}); ok {
			continue
		}
		if err := lister.RemoveName(name); err != nil {
			errs = append(errs, fmt.Errorf("remove %s/%s: %w", root, name, err))
			continue
		}
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

func (r *Registry[T]) liveLocked(key Key) (*T, bool) {
	wp, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	inst := wp.Value()
	if inst == nil {
		delete(r.entries, key)
		return nil, false
	}
	return inst, true
}

func (r *Registry[T]) storeLocked(key Key, inst *T) {
	wp := weak.Make(inst)
	r.entries[key] = wp
	runtime.AddCleanup(inst, func(dead weak.Pointer[T]) {
		r.release(key, dead)
	}, wp)
}

// release 仅在槽位仍指向已回收实例时才删除，避免误删之后登记的新实例。
func (r *Registry[T]) release(key Key, dead weak.Pointer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[key]; ok && current == dead {
		delete(r.entries, key)
	}
}
