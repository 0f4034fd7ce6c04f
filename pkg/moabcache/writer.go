package moabcache

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/any-hub/moab-cache/internal/cache"
)

type opKind int

const (
	opWrite opKind = iota
	opDelete
)

// diskOp 是一次排队的磁盘操作；gen 记录入队时的代次，RemoveAllObjects 之后旧代次的操作直接丢弃。
type diskOp struct {
	kind opKind
	key  string
	rel  string
	data []byte
	gen  uint64
	done chan error
}

// writer 为每个 key 维护 FIFO 队列，同一 key 的操作由单个 goroutine 顺序执行，
// 不同 key 之间的顺序不作保证。
type writer struct {
	store  cache.Store
	report func(op *diskOp, err error)

	mu       sync.Mutex
	idle     *sync.Cond
	queues   map[string][]*diskOp
	gen      uint64
	seq      uint64
	inflight int

	// exec 让 removeAll 与正在执行的单条操作互斥。
	exec sync.RWMutex
}

func newWriter(store cache.Store, report func(*diskOp, error)) *writer {
	w := &writer{
		store:  store,
		report: report,
		queues: make(map[string][]*diskOp),
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

func (w *writer) enqueueWrite(key, rel string, data []byte) {
	w.enqueue(&diskOp{kind: opWrite, key: key, rel: rel, data: data})
}

// enqueueDelete 返回的 channel 在删除执行（或因代次过期被跳过）后收到结果。
func (w *writer) enqueueDelete(key, rel string) <-chan error {
	done := make(chan error, 1)
	w.enqueue(&diskOp{kind: opDelete, key: key, rel: rel, done: done})
	return done
}

func (w *writer) enqueue(op *diskOp) {
	w.mu.Lock()
	op.gen = w.gen
	w.seq++
	q, busy := w.queues[op.rel]
	w.queues[op.rel] = append(q, op)
	w.inflight++
	w.mu.Unlock()

	if !busy {
		go w.drain(op.rel)
	}
}

func (w *writer) drain(rel string) {
	for {
		w.mu.Lock()
		q := w.queues[rel]
		if len(q) == 0 {
			delete(w.queues, rel)
			w.mu.Unlock()
			return
		}
		op := q[0]
		w.mu.Unlock()

		err := w.run(op)

		w.mu.Lock()
		w.queues[rel] = w.queues[rel][1:]
		w.inflight--
		if w.inflight == 0 {
			w.idle.Broadcast()
		}
		w.mu.Unlock()

		if op.done != nil {
			op.done <- err
		}
	}
}

func (w *writer) run(op *diskOp) (err error) {
	w.exec.RLock()
	defer w.exec.RUnlock()

	w.mu.Lock()
	stale := op.gen != w.gen
	w.mu.Unlock()
	if stale {
		return nil
	}

	var pc panics.Catcher
	pc.Try(func() {
		switch op.kind {
		case opWrite:
			err = w.store.Write(context.Background(), op.rel, op.data)
		case opDelete:
			err = w.store.Delete(context.Background(), op.rel)
		}
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}
	if err != nil && w.report != nil {
		w.report(op, err)
	}
	return err
}

// pending 返回 rel 最近一次尚未落盘的操作；found 为 false 表示队列中没有当前代次的操作。
func (w *writer) pending(rel string) (data []byte, isWrite bool, found bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	q := w.queues[rel]
	for i := len(q) - 1; i >= 0; i-- {
		op := q[i]
		if op.gen != w.gen {
			continue
		}
		return op.data, op.kind == opWrite, true
	}
	return nil, false, false
}

// sequence 在每次入队或 removeAll 时递增，用于判断读盘期间是否发生过变更。
func (w *writer) sequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *writer) pendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inflight
}

// removeAll 等待正在执行的操作结束后推进代次并删除实例目录，
// 之后才轮到执行的旧操作会被跳过，不会让文件复活。
func (w *writer) removeAll(ctx context.Context) error {
	w.exec.Lock()
	defer w.exec.Unlock()

	w.mu.Lock()
	w.gen++
	w.seq++
	w.mu.Unlock()

	return w.store.DeleteAll(ctx)
}

// wait 阻塞到所有已入队操作完成。
func (w *writer) wait() {
	w.mu.Lock()
	for w.inflight > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()
}
