package srv

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants"

	"github.com/Blackdeer1524/redopipe/src"
)

var ErrEmptyPool = errors.New("pool must have at least one thread")

type Role int

const (
	RoleCoordinator Role = iota
	RoleWorker
)

// CoordinatorFunc is the body of a pool's coordinator (handle 0). It
// returns once pc.StopRequested() becomes true.
type CoordinatorFunc func(pc *PoolContext)

// Pool is a runtime-sized group of goroutines sharing one task queue. The
// coordinator is handle 0: it produces tasks, dispatches them to the other
// members and executes tasks itself when nobody else can.
type Pool struct {
	name    string
	handles []*Handle
	tasks   chan func()
	quit    chan struct{}
	workers *ants.Pool
	log     src.Logger

	quitOnce    sync.Once
	releaseOnce sync.Once
	executed    atomic.Uint64
}

type PoolContext struct {
	pool   *Pool
	handle *Handle
}

func (pc *PoolContext) Handle() *Handle {
	return pc.handle
}

func (pc *PoolContext) StopRequested() bool {
	return pc.handle.StopRequested()
}

// Dispatch hands task to a worker. With no workers, or once the workers are
// shutting down, the coordinator runs it inline.
func (pc *PoolContext) Dispatch(task func()) {
	p := pc.pool
	if len(p.handles) == 1 {
		p.run(task)
		return
	}

	select {
	case p.tasks <- task:
	case <-p.quit:
		p.run(task)
	}
}

// RunPending executes queued tasks on the coordinator without blocking.
func (pc *PoolContext) RunPending() int {
	return pc.pool.drain()
}

// NewPool starts a pool of `threads` goroutines on an ants pool. The
// coordinator runs body; the rest execute dispatched tasks until stopped.
func (r *Registry) NewPool(name string, threads int, body CoordinatorFunc) (*Pool, error) {
	if threads <= 0 {
		return nil, fmt.Errorf("pool %s: %w", name, ErrEmptyPool)
	}

	workers, err := ants.NewPool(threads)
	if err != nil {
		return nil, fmt.Errorf("pool %s: failed to create goroutine pool: %w", name, err)
	}

	p := &Pool{
		name:    name,
		tasks:   make(chan func(), threads*4),
		quit:    make(chan struct{}),
		workers: workers,
		log:     r.log,
	}

	for i := range threads {
		h := r.register(fmt.Sprintf("%s/%d", name, i), nil)
		h.state.Store(int32(StateRunning))
		p.handles = append(p.handles, h)
	}

	for i, h := range p.handles {
		var fn func()
		if i == 0 {
			fn = func() {
				defer r.join(h)
				body(&PoolContext{pool: p, handle: h})
				// tasks dispatched after the workers drained the queue
				p.drain()
			}
		} else {
			fn = func() {
				defer r.join(h)
				p.workerLoop()
			}
		}

		if err := workers.Submit(fn); err != nil {
			for _, notStarted := range p.handles[i:] {
				notStarted.state.Store(int32(StateJoined))
				close(notStarted.done)
			}
			p.RequestStop()
			return nil, fmt.Errorf("pool %s: failed to start thread %d: %w", name, i, err)
		}
	}

	r.log.Infow("thread pool started", "pool", name, "threads", threads)
	return p, nil
}

func (p *Pool) workerLoop() {
	for {
		select {
		case task := <-p.tasks:
			p.run(task)
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *Pool) run(task func()) {
	task()
	p.executed.Add(1)
}

func (p *Pool) drain() int {
	n := 0
	for {
		select {
		case task := <-p.tasks:
			p.run(task)
			n++
		default:
			return n
		}
	}
}

func (p *Pool) Name() string {
	return p.name
}

func (p *Pool) Size() int {
	return len(p.handles)
}

// Coordinator returns handle 0.
func (p *Pool) Coordinator() *Handle {
	return p.handles[0]
}

func (p *Pool) Handles() []*Handle {
	return p.handles
}

func (p *Pool) Role(h *Handle) Role {
	if h == p.handles[0] {
		return RoleCoordinator
	}
	return RoleWorker
}

// Executed is the number of tasks run so far by any member.
func (p *Pool) Executed() uint64 {
	return p.executed.Load()
}

func (p *Pool) RequestStop() {
	for _, h := range p.handles {
		h.RequestStop()
	}
	p.quitOnce.Do(func() { close(p.quit) })
}

func (p *Pool) IsActive() bool {
	for _, h := range p.handles {
		if h.IsActive() {
			return true
		}
	}
	return false
}

// Release frees the underlying goroutine pool. Call it after the pool has
// stopped.
func (p *Pool) Release() {
	p.releaseOnce.Do(func() {
		p.workers.Release()
	})
}
