package srv

import (
	"sync"
	"sync/atomic"

	"github.com/Blackdeer1524/redopipe/src"
	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
)

type State int32

const (
	StateNotStarted State = iota
	StateRunning
	StateStopping
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateJoined:
		return "joined"
	}
	return "unknown"
}

// Handle tracks the lifecycle of one background goroutine.
type Handle struct {
	name  string
	phase *Phase

	state  atomic.Int32
	stop   atomic.Bool
	wakeCh chan struct{}
	wakeFn func()
	done   chan struct{}
}

func newHandle(name string, phase *Phase, wake func()) *Handle {
	return &Handle{
		name:   name,
		phase:  phase,
		wakeCh: make(chan struct{}, 1),
		wakeFn: wake,
		done:   make(chan struct{}),
	}
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) IsActive() bool {
	s := h.State()
	return s == StateRunning || s == StateStopping
}

// StopRequested is the loop condition of every background goroutine.
func (h *Handle) StopRequested() bool {
	return h.stop.Load() || h.phase.Get() == PhaseStopped
}

// RequestStop asks the goroutine to drain its remaining work and exit.
func (h *Handle) RequestStop() {
	h.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	h.stop.Store(true)
	h.Wake()
}

// Wake interrupts the goroutine's current sleep.
func (h *Handle) Wake() {
	select {
	case h.wakeCh <- struct{}{}:
	default:
	}
	if h.wakeFn != nil {
		h.wakeFn()
	}
}

// WakeCh fires after Wake for goroutines that sleep on it directly.
func (h *Handle) WakeCh() <-chan struct{} {
	return h.wakeCh
}

// Done is closed once the goroutine has joined.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type Registry struct {
	phase *Phase
	log   src.Logger

	mu      sync.Mutex
	handles []*Handle
}

func NewRegistry(log src.Logger) *Registry {
	return &Registry{
		phase: &Phase{},
		log:   log,
	}
}

func (r *Registry) Phase() *Phase {
	return r.phase
}

// Go registers a handle and runs body on a new goroutine. wake may be nil;
// when set it is invoked every time the handle is woken, so bodies that
// sleep on their own events can be interrupted.
func (r *Registry) Go(name string, wake func(), body func(h *Handle)) *Handle {
	h := r.register(name, wake)
	h.state.Store(int32(StateRunning))

	go func() {
		defer r.join(h)
		r.log.Infow("background thread started", "thread", name)
		body(h)
	}()

	return h
}

func (r *Registry) register(name string, wake func()) *Handle {
	h := newHandle(name, r.phase, wake)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, h)
	return h
}

func (r *Registry) join(h *Handle) {
	// log first: nothing may touch the logger once the handle reads as joined
	r.log.Infow("background thread exited", "thread", h.name)

	prev := h.state.Swap(int32(StateJoined))
	assert.Assert(
		State(prev) == StateRunning || State(prev) == StateStopping,
		"thread %s joined twice",
		h.name,
	)
	close(h.done)
}

func (r *Registry) IsActive(h *Handle) bool {
	return h.IsActive()
}

func (r *Registry) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]*Handle, len(r.handles))
	copy(res, r.handles)
	return res
}

// Active lists the names of goroutines that have not joined yet.
func (r *Registry) Active() []string {
	var names []string
	for _, h := range r.Handles() {
		if h.IsActive() {
			names = append(names, h.name)
		}
	}
	return names
}

// WakeAll wakes every registered goroutine.
func (r *Registry) WakeAll() {
	for _, h := range r.Handles() {
		h.Wake()
	}
}
