package srv

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t).Sugar())

	var woken atomic.Int32
	h := r.Go("writer", func() { woken.Add(1) }, func(h *Handle) {
		for !h.StopRequested() {
			<-h.WakeCh()
		}
	})

	assert.Equal(t, "writer", h.Name())
	assert.True(t, r.IsActive(h))
	assert.Equal(t, []string{"writer"}, r.Active())

	h.RequestStop()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("thread did not join")
	}

	assert.False(t, r.IsActive(h))
	assert.Equal(t, StateJoined, h.State())
	assert.Empty(t, r.Active())
	assert.GreaterOrEqual(t, woken.Load(), int32(1))
}

func TestRegistryStoppedPhaseStopsEveryone(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t).Sugar())
	h := r.Go("closer", nil, func(h *Handle) {
		for !h.StopRequested() {
			select {
			case <-h.WakeCh():
			case <-time.After(time.Millisecond):
			}
		}
	})

	r.Phase().Advance(PhaseStopped)
	require.Eventually(t, func() bool { return !h.IsActive() }, 5*time.Second, time.Millisecond)
}

func TestPoolCoordinatorDispatch(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t).Sugar())

	const tasks = 100
	var done atomic.Int32
	p, err := r.NewPool("purge", 4, func(pc *PoolContext) {
		for range tasks {
			pc.Dispatch(func() { done.Add(1) })
		}
		for !pc.StopRequested() {
			pc.RunPending()
			<-pc.Handle().WakeCh()
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 4, p.Size())
	assert.Equal(t, RoleCoordinator, p.Role(p.Coordinator()))
	assert.Equal(t, RoleWorker, p.Role(p.Handles()[1]))
	assert.Equal(t, "purge/0", p.Coordinator().Name())

	require.Eventually(t, func() bool { return done.Load() == tasks }, 5*time.Second, time.Millisecond)

	p.RequestStop()
	require.Eventually(t, func() bool { return !p.IsActive() }, 5*time.Second, time.Millisecond)
	assert.Equal(t, uint64(tasks), p.Executed())
	p.Release()
}

func TestPoolSingleThreadRunsInline(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t).Sugar())

	var done atomic.Int32
	p, err := r.NewPool("lru", 1, func(pc *PoolContext) {
		pc.Dispatch(func() { done.Add(1) })
		for !pc.StopRequested() {
			<-pc.Handle().WakeCh()
		}
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return done.Load() == 1 }, 5*time.Second, time.Millisecond)
	p.RequestStop()
	require.Eventually(t, func() bool { return !p.IsActive() }, 5*time.Second, time.Millisecond)
	p.Release()
}

func TestPoolRejectsZeroThreads(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t).Sugar())
	_, err := r.NewPool("page-cleaner", 0, func(*PoolContext) {})
	require.ErrorIs(t, err, ErrEmptyPool)
}
