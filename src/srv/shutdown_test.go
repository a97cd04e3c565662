package srv

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeNode struct {
	name   string
	active atomic.Bool
	stuck  bool

	mu    *sync.Mutex
	order *[]string
	peers []*fakeNode
}

func (n *fakeNode) Name() string { return n.name }

func (n *fakeNode) IsActive() bool { return n.active.Load() }

func (n *fakeNode) RequestStop() {
	if n.stuck || !n.active.Load() {
		return
	}
	for _, p := range n.peers {
		if p.IsActive() {
			panic(n.name + " stopped before " + p.name)
		}
	}

	n.mu.Lock()
	*n.order = append(*n.order, n.name)
	n.mu.Unlock()
	n.active.Store(false)
}

func newFakes(names ...string) (map[string]*fakeNode, *[]string) {
	var mu sync.Mutex
	order := []string{}
	res := map[string]*fakeNode{}
	for _, name := range names {
		n := &fakeNode{name: name, mu: &mu, order: &order}
		n.active.Store(true)
		res[name] = n
	}
	return res, &order
}

func TestShutdownDependencyOrder(t *testing.T) {
	nodes, order := newFakes("purge", "closer", "writer", "flusher", "write_notifier", "checkpointer")
	nodes["writer"].peers = []*fakeNode{nodes["purge"]}
	nodes["flusher"].peers = []*fakeNode{nodes["writer"]}
	nodes["write_notifier"].peers = []*fakeNode{nodes["flusher"]}
	nodes["checkpointer"].peers = []*fakeNode{nodes["flusher"]}

	var phase Phase
	s := NewShutdown(&phase, zaptest.NewLogger(t).Sugar())
	require.NoError(t, s.Add(nodes["purge"]))
	require.NoError(t, s.Add(nodes["closer"], "purge"))
	require.NoError(t, s.Add(nodes["writer"], "purge"))
	require.NoError(t, s.Add(nodes["flusher"], "writer"))
	require.NoError(t, s.Add(nodes["write_notifier"], "flusher"))
	require.NoError(t, s.Add(nodes["checkpointer"], "flusher", "closer"))

	levels, err := s.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"purge"},
		{"closer", "writer"},
		{"flusher"},
		{"write_notifier", "checkpointer"},
	}, levels)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, PhaseStopped, phase.Get())
	assert.Len(t, *order, 6)
	assert.Equal(t, "purge", (*order)[0])
	assert.Equal(t, "flusher", (*order)[3])
}

func TestShutdownRejectsUnknownAndDuplicate(t *testing.T) {
	nodes, _ := newFakes("writer", "flusher")
	s := NewShutdown(&Phase{}, zaptest.NewLogger(t).Sugar())

	require.ErrorIs(t, s.Add(nodes["flusher"], "writer"), ErrUnknownDependency)
	require.NoError(t, s.Add(nodes["writer"]))
	require.ErrorIs(t, s.Add(nodes["writer"]), ErrDuplicateNode)
}

func TestShutdownTimesOutOnStuckNode(t *testing.T) {
	nodes, _ := newFakes("flusher")
	nodes["flusher"].stuck = true

	var phase Phase
	s := NewShutdown(&phase, zaptest.NewLogger(t).Sugar())
	s.WarnEvery = time.Millisecond
	require.NoError(t, s.Add(nodes["flusher"]))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, PhaseThreadsExiting, phase.Get())
}
