package srv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Blackdeer1524/redopipe/src"
)

var (
	ErrUnknownDependency = errors.New("unknown shutdown dependency")
	ErrDuplicateNode     = errors.New("duplicate shutdown node")
	ErrDependencyCycle   = errors.New("shutdown dependencies form a cycle")
)

// Stoppable is a node of the shutdown graph.
type Stoppable interface {
	Name() string
	RequestStop()
	IsActive() bool
}

type releaser interface {
	Release()
}

var _ Stoppable = (*Handle)(nil)
var _ Stoppable = (*Pool)(nil)

// Shutdown stops background goroutines so that no goroutine waits forever
// on a peer that has already exited: a node is stopped only after every
// node it depends on has joined.
type Shutdown struct {
	phase *Phase
	log   src.Logger

	nodes map[string]Stoppable
	deps  map[string][]string
	order []string

	PollInterval time.Duration
	WarnEvery    time.Duration
}

func NewShutdown(phase *Phase, log src.Logger) *Shutdown {
	return &Shutdown{
		phase:        phase,
		log:          log,
		nodes:        map[string]Stoppable{},
		deps:         map[string][]string{},
		PollInterval: time.Millisecond,
		WarnEvery:    10 * time.Second,
	}
}

// Add registers n. Every name in after must already be registered and will
// be stopped and joined before n is asked to stop.
func (s *Shutdown) Add(n Stoppable, after ...string) error {
	name := n.Name()
	if _, ok := s.nodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	for _, dep := range after {
		if _, ok := s.nodes[dep]; !ok {
			return fmt.Errorf("%w: %s (required by %s)", ErrUnknownDependency, dep, name)
		}
	}

	s.nodes[name] = n
	s.deps[name] = append([]string(nil), after...)
	s.order = append(s.order, name)
	return nil
}

// Levels groups nodes so that every node's dependencies live in earlier
// levels. Nodes of one level are independent of each other.
func (s *Shutdown) Levels() ([][]string, error) {
	level := make(map[string]int, len(s.order))
	remaining := len(s.order)

	for remaining > 0 {
		progress := false
		for _, name := range s.order {
			if _, done := level[name]; done {
				continue
			}

			lvl, ready := 0, true
			for _, dep := range s.deps[name] {
				depLvl, ok := level[dep]
				if !ok {
					ready = false
					break
				}
				lvl = max(lvl, depLvl+1)
			}
			if !ready {
				continue
			}

			level[name] = lvl
			remaining--
			progress = true
		}

		if !progress {
			return nil, ErrDependencyCycle
		}
	}

	var levels [][]string
	for _, name := range s.order {
		lvl := level[name]
		for len(levels) <= lvl {
			levels = append(levels, nil)
		}
		levels[lvl] = append(levels[lvl], name)
	}
	return levels, nil
}

// Run walks the graph level by level. It returns early with ctx's error
// when some node refuses to join in time.
func (s *Shutdown) Run(ctx context.Context) error {
	levels, err := s.Levels()
	if err != nil {
		return err
	}

	s.phase.Advance(PhaseThreadsExiting)

	for _, names := range levels {
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range names {
			node := s.nodes[name]
			g.Go(func() error {
				return s.stopNode(gctx, node)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	s.phase.Advance(PhaseStopped)
	s.log.Infow("all background threads stopped")
	return nil
}

func (s *Shutdown) stopNode(ctx context.Context, n Stoppable) error {
	n.RequestStop()

	start := time.Now()
	lastWarn := start
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for n.IsActive() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("thread %s did not exit: %w", n.Name(), ctx.Err())
		case now := <-ticker.C:
			if now.Sub(lastWarn) >= s.WarnEvery {
				lastWarn = now
				s.log.Warnw(
					"waiting for background thread to exit",
					"thread", n.Name(),
					"waited", now.Sub(start),
				)
			}
			// a stop request can race with the goroutine going to sleep
			n.RequestStop()
		}
	}

	if r, ok := n.(releaser); ok {
		r.Release()
	}
	return nil
}
