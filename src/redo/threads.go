package redo

import "github.com/Blackdeer1524/redopipe/src/srv"

const (
	ThreadWriter        = "log_writer"
	ThreadFlusher       = "log_flusher"
	ThreadWriteNotifier = "log_write_notifier"
	ThreadFlushNotifier = "log_flush_notifier"
	ThreadCloser        = "log_closer"
	ThreadCheckpointer  = "log_checkpointer"
)

type Threads struct {
	Writer        *srv.Handle
	Flusher       *srv.Handle
	WriteNotifier *srv.Handle
	FlushNotifier *srv.Handle
	Closer        *srv.Handle
	Checkpointer  *srv.Handle
}

func (t Threads) All() []*srv.Handle {
	return []*srv.Handle{
		t.Closer,
		t.Writer,
		t.Flusher,
		t.WriteNotifier,
		t.FlushNotifier,
		t.Checkpointer,
	}
}

// Start launches the background threads of the log on r.
func (l *Log) Start(r *srv.Registry) Threads {
	return Threads{
		Closer:  r.Go(ThreadCloser, l.closerEvent.set, l.closerThread),
		Writer:  r.Go(ThreadWriter, l.writerEvent.set, l.writerThread),
		Flusher: r.Go(ThreadFlusher, l.flusherEvent.set, l.flusherThread),
		WriteNotifier: r.Go(ThreadWriteNotifier, l.writeNotifier.wake.set, func(h *srv.Handle) {
			l.writeNotifier.run(h, l.backgroundStrategy(l.cfg.WriteNotifier))
		}),
		FlushNotifier: r.Go(ThreadFlushNotifier, l.flushNotifier.wake.set, func(h *srv.Handle) {
			l.flushNotifier.run(h, l.backgroundStrategy(l.cfg.FlushNotifier))
		}),
		Checkpointer: r.Go(ThreadCheckpointer, nil, l.checkpointerThread),
	}
}

// RegisterShutdown adds the log threads to s. The closer waits for the
// producers named in after; every other thread is stopped only once the
// threads feeding it have joined.
func (t Threads) RegisterShutdown(s *srv.Shutdown, after ...string) error {
	steps := []struct {
		h     *srv.Handle
		after []string
	}{
		{t.Closer, after},
		{t.Writer, after},
		{t.Flusher, []string{ThreadWriter}},
		{t.WriteNotifier, []string{ThreadWriter}},
		{t.FlushNotifier, []string{ThreadFlusher}},
		{t.Checkpointer, []string{ThreadFlusher, ThreadCloser}},
	}
	for _, step := range steps {
		if err := s.Add(step.h, step.after...); err != nil {
			return err
		}
	}
	return nil
}
