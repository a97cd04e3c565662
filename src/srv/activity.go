package srv

import "sync/atomic"

// Activity is bumped by foreground commits and queries. Background
// goroutines compare snapshots of it to decide whether the server is idle.
type Activity struct {
	n atomic.Uint64
}

func (a *Activity) Inc() {
	a.n.Add(1)
}

func (a *Activity) Get() uint64 {
	return a.n.Load()
}

func (a *Activity) Changed(since uint64) bool {
	return a.n.Load() != since
}
