package srv

import "time"

// RunMonitor is the body of the monitor thread: it samples CPU usage every
// `every` and then calls report, if any.
func (m *CPUMonitor) RunMonitor(h *Handle, every time.Duration, report func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for !h.StopRequested() {
		select {
		case now := <-ticker.C:
			m.Sample(now)
			if report != nil {
				report()
			}
		case <-h.WakeCh():
		}
	}
}
