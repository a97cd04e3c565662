package bufferpool

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/Blackdeer1524/redopipe/src"
	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

// PageWriter persists a page. The page cleaner calls it only once the log
// covering the page's changes is durable.
type PageWriter interface {
	WritePage(pIdent common.PageIdentity) error
}

type discardWriter struct{}

func (discardWriter) WritePage(common.PageIdentity) error { return nil }

// DiscardWriter drops page writes. It stands in for a page store when the
// engine runs without one.
func DiscardWriter() PageWriter {
	return discardWriter{}
}

// DirtyEntry is the DPT record of one page: the LSN of the change that first
// dirtied it and of the latest change.
type DirtyEntry struct {
	Oldest common.LSN
	Newest common.LSN
}

// Manager keeps the dirty page table. Mini-transactions register the pages
// they modified before closing their log range; the page cleaner writes
// pages back once their newest change is flushed.
type Manager struct {
	mu  sync.Mutex
	DPT map[common.PageIdentity]DirtyEntry

	writer PageWriter
	log    src.Logger
}

var _ common.DirtyPageTracker = &Manager{}

func New(writer PageWriter, log src.Logger) *Manager {
	if writer == nil {
		writer = DiscardWriter()
	}
	return &Manager{
		DPT:    map[common.PageIdentity]DirtyEntry{},
		writer: writer,
		log:    log,
	}
}

// MarkDirty records that the page was modified by the log range
// [start, end). A page that is already dirty keeps its oldest LSN.
func (m *Manager) MarkDirty(pIdent common.PageIdentity, start, end common.LSN) {
	assert.Assert(start <= end, "invalid range [%d, %d) for %s", start, end, pIdent)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.markDirtyAssumeLocked(pIdent, start, end)
}

func (m *Manager) markDirtyAssumeLocked(pIdent common.PageIdentity, start, end common.LSN) {
	e, ok := m.DPT[pIdent]
	if !ok {
		m.DPT[pIdent] = DirtyEntry{Oldest: start, Newest: end}
		return
	}
	e.Newest = max(e.Newest, end)
	m.DPT[pIdent] = e
}

func (m *Manager) OldestModification() (common.LSN, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		oldest common.LSN
		found  bool
	)
	for _, e := range m.DPT {
		if !found || e.Oldest < oldest {
			oldest = e.Oldest
			found = true
		}
	}
	return oldest, found
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.DPT)
}

func (m *Manager) GetDPT() map[common.PageIdentity]DirtyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Clone(m.DPT)
}

// FlushCandidates lists up to limit pages whose changes are all below
// flushedLSN, oldest first. A non-positive limit means no limit.
func (m *Manager) FlushCandidates(flushedLSN common.LSN, limit int) []common.PageIdentity {
	m.mu.Lock()
	type candidate struct {
		pIdent common.PageIdentity
		oldest common.LSN
	}
	var candidates []candidate
	for pIdent, e := range m.DPT {
		if e.Newest <= flushedLSN {
			candidates = append(candidates, candidate{pIdent, e.Oldest})
		}
	}
	m.mu.Unlock()

	slices.SortFunc(candidates, func(a, b candidate) int {
		switch {
		case a.oldest < b.oldest:
			return -1
		case a.oldest > b.oldest:
			return 1
		}
		return 0
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	res := make([]common.PageIdentity, len(candidates))
	for i, c := range candidates {
		res[i] = c.pIdent
	}
	return res
}

// FlushPage writes the page back and drops it from the DPT. A page that
// carries changes above flushedLSN, for example one dirtied again after it
// was picked as a candidate, is left alone and reported as not written. A
// page dirtied again while being written stays in the DPT.
func (m *Manager) FlushPage(pIdent common.PageIdentity, flushedLSN common.LSN) (bool, error) {
	m.mu.Lock()
	e, ok := m.DPT[pIdent]
	m.mu.Unlock()
	if !ok || e.Newest > flushedLSN {
		return false, nil
	}

	if err := m.writer.WritePage(pIdent); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.DPT[pIdent]
	if ok && cur == e {
		delete(m.DPT, pIdent)
	}
	return true, nil
}

// FlushAllPages writes back every page whose log is durable and returns the
// number of pages written.
func (m *Manager) FlushAllPages(flushedLSN common.LSN) (int, error) {
	var (
		err     error
		flushed int
	)
	for _, pIdent := range m.FlushCandidates(flushedLSN, 0) {
		written, ferr := m.FlushPage(pIdent, flushedLSN)
		if ferr != nil {
			err = errors.Join(err, ferr)
			continue
		}
		if written {
			flushed++
		}
	}
	if err != nil {
		m.log.Warnw("failed to flush some dirty pages", "flushed", flushed, "error", err)
	}
	return flushed, err
}
