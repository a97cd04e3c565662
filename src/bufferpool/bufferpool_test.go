package bufferpool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

type MockPageWriter struct {
	mock.Mock
}

func (m *MockPageWriter) WritePage(pIdent common.PageIdentity) error {
	args := m.Called(pIdent)
	return args.Error(0)
}

func page(id uint64) common.PageIdentity {
	return common.PageIdentity{FileID: 1, PageID: common.PageID(id)}
}

func TestMarkDirtyKeepsOldestLSN(t *testing.T) {
	m := New(nil, zaptest.NewLogger(t).Sugar())

	_, ok := m.OldestModification()
	assert.False(t, ok)

	m.MarkDirty(page(1), 100, 150)
	m.MarkDirty(page(1), 300, 350)
	m.MarkDirty(page(2), 200, 220)

	oldest, ok := m.OldestModification()
	require.True(t, ok)
	assert.Equal(t, common.LSN(100), oldest)

	assert.Equal(t, DirtyEntry{Oldest: 100, Newest: 350}, m.GetDPT()[page(1)])
	assert.Equal(t, 2, m.Len())
}

func TestFlushCandidatesRespectFlushedLSN(t *testing.T) {
	m := New(nil, zaptest.NewLogger(t).Sugar())

	m.MarkDirty(page(1), 300, 350)
	m.MarkDirty(page(2), 100, 120)
	m.MarkDirty(page(3), 200, 900)

	assert.Equal(t, []common.PageIdentity{page(2), page(1)}, m.FlushCandidates(400, 0))
	assert.Equal(t, []common.PageIdentity{page(2)}, m.FlushCandidates(400, 1))
	assert.Empty(t, m.FlushCandidates(50, 0))
}

func TestFlushPage(t *testing.T) {
	w := &MockPageWriter{}
	w.On("WritePage", page(1)).Return(nil).Once()
	m := New(w, zaptest.NewLogger(t).Sugar())

	m.MarkDirty(page(1), 10, 20)
	written, err := m.FlushPage(page(1), 20)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Zero(t, m.Len())

	// clean pages are skipped
	written, err = m.FlushPage(page(1), 20)
	require.NoError(t, err)
	assert.False(t, written)

	// log not durable yet
	m.MarkDirty(page(2), 10, 30)
	written, err = m.FlushPage(page(2), 20)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, 1, m.Len())
	w.AssertExpectations(t)
}

func TestFlushPageRedirtiedAfterSelection(t *testing.T) {
	w := &MockPageWriter{}
	m := New(w, zaptest.NewLogger(t).Sugar())

	m.MarkDirty(page(1), 0, 100)
	require.Equal(t, []common.PageIdentity{page(1)}, m.FlushCandidates(100, 0))

	m.MarkDirty(page(1), 200, 300)

	written, err := m.FlushPage(page(1), 100)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, DirtyEntry{Oldest: 0, Newest: 300}, m.GetDPT()[page(1)])
	w.AssertNotCalled(t, "WritePage", mock.Anything)
}

func TestFlushPageRedirtiedDuringWrite(t *testing.T) {
	w := &MockPageWriter{}
	m := New(w, zaptest.NewLogger(t).Sugar())
	m.MarkDirty(page(1), 10, 20)

	w.On("WritePage", page(1)).Run(func(mock.Arguments) {
		m.MarkDirty(page(1), 40, 50)
	}).Return(nil).Once()

	written, err := m.FlushPage(page(1), 20)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, DirtyEntry{Oldest: 10, Newest: 50}, m.GetDPT()[page(1)])
}

func TestFlushAllPagesJoinsErrors(t *testing.T) {
	w := &MockPageWriter{}
	ioErr := errors.New("io")
	w.On("WritePage", page(1)).Return(ioErr)
	w.On("WritePage", page(2)).Return(nil)
	m := New(w, zaptest.NewLogger(t).Sugar())

	m.MarkDirty(page(1), 1, 2)
	m.MarkDirty(page(2), 3, 4)
	m.MarkDirty(page(3), 5, 100)

	n, err := m.FlushAllPages(10)
	require.ErrorIs(t, err, ioErr)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, m.Len())
}
