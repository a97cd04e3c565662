package redo

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

type mockLogFile struct {
	mock.Mock
}

var _ common.LogFile = &mockLogFile{}

func (m *mockLogFile) WriteAt(p []byte, off int64) (int, error) {
	// the writer reuses its buffer
	args := m.Called(append([]byte(nil), p...), off)
	return args.Int(0), args.Error(1)
}

func (m *mockLogFile) Sync() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockLogFile) Close() error {
	args := m.Called()
	return args.Error(0)
}

type mockCheckpointStore struct {
	mock.Mock
}

var _ common.CheckpointStore = &mockCheckpointStore{}

func (m *mockCheckpointStore) Load() (common.CheckpointRecord, bool, error) {
	args := m.Called()
	return args.Get(0).(common.CheckpointRecord), args.Bool(1), args.Error(2)
}

func (m *mockCheckpointStore) Store(rec common.CheckpointRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

// memStore keeps every stored record.
type memStore struct {
	mu      sync.Mutex
	records []common.CheckpointRecord
}

var _ common.CheckpointStore = &memStore{}

func (s *memStore) Load() (common.CheckpointRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return common.CheckpointRecord{}, false, nil
	}
	return s.records[len(s.records)-1], true, nil
}

func (s *memStore) Store(rec common.CheckpointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

func (s *memStore) last() (common.CheckpointRecord, bool) {
	rec, ok, _ := s.Load()
	return rec, ok
}

type fixedDirtyPages struct {
	lsn common.LSN
	ok  bool
}

func (d fixedDirtyPages) OldestModification() (common.LSN, bool) {
	return d.lsn, d.ok
}

type fixedCPU float64

func (c fixedCPU) Percent() float64 {
	return float64(c)
}
