package checkpoint

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

func TestRecordHasNoPadding(t *testing.T) {
	assert.Equal(t, 48, recordSize)
}

func TestFileStoreEmpty(t *testing.T) {
	s := NewFileStore(afero.NewMemMapFs(), "data/checkpoint")

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "data/checkpoint")

	id := uuid.New()
	now := time.Now()
	for _, lsn := range []common.LSN{600, 1200} {
		require.NoError(t, s.Store(common.CheckpointRecord{LSN: lsn, EngineID: id, CreatedAt: now}))
	}

	rec, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.LSN(1200), rec.LSN)
	assert.Equal(t, id, rec.EngineID)
	assert.True(t, now.Equal(rec.CreatedAt))

	exists, err := afero.Exists(fs, "data/checkpoint.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	// a second store over the same fs sees the record
	rec, ok, err = NewFileStore(fs, "data/checkpoint").Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.LSN(1200), rec.LSN)
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "checkpoint")
	require.NoError(t, s.Store(common.CheckpointRecord{LSN: 42, EngineID: uuid.New(), CreatedAt: time.Now()}))

	data, err := afero.ReadFile(fs, "checkpoint")
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[9] ^= 0xff
	require.NoError(t, afero.WriteFile(fs, "checkpoint", flipped, 0600))
	_, _, err = s.Load()
	require.ErrorIs(t, err, ErrCorrupted)

	require.NoError(t, afero.WriteFile(fs, "checkpoint", data[:10], 0600))
	_, _, err = s.Load()
	require.ErrorIs(t, err, ErrCorrupted)

	garbage := append([]byte(nil), data...)
	copy(garbage, []byte{0, 0, 0, 0})
	require.NoError(t, afero.WriteFile(fs, "checkpoint", garbage, 0600))
	_, _, err = s.Load()
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestFileStoreFailureKeepsPreviousRecord(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, NewFileStore(base, "checkpoint").Store(common.CheckpointRecord{LSN: 7, CreatedAt: time.Now()}))

	ro := NewFileStore(afero.NewReadOnlyFs(base), "checkpoint")
	require.Error(t, ro.Store(common.CheckpointRecord{LSN: 9, CreatedAt: time.Now()}))

	rec, ok, err := ro.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.LSN(7), rec.LSN)
}
