package checkpoint

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/pkg/utils"
)

var ErrCorrupted = errors.New("checkpoint file is corrupted")

const (
	recordMagic   uint32 = 0x52434b50
	recordVersion uint32 = 1
)

// record is the on-disk layout. Fields are ordered so that the struct has
// no implicit padding.
type record struct {
	Magic     uint32
	Version   uint32
	LSN       uint64
	CreatedAt int64
	EngineID  [16]byte
	Checksum  uint32
	_         [4]byte
}

const recordSize = int(unsafe.Sizeof(record{}))

func (r record) checksum() uint32 {
	r.Checksum = 0
	return crc32.ChecksumIEEE(utils.ToBytes(r))
}

// FileStore keeps the latest checkpoint in a single small file. A new
// checkpoint is written to a temporary file and renamed over the old one,
// so a crash leaves either the old or the new record.
type FileStore struct {
	fs   afero.Fs
	path string

	mu sync.Mutex
}

var _ common.CheckpointStore = &FileStore{}

func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{
		fs:   fs,
		path: filepath.Clean(path),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

func isFileExists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Load() (common.CheckpointRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := isFileExists(s.fs, s.path)
	if err != nil {
		return common.CheckpointRecord{}, false, fmt.Errorf("failed to check checkpoint file: %w", err)
	}
	if !ok {
		return common.CheckpointRecord{}, false, nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return common.CheckpointRecord{}, false, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	if len(data) != recordSize {
		return common.CheckpointRecord{}, false, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrCorrupted,
			recordSize,
			len(data),
		)
	}

	r := utils.FromBytes[record](data)
	if r.Magic != recordMagic {
		return common.CheckpointRecord{}, false, fmt.Errorf("%w: bad magic %#x", ErrCorrupted, r.Magic)
	}
	if r.Version != recordVersion {
		return common.CheckpointRecord{}, false, fmt.Errorf("%w: unknown version %d", ErrCorrupted, r.Version)
	}
	if r.checksum() != r.Checksum {
		return common.CheckpointRecord{}, false, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}

	return common.CheckpointRecord{
		LSN:       common.LSN(r.LSN),
		EngineID:  uuid.UUID(r.EngineID),
		CreatedAt: time.Unix(0, r.CreatedAt),
	}, true, nil
}

func (s *FileStore) Store(rec common.CheckpointRecord) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := record{
		Magic:     recordMagic,
		Version:   recordVersion,
		LSN:       uint64(rec.LSN),
		CreatedAt: rec.CreatedAt.UnixNano(),
		EngineID:  rec.EngineID,
	}
	r.Checksum = r.checksum()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp := s.path + ".tmp"
	file, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	_, err = file.Write(utils.ToBytes(r))
	if err != nil {
		return errors.Join(fmt.Errorf("failed to write checkpoint file: %w", err), file.Close())
	}

	err = file.Sync()
	if err != nil {
		return errors.Join(fmt.Errorf("failed to sync checkpoint file: %w", err), file.Close())
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	err = s.fs.Rename(tmp, s.path)
	if err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}
