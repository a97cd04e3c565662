package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

// FileLog stores the redo stream in a single file. The byte with LSN l is
// kept at offset l.
type FileLog struct {
	path string
	file afero.File
}

var _ common.LogFile = &FileLog{}

func Open(fs afero.Fs, path string) (*FileLog, error) {
	path = filepath.Clean(path)

	if err := fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &FileLog{path: path, file: file}, nil
}

func (f *FileLog) Path() string {
	return f.path
}

func (f *FileLog) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.file.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("failed to write %d bytes at %d to %s: %w", len(p), off, f.path, err)
	}
	return n, nil
}

func (f *FileLog) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

// Sync makes written data durable. Metadata is only synced where the
// platform offers nothing cheaper.
func (f *FileLog) Sync() error {
	if err := syncData(f.file); err != nil {
		return fmt.Errorf("failed to sync %s: %w", f.path, err)
	}
	return nil
}

func (f *FileLog) Size() (int64, error) {
	st, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (f *FileLog) Close() error {
	err := f.file.Sync()
	return errors.Join(err, f.file.Close())
}
