package disk

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogWriteAtLSN(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "data/redo.log")
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("world"), 5)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	buf := make([]byte, 10)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(buf))

	require.NoError(t, f.Close())

	data, err := afero.ReadFile(fs, filepath.Join("data", "redo.log"))
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(data))
}

func TestFileLogReopenKeepsData(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "redo.log")
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = Open(fs, "redo.log")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("d"), 3)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf))
}

func TestFileLogOnOsFs(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(afero.NewOsFs(), filepath.Join(dir, "redo.log"))
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("durable"), 4096)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

func TestFileLogOpenOnReadOnlyFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "redo.log", []byte("x"), 0600))

	_, err := Open(afero.NewReadOnlyFs(fs), "redo.log")
	require.Error(t, err)
}
