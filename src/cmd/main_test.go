package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/redopipe/src/pkg/common"
	"github.com/Blackdeer1524/redopipe/src/storage/checkpoint"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCheckpointCommand(t *testing.T) {
	dir := t.TempDir()
	assert.Contains(t, runRoot(t, "checkpoint", "--data-dir", dir), "no checkpoint")

	id := uuid.New()
	store := checkpoint.NewFileStore(afero.NewOsFs(), filepath.Join(dir, "checkpoint"))
	require.NoError(t, store.Store(common.CheckpointRecord{LSN: 4096, EngineID: id, CreatedAt: time.Now()}))

	out := runRoot(t, "checkpoint", "--data-dir", dir)
	assert.Contains(t, out, "lsn=4096")
	assert.Contains(t, out, id.String())
}

func TestRunCommandRejectsBadFlags(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"run", "--writers", "0"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}
