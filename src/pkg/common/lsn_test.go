package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLSNBlock(t *testing.T) {
	assert.Equal(t, uint64(0), LSN(0).Block())
	assert.Equal(t, uint64(0), LSN(1).Block())
	assert.Equal(t, uint64(0), LSN(512).Block())
	assert.Equal(t, uint64(1), LSN(513).Block())
}

func TestMinLSN(t *testing.T) {
	assert.Equal(t, LSN(600), MinLSN(800, 600, 1000))
	assert.Equal(t, LSN(7), MinLSN(7))
}

func TestNoDirtyPages(t *testing.T) {
	_, ok := NoDirtyPages().OldestModification()
	assert.False(t, ok)
}
