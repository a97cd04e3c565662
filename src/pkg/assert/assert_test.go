package assert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssert(t *testing.T) {
	require.NotPanics(t, func() { Assert(true, "never %d", 1) })
	require.PanicsWithValue(t, "assertion failed", func() { Assert(false) })
	require.PanicsWithValue(
		t,
		"assertion failed: flushed 5 > written 3",
		func() { Assert(false, "flushed %d > written %d", 5, 3) },
	)
}

func TestNoError(t *testing.T) {
	require.NotPanics(t, func() { NoError(nil) })
	require.Panics(t, func() { NoError(errors.New("boom")) })
}

func TestCast(t *testing.T) {
	require.Equal(t, 42, Cast[int](any(42)))
	require.Panics(t, func() { _ = Cast[string](any(42)) })
}
