package assert

import (
	"fmt"
)

// Assert panics when cond is false. Used for invariants whose violation means
// the ordering contract itself is broken, so there is nothing to recover.
func Assert(cond bool, msgAndArgs ...any) {
	if cond {
		return
	}

	if len(msgAndArgs) == 0 {
		panic("assertion failed")
	}

	format, ok := msgAndArgs[0].(string)
	if !ok {
		panic(fmt.Sprintf("assertion failed: %+v", msgAndArgs))
	}
	panic("assertion failed: " + fmt.Sprintf(format, msgAndArgs[1:]...))
}

func NoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("unexpected error: %+v", err))
	}
}

func Cast[T any](v any) T {
	res, ok := v.(T)
	Assert(ok, "couldn't cast %T to %T", v, res)
	return res
}
