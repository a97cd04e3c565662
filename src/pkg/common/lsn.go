package common

import "fmt"

// LSN is a byte offset into the logical (infinite) redo stream.
type LSN uint64

const NilLSN LSN = 0

// BlockSize is the granularity used to map LSNs onto notifier events.
const BlockSize = 512

func (l LSN) Block() uint64 {
	if l == 0 {
		return 0
	}
	return uint64(l-1) / BlockSize
}

func (l LSN) String() string {
	return fmt.Sprintf("lsn(%d)", uint64(l))
}

func MinLSN(first LSN, rest ...LSN) LSN {
	res := first
	for _, l := range rest {
		if l < res {
			res = l
		}
	}
	return res
}
