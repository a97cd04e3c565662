package common

type noDirtyPages struct{}

var _ DirtyPageTracker = noDirtyPages{}

// NoDirtyPages is used when the engine runs without a buffer pool attached.
func NoDirtyPages() DirtyPageTracker {
	return noDirtyPages{}
}

func (noDirtyPages) OldestModification() (LSN, bool) {
	return NilLSN, false
}
