package redo

import "errors"

var (
	ErrShutdown       = errors.New("redo log is shutting down")
	ErrWaitAbandoned  = errors.New("wait abandoned due to shutdown")
	ErrLogFailed      = errors.New("redo log failed")
	ErrRecordTooLarge = errors.New("record does not fit into the log buffer")
	ErrInvalidConfig  = errors.New("invalid redo log config")
)
