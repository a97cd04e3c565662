package src

import "go.uber.org/zap"

// Logger is the subset of *zap.SugaredLogger the engine depends on.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Infof(template string, args ...any)
	Sync() error
}

var _ Logger = (*zap.SugaredLogger)(nil)

func NopLogger() Logger {
	return zap.NewNop().Sugar()
}
