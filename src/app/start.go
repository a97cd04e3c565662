package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/redopipe/src"
	"github.com/Blackdeer1524/redopipe/src/engine"
	"github.com/Blackdeer1524/redopipe/src/pkg/utils"
)

const CloseTimeout = 15 * time.Second

type Entrypoint struct {
	Env envVars
	Fs  afero.Fs

	e   *engine.Engine
	log src.Logger
}

func NewLogger(environment string) src.Logger {
	if environment == EnvDev {
		return utils.Must(zap.NewDevelopment()).Sugar()
	}
	return utils.Must(zap.NewProduction()).Sugar()
}

// Init loads the environment unless Env was filled in by the caller and
// opens the engine.
func (e *Entrypoint) Init(_ context.Context) error {
	if e.Env.Environment == "" {
		e.Env = mustLoadEnv()
	}
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}

	e.log = NewLogger(e.Env.Environment)

	eng, err := engine.Open(e.Env.EngineConfig(), engine.Deps{Fs: e.Fs, Logger: e.log})
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	e.e = eng

	return nil
}

func (e *Entrypoint) Engine() *engine.Engine {
	return e.e
}

func (e *Entrypoint) Logger() src.Logger {
	return e.log
}

// Run blocks until ctx is cancelled.
func (e *Entrypoint) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (e *Entrypoint) Close() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), CloseTimeout)
	defer cancel()

	if e.e != nil {
		err = e.e.Shutdown(ctx)
	}

	if e.log != nil {
		if err != nil {
			e.log.Errorw("failed to shut down engine", "error", err)
		}

		logErr := e.log.Sync()
		if logErr != nil && err != nil {
			err = fmt.Errorf("%w, %w", err, logErr)
		} else if logErr != nil {
			err = logErr
		}
	}

	return
}
