// Package cli implements the grievancectl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/wire"
	"github.com/noah-isme/grievance-api/pkg/config"
	"github.com/noah-isme/grievance-api/pkg/logger"
)

// flushTimeout bounds how long a command waits for queued notifications.
const flushTimeout = 30 * time.Second

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	warnLabel = color.New(color.FgYellow).SprintFunc()
	errLabel  = color.New(color.FgRed).SprintFunc()
	dimLabel  = color.New(color.Faint).SprintFunc()
)

// loadConfig and buildContainer are replaced in tests.
var (
	loadConfig     = config.Load
	buildContainer = wire.Build
)

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return logger.New(cfg)
}

// withContainer builds the service graph, starts notification delivery,
// runs fn, then drains pending notifications before closing connections.
func withContainer(ctx context.Context, verbose bool, out io.Writer, fn func(ctx context.Context, app *wire.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := newLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	app, err := buildContainer(cfg, logr)
	if err != nil {
		return err
	}
	defer app.Close()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Notifications.Start(workerCtx)
	defer app.Notifications.Stop()

	runErr := fn(ctx, app)

	flushCtx, flushCancel := context.WithTimeout(ctx, flushTimeout)
	defer flushCancel()
	if err := app.Notifications.Flush(flushCtx); err != nil {
		fmt.Fprintf(out, "%s %v\n", warnLabel("WARN"), err)
	}
	return runErr
}
