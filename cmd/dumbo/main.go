package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pseudomuto/dumbo/pkg/cmd"
	"github.com/pseudomuto/dumbo/pkg/config"
	"go.uber.org/fx"
)

// Commands run inside the fx start hook, so the start timeout bounds the
// longest migration run.
const startTimeout = 24 * time.Hour

// NB: These are set by GoReleaser during a build.
var (
	version string
	commit  string
	date    string
)

func main() {
	// cancelling the context rolls back the running migration and releases the
	// schema history lock
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fx.New(
		config.Module,
		cmd.Module,
		fx.NopLogger,
		fx.StartTimeout(startTimeout),
		fx.Provide(func() context.Context { return ctx }),
		fx.Supply(
			os.Args,
			&cmd.Version{
				Version:   version,
				Commit:    commit,
				Timestamp: date,
			},
		),
	).Run()
}
