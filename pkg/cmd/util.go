package cmd

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/config"
	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/executor"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/session"
	"github.com/pseudomuto/dumbo/pkg/session/postgres"
	"github.com/pseudomuto/dumbo/pkg/utils"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	// Session is a database session owned by a single command run.
	Session interface {
		session.Session
		Close() error
	}

	// SessionOpener opens the session a command runs on.
	SessionOpener func(ctx context.Context, driver, dsn string) (Session, error)

	engineParams struct {
		fx.In

		Config *config.Config
		Open   SessionOpener
	}
)

func openPostgres(ctx context.Context, driver, dsn string) (Session, error) {
	sess, err := postgres.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// engineFlags are shared by every command that talks to the database. Each
// overrides the matching config file setting when given.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "PostgreSQL connection URL (e.g., postgres://localhost:5432/app)",
			Sources: cli.EnvVars(consts.EnvDatabaseURL),
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
		&cli.StringFlag{
			Name:  "driver",
			Usage: "database driver: postgres (lib/pq) or pgx",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
		&cli.StringSliceFlag{
			Name:  "schemas",
			Usage: "managed schemas, the first holds the history table",
		},
		&cli.StringFlag{
			Name:  "table",
			Usage: "name of the schema history table",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
		&cli.StringSliceFlag{
			Name:    "locations",
			Aliases: []string{"l"},
			Usage:   "migration locations (e.g., filesystem:db/migration)",
		},
		&cli.DurationFlag{
			Name:  "lock-timeout",
			Usage: "how long to wait for the schema history lock",
		},
		&cli.BoolFlag{
			Name:  "strict-order",
			Usage: "refuse migrations older than the latest applied version",
		},
		&cli.StringFlag{
			Name:    "installed-by",
			Usage:   "user recorded in the schema history table (default: current_user)",
			Sources: cli.EnvVars("DUMBO_INSTALLED_BY"),
		},
	}
}

// requireURL fails the command early when no connection URL is configured.
func requireURL(cfg *config.Config) func(context.Context, *cli.Command) (context.Context, error) {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if cmd.String("url") == "" && (cfg == nil || cfg.URL == "") {
			return ctx, errors.Errorf(
				"no database url: set url in %s, %s or pass --url",
				consts.ConfigFile,
				consts.EnvDatabaseURL,
			)
		}

		return ctx, nil
	}
}

// settings merges the flags given on the command line over cfg. A nil cfg
// starts from the defaults. Empty values (an exported but empty DATABASE_URL)
// leave the file setting alone.
func settings(cmd *cli.Command, cfg *config.Config) *config.Config {
	var merged config.Config
	if cfg != nil {
		merged = *cfg
	} else {
		merged = *config.Default()
	}

	overrideString(cmd, "url", &merged.URL)
	overrideString(cmd, "driver", &merged.Driver)
	overrideString(cmd, "table", &merged.Table)
	overrideString(cmd, "installed-by", &merged.InstalledBy)

	if v := cmd.StringSlice("schemas"); len(v) > 0 {
		merged.Schemas = v
	}
	if v := cmd.StringSlice("locations"); len(v) > 0 {
		merged.Locations = v
	}
	if cmd.IsSet("lock-timeout") {
		merged.LockTimeout.Duration = cmd.Duration("lock-timeout")
	}
	if cmd.IsSet("strict-order") {
		merged.StrictOrder = cmd.Bool("strict-order")
	}
	if cmd.IsSet("validate-on-migrate") {
		merged.ValidateOnMigrate = utils.Ptr(cmd.Bool("validate-on-migrate"))
	}

	return &merged
}

func overrideString(cmd *cli.Command, name string, dst *string) {
	if v := cmd.String(name); v != "" {
		*dst = v
	}
}

// newExecutor opens a session and builds an executor from the merged
// settings. The caller closes the returned session.
func newExecutor(ctx context.Context, cmd *cli.Command, p engineParams) (*executor.Executor, Session, *config.Config, error) {
	cfg := settings(cmd, p.Config)

	slog.Debug("Connecting to PostgreSQL", "driver", cfg.Driver, "schemas", cfg.Schemas)

	sess, err := p.Open(ctx, cfg.Driver, cfg.URL)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}

	exec := executor.New(executor.Config{
		Session:           sess,
		Lister:            migrator.DirLister{},
		Locations:         cfg.Locations,
		Schemas:           cfg.Schemas,
		Table:             cfg.Table,
		ValidateOnMigrate: utils.Ptr(cfg.ShouldValidateOnMigrate()),
		OutOfOrder:        utils.Ptr(!cfg.StrictOrder),
		LockTimeout:       cfg.LockTimeout.Duration,
		InstalledBy:       cfg.InstalledBy,
		Logger:            slog.Default(),
	})

	return exec, sess, cfg, nil
}
