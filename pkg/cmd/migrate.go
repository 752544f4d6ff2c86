package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/executor"
	"github.com/urfave/cli/v3"
)

// migrate creates the migrate command for applying pending migrations.
//
// The migrate command resolves every configured location, takes the schema
// history lock and applies pending migrations in version order. Each
// migration runs in its own transaction unless it contains statements that
// PostgreSQL refuses to run in one (CREATE INDEX CONCURRENTLY, VACUUM, ...).
//
// Command flags:
//   - --url, -u: PostgreSQL connection URL (or DATABASE_URL)
//   - --schemas: Managed schemas, the first holds the history table
//   - --locations, -l: Where to find migration scripts
//   - --validate-on-migrate: Validate applied migrations first (default: true)
//   - --strict-order: Refuse migrations older than the latest applied one
//
// Example usage:
//
//	# Apply all pending migrations
//	dumbo migrate --url postgres://localhost:5432/app
//
//	# Apply migrations into the app schema
//	dumbo migrate --schemas app --locations filesystem:sql
//
//	# Apply even though an applied script was edited
//	dumbo migrate --validate-on-migrate=false
func migrate(p engineParams) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"apply"},
		Usage:   "Apply pending migrations to PostgreSQL",
		Description: `Apply all pending migrations to the configured PostgreSQL database.

Migrations are executed in ascending version order. Every outcome, including
failures, is recorded in the Flyway compatible schema history table so Flyway
and dumbo can be used on the same database.

The command automatically handles:
- Creation of missing schemas and the schema history table
- Skipping migrations that were already applied
- Retrying migrations whose previous attempt failed
- Serializing concurrent runs with a PostgreSQL advisory lock`,
		Before: requireURL(p.Config),
		Flags: append(engineFlags(),
			&cli.BoolFlag{
				Name:  "validate-on-migrate",
				Usage: "validate applied migrations before migrating",
				Value: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd, p)
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, p engineParams) error {
	exec, sess, cfg, err := newExecutor(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	slog.Info("Starting migration execution",
		"schemas", cfg.Schemas,
		"locations", cfg.Locations,
		"validate_on_migrate", cfg.ShouldValidateOnMigrate(),
	)

	result, err := exec.Migrate(ctx)
	w := cmd.Root().Writer
	if result != nil {
		reportResult(w, result)
	}

	if err != nil {
		var verr *executor.ValidationError
		if errors.As(err, &verr) {
			reportViolations(w, verr.Violations)
		}

		return errors.Wrap(err, "failed to execute migrations")
	}

	fmt.Fprintln(w)
	switch result.MigrationsExecuted {
	case 0:
		fmt.Fprintf(w, "Schema %q is up to date. No migration necessary.\n", result.Schema)
	default:
		color.New(color.FgGreen).Fprintf(w, "Successfully applied %d migration(s) to schema %q in %s\n",
			result.MigrationsExecuted,
			result.Schema,
			result.Elapsed.Round(time.Millisecond),
		)
	}

	return nil
}

func reportResult(w io.Writer, result *executor.Result) {
	for _, entry := range result.Applied {
		fmt.Fprintf(w, "  %s %s - %s (%s)\n",
			color.GreenString("✓"),
			entry.Version,
			entry.Description,
			entry.ExecutionTime,
		)
	}
}
