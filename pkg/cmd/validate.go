package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/executor"
	"github.com/urfave/cli/v3"
)

// validate creates the validate command, which checks applied migrations
// against the scripts on disk without changing the database.
//
// Example usage:
//
//	# Fail the build when an applied script was edited or deleted
//	dumbo validate --url postgres://localhost:5432/app
func validate(p engineParams) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate applied migrations against the local scripts",
		Description: `Compare the schema history table with the resolved migrations.

Validation fails when an applied migration:
- is no longer resolved locally (missing)
- was edited after it was applied (checksum mismatch)
- is pending but older than the latest applied version with --strict-order

Pending migrations are not an error. Nothing is written to the database.`,
		Before: requireURL(p.Config),
		Flags:  engineFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runValidate(ctx, cmd, p)
		},
	}
}

func runValidate(ctx context.Context, cmd *cli.Command, p engineParams) error {
	exec, sess, cfg, err := newExecutor(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	slog.Info("Validating schema history", "schemas", cfg.Schemas, "locations", cfg.Locations)

	w := cmd.Root().Writer
	if err := exec.Validate(ctx); err != nil {
		var verr *executor.ValidationError
		if errors.As(err, &verr) {
			reportViolations(w, verr.Violations)
		}

		return errors.Wrap(err, "failed to validate migrations")
	}

	color.New(color.FgGreen).Fprintf(w, "Successfully validated schema %q\n", exec.History().Schema())
	return nil
}

func reportViolations(w io.Writer, violations []executor.Violation) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Found %d validation error(s):\n", len(violations))
	for _, v := range violations {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("✗"), v)
	}
}
