package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/pseudomuto/dumbo/pkg/executor"
	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/version"
	"github.com/urfave/cli/v3"
)

const (
	stateSuccess  = "Success"
	stateBaseline = "Baseline"
	stateChanged  = "Changed"
	statePending  = "Pending"
	stateFailed   = "Failed"
	stateMissing  = "Missing"
	stateIgnored  = "Ignored"
)

type infoRow struct {
	version     version.Version
	description string
	kind        string
	installedOn time.Time
	state       string
}

// info creates the info command, which prints every migration and its state.
//
// Example usage:
//
//	dumbo info --url postgres://localhost:5432/app
func info(p engineParams) *cli.Command {
	return &cli.Command{
		Name:    "info",
		Aliases: []string{"status"},
		Usage:   "Show applied, pending and failed migrations",
		Description: `Print the state of every migration known to the schema history table
or resolved from the configured locations.

States:
- Success: applied and unchanged
- Changed: applied, but the script was edited afterwards
- Pending: not applied yet
- Failed: the last attempt failed, it will be retried
- Missing: applied, but no longer resolved locally
- Ignored: older than the latest applied version with --strict-order
- Baseline: the baseline marker

The command takes no lock and never writes to the database.`,
		Before: requireURL(p.Config),
		Flags:  engineFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runInfo(ctx, cmd, p)
		},
	}
}

func runInfo(ctx context.Context, cmd *cli.Command, p engineParams) error {
	exec, sess, cfg, err := newExecutor(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	slog.Debug("Checking migration status", "schemas", cfg.Schemas, "locations", cfg.Locations)

	plan, err := exec.Info(ctx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Schema history: %s\n\n", exec.History().QualifiedName())

	rows := infoRows(plan)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return nil
	}

	if err := writeInfoTable(w, rows); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d applied, %d pending, %d failed, %d missing\n",
		len(plan.Applied),
		len(plan.Pending),
		len(plan.Failed),
		len(plan.Missing),
	)
	return nil
}

// infoRows flattens a plan into one row per version. Failed versions are
// pending as well and only listed once.
func infoRows(plan *executor.Plan) []infoRow {
	var rows []infoRow

	changed := make(map[string]bool, len(plan.Conflicts))
	for _, c := range plan.Conflicts {
		changed[c.Entry.Version.Key()] = true
	}

	failed := make(map[string]bool, len(plan.Failed))
	for _, entry := range plan.Failed {
		failed[entry.Version.Key()] = true
		rows = append(rows, entryRow(entry, stateFailed))
	}

	for _, entry := range plan.Applied {
		state := stateSuccess
		switch {
		case entry.IsBaseline():
			state = stateBaseline
		case changed[entry.Version.Key()]:
			state = stateChanged
		}
		rows = append(rows, entryRow(entry, state))
	}

	for _, entry := range plan.Missing {
		rows = append(rows, entryRow(entry, stateMissing))
	}

	for _, m := range plan.Pending {
		if failed[m.Version.Key()] {
			continue
		}
		rows = append(rows, infoRow{version: m.Version, description: m.Description, kind: m.Type, state: statePending})
	}

	for _, m := range plan.Ignored {
		rows = append(rows, infoRow{version: m.Version, description: m.Description, kind: m.Type, state: stateIgnored})
	}

	slices.SortStableFunc(rows, func(a, b infoRow) int {
		return a.version.Compare(b.version)
	})

	return rows
}

func entryRow(entry *history.Entry, state string) infoRow {
	return infoRow{
		version:     *entry.Version,
		description: entry.Description,
		kind:        entry.Type,
		installedOn: entry.InstalledOn,
		state:       state,
	}
}

func writeInfoTable(w io.Writer, rows []infoRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDESCRIPTION\tTYPE\tINSTALLED ON\tSTATE")

	for _, row := range rows {
		installedOn := ""
		if !row.installedOn.IsZero() {
			installedOn = row.installedOn.Format(time.DateTime)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.version,
			row.description,
			row.kind,
			installedOn,
			colorState(row.state),
		)
	}

	return tw.Flush()
}

func colorState(state string) string {
	switch state {
	case stateSuccess, stateBaseline:
		return color.GreenString(state)
	case statePending:
		return color.YellowString(state)
	case stateFailed, stateMissing, stateChanged:
		return color.RedString(state)
	default:
		return state
	}
}
