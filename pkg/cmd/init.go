package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/project"
	"github.com/urfave/cli/v3"
)

// initCmd returns a CLI command that initializes a new dumbo project in the
// current directory (or --dir). The initialization process is idempotent:
// running it multiple times will not overwrite existing files.
//
// Created structure:
//   - dumbo.yaml: Connection, schemas and locations
//   - db/migration/: Directory for versioned migration scripts
//
// Example usage:
//
//	# Initialize a project in the current directory
//	dumbo init
//
//	# Initialize a project managing the app schema
//	dumbo init --schemas app --url postgres://localhost:5432/app
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a project in the current directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "the project directory",
				Value:   ".",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "PostgreSQL connection URL to write to the config file",
			},
			&cli.StringSliceFlag{
				Name:  "schemas",
				Usage: "schemas to manage (defaults to public)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.String("dir")
			if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
				return err
			}

			options := project.InitOptions{
				URL:     cmd.String("url"),
				Schemas: cmd.StringSlice("schemas"),
			}

			if err := project.New(dir).Initialize(options); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "Initialized dumbo project in %s\n", dir)
			return nil
		},
	}
}

// newCmd returns a CLI command that creates an empty versioned migration.
//
// Example usage:
//
//	# V20240101120000__create_accounts.sql
//	dumbo new create accounts
//
//	# V2_1__add_index.sql
//	dumbo new --ver 2.1 add index
func newCmd() *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a new migration script",
		ArgsUsage: "<description>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "ver",
				Usage: "migration version (defaults to the current UTC timestamp)",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			description := strings.Join(cmd.Args().Slice(), " ")

			path, err := project.New(".").NewMigration(ctx, description, cmd.String("ver"))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "Created %s\n", path)
			return nil
		},
	}
}
