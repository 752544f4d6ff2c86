// Package cmd provides CLI commands for the dumbo tool.
//
// # Available Commands
//
//   - init: Create dumbo.yaml and the db/migration directory
//   - new: Create an empty versioned migration script
//   - migrate: Apply pending migrations
//   - validate: Check applied migrations against the local scripts
//   - info: Print every migration and its state
//
// # Command Structure
//
// Each command is built by a constructor returning a *cli.Command, following
// the urfave/cli/v3 pattern. Constructors take their dependencies as fx
// parameters and are registered in the "commands" value group by Module.
//
// # Configuration
//
// Database commands read dumbo.yaml (or dumbo.toml) through the config
// module. Flags override the file, and --url falls back to DATABASE_URL:
//
//	dumbo migrate                                     # everything from dumbo.yaml
//	dumbo migrate --url postgres://localhost/app      # explicit connection
//	dumbo info --schemas app --locations filesystem:sql
//	dumbo --verbose validate                          # debug logging
package cmd
