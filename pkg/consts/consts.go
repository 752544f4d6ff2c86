package consts

import (
	"os"
	"time"
)

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ConfigFile is the configuration file looked up in the working directory
	ConfigFile = "dumbo.yaml"

	// TOMLConfigFile is used when ConfigFile does not exist
	TOMLConfigFile = "dumbo.toml"

	// EnvFile is loaded into the environment when present
	EnvFile = ".env"

	// EnvDatabaseURL names the environment variable holding the connection URL
	EnvDatabaseURL = "DATABASE_URL"

	// DefaultDriver is the database/sql driver used for connections
	DefaultDriver = "postgres"

	// DefaultLockTimeout bounds the wait for the schema history lock
	DefaultLockTimeout = 30 * time.Second
)
