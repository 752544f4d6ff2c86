package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/consts"
	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// Loads .env (when present) and then dumbo.yaml or dumbo.toml. Returns nil
	// when neither file exists so commands like help and version still work.
	func() (*Config, error) {
		if err := LoadEnv(consts.EnvFile); err != nil {
			return nil, err
		}

		path, ok := findConfigFile()
		if !ok {
			return nil, nil
		}

		return LoadConfigFile(path)
	},
))

// LoadEnv loads variables from the given dotenv file into the process
// environment. Variables that are already set win. A missing file is not an
// error.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return errors.Wrapf(godotenv.Load(path), "failed to load env file: %s", path)
}

func findConfigFile() (string, bool) {
	for _, path := range []string{consts.ConfigFile, consts.TOMLConfigFile} {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	return "", false
}
