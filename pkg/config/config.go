package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"gopkg.in/yaml.v3"
)

type (
	// Config represents the project configuration for running migrations.
	//
	// The same settings can be written as YAML (dumbo.yaml) or TOML
	// (dumbo.toml). Keys follow Flyway's configuration names where one exists.
	Config struct {
		// URL is the PostgreSQL connection URL. Falls back to DATABASE_URL.
		URL string `yaml:"url,omitempty" toml:"url,omitempty"`

		// Driver selects the database/sql driver: "postgres" (lib/pq) or "pgx"
		Driver string `yaml:"driver,omitempty" toml:"driver,omitempty"`

		// Schemas managed by dumbo. The first one holds the history table and is
		// the search_path while migrations run.
		Schemas []string `yaml:"schemas,omitempty" toml:"schemas,omitempty"`

		// Table is the name of the schema history table
		Table string `yaml:"table,omitempty" toml:"table,omitempty"`

		// Locations to resolve migrations from, such as filesystem:db/migration
		Locations []string `yaml:"locations,omitempty" toml:"locations,omitempty"`

		// ValidateOnMigrate validates applied migrations before migrating.
		// Unset means true.
		ValidateOnMigrate *bool `yaml:"validate_on_migrate,omitempty" toml:"validate_on_migrate,omitempty"`

		// StrictOrder refuses migrations older than the latest applied version
		StrictOrder bool `yaml:"strict_order,omitempty" toml:"strict_order,omitempty"`

		// LockTimeout bounds the wait for the schema history lock, e.g. "45s"
		LockTimeout Duration `yaml:"lock_timeout,omitempty" toml:"lock_timeout,omitempty"`

		// InstalledBy is recorded in the history table instead of current_user
		InstalledBy string `yaml:"installed_by,omitempty" toml:"installed_by,omitempty"`
	}

	// Duration is a time.Duration written as a string ("30s", "2m").
	Duration struct {
		time.Duration
	}
)

// LoadConfig parses a YAML configuration from the provided io.Reader.
//
// Unset fields are filled with their defaults: the public schema, the
// flyway_schema_history table, the filesystem:db/migration location and a 30
// second lock timeout. An empty URL is read from DATABASE_URL.
//
// Example:
//
//	yamlData := `
//	url: postgres://localhost:5432/app?sslmode=disable
//	schemas: [app, audit]
//	locations:
//	  - filesystem:db/migration
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Printf("History table: %s.%s\n", cfg.Schemas[0], cfg.Table)
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadTOML parses a TOML configuration from the provided io.Reader. It applies
// the same defaults as LoadConfig.
func LoadTOML(r io.Reader) (*Config, error) {
	var cfg Config
	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadConfigFile loads a configuration from the specified file path. Files
// ending in .toml are parsed as TOML, everything else as YAML.
//
// Example:
//
//	cfg, err := config.LoadConfigFile("dumbo.yaml")
//	if err != nil {
//		log.Fatal("Failed to load config:", err)
//	}
//
//	fmt.Printf("Locations: %v\n", cfg.Locations)
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return LoadTOML(f)
	}

	return LoadConfig(f)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// ShouldValidateOnMigrate reports whether migrate validates first.
func (c *Config) ShouldValidateOnMigrate() bool {
	return c.ValidateOnMigrate == nil || *c.ValidateOnMigrate
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = os.Getenv(consts.EnvDatabaseURL)
	}
	if c.Driver == "" {
		c.Driver = consts.DefaultDriver
	}
	if len(c.Schemas) == 0 {
		c.Schemas = []string{history.DefaultSchema}
	}
	if c.Table == "" {
		c.Table = history.DefaultTable
	}
	if len(c.Locations) == 0 {
		c.Locations = []string{migrator.DefaultLocation}
	}
	if c.LockTimeout.Duration == 0 {
		c.LockTimeout.Duration = consts.DefaultLockTimeout
	}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration: %s", text)
	}

	d.Duration = parsed
	return nil
}
