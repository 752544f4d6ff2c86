package project

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"testing/fstest"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/config"
	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/version"
	"gopkg.in/yaml.v3"
)

// TimestampFormat is the version layout used for new migrations when no
// explicit version is given.
const TimestampFormat = "20060102150405"

var (
	//go:embed embed/dumbo.yaml
	defaultConfig []byte

	image = fstest.MapFS{
		"db":              {Mode: os.ModeDir | consts.ModeDir},
		"db/migration":    {Mode: os.ModeDir | consts.ModeDir},
		consts.ConfigFile: {Data: defaultConfig},
	}
)

type (
	// InitOptions contains options for project initialization
	InitOptions struct {
		// URL is written to the config file when set
		URL string

		// Schemas replaces the default schema list when set
		Schemas []string
	}

	// Project is a directory holding a dumbo.yaml and its migration scripts.
	Project struct {
		root string
	}
)

// New creates a Project rooted at path. The directory must exist before
// Initialize is called.
//
// Example:
//
//	proj := project.New("/path/to/app")
//	if err := proj.Initialize(project.InitOptions{Schemas: []string{"app"}}); err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := proj.NewMigration(ctx, "create users", "")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println("Created", path) // db/migration/V20240101120000__create_users.sql
func New(path string) *Project {
	return &Project{root: path}
}

// Root returns the project directory.
func (p *Project) Root() string {
	return p.root
}

// Initialize creates dumbo.yaml and the db/migration directory. It only
// creates missing entries, so running it on an existing project is safe.
// Options are applied to the config file whether it was just created or not.
func (p *Project) Initialize(options InitOptions) error {
	if err := p.ensureDirectory(); err != nil {
		return err
	}

	for path, entry := range image {
		fullPath := filepath.Join(p.root, path)

		if _, err := os.Stat(fullPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to stat %s", fullPath)
		}

		if entry.Mode.IsDir() {
			if err := os.MkdirAll(fullPath, entry.Mode.Perm()); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", fullPath)
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), consts.ModeDir); err != nil {
			return errors.Wrapf(err, "failed to create parent directory %s", filepath.Dir(fullPath))
		}

		if err := os.WriteFile(fullPath, entry.Data, consts.ModeFile); err != nil {
			return errors.Wrapf(err, "failed to write file %s", fullPath)
		}
	}

	if options.URL != "" || len(options.Schemas) > 0 {
		if err := p.applyOptions(options); err != nil {
			return err
		}
	}

	_, err := p.Config()
	return err
}

// Config loads the project's dumbo.yaml.
func (p *Project) Config() (*config.Config, error) {
	cfg, err := config.LoadConfigFile(p.configPath())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", consts.ConfigFile)
	}

	return cfg, nil
}

// NewMigration writes an empty versioned script to the project's first
// filesystem location and returns its path. An empty ver uses the current UTC
// time formatted with TimestampFormat. The version must not already exist.
func (p *Project) NewMigration(ctx context.Context, description, ver string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", errors.New("a migration description is required")
	}

	if ver == "" {
		ver = time.Now().UTC().Format(TimestampFormat)
	}

	parsed, err := version.Parse(ver)
	if err != nil {
		return "", err
	}

	dir, err := p.migrationDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
		return "", errors.Wrapf(err, "failed to create directory %s", dir)
	}

	catalog, err := migrator.Resolve(ctx, migrator.DirLister{}, dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve migrations")
	}

	if existing, ok := catalog.Find(parsed); ok {
		return "", errors.Wrapf(migrator.ErrDuplicateVersion, "version %s is used by %s", ver, existing.Script)
	}

	name := "V" + strings.ReplaceAll(ver, ".", "_") + "__" + strings.Join(strings.Fields(description), "_") + ".sql"
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, []byte("-- "+strings.TrimSpace(description)+"\n"), consts.ModeFile); err != nil {
		return "", errors.Wrapf(err, "failed to write file %s", path)
	}

	return path, nil
}

func (p *Project) applyOptions(options InitOptions) error {
	data, err := os.ReadFile(p.configPath())
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", consts.ConfigFile)
	}

	// decode without defaults so only explicit settings are written back
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "failed to parse %s", consts.ConfigFile)
	}

	if options.URL != "" {
		cfg.URL = options.URL
	}
	if len(options.Schemas) > 0 {
		cfg.Schemas = options.Schemas
	}

	f, err := os.Create(p.configPath())
	if err != nil {
		return errors.Wrapf(err, "failed to open config file for writing: %s", p.configPath())
	}
	defer func() { _ = f.Close() }()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(&cfg); err != nil {
		return errors.Wrap(err, "failed to write updated config")
	}

	return errors.Wrap(encoder.Close(), "failed to close yaml encoder")
}

// migrationDir returns the first filesystem location, resolved against the
// project root.
func (p *Project) migrationDir() (string, error) {
	cfg, err := p.Config()
	if err != nil {
		return "", err
	}

	dir := strings.TrimPrefix(cfg.Locations[0], migrator.FilesystemPrefix)
	if filepath.IsAbs(dir) {
		return dir, nil
	}

	return filepath.Join(p.root, dir), nil
}

func (p *Project) configPath() string {
	return filepath.Join(p.root, consts.ConfigFile)
}

func (p *Project) ensureDirectory() error {
	dir, err := os.Stat(p.root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat dir: %s", p.root)
	}

	if !dir.IsDir() {
		return errors.Errorf("%s is not a directory", p.root)
	}

	return nil
}
