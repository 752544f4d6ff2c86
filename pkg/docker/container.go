package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPostgresVersion is the image tag used when none is given.
	DefaultPostgresVersion = "17"

	// DefaultDatabase, DefaultUsername and DefaultPassword are the credentials
	// of containers started without explicit options.
	DefaultDatabase = "dumbo"
	DefaultUsername = "dumbo"
	DefaultPassword = "dumbo"
)

type (
	// DockerOptions represents options for running PostgreSQL in Docker
	DockerOptions struct {
		// Version is the postgres image tag (default: DefaultPostgresVersion)
		Version string

		// Database, Username and Password configure the initial database.
		Database string
		Username string
		Password string

		// InitScripts are host paths of .sql or .sh files run once when the
		// container's data directory is initialized (relative paths are resolved
		// against the working directory).
		InitScripts []string
	}

	// Container manages a disposable PostgreSQL server for integration tests
	// and local experiments.
	Container struct {
		options   DockerOptions
		container *postgres.PostgresContainer
	}
)

// New creates a new Docker container with default options
//
// Example:
//
//	container := docker.New()
//
//	if err := container.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer container.Stop(ctx)
//
//	dsn, err := container.GetDSN(ctx)
func New() *Container {
	return NewWithOptions(DockerOptions{})
}

// NewWithOptions creates a new Docker container with custom options
func NewWithOptions(opts DockerOptions) *Container {
	if opts.Version == "" {
		opts.Version = DefaultPostgresVersion
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Username == "" {
		opts.Username = DefaultUsername
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}

	return &Container{options: opts}
}

// Start starts a PostgreSQL Docker container with the configured version
func (c *Container) Start(ctx context.Context) error {
	if c.container != nil {
		return errors.New("container is already running")
	}

	customizers := []testcontainers.ContainerCustomizer{
		postgres.WithDatabase(c.options.Database),
		postgres.WithUsername(c.options.Username),
		postgres.WithPassword(c.options.Password),
		testcontainers.WithWaitStrategyAndDeadline(
			2*time.Minute,
			// The server restarts once after running init scripts, so the ready
			// message appears twice.
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	}

	if len(c.options.InitScripts) > 0 {
		scripts := make([]string, len(c.options.InitScripts))
		for i, script := range c.options.InitScripts {
			abs, err := filepath.Abs(script)
			if err != nil {
				return errors.Wrapf(err, "failed to get absolute path for init script: %s", script)
			}
			scripts[i] = abs
		}

		customizers = append(customizers, postgres.WithInitScripts(scripts...))
	}

	container, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s-alpine", c.options.Version),
		customizers...,
	)
	if err != nil {
		return errors.Wrap(err, "failed to start PostgreSQL container")
	}

	c.container = container
	return nil
}

// Stop stops and removes the PostgreSQL Docker container
func (c *Container) Stop(ctx context.Context) error {
	if c.container == nil {
		return nil // Already stopped
	}

	err := c.container.Terminate(ctx)
	c.container = nil

	if err != nil {
		return errors.Wrap(err, "failed to stop PostgreSQL container")
	}

	return nil
}

// GetDSN returns the connection URL for the running server.
func (c *Container) GetDSN(ctx context.Context) (string, error) {
	if c.container == nil {
		return "", errors.New("container is not running")
	}

	dsn, err := c.container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", errors.Wrap(err, "failed to get connection string")
	}

	return dsn, nil
}

// IsRunning returns true if the container is currently running
func (c *Container) IsRunning() bool {
	return c.container != nil
}
