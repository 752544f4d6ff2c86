package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/session"
	"github.com/pseudomuto/dumbo/pkg/utils"
)

type (
	// Executor applies versioned migrations to a PostgreSQL database and keeps
	// the Flyway compatible history table up to date.
	//
	// Every run resolves the configured locations, takes the history lock,
	// loads the history, computes a Plan and then validates or executes it. The
	// lock is released whatever the outcome, including cancellation.
	//
	// Key features:
	//   - One transaction per migration when all of its statements allow it
	//   - Statement by statement execution for non-transactional migrations
	//   - A failure entry in the history table for every failed migration
	//   - Aggregated validation of missing and modified migrations
	//
	// Example usage:
	//
	//	exec := executor.New(executor.Config{
	//		Session:   sess,
	//		Lister:    migrator.DirLister{},
	//		Locations: []string{"db/migration"},
	//		Schemas:   []string{"app"},
	//	})
	//
	//	result, err := exec.Migrate(ctx)
	//	if err != nil {
	//		log.Fatal(err)
	//	}
	//
	//	fmt.Printf("Applied %d migration(s) in %s\n", result.MigrationsExecuted, result.Elapsed)
	//
	// An Executor is not safe for concurrent use. Concurrent runs against the
	// same database should use separate sessions and executors.
	Executor struct {
		sess              session.Session
		lister            migrator.Lister
		locations         []string
		schemas           []string
		repo              *history.Repository
		validateOnMigrate bool
		outOfOrder        bool
		lockTimeout       time.Duration
		logger            *slog.Logger

		mu    sync.RWMutex
		state State
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		// Session all statements are run on
		Session session.Session

		// Lister used to resolve migrations (default: migrator.DirLister)
		Lister migrator.Lister

		// Locations to resolve migrations from (default: migrator.DefaultLocation)
		Locations []string

		// Schemas managed by the executor. The first one holds the history
		// table and is the search_path while migrations run (default: public)
		Schemas []string

		// Table is the history table name (default: flyway_schema_history)
		Table string

		// ValidateOnMigrate validates the plan before executing it (default: true)
		ValidateOnMigrate *bool

		// OutOfOrder allows applying migrations older than the latest applied
		// version (default: true)
		OutOfOrder *bool

		// LockTimeout bounds the wait for the history lock. Zero waits until the
		// context is done.
		LockTimeout time.Duration

		// InstalledBy is recorded in history entries (default: current_user)
		InstalledBy string

		// Logger for progress messages (default: slog.Default())
		Logger *slog.Logger
	}

	// Result summarizes a Migrate run.
	Result struct {
		// MigrationsExecuted is the number of migrations applied successfully
		MigrationsExecuted int

		// Elapsed is the wall time of the whole run
		Elapsed time.Duration

		// Applied holds the history entries written for applied migrations
		Applied []*history.Entry

		// Schema is the schema the migrations ran in
		Schema string
	}
)

// New creates a new migration executor with the provided configuration.
func New(cfg Config) *Executor {
	schemas := cfg.Schemas
	if len(schemas) == 0 {
		schemas = []string{history.DefaultSchema}
	}

	locations := cfg.Locations
	if len(locations) == 0 {
		locations = []string{migrator.DefaultLocation}
	}

	lister := cfg.Lister
	if lister == nil {
		lister = migrator.DirLister{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		sess:      cfg.Session,
		lister:    lister,
		locations: locations,
		schemas:   schemas,
		repo: history.New(cfg.Session, history.Config{
			Schema:      schemas[0],
			Table:       cfg.Table,
			InstalledBy: cfg.InstalledBy,
		}),
		validateOnMigrate: boolOrDefault(cfg.ValidateOnMigrate, true),
		outOfOrder:        boolOrDefault(cfg.OutOfOrder, true),
		lockTimeout:       cfg.LockTimeout,
		logger:            logger,
		state:             StateIdle,
	}
}

// State returns the state of the current or last run.
func (e *Executor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// History returns the repository used for the history table.
func (e *Executor) History() *history.Repository {
	return e.repo
}

// Migrate applies every pending migration in ascending version order.
//
// Missing schemas are created first, followed by the history table. When
// ValidateOnMigrate is set, a plan with violations fails with a
// *ValidationError before anything runs. Execution stops at the first failing
// migration, which is recorded with success=false and reported as an
// *ExecutionError or *UnsupportedStatementError. The returned Result covers
// the migrations applied before the failure.
func (e *Executor) Migrate(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := e.runLogger("migrate")
	result := &Result{Schema: utils.Unquote(e.schemas[0])}

	err := e.run(ctx, log, func(ctx context.Context, catalog *migrator.Catalog) error {
		if err := e.prepare(ctx, log); err != nil {
			return err
		}

		plan, err := e.plan(ctx, log, catalog)
		if err != nil {
			return err
		}

		if e.validateOnMigrate {
			e.transition(log, StateValidating)
			if err := plan.Validate(); err != nil {
				return err
			}
		}

		e.transition(log, StateExecuting)
		return e.execute(ctx, log, plan, result)
	})

	result.MigrationsExecuted = len(result.Applied)
	result.Elapsed = time.Since(start)

	if err != nil {
		return result, err
	}

	log.Info("Migration run completed",
		"executed", result.MigrationsExecuted,
		"duration", result.Elapsed,
	)
	return result, nil
}

// Validate checks the history table against the resolved migrations and
// returns a *ValidationError listing every violation. Pending migrations are
// not violations. Nothing is written to the database.
func (e *Executor) Validate(ctx context.Context) error {
	log := e.runLogger("validate")

	return e.run(ctx, log, func(ctx context.Context, catalog *migrator.Catalog) error {
		plan, err := e.plan(ctx, log, catalog)
		if err != nil {
			return err
		}

		e.transition(log, StateValidating)
		if err := plan.Validate(); err != nil {
			return err
		}

		log.Info("Validation succeeded", "pending", len(plan.Pending))
		return nil
	})
}

// Info computes the plan without taking the lock or changing the database.
func (e *Executor) Info(ctx context.Context) (*Plan, error) {
	catalog, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	return NewPlan(catalog, entries, e.outOfOrder), nil
}

// run resolves the catalog, then holds the history lock while fn runs. It
// drives the terminal states.
func (e *Executor) run(
	ctx context.Context,
	log *slog.Logger,
	fn func(context.Context, *migrator.Catalog) error,
) (err error) {
	e.transition(log, StateIdle)
	defer func() {
		if err != nil {
			e.transition(log, StateFailed)
			log.Error("Run failed", "error", err)
			return
		}
		e.transition(log, StateCompleted)
	}()

	catalog, err := e.resolve(ctx)
	if err != nil {
		return err
	}

	log.Debug("Acquiring schema history lock", "table", e.repo.QualifiedName(), "timeout", e.lockTimeout)
	if err := e.repo.Lock(ctx, e.lockTimeout); err != nil {
		return err
	}
	e.transition(log, StateLockAcquired)

	defer func() {
		if uerr := e.repo.Unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil {
			err = uerr
		}
		e.transition(log, StateLockReleased)
	}()

	return fn(ctx, catalog)
}

// prepare creates missing schemas and the history table. A schema marker is
// recorded when both the schemas and the table were created by this run.
func (e *Executor) prepare(ctx context.Context, log *slog.Logger) error {
	created, err := e.repo.EnsureSchemas(ctx, e.schemas)
	if err != nil {
		return err
	}

	for _, schema := range created {
		log.Info("Created schema", "schema", schema)
	}

	tableCreated, err := e.repo.EnsureSchemaHistory(ctx)
	if err != nil {
		return err
	}

	if !tableCreated {
		return nil
	}

	log.Info("Created schema history table", "table", e.repo.QualifiedName())
	if len(created) > 0 {
		if _, err := e.repo.AppendSchemaMarker(ctx, created); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) plan(ctx context.Context, log *slog.Logger, catalog *migrator.Catalog) (*Plan, error) {
	entries, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	e.transition(log, StateHistoryLoaded)

	plan := NewPlan(catalog, entries, e.outOfOrder)
	e.transition(log, StateDiffed)

	log.Debug("Computed migration plan",
		"resolved", catalog.Len(),
		"applied", len(plan.Applied),
		"pending", len(plan.Pending),
		"missing", len(plan.Missing),
		"conflicts", len(plan.Conflicts),
		"ignored", len(plan.Ignored),
	)

	return plan, nil
}

func (e *Executor) resolve(ctx context.Context) (*migrator.Catalog, error) {
	catalog, err := migrator.Resolve(ctx, e.lister, e.locations...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve migrations")
	}

	return catalog, nil
}

// load returns no entries when the history table does not exist yet.
func (e *Executor) load(ctx context.Context) ([]*history.Entry, error) {
	exists, err := e.repo.Exists(ctx)
	if err != nil || !exists {
		return nil, err
	}

	return e.repo.Load(ctx)
}

func (e *Executor) transition(log *slog.Logger, to State) {
	e.mu.Lock()
	from := e.state
	e.state = to
	e.mu.Unlock()

	if from != to {
		log.Debug("State transition", "from", from, "to", to)
	}
}

func (e *Executor) runLogger(op string) *slog.Logger {
	return e.logger.With("run_id", uuid.NewString(), "operation", op)
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}

	return *v
}
