package cli

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/planq/internal/cache"
	"github.com/roach88/planq/internal/cassandra"
	"github.com/roach88/planq/internal/config"
	"github.com/roach88/planq/internal/engine"
	"github.com/roach88/planq/internal/logging"
	"github.com/roach88/planq/internal/planner"
	"github.com/roach88/planq/internal/resolve"
	"github.com/roach88/planq/internal/schema"
	"github.com/roach88/planq/internal/store"
	"github.com/roach88/planq/internal/valueindex"
)

// storeSession is what a command needs from a store backend.
type storeSession interface {
	engine.Session
	valueindex.DistinctSource
}

// env is everything a command works with, built from configuration.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	schema  *schema.Catalog
	values  *valueindex.Catalog
	session storeSession

	closers []func()
}

// envMode selects how much of the environment a command needs.
type envMode int

const (
	// offline loads the value catalog from cache and fallback only.
	offline envMode = iota
	// online also opens the store and reads live distinct values.
	online
)

// newEnv loads configuration and builds the environment. The caller must
// call close.
func newEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command, mode envMode) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	e := &env{
		cfg: cfg,
		logger: logging.New(logging.Options{
			JSON:    cfg.Log.JSON,
			Verbose: opts.Verbose || cfg.Log.Verbose,
			Output:  cmd.ErrOrStderr(),
		}),
		schema: schema.Default(),
	}
	if opts.session != nil {
		e.session = opts.session
	} else if mode == online {
		if err := e.openStore(ctx); err != nil {
			e.close()
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
	}

	loaderOpts := []valueindex.LoaderOption{
		valueindex.WithFallbackFile(cfg.Catalog.FallbackFile),
		valueindex.WithActivePrefixes(cfg.Catalog.ActivePrefixes),
		valueindex.WithLogger(e.logger),
	}
	if e.session != nil {
		loaderOpts = append(loaderOpts, valueindex.WithSource(e.session))
	}
	if snapshots := e.openCache(ctx); snapshots != nil {
		loaderOpts = append(loaderOpts, valueindex.WithCache(snapshots))
	}

	values, err := valueindex.NewLoader(loaderOpts...).Load(ctx)
	if err != nil {
		e.close()
		return nil, WrapExitError(ExitCommandError, "failed to load value catalog", err)
	}
	e.values = values
	return e, nil
}

func (e *env) openStore(ctx context.Context) error {
	switch e.cfg.Store.Backend {
	case config.BackendCassandra:
		s, err := cassandra.Connect(e.cfg.CassandraSettings(), e.logger)
		if err != nil {
			return err
		}
		e.session = s
		e.closers = append(e.closers, s.Close)

	case config.BackendSQLite:
		s, err := store.Open(e.cfg.SQLite.Path, store.WithCatalog(e.schema), store.WithLogger(e.logger))
		if err != nil {
			return err
		}
		e.session = s
		e.closers = append(e.closers, func() { s.Close() })

		if e.cfg.SQLite.Fixture != "" {
			if err := loadFixture(ctx, s, e.cfg.SQLite.Fixture); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadFixture seeds an empty SQLite store.
func loadFixture(ctx context.Context, s *store.Store, path string) error {
	empty, err := s.Empty(ctx)
	if err != nil || !empty {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read fixture")
	}
	return s.LoadFixture(ctx, data)
}

// openCache connects to Redis when configured. A connection failure only
// disables the cache.
func (e *env) openCache(ctx context.Context) *cache.Snapshots {
	if e.cfg.Redis.Addr == "" {
		return nil
	}
	client, err := cache.NewRedisClient(ctx, e.cfg.RedisSettings())
	if err != nil {
		e.logger.Warn("snapshot cache unavailable", zap.String("addr", e.cfg.Redis.Addr), zap.Error(err))
		return nil
	}
	e.closers = append(e.closers, func() { client.Close() })
	return cache.NewSnapshots(client, e.cfg.Redis.TTL)
}

func (e *env) resolver() *resolve.Resolver {
	return resolve.New(e.values,
		resolve.WithThreshold(e.cfg.Resolver.Threshold),
		resolve.WithGap(e.cfg.Resolver.Gap),
		resolve.WithLogger(e.logger))
}

func (e *env) planner() *planner.Planner {
	return planner.New(e.schema, e.values, planner.WithLogger(e.logger))
}

func (e *env) executor(extra ...engine.Option) *engine.Executor {
	opts := []engine.Option{
		engine.WithSchema(e.schema),
		engine.WithChunkSize(e.cfg.Executor.ChunkSize),
		engine.WithWorkers(e.cfg.Executor.Workers),
		engine.WithMaxStatements(e.cfg.Executor.MaxStatements),
		engine.WithLogger(e.logger),
	}
	return engine.New(e.session, append(opts, extra...)...)
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
	_ = e.logger.Sync()
}
