package valueindex

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DistinctSource scans a column for its distinct values.
type DistinctSource interface {
	Distinct(ctx context.Context, table, column string) ([]string, error)
}

// SnapshotCache stores the last good distinct-value snapshot per family.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]string, error)
	Put(ctx context.Context, key string, values []string) error
}

// DefaultActivePrefixes selects the active status codes (RP, RP2 ... RP5).
var DefaultActivePrefixes = []string{"RP"}

const statusSnapshotKey = "status"

// Loader builds a Catalog, degrading from live store to cache to the
// static fallback family by family.
type Loader struct {
	source         DistinctSource
	cache          SnapshotCache
	fallbackFile   string
	activePrefixes []string
	logger         *zap.Logger

	fallback *Fallback
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSource sets the live distinct-value source.
func WithSource(s DistinctSource) LoaderOption {
	return func(l *Loader) { l.source = s }
}

// WithCache sets the snapshot cache.
func WithCache(c SnapshotCache) LoaderOption {
	return func(l *Loader) { l.cache = c }
}

// WithFallbackFile overrides the built-in fallback vocabulary.
func WithFallbackFile(path string) LoaderOption {
	return func(l *Loader) { l.fallbackFile = path }
}

// WithActivePrefixes sets the status prefixes that count as active.
func WithActivePrefixes(prefixes []string) LoaderOption {
	return func(l *Loader) {
		if len(prefixes) > 0 {
			l.activePrefixes = prefixes
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader. With no source and no cache it loads the
// fallback vocabulary only.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		activePrefixes: DefaultActivePrefixes,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds the catalog. It fails only when a family has to fall back
// and the fallback file cannot be read.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	c := &Catalog{
		maps:     make(map[Family]AliasMap, len(Families)),
		Degraded: make(map[Family]Source),
	}

	for _, f := range Families {
		col := FamilyColumns[f]
		values, src := l.snapshot(ctx, string(f), col)
		if src == SourceFallback {
			fb, err := l.loadFallback()
			if err != nil {
				return nil, err
			}
			values = fb.Values(f)
		}
		if src != SourceLive {
			c.Degraded[f] = src
		}
		c.maps[f] = Build(values)
		l.logger.Debug("alias map built",
			zap.String("family", string(f)),
			zap.String("source", string(src)),
			zap.Int("keys", c.maps[f].Len()))
	}

	statuses, src := l.snapshot(ctx, statusSnapshotKey, StatusColumn)
	active := FilterActive(statuses, l.activePrefixes)
	if src == SourceFallback || len(active) == 0 {
		fb, err := l.loadFallback()
		if err != nil {
			return nil, err
		}
		active = normalizeStatuses(fb.ActiveStatuses)
	}
	c.activeStatuses = active

	if c.IsDegraded() {
		l.logger.Warn("value catalog degraded", zap.Any("families", c.Degraded))
	}
	return c, nil
}

// snapshot fetches one column live, then from cache. SourceFallback means
// neither worked and the caller should use the static list.
func (l *Loader) snapshot(ctx context.Context, key string, col Column) ([]string, Source) {
	if l.source != nil {
		values, err := l.source.Distinct(ctx, col.Table, col.Column)
		switch {
		case err != nil:
			l.logger.Warn("live snapshot failed",
				zap.String("table", col.Table),
				zap.String("column", col.Column),
				zap.Error(err))
		case len(values) == 0:
			l.logger.Warn("live snapshot empty",
				zap.String("table", col.Table),
				zap.String("column", col.Column))
		default:
			if l.cache != nil {
				if err := l.cache.Put(ctx, key, values); err != nil {
					l.logger.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
				}
			}
			return values, SourceLive
		}
	}

	if l.cache != nil {
		values, err := l.cache.Get(ctx, key)
		if err == nil && len(values) > 0 {
			return values, SourceCache
		}
		if err != nil {
			l.logger.Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil, SourceFallback
}

func (l *Loader) loadFallback() (*Fallback, error) {
	if l.fallback != nil {
		return l.fallback, nil
	}
	fb, err := LoadFallback(l.fallbackFile)
	if err != nil {
		return nil, errors.Wrap(err, "load value catalog")
	}
	l.fallback = fb
	return fb, nil
}
