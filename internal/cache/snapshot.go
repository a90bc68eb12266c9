package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultSnapshotTTL keeps a snapshot for a week.
const DefaultSnapshotTTL = 7 * 24 * time.Hour

// Snapshots stores distinct-value lists as JSON under "snapshot:<key>".
type Snapshots struct {
	client Client
	ttl    time.Duration
}

// NewSnapshots wraps a client. A ttl of zero or less uses
// DefaultSnapshotTTL.
func NewSnapshots(client Client, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Snapshots{client: client, ttl: ttl}
}

func snapshotKey(key string) string {
	return "snapshot:" + key
}

// Get returns the stored list. A miss returns nil and no error.
func (s *Snapshots) Get(ctx context.Context, key string) ([]string, error) {
	data, err := s.client.Get(ctx, snapshotKey(key))
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", key)
	}
	return values, nil
}

// Put replaces the stored list.
func (s *Snapshots) Put(ctx context.Context, key string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrapf(err, "encode snapshot %s", key)
	}
	return s.client.Set(ctx, snapshotKey(key), data, s.ttl)
}
