package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planq/internal/valueindex"
)

var _ valueindex.SnapshotCache = (*Snapshots)(nil)

func TestMemoryClient_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	buf := []byte("v1")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryClient()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSnapshots_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()
	s := NewSnapshots(client, 0)

	got, err := s.Get(ctx, "subject")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, "subject", []string{"Calculus", "Database Fundamentals"}))

	got, err = s.Get(ctx, "subject")
	require.NoError(t, err)
	assert.Equal(t, []string{"Calculus", "Database Fundamentals"}, got)

	raw, err := client.Get(ctx, "snapshot:subject")
	require.NoError(t, err)
	assert.JSONEq(t, `["Calculus","Database Fundamentals"]`, string(raw))
}

func TestSnapshots_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	client := NewMemoryClient()
	require.NoError(t, client.Set(ctx, "snapshot:country", []byte("not json"), 0))

	_, err := NewSnapshots(client, time.Hour).Get(ctx, "country")
	assert.ErrorContains(t, err, "decode snapshot country")
}

func TestSnapshots_FeedLoader(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshots(NewMemoryClient(), time.Hour)
	require.NoError(t, s.Put(ctx, "subject", []string{"Quantum Computing"}))

	cat, err := valueindex.NewLoader(valueindex.WithCache(s)).Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, valueindex.SourceCache, cat.Degraded[valueindex.FamilySubject])
	v, ok := cat.Subjects().Display("quantum computing")
	require.True(t, ok)
	assert.Equal(t, "Quantum Computing", v)
}
