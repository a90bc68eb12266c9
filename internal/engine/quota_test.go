package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)

	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Check(0), "statement %d should be allowed", i+1)
	}
	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxStatements())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check(1))
	}

	err := q.Check(1)
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Step)
	assert.Contains(t, e.Error(), "6 > 5")
}

func TestQuotaEnforcer_Disabled(t *testing.T) {
	q := NewQuotaEnforcer(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Check(0))
	}
}

func TestQuotaEnforcer_Concurrent(t *testing.T) {
	q := NewQuotaEnforcer(50)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rejected int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Check(0) != nil {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, q.Current())
	assert.Equal(t, 50, rejected)
}
