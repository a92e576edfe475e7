package otp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, Key("9876543210"), Entry{Code: "123456"}, time.Minute))

	got, err := s.Get(ctx, Key("9876543210"))
	require.NoError(t, err)
	assert.Equal(t, "123456", got.Code)

	require.NoError(t, s.Delete(ctx, Key("9876543210")))
	_, err = s.Get(ctx, Key("9876543210"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "a", Entry{Code: "1"}, time.Minute))
	require.NoError(t, s.Set(ctx, "b", Entry{Code: "2"}, time.Hour))

	now = now.Add(2 * time.Minute)
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, s.Cleanup())
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Cleanup())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key(string(rune('a' + i%26)))
			_ = s.Set(ctx, key, Entry{Code: "x"}, time.Minute)
			_, _ = s.Get(ctx, key)
		}(i)
	}
	wg.Wait()
}

func TestMemoryStore_IncrConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := AttemptsKey("9876543210")

	const n = 100
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Incr(ctx, key, time.Minute)
			assert.NoError(t, err)
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool, n)
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, n)
	assert.True(t, unique[1])
	assert.True(t, unique[n])
}

func TestMemoryStore_IncrExpiryAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	v, err := s.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// ttl задается только при создании счетчика
	now = now.Add(40 * time.Second)
	v, err = s.Incr(ctx, "c", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	now = now.Add(30 * time.Second)
	v, err = s.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, s.Delete(ctx, "c"))
	v, err = s.Incr(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Cleanup())
}
