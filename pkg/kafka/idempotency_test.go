package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))
	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "evt-1"))
	time.Sleep(5 * time.Millisecond)

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client, "ratings", time.Hour)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-9"))
	assert.True(t, mr.Exists("ratings:evt-9"))
	assert.Equal(t, time.Hour, mr.TTL("ratings:evt-9"))

	seen, err = store.Contains(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisIdempotencyStore(client, "p", time.Hour).Contains(context.Background(), "e")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingStore) Add(context.Context, string) error             { return errors.New("down") }

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	h := IdempotentHandler(store, func(ctx context.Context, e *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-1", EventType: "review.changed"}
	require.NoError(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	h := IdempotentHandler(store, func(ctx context.Context, e *Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-2"}
	require.Error(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_StoreFailureStillProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(ctx context.Context, e *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-3"}))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_NoEventID(t *testing.T) {
	calls := 0
	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), func(ctx context.Context, e *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{}))
	require.NoError(t, h(context.Background(), &Event{}))
	assert.Equal(t, 2, calls)
}
