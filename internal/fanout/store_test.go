package fanout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/testutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(key string, at time.Time) model.Notification {
	return model.Notification{Key: key, EntityType: "order", EntityID: key, Title: key, CreatedAt: at}
}

func keys(ns []model.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Key
	}
	return out
}

// runStoreContract exercises the behaviour every HistoryStore must share.
func runStoreContract(t *testing.T, newStore func(limit int, ttl time.Duration) HistoryStore) {
	ctx := context.Background()
	buyer := model.Subscriber{Role: model.RoleBuyer, ScopeID: uuid.New()}
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	t.Run("Insert is idempotent on key", func(t *testing.T) {
		store := newStore(50, 7*24*time.Hour)

		inserted, err := store.Insert(ctx, buyer, note("order-1", base))
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = store.Insert(ctx, buyer, note("order-1", base))
		require.NoError(t, err)
		assert.False(t, inserted)

		list, err := store.List(ctx, buyer)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("History keeps the most recent entries", func(t *testing.T) {
		store := newStore(3, 7*24*time.Hour)
		for i := 0; i < 5; i++ {
			_, err := store.Insert(ctx, buyer, note(fmt.Sprintf("n-%d", i), base.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}

		list, err := store.List(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, []string{"n-4", "n-3", "n-2"}, keys(list))

		// an evicted key may come back only as the newest entry
		inserted, err := store.Insert(ctx, buyer, note("n-0", base))
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("Subscribers are isolated", func(t *testing.T) {
		store := newStore(50, 7*24*time.Hour)
		other := model.Subscriber{Role: model.RoleCourier, ScopeID: uuid.New()}

		_, err := store.Insert(ctx, buyer, note("order-a", base))
		require.NoError(t, err)
		inserted, err := store.Insert(ctx, other, note("order-a", base))
		require.NoError(t, err)
		assert.True(t, inserted)

		list, err := store.List(ctx, model.Subscriber{Role: model.RoleAdmin})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Expired entries are hidden and pruned", func(t *testing.T) {
		store := newStore(50, 24*time.Hour)
		old := time.Now().Add(-48 * time.Hour).Truncate(time.Millisecond)

		_, err := store.Insert(ctx, buyer, note("stale", old))
		require.NoError(t, err)
		_, err = store.Insert(ctx, buyer, note("fresh", base))
		require.NoError(t, err)

		list, err := store.List(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, []string{"fresh"}, keys(list))

		removed, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		removed, err = store.Prune(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(limit int, ttl time.Duration) HistoryStore {
		return NewMemoryStore(limit, ttl)
	})
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := redis.NewClient(&redis.Options{Addr: testutil.SetupRedis(t)})
	t.Cleanup(func() { _ = client.Close() })

	n := 0
	runStoreContract(t, func(limit int, ttl time.Duration) HistoryStore {
		n++
		return NewRedisStore(client, fmt.Sprintf("test%d:", n), limit, ttl)
	})

	t.Run("Prune forgets emptied subscribers", func(t *testing.T) {
		ctx := context.Background()
		store := NewRedisStore(client, "prune:", 50, time.Hour)
		buyer := model.Subscriber{Role: model.RoleBuyer, ScopeID: uuid.New()}

		_, err := store.Insert(ctx, buyer, note("stale", time.Now().Add(-2*time.Hour)))
		require.NoError(t, err)
		members, err := client.SMembers(ctx, store.membersKey()).Result()
		require.NoError(t, err)
		assert.Equal(t, []string{buyer.Key()}, members)

		removed, err := store.Prune(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		members, err = client.SMembers(ctx, store.membersKey()).Result()
		require.NoError(t, err)
		assert.Empty(t, members)

		_, err = store.Prune(canceledContext(), time.Now())
		assert.Error(t, err)
	})
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
