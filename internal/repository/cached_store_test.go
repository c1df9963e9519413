package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis points at a closed port so every command fails fast
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestCachedStore_FallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryStore()
	s := NewCachedStore(backing, unreachableRedis(), time.Minute, logger.Discard())
	defer s.Close()

	bread := seedProduct(t, s, "Bread", 50, 5)

	available, err := s.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)

	got, err := s.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bread", got.Name)

	_, err = s.GetByID(ctx, 42)
	assert.ErrorIs(t, err, ErrProductNotFound)

	require.NoError(t, s.PlaceOrder(ctx, newOrder(line(bread.ID, 5))))
	available, err = s.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)
}

// liveRedis connects to the Redis named by STOREFRONT_TEST_REDIS_ADDR and
// empties it, or skips the test.
func liveRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("STOREFRONT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOREFRONT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func TestCachedStore_InvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	client := liveRedis(t)

	s := NewCachedStore(NewMemoryStore(), client, time.Minute, logger.Discard())
	defer s.Close()

	bread := seedProduct(t, s, "Bread", 50, 5)

	// prime both keys
	_, err := s.ListAvailable(ctx)
	require.NoError(t, err)
	_, err = s.GetByID(ctx, bread.ID)
	require.NoError(t, err)

	require.NoError(t, s.PlaceOrder(ctx, newOrder(line(bread.ID, 2))))

	got, err := s.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	qty := 0
	_, err = s.Update(ctx, bread.ID, models.ProductChanges{Quantity: &qty})
	require.NoError(t, err)

	available, err := s.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestCachedStore_StaleReadDoesNotRepopulateAfterWrite(t *testing.T) {
	ctx := context.Background()
	client := liveRedis(t)

	backing := NewMemoryStore()
	s := NewCachedStore(backing, client, time.Minute, logger.Discard())
	defer s.Close()

	bread := seedProduct(t, s, "Bread", 50, 5)

	// A reader captures the generation and loads the product with 5 in stock.
	gen, ok := s.generation(ctx)
	require.True(t, ok)
	stale, err := backing.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	staleList, err := backing.ListAvailable(ctx)
	require.NoError(t, err)

	// An order sells out the product before the reader writes its result back.
	require.NoError(t, s.PlaceOrder(ctx, newOrder(line(bread.ID, 5))))

	s.set(ctx, gen, productKey(bread.ID), stale, time.Minute)
	s.set(ctx, gen, availableProductsKey, staleList, time.Minute)

	exists, err := client.Exists(ctx, productKey(bread.ID), availableProductsKey).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	got, err := s.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	available, err := s.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestCachedStore_SetUnderCurrentGeneration(t *testing.T) {
	ctx := context.Background()
	client := liveRedis(t)

	s := NewCachedStore(NewMemoryStore(), client, time.Minute, logger.Discard())
	defer s.Close()

	gen, ok := s.generation(ctx)
	require.True(t, ok)
	assert.Equal(t, "0", gen)
	assert.True(t, s.setRaw(ctx, gen, productKey(7), notFoundMarker, time.Minute))

	s.invalidate(ctx, 7)
	assert.False(t, s.setRaw(ctx, gen, productKey(7), notFoundMarker, time.Minute))

	next, ok := s.generation(ctx)
	require.True(t, ok)
	assert.Equal(t, "1", next)
	assert.True(t, s.setRaw(ctx, next, productKey(7), notFoundMarker, time.Minute))

	ttl, err := client.PTTL(ctx, productKey(7)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCachedStore_SkipsCachingWithoutGeneration(t *testing.T) {
	s := NewCachedStore(NewMemoryStore(), unreachableRedis(), time.Minute, logger.Discard())
	defer s.Close()

	_, ok := s.generation(context.Background())
	assert.False(t, ok)
}
