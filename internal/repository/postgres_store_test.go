package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("STOREFRONT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	// second run must be a no-op
	require.NoError(t, s.Migrate(ctx))

	_, err = s.db.ExecContext(ctx, `TRUNCATE products, orders, users RESTART IDENTITY`)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_ProductsAndOrders(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	bread := seedProduct(t, s, "Bread", 50, 5)
	seedProduct(t, s, "Cake", 300, 0)

	available, err := s.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, bread.ID, available[0].ID)

	order := newOrder(line(bread.ID, 3))
	require.NoError(t, s.PlaceOrder(ctx, order))
	assert.NotZero(t, order.ID)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(50)))

	got, err := s.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	err = s.PlaceOrder(ctx, newOrder(line(bread.ID, 1), line(bread.ID, 5)))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	got, err = s.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	err = s.PlaceOrder(ctx, newOrder(line(9999, 1)))
	assert.ErrorIs(t, err, ErrProductNotFound)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "2030-01-01 12:00:00", orders[0].DesiredDateTime)
	assert.Equal(t, "Bread", orders[0].Items[0].Name)

	desc := "fresh"
	updated, err := s.Update(ctx, bread.ID, models.ProductChanges{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "fresh", updated.Description)

	require.NoError(t, s.Delete(ctx, bread.ID))
	assert.ErrorIs(t, s.Delete(ctx, bread.ID), ErrProductNotFound)
}

func TestPostgresStore_ConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)
	bread := seedProduct(t, s, "Bread", 50, 10)

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.PlaceOrder(ctx, newOrder(line(bread.ID, 1)))
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.True(t, errors.Is(err, ErrInsufficientStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 10, accepted)

	got, err := s.GetByID(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestPostgresStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)

	u := models.User{Username: "admin", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, &u))
	assert.NotZero(t, u.ID)

	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Username: "admin", PasswordHash: "x"}), ErrInvalidInput)

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
