package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	availableProductsKey = "products:available"
	generationKey        = "products:generation"
	notFoundMarker       = "notfound"
	notFoundTTL          = time.Minute
)

// setIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1], so a
// read that loaded from the store before an invalidation cannot repopulate
// the cache with what it saw.
var setIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// CachedStore puts a Redis read-through cache in front of the catalog reads of
// another Store. Redis failures never fail a request; the backing store answers.
// Every write bumps a generation counter along with dropping the keys, and
// entries are only stored under the generation observed before the store read.
type CachedStore struct {
	Store
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient creates a client and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func NewCachedStore(store Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		Store:  store,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *CachedStore) ListAvailable(ctx context.Context) ([]models.Product, error) {
	data, err := c.redis.Get(ctx, availableProductsKey).Bytes()
	switch {
	case err == nil:
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.logger.Warn("failed to decode cached product list, using store", "error", err)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis error, using store", "error", err)
	}

	gen, cacheable := c.generation(ctx)
	products, err := c.Store.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.set(ctx, gen, availableProductsKey, products, c.ttl)
	}
	return products, nil
}

func (c *CachedStore) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, productNotFound(id)
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		c.logger.Warn("failed to decode cached product, using store", "product_id", id, "error", err)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis error, using store", "product_id", id, "error", err)
	}

	gen, cacheable := c.generation(ctx)
	product, err := c.Store.GetByID(ctx, id)
	if err != nil {
		if cacheable && errors.Is(err, ErrProductNotFound) {
			c.setRaw(ctx, gen, key, notFoundMarker, notFoundTTL)
		}
		return nil, err
	}
	if cacheable {
		c.set(ctx, gen, key, product, c.ttl)
	}
	return product, nil
}

func (c *CachedStore) Create(ctx context.Context, product *models.Product) error {
	if err := c.Store.Create(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, product.ID)
	return nil
}

func (c *CachedStore) Update(ctx context.Context, id int64, changes models.ProductChanges) (*models.Product, error) {
	product, err := c.Store.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return product, nil
}

func (c *CachedStore) Delete(ctx context.Context, id int64) error {
	if err := c.Store.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedStore) PlaceOrder(ctx context.Context, order *models.Order) error {
	if err := c.Store.PlaceOrder(ctx, order); err != nil {
		return err
	}
	ids := make([]int64, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	c.invalidate(ctx, ids...)
	return nil
}

// Close closes the backing store and the redis client
func (c *CachedStore) Close() error {
	storeErr := c.Store.Close()
	redisErr := c.redis.Close()
	return errors.Join(storeErr, redisErr)
}

// generation returns the current cache generation. Nothing is cached when it
// cannot be read.
func (c *CachedStore) generation(ctx context.Context) (string, bool) {
	gen, err := c.redis.Get(ctx, generationKey).Result()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return "0", true
	default:
		return "", false
	}
}

func (c *CachedStore) set(ctx context.Context, gen, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return
	}
	c.setRaw(ctx, gen, key, string(data), ttl)
}

// setRaw reports whether the entry was written
func (c *CachedStore) setRaw(ctx context.Context, gen, key, value string, ttl time.Duration) bool {
	stored, err := setIfGeneration.Run(ctx, c.redis, []string{generationKey, key}, gen, value, ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("failed to write cache entry", "key", key, "error", err)
		return false
	}
	if stored == 0 {
		c.logger.Debug("cache entry superseded by a write", "key", key, "generation", gen)
	}
	return stored == 1
}

func (c *CachedStore) invalidate(ctx context.Context, ids ...int64) {
	keys := []string{availableProductsKey}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to invalidate product cache", "keys", keys, "error", err)
	}
}
