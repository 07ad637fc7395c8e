package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cora/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewRedisClient(cfg *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// AccountCache is a read-through cache in front of the account store. It only
// serves lookups; balances are authoritative in the database and entries are
// invalidated after every applied mutation.
type AccountCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAccountCache(client *redis.Client, ttl time.Duration) *AccountCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &AccountCache{client: client, ttl: ttl}
}

func (c *AccountCache) Get(ctx context.Context, accountID uint) (*models.Account, error) {
	val, err := c.client.Get(ctx, accountKey(accountID)).Bytes()
	if err != nil {
		return nil, err
	}
	var account models.Account
	if err := json.Unmarshal(val, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *AccountCache) Set(ctx context.Context, account *models.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, accountKey(account.ID), data, c.ttl).Err()
}

func (c *AccountCache) Invalidate(ctx context.Context, accountID uint) error {
	return c.client.Del(ctx, accountKey(accountID)).Err()
}

func (c *AccountCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func accountKey(accountID uint) string {
	return fmt.Sprintf("account:%d", accountID)
}
