// Package cache хранит в Redis короткоживущие отметки: обработанные вебхуки и использованные refresh токены.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outcastsdev-svg/outlivion-api/internal/config"
)

const (
	webhookPrefix = "webhook:processed:"
	refreshPrefix = "refresh:used:"
)

// Cache клиент Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// Ping проверяет соединение. Используется health-эндпоинтом.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

// ConsumeOnce атомарно помечает key использованным на ttl.
// Возвращает true только для первого вызова с этим ключом.
func (c *Cache) ConsumeOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "cache.ConsumeOnce"
	ok, err := c.Db.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// ConsumeRefreshToken отмечает refresh токен с идентификатором jti использованным.
func (c *Cache) ConsumeRefreshToken(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return c.ConsumeOnce(ctx, refreshPrefix+jti, ttl)
}

// WebhookProcessed сообщает, обрабатывался ли уже вебхук заказа с этим статусом.
func (c *Cache) WebhookProcessed(ctx context.Context, orderID, status string) (bool, error) {
	const op = "cache.WebhookProcessed"
	n, err := c.Db.Exists(ctx, webhookKey(orderID, status)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// MarkWebhookProcessed запоминает обработанный вебхук на ttl.
func (c *Cache) MarkWebhookProcessed(ctx context.Context, orderID, status string, ttl time.Duration) error {
	const op = "cache.MarkWebhookProcessed"
	if err := c.Db.Set(ctx, webhookKey(orderID, status), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func webhookKey(orderID, status string) string {
	return webhookPrefix + orderID + ":" + status
}
