package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"salonpos/backend/internal/domain"
)

const redisKeyPrefix = "pos:cart:"

// Redis stores carts as JSON with a sliding TTL; every save extends the
// idle expiry.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, password string, db int, ttl time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisWithClient(client, ttl)
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, session string) (*domain.Cart, bool, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+session).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cart %s: %w", session, err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		return nil, false, fmt.Errorf("decode cart %s: %w", session, err)
	}
	return &cart, true, nil
}

func (r *Redis) Save(ctx context.Context, cart domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", cart.Session, err)
	}
	return r.client.Set(ctx, redisKeyPrefix+cart.Session, payload, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, session string) error {
	return r.client.Del(ctx, redisKeyPrefix+session).Err()
}
