package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// Checks every key first and only then decrements, so a short line leaves
// all keys untouched.
var reserveStockScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local current = redis.call('GET', key)
	if not current or tonumber(current) < tonumber(ARGV[i]) then
		return 0
	end
end

for i, key in ipairs(KEYS) do
	redis.call('DECRBY', key, ARGV[i])
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) ReserveStock(ctx context.Context, items []domain.StockRequest) (bool, error) {
	keys, quantities := stockArgs(items)
	if len(keys) == 0 {
		return true, nil
	}

	result, err := reserveStockScript.Run(ctx, r.client, keys, quantities...).Int()
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}

	return result == 1, nil
}

func (r *RedisAdapter) ReleaseStock(ctx context.Context, items []domain.StockRequest) error {
	pipe := r.client.TxPipeline()
	for _, it := range items {
		pipe.IncrBy(ctx, stockKeyPrefix+it.ProductID, int64(it.Quantity))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}

func (r *RedisAdapter) Stock(ctx context.Context, productID string) (int, error) {
	n, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// stockArgs merges repeated product ids so each key appears once in the
// script.
func stockArgs(items []domain.StockRequest) ([]string, []interface{}) {
	index := make(map[string]int, len(items))
	var keys []string
	var quantities []interface{}
	for _, it := range items {
		key := stockKeyPrefix + it.ProductID
		if i, ok := index[key]; ok {
			quantities[i] = quantities[i].(int) + it.Quantity
			continue
		}
		index[key] = len(keys)
		keys = append(keys, key)
		quantities = append(quantities, it.Quantity)
	}
	return keys, quantities
}
