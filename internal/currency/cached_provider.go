package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type cachedProvider struct {
	next        RateProvider
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewCachedProvider caches resolved rates in Redis so the hot read path does
// not hit Postgres for every presented order. Cache misses and Redis errors
// both fall through to the next provider.
func NewCachedProvider(next RateProvider, redisClient *redis.Client) RateProvider {
	return &cachedProvider{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    time.Minute * 5,
	}
}

func (p *cachedProvider) Rate(ctx context.Context, code string) (decimal.Decimal, error) {
	key := fmt.Sprintf("rate:%s", code)

	val, err := p.redisClient.Get(ctx, key).Result()
	if err == nil {
		if rate, parseErr := decimal.NewFromString(val); parseErr == nil {
			return rate, nil
		}
	}

	rate, err := p.next.Rate(ctx, code)
	if err != nil {
		return decimal.Decimal{}, err
	}

	p.redisClient.Set(ctx, key, rate.String(), p.cacheTTL)
	return rate, nil
}

// Invalidate drops the cached rate after an upstream update.
func Invalidate(ctx context.Context, redisClient *redis.Client, code string) {
	redisClient.Del(ctx, fmt.Sprintf("rate:%s", code))
}
