package currency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type breakerProvider struct {
	next RateProvider
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProvider guards the rate lookup with a circuit breaker. When the
// breaker is open the caller gets an error and falls back to the base
// currency; a flaky rate store never takes order reads down with it.
func NewBreakerProvider(next RateProvider, logger *zap.Logger) RateProvider {
	settings := gobreaker.Settings{
		Name:        "CurrencyRates",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &breakerProvider{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *breakerProvider) Rate(ctx context.Context, code string) (decimal.Decimal, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.next.Rate(ctx, code)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	return result.(decimal.Decimal), nil
}
