package currency

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yasmin-dev/souq-orders/internal/repository"
)

// RateProvider resolves the exchange rate of a currency relative to the base
// currency: units of target currency per one unit of base currency.
type RateProvider interface {
	Rate(ctx context.Context, code string) (decimal.Decimal, error)
}

type repoProvider struct {
	rates repository.RateRepository
}

func NewRepoProvider(rates repository.RateRepository) RateProvider {
	return &repoProvider{rates: rates}
}

func (p *repoProvider) Rate(ctx context.Context, code string) (decimal.Decimal, error) {
	return p.rates.GetRate(ctx, code)
}
