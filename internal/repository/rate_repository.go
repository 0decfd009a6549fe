package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type RateRepository interface {
	GetRate(ctx context.Context, code string) (decimal.Decimal, error)
	UpsertRate(ctx context.Context, code string, rate decimal.Decimal) error
}

type rateRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewRateRepository(pool *pgxpool.Pool, logger *zap.Logger) RateRepository {
	return &rateRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/rate_repo"),
	}
}

func (r *rateRepo) GetRate(ctx context.Context, code string) (decimal.Decimal, error) {
	ctx, span := r.tracer.Start(ctx, "RateRepository.GetRate")
	defer span.End()

	span.SetAttributes(
		attribute.String("currency", code),
	)

	query := `
		SELECT rate
		FROM currency_rates
		WHERE code = $1
	`

	var rate decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, code).Scan(&rate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, ErrRateNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query exchange rate",
			zap.String("currency", code),
			zap.Error(err),
		)

		return decimal.Decimal{}, fmt.Errorf("failed to query exchange rate: %w", err)
	}

	return rate, nil
}

func (r *rateRepo) UpsertRate(ctx context.Context, code string, rate decimal.Decimal) error {
	ctx, span := r.tracer.Start(ctx, "RateRepository.UpsertRate")
	defer span.End()

	span.SetAttributes(
		attribute.String("currency", code),
		attribute.String("rate", rate.String()),
	)

	query := `
		INSERT INTO currency_rates (code, rate, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (code) DO UPDATE SET rate = EXCLUDED.rate, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, code, rate); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to upsert exchange rate",
			zap.String("currency", code),
			zap.Error(err),
		)

		return fmt.Errorf("failed to upsert exchange rate: %w", err)
	}

	return nil
}
