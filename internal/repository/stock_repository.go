package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// StockRepository is the reservation ledger. Every call runs inside the
// transaction supplied by the caller, so a multi-item reservation either
// applies as a whole or rolls back as a whole when the caller aborts.
type StockRepository interface {
	Reserve(ctx context.Context, tx pgx.Tx, items []domain.OrderItem) error
	Release(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.OrderItem) (bool, error)
	RearmRelease(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
}

type stockRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewStockRepository(pool *pgxpool.Pool, logger *zap.Logger) StockRepository {
	return &stockRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/stock_repo"),
	}
}

// Reserve conditionally decrements the stock counter of every item. Stock is
// re-checked at mutation time: the WHERE clause only matches when enough stock
// remains and the product is still orderable, so two concurrent reservations
// for the last unit serialize at the row and exactly one succeeds. On the
// first failing item the whole transaction must be rolled back by the caller.
func (r *stockRepo) Reserve(ctx context.Context, tx pgx.Tx, items []domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "StockRepository.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.Int("items_count", len(items)),
	)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1
			AND stock >= $2
			AND status = 'approved'
			AND is_allowed
	`

	for _, item := range items {
		commandTag, err := tx.Exec(ctx, query, item.ProductID, item.Quantity)
		if err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to decrement stock",
				zap.Int64("product_id", item.ProductID),
				zap.Int32("quantity", item.Quantity),
				zap.Error(err),
			)

			return fmt.Errorf("failed to decrement stock for product %d: %w", item.ProductID, err)
		}

		if commandTag.RowsAffected() == 0 {
			mylogger.Warn(
				ctx,
				r.logger,
				"Reservation lost the race for stock",
				zap.Int64("product_id", item.ProductID),
				zap.Int32("quantity", item.Quantity),
			)

			return ErrInsufficientStock
		}
	}

	return nil
}

// Release increments stock for every item, guarded by the per-order latch:
// the latch flips exactly once, so a retried release after a transient
// failure does not credit stock twice. Returns false when the order's stock
// was already released and nothing was done.
func (r *stockRepo) Release(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.OrderItem) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "StockRepository.Release")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.Int("items_count", len(items)),
	)

	latchQuery := `
		UPDATE orders
		SET stock_released = TRUE, updated_at = NOW()
		WHERE id = $1 AND stock_released = FALSE
	`

	commandTag, err := tx.Exec(ctx, latchQuery, orderID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to flip release latch",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)

		return false, fmt.Errorf("failed to flip release latch: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		mylogger.Info(
			ctx,
			r.logger,
			"Stock already released, skipping",
			zap.String("order_id", orderID.String()),
		)

		return false, nil
	}

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	for _, item := range items {
		if _, err := tx.Exec(ctx, query, item.ProductID, item.Quantity); err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to increment stock",
				zap.Int64("product_id", item.ProductID),
				zap.Int32("quantity", item.Quantity),
				zap.Error(err),
			)

			return false, fmt.Errorf("failed to increment stock for product %d: %w", item.ProductID, err)
		}
	}

	return true, nil
}

// RearmRelease clears the latch after a fresh reservation replaces the old
// one during an item edit, so the new reservation can be released later.
func (r *stockRepo) RearmRelease(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "StockRepository.RearmRelease")
	defer span.End()

	query := `
		UPDATE orders
		SET stock_released = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, orderID); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to rearm release latch",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)

		return fmt.Errorf("failed to rearm release latch: %w", err)
	}

	return nil
}
