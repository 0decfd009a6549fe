package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CatalogRepository is the read-only view of externally owned records the
// order core validates against: product price/availability and address
// ownership. It never mutates either store.
type CatalogRepository interface {
	GetProductsForOrder(ctx context.Context, ids []int64) (map[int64]domain.CatalogProduct, error)
	CheckAddressOwnership(ctx context.Context, addressID, customerID int64) error
}

type catalogRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCatalogRepository(pool *pgxpool.Pool, logger *zap.Logger) CatalogRepository {
	return &catalogRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/catalog_repo"),
	}
}

func (r *catalogRepo) GetProductsForOrder(ctx context.Context, ids []int64) (map[int64]domain.CatalogProduct, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.GetProductsForOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int("product_count", len(ids)),
	)

	query := `
		SELECT id, name, price, stock, status, is_allowed
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query products",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]domain.CatalogProduct, len(ids))
	for rows.Next() {
		var p domain.CatalogProduct
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Price,
			&p.Stock,
			&p.Status,
			&p.IsAllowed,
		); err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to scan product row",
				zap.Error(err),
			)

			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}

		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		mylogger.Error(
			ctx,
			r.logger,
			"Rows error",
			zap.Error(err),
		)

		return nil, err
	}

	return products, nil
}

func (r *catalogRepo) CheckAddressOwnership(ctx context.Context, addressID, customerID int64) error {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.CheckAddressOwnership")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("address_id", addressID),
		attribute.Int64("customer_id", customerID),
	)

	query := `
		SELECT user_id
		FROM addresses
		WHERE id = $1
	`

	var ownerID int64
	if err := r.pool.QueryRow(ctx, query, addressID).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAddressNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query address",
			zap.Int64("address_id", addressID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to query address: %w", err)
	}

	if ownerID != customerID {
		return ErrAddressNotOwned
	}

	return nil
}
