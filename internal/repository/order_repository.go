package repository

import (
	"context"
	"errors"
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

type ListFilter struct {
	CustomerID *int64
	Status     domain.OrderStatus
	Search     string
	Page       int64
	Limit      int64
}

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order, actor domain.Actor) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, int64, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.OrderStatus, entry *domain.StatusLogEntry) error
	ReplaceItems(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	UpdateDetails(ctx context.Context, tx pgx.Tx, order *domain.Order) error
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/order_repo"),
	}
}

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order, actor domain.Actor) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("customer_id", order.CustomerID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (id, customer_id, status, subtotal, shipping_cost, total,
			shipping_address_id, payment_method, notes, stock_released, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.ID,
		order.CustomerID,
		string(order.Status),
		order.Subtotal,
		order.ShippingCost,
		order.Total,
		order.ShippingAddressID,
		order.PaymentMethod,
		order.Notes,
	).Scan(
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := r.insertItems(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	return r.appendStatusLog(ctx, tx, &domain.StatusLogEntry{
		OrderID:   order.ID,
		Status:    order.Status,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
	})
}

func (r *orderRepo) insertItems(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	query := `
		INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			query,
			order.ID,
			item.ProductID,
			item.Name,
			item.UnitPrice,
			item.Quantity,
			item.LineTotal,
		).Scan(&item.ID); err != nil {
			mylogger.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) appendStatusLog(ctx context.Context, tx pgx.Tx, entry *domain.StatusLogEntry) error {
	query := `
		INSERT INTO order_status_log (order_id, status, actor_id, actor_role, note, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := tx.Exec(
		ctx,
		query,
		entry.OrderID,
		string(entry.Status),
		entry.ActorID,
		string(entry.ActorRole),
		entry.Note,
	); err != nil {
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to append status log entry",
			zap.String("order_id", entry.OrderID.String()),
			zap.Error(err),
		)

		return fmt.Errorf("failed to append status log entry: %w", err)
	}

	return nil
}

const orderColumns = `id, customer_id, status, subtotal, shipping_cost, total,
	shipping_address_id, payment_method, notes, stock_released, created_at, updated_at`

func scanOrder(row pgx.Row, o *domain.Order) error {
	return row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.Status,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Total,
		&o.ShippingAddressID,
		&o.PaymentMethod,
		&o.Notes,
		&o.StockReleased,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order domain.Order
	if err := scanOrder(r.pool.QueryRow(ctx, query, id), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query order",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if err := r.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	if err := r.loadStatusLog(ctx, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

// GetByIDForUpdate locks the order row for the duration of the transaction so
// concurrent conflicting operations on the same order serialize; the loser
// observes the already-updated status once the winner commits.
func (r *orderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByIDForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	var order domain.Order
	if err := scanOrder(tx.QueryRow(ctx, query, id), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to lock order row",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to lock order row: %w", err)
	}

	if err := r.loadItemsTx(ctx, tx, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepo) loadItems(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows, order)
}

func (r *orderRepo) loadItemsTx(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := tx.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows, order)
}

func scanItems(rows pgx.Rows, order *domain.Order) error {
	order.Items = order.Items[:0]
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.UnitPrice,
			&item.Quantity,
			&item.LineTotal,
		); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

func (r *orderRepo) loadStatusLog(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, status, actor_id, actor_role, note, created_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to query status log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.StatusLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.OrderID,
			&entry.Status,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Note,
			&entry.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan status log entry: %w", err)
		}

		order.StatusLog = append(order.StatusLog, entry)
	}

	return rows.Err()
}

func (r *orderRepo) List(ctx context.Context, filter ListFilter) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("page", filter.Page),
		attribute.Int64("limit", filter.Limit),
	)

	baseQuery := `SELECT DISTINCT o.id, o.customer_id, o.status, o.subtotal, o.shipping_cost, o.total,
		o.shipping_address_id, o.payment_method, o.notes, o.stock_released, o.created_at, o.updated_at
		FROM orders o`
	countQuery := `SELECT COUNT(DISTINCT o.id) FROM orders o`

	var joins, conds string
	var args []interface{}
	argID := 1

	if filter.Search != "" {
		joins += ` JOIN order_items oi ON oi.order_id = o.id`
		conds += fmt.Sprintf(" AND oi.name ILIKE $%d", argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	if filter.CustomerID != nil {
		conds += fmt.Sprintf(" AND o.customer_id = $%d", argID)
		args = append(args, *filter.CustomerID)
		argID++
	}

	if filter.Status != "" {
		conds += fmt.Sprintf(" AND o.status = $%d", argID)
		args = append(args, string(filter.Status))
		argID++
	}

	where := " WHERE TRUE" + conds

	listQuery := baseQuery + joins + where +
		fmt.Sprintf(" ORDER BY o.created_at DESC, o.id LIMIT $%d OFFSET $%d", argID, argID+1)
	listArgs := append(append([]interface{}{}, args...), filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to list orders",
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, 0, err
		}
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery+joins+where, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus flips the status only when the current value still matches
// what the caller observed, and appends the log entry in the same breath.
// Zero rows affected means a concurrent transition won the race.
func (r *orderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.OrderStatus, entry *domain.StatusLogEntry) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	commandTag, err := tx.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order status",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order status: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		mylogger.Warn(
			ctx,
			r.logger,
			"Order status changed concurrently",
			zap.String("order_id", id.String()),
			zap.String("expected", string(from)),
		)

		return ErrStatusConflict
	}

	entry.OrderID = id
	entry.Status = to

	return r.appendStatusLog(ctx, tx, entry)
}

// ReplaceItems swaps the full item list and rewrites the derived totals.
// Only valid while the order is editable; the caller holds the row lock.
func (r *orderRepo) ReplaceItems(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ReplaceItems")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID.String()),
		attribute.Int("items_count", len(order.Items)),
	)

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	if err := r.insertItems(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	return r.UpdateDetails(ctx, tx, order)
}

func (r *orderRepo) UpdateDetails(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateDetails")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID.String()),
	)

	query := `
		UPDATE orders
		SET subtotal = $1,
			shipping_cost = $2,
			total = $3,
			shipping_address_id = $4,
			notes = $5,
			updated_at = NOW()
		WHERE id = $6
	`

	commandTag, err := tx.Exec(
		ctx,
		query,
		order.Subtotal,
		order.ShippingCost,
		order.Total,
		order.ShippingAddressID,
		order.Notes,
		order.ID,
	)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order details",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order details: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}
