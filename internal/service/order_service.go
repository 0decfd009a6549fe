package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	outboxDomain "github.com/yasmin-dev/souq-orders/pkg/outbox/domain"
	"github.com/yasmin-dev/souq-orders/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const notificationTopic = "notification_events"

type CreateOrderInput struct {
	Items             []ItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddressID *int64        `json:"shipping_address_id" validate:"required"`
	PaymentMethod     string        `json:"payment_method"`
	Notes             string        `json:"notes"`

	// CustomerID is honored for staff actors placing an order on behalf of a
	// customer; such orders start in confirmed status.
	CustomerID *int64 `json:"customer_id"`
}

type UpdateOrderInput struct {
	Items                []ItemRequest `json:"items" validate:"omitempty,min=1,dive"`
	ShippingAddressID    *int64        `json:"shipping_address_id"`
	ClearShippingAddress bool          `json:"clear_shipping_address"`
	ShippingCost         *int64        `json:"shipping_cost" validate:"omitempty,gte=0"`
	Notes                *string       `json:"notes"`
}

type ListQuery struct {
	Status domain.OrderStatus
	Search string
	Page   int64
	Limit  int64
}

type OrderService interface {
	Create(ctx context.Context, actor domain.Actor, input *CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, actor domain.Actor, query ListQuery) ([]domain.Order, int64, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input *UpdateOrderInput) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ChangeStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.OrderStatus, note string) (*domain.Order, error)
}

type orderService struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	pricer     *Pricer
	orderRepo  repository.OrderRepository
	stockRepo  repository.StockRepository
	catalog    repository.CatalogRepository
	outboxRepo worker.OutboxRepository
	tracer     trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	pricer *Pricer,
	orderRepo repository.OrderRepository,
	stockRepo repository.StockRepository,
	catalog repository.CatalogRepository,
	outboxRepo worker.OutboxRepository,
) OrderService {
	return &orderService{
		pool:       pool,
		logger:     logger,
		pricer:     pricer,
		orderRepo:  orderRepo,
		stockRepo:  stockRepo,
		catalog:    catalog,
		outboxRepo: outboxRepo,
		tracer:     otel.Tracer("order_service"),
	}
}

func (s *orderService) begin(ctx context.Context) (pgx.Tx, func(), error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	rollback := func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				cleanupCtx,
				s.logger,
				"Failed to rollback transaction",
				zap.Error(err),
			)
		}
	}

	return tx, rollback, nil
}

// Create validates and prices the requested items, then reserves stock and
// persists the order inside one transaction: either stock is deducted and an
// order exists, or neither happened.
func (s *orderService) Create(ctx context.Context, actor domain.Actor, input *CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("actor_id", actor.ID),
		attribute.Int("items_count", len(input.Items)),
	)

	customerID := actor.ID
	status := domain.OrderStatusPending

	if input.CustomerID != nil && *input.CustomerID != actor.ID {
		if !actor.IsStaff() {
			return nil, domain.ErrForbidden
		}

		// Staff-placed orders skip the pending step.
		customerID = *input.CustomerID
		status = domain.OrderStatusConfirmed
	}

	items, subtotal, err := s.pricer.PriceItems(ctx, customerID, input.Items, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:                uuid.New(),
		CustomerID:        customerID,
		Status:            status,
		Items:             items,
		Subtotal:          subtotal,
		ShippingAddressID: input.ShippingAddressID,
		PaymentMethod:     input.PaymentMethod,
		Notes:             input.Notes,
	}
	order.Recalculate()

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	if err := s.stockRepo.Reserve(ctx, tx, order.Items); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			mylogger.Warn(
				ctx,
				s.logger,
				"Stock reservation failed",
				zap.String("order_id", order.ID.String()),
			)
		}

		return nil, err
	}

	if err := s.orderRepo.Create(ctx, tx, order, actor); err != nil {
		return nil, err
	}

	if err := s.emitEvent(ctx, tx, "OrderPlaced", order.ID, &domain.OrderPlacedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		PlacedAt:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int64("total", order.Total),
	)

	return order, nil
}

func (s *orderService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Non-staff callers see foreign orders as missing, not as forbidden.
	if !actor.IsStaff() && order.CustomerID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}

	return order, nil
}

func (s *orderService) List(ctx context.Context, actor domain.Actor, query ListQuery) ([]domain.Order, int64, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 || query.Limit > 100 {
		query.Limit = 20
	}

	filter := repository.ListFilter{
		Status: query.Status,
		Search: query.Search,
		Page:   query.Page,
		Limit:  query.Limit,
	}

	if !actor.IsStaff() {
		customerID := actor.ID
		filter.CustomerID = &customerID
	}

	return s.orderRepo.List(ctx, filter)
}

// Update edits items, address, shipping cost or notes while the order is
// still editable. An item replacement swaps the whole reservation: the old
// items are released and the new list reserved within one transaction, so a
// failed swap leaves the original reservation untouched.
func (s *orderService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input *UpdateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Update")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
		attribute.Int64("actor_id", actor.ID),
	)

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	order, err := s.orderRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsStaff() && order.CustomerID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}

	if !order.Editable() {
		return nil, domain.ErrOrderNotEditable
	}

	if input.ClearShippingAddress {
		order.ShippingAddressID = nil
	} else if input.ShippingAddressID != nil {
		if err := s.catalog.CheckAddressOwnership(ctx, *input.ShippingAddressID, order.CustomerID); err != nil {
			return nil, err
		}
		order.ShippingAddressID = input.ShippingAddressID
	}

	if input.Notes != nil {
		order.Notes = *input.Notes
	}
	if input.ShippingCost != nil {
		// Customers edit items, address and notes; shipping cost is priced by
		// the business side.
		if !actor.IsStaff() {
			return nil, domain.ErrForbidden
		}
		order.ShippingCost = *input.ShippingCost
	}

	if input.Items != nil {
		if err := s.swapItems(ctx, tx, order, input.Items); err != nil {
			return nil, err
		}

		order.Recalculate()
		if err := s.orderRepo.ReplaceItems(ctx, tx, order); err != nil {
			return nil, err
		}
	} else {
		order.Recalculate()
		if err := s.orderRepo.UpdateDetails(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order updated",
		zap.String("order_id", order.ID.String()),
	)

	return order, nil
}

// swapItems releases the current reservation and reserves the new item list
// within the caller's transaction. Prices captured for products already on
// the order are preserved; only newly added products are priced live.
func (s *orderService) swapItems(ctx context.Context, tx pgx.Tx, order *domain.Order, reqs []ItemRequest) error {
	released, err := s.stockRepo.Release(ctx, tx, order.ID, order.Items)
	if err != nil {
		return err
	}
	if !released {
		// An editable order always holds its reservation; a flipped latch
		// here means the row is in a state the lifecycle cannot produce.
		return fmt.Errorf("order %s holds no reservation to swap", order.ID)
	}

	items, _, err := s.pricer.PriceItemsSkipStock(ctx, order.CustomerID, reqs)
	if err != nil {
		return err
	}

	captured := make(map[int64]int64, len(order.Items))
	for _, item := range order.Items {
		captured[item.ProductID] = item.UnitPrice
	}
	for i := range items {
		if price, ok := captured[items[i].ProductID]; ok {
			items[i].UnitPrice = price
		}
	}

	if err := s.stockRepo.Reserve(ctx, tx, items); err != nil {
		return err
	}

	if err := s.stockRepo.RearmRelease(ctx, tx, order.ID); err != nil {
		return err
	}

	order.Items = items
	return nil
}

// Cancel moves the order to cancelled and releases its stock exactly once.
func (s *orderService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, actor, id, domain.OrderStatusCancelled, "")
}

func (s *orderService) ChangeStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.OrderStatus, note string) (*domain.Order, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}

	return s.transition(ctx, actor, id, to, note)
}

// transition applies one status change under the order row lock, so
// concurrent conflicting requests serialize: exactly one commits and the
// other observes the already-updated status and rejects.
func (s *orderService) transition(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.OrderStatus, note string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.transition")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
		attribute.String("to", string(to)),
	)

	tx, rollback, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	order, err := s.orderRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsStaff() && order.CustomerID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}

	if err := domain.CanTransition(actor, order.Status, to); err != nil {
		if to == domain.OrderStatusCancelled && errors.Is(err, domain.ErrInvalidTransition) {
			return nil, domain.ErrOrderNotCancellable
		}
		return nil, err
	}

	from := order.Status
	entry := &domain.StatusLogEntry{
		Status:    to,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Note:      note,
	}

	if err := s.orderRepo.UpdateStatus(ctx, tx, id, from, to, entry); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, err
	}

	if to == domain.OrderStatusCancelled || to == domain.OrderStatusRefunded {
		if _, err := s.stockRepo.Release(ctx, tx, id, order.Items); err != nil {
			return nil, err
		}
	}

	fromLabel, toLabel := domain.LabelFor(from), domain.LabelFor(to)
	if err := s.emitEvent(ctx, tx, "OrderStatusChanged", id, &domain.OrderStatusChangedEvent{
		OrderID:    id,
		CustomerID: order.CustomerID,
		From:       from,
		To:         to,
		TitleEn:    "Order update",
		TitleAr:    "تحديث الطلب",
		MessageEn:  fmt.Sprintf("Your order is now %s", toLabel.En),
		MessageAr:  fmt.Sprintf("طلبك الآن %s", toLabel.Ar),
		ChangedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order status changed",
		zap.String("order_id", id.String()),
		zap.String("from", fromLabel.En),
		zap.String("to", toLabel.En),
	)

	order.Status = to
	order.StatusLog = append(order.StatusLog, *entry)

	return order, nil
}

func (s *orderService) emitEvent(ctx context.Context, tx pgx.Tx, eventType string, orderID uuid.UUID, payload any) error {
	wrapper := map[string]any{
		"event":   eventType,
		"payload": payload,
	}

	wrapperBytes, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("failed to marshal event wrapper: %w", err)
	}

	outboxEvent := &outboxDomain.OutboxEvent{
		AggregateType: "Order",
		AggregateID:   orderID.String(),
		EventType:     eventType,
		Payload:       wrapperBytes,
		Topic:         notificationTopic,
	}

	return s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent)
}
