package service_test

import (
	"sync"

	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	"github.com/yasmin-dev/souq-orders/internal/service"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestChangeStatus_FullLifecycle() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	steps := []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	}

	for _, step := range steps {
		updated, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, step, "")
		s.Require().NoError(err)
		s.Equal(step, updated.Status)
	}

	loaded, err := s.OrderService.Get(s.Ctx, staff(7), order.ID)
	s.Require().NoError(err)
	s.Require().Len(loaded.StatusLog, 5)
	s.Equal(domain.OrderStatusPending, loaded.StatusLog[0].Status)
	s.Equal(domain.OrderStatusDelivered, loaded.StatusLog[4].Status)

	// Delivered stock is consumed, never restored.
	s.Equal(int64(9), s.productStock(1))
}

func (s *IntegrationTestSuite) TestChangeStatus_IllegalJumpRejected() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusShipped, "")
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *IntegrationTestSuite) TestChangeStatus_TerminalIsFinal() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	for _, step := range []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, step, "")
		s.Require().NoError(err)
	}

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusProcessing, "")
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)

	_, err = s.OrderService.ChangeStatus(s.Ctx, admin(1), order.ID, domain.OrderStatusRefunded, "")
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *IntegrationTestSuite) TestChangeStatus_ConcurrentShipAndCancel() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 2})

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusConfirmed, "")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	var processErr, cancelErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, processErr = s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusProcessing, "")
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = s.OrderService.Cancel(s.Ctx, customer(42), order.ID)
	}()
	wg.Wait()

	s.Require().True((processErr == nil) != (cancelErr == nil),
		"exactly one of the conflicting transitions must commit: process=%v cancel=%v", processErr, cancelErr)

	loaded, err := s.OrderService.Get(s.Ctx, staff(7), order.ID)
	s.Require().NoError(err)

	if processErr == nil {
		s.Require().ErrorIs(cancelErr, domain.ErrOrderNotCancellable)
		s.Equal(domain.OrderStatusProcessing, loaded.Status)
		s.Equal(int64(8), s.productStock(1))
	} else {
		s.Require().ErrorIs(processErr, domain.ErrInvalidTransition)
		s.Equal(domain.OrderStatusCancelled, loaded.Status)
		s.Equal(int64(10), s.productStock(1))
	}

	// The loser never appended a log row.
	s.Require().Len(loaded.StatusLog, 3)
}

func (s *IntegrationTestSuite) TestUpdateStatus_StaleObservationRejected() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusConfirmed, "")
	s.Require().NoError(err)

	orderRepo := repository.NewOrderRepository(s.DbPool, zap.NewNop())

	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback(s.Ctx) }()

	// The flip carries a stale observed status and must refuse to apply.
	err = orderRepo.UpdateStatus(s.Ctx, tx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, &domain.StatusLogEntry{
		Status:    domain.OrderStatusCancelled,
		ActorID:   42,
		ActorRole: domain.RoleCustomer,
	})
	s.Require().ErrorIs(err, repository.ErrStatusConflict)
}

func (s *IntegrationTestSuite) TestChangeStatus_CustomerForbidden() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.ChangeStatus(s.Ctx, customer(42), order.ID, domain.OrderStatusConfirmed, "")
	s.Require().ErrorIs(err, domain.ErrForbidden)
}

func (s *IntegrationTestSuite) TestChangeStatus_NoteRecorded() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusConfirmed, "verified by phone")
	s.Require().NoError(err)

	loaded, err := s.OrderService.Get(s.Ctx, staff(7), order.ID)
	s.Require().NoError(err)
	s.Require().Len(loaded.StatusLog, 2)
	s.Equal("verified by phone", loaded.StatusLog[1].Note)
	s.Equal(int64(7), loaded.StatusLog[1].ActorID)
}
