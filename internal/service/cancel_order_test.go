package service_test

import (
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/service"
)

func (s *IntegrationTestSuite) TestCancelOrder_RestoresStockOnce() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 3})
	s.Equal(int64(7), s.productStock(1))

	cancelled, err := s.OrderService.Cancel(s.Ctx, customer(42), order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Equal(int64(10), s.productStock(1))

	// A second cancel hits the terminal status and must not credit stock again.
	_, err = s.OrderService.Cancel(s.Ctx, customer(42), order.ID)
	s.Require().ErrorIs(err, domain.ErrOrderNotCancellable)
	s.Equal(int64(10), s.productStock(1))
}

func (s *IntegrationTestSuite) TestCancelOrder_CustomerTooLate() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusConfirmed, "")
	s.Require().NoError(err)
	_, err = s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusProcessing, "")
	s.Require().NoError(err)

	_, err = s.OrderService.Cancel(s.Ctx, customer(42), order.ID)
	s.Require().ErrorIs(err, domain.ErrOrderNotCancellable)
	s.Equal(int64(9), s.productStock(1))
}

func (s *IntegrationTestSuite) TestRefund_AdminOnlyAndRestoresStock() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 2})

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
	} {
		_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, status, "")
		s.Require().NoError(err)
	}

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusRefunded, "damaged in transit")
	s.Require().ErrorIs(err, domain.ErrForbidden)

	refunded, err := s.OrderService.ChangeStatus(s.Ctx, admin(1), order.ID, domain.OrderStatusRefunded, "damaged in transit")
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusRefunded, refunded.Status)
	s.Equal(int64(10), s.productStock(1))
}

func (s *IntegrationTestSuite) TestCancelAfterItemSwap_ReleasesNewItems() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedProduct(2, "Dates Box", 199, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 2})

	_, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		Items: []service.ItemRequest{{ProductID: 2, Quantity: 4}},
	})
	s.Require().NoError(err)

	s.Equal(int64(10), s.productStock(1))
	s.Equal(int64(6), s.productStock(2))

	_, err = s.OrderService.Cancel(s.Ctx, customer(42), order.ID)
	s.Require().NoError(err)

	s.Equal(int64(10), s.productStock(1))
	s.Equal(int64(10), s.productStock(2))
}
