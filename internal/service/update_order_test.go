package service_test

import (
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	"github.com/yasmin-dev/souq-orders/internal/service"
)

func (s *IntegrationTestSuite) TestUpdateOrder_SwapItemsAdjustsStock() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedProduct(2, "Dates Box", 199, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 2})
	s.Equal(int64(8), s.productStock(1))

	updated, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		Items: []service.ItemRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 3},
		},
	})
	s.Require().NoError(err)

	s.Equal(int64(9), s.productStock(1))
	s.Equal(int64(7), s.productStock(2))

	s.Require().Len(updated.Items, 2)
	s.Equal(int64(5350+3*199), updated.Subtotal)
	s.Equal(updated.Subtotal, updated.Total)
}

func (s *IntegrationTestSuite) TestUpdateOrder_PreservesCapturedPrice() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	// Catalog price moves after the order was placed.
	_, err := s.DbPool.Exec(s.Ctx, `UPDATE products SET price = 9999 WHERE id = 1`)
	s.Require().NoError(err)

	updated, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		Items: []service.ItemRequest{{ProductID: 1, Quantity: 3}},
	})
	s.Require().NoError(err)

	s.Require().Len(updated.Items, 1)
	s.Equal(int64(5350), updated.Items[0].UnitPrice, "price captured at order time must survive the edit")
	s.Equal(int64(3*5350), updated.Subtotal)
}

func (s *IntegrationTestSuite) TestUpdateOrder_FailedSwapKeepsOriginalReservation() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedProduct(2, "Dates Box", 199, 2)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 2})
	s.Equal(int64(8), s.productStock(1))

	_, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		Items: []service.ItemRequest{{ProductID: 2, Quantity: 5}},
	})
	s.Require().ErrorIs(err, repository.ErrInsufficientStock)

	// The whole swap rolled back: old reservation intact, nothing released.
	s.Equal(int64(8), s.productStock(1))
	s.Equal(int64(2), s.productStock(2))

	loaded, err := s.OrderService.Get(s.Ctx, customer(42), order.ID)
	s.Require().NoError(err)
	s.Require().Len(loaded.Items, 1)
	s.Equal(int64(1), loaded.Items[0].ProductID)
	s.False(loaded.StockReleased)
}

func (s *IntegrationTestSuite) TestUpdateOrder_DetailsOnly() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)
	s.seedAddress(78, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	newAddress := int64(78)
	notes := "leave at the door"

	updated, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		ShippingAddressID: &newAddress,
		Notes:             &notes,
	})
	s.Require().NoError(err)

	s.Require().NotNil(updated.ShippingAddressID)
	s.Equal(int64(78), *updated.ShippingAddressID)
	s.Equal("leave at the door", updated.Notes)
	s.Equal(int64(5350), updated.Total)

	// No item change, no stock movement.
	s.Equal(int64(9), s.productStock(1))
}

func (s *IntegrationTestSuite) TestUpdateOrder_ShippingCostStaffOnly() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	shipping := int64(1500)
	_, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		ShippingCost: &shipping,
	})
	s.Require().ErrorIs(err, domain.ErrForbidden)

	updated, err := s.OrderService.Update(s.Ctx, staff(7), order.ID, &service.UpdateOrderInput{
		ShippingCost: &shipping,
	})
	s.Require().NoError(err)
	s.Equal(int64(1500), updated.ShippingCost)
	s.Equal(int64(5350+1500), updated.Total)
}

func (s *IntegrationTestSuite) TestUpdateOrder_ForeignAddressRejected() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)
	s.seedAddress(88, 99)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	foreignAddress := int64(88)
	_, err := s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		ShippingAddressID: &foreignAddress,
	})
	s.Require().ErrorIs(err, repository.ErrAddressNotOwned)
}

func (s *IntegrationTestSuite) TestUpdateOrder_RejectedOnceProcessing() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusConfirmed, "")
	s.Require().NoError(err)
	_, err = s.OrderService.ChangeStatus(s.Ctx, staff(7), order.ID, domain.OrderStatusProcessing, "")
	s.Require().NoError(err)

	notes := "too late"
	_, err = s.OrderService.Update(s.Ctx, customer(42), order.ID, &service.UpdateOrderInput{
		Notes: &notes,
	})
	s.Require().ErrorIs(err, domain.ErrOrderNotEditable)
}
