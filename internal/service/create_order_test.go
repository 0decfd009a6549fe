package service_test

import (
	"sync"
	"time"

	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	"github.com/yasmin-dev/souq-orders/internal/service"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedProduct(2, "Dates Box", 199, 5)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77,
		service.ItemRequest{ProductID: 1, Quantity: 2},
		service.ItemRequest{ProductID: 2, Quantity: 1},
	)

	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(int64(42), order.CustomerID)
	s.Equal(int64(2*5350+199), order.Subtotal)
	s.Equal(order.Subtotal, order.Total)

	s.Equal(int64(8), s.productStock(1))
	s.Equal(int64(4), s.productStock(2))

	loaded, err := s.OrderService.Get(s.Ctx, customer(42), order.ID)
	s.Require().NoError(err)
	s.Len(loaded.Items, 2)
	s.Equal(int64(5350), loaded.Items[0].UnitPrice)
	s.Require().Len(loaded.StatusLog, 1)
	s.Equal(domain.OrderStatusPending, loaded.StatusLog[0].Status)

	publishedAtQuery := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, publishedAtQuery, order.ID.String()).
			Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientStockRollsBackEverything() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedProduct(2, "Dates Box", 199, 1)
	s.seedAddress(77, 42)

	addressID := int64(77)
	_, err := s.OrderService.Create(s.Ctx, customer(42), &service.CreateOrderInput{
		Items: []service.ItemRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		},
		ShippingAddressID: &addressID,
	})
	s.Require().ErrorIs(err, repository.ErrInsufficientStock)

	// The first item's decrement must have rolled back with the failed one.
	s.Equal(int64(10), s.productStock(1))
	s.Equal(int64(1), s.productStock(2))

	var orderCount int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&orderCount))
	s.Equal(int64(0), orderCount)
}

func (s *IntegrationTestSuite) TestCreateOrder_ConcurrentLastUnit() {
	s.seedProduct(1, "Last Unit", 5350, 1)
	s.seedAddress(77, 42)
	s.seedAddress(78, 43)

	addresses := map[int64]int64{42: 77, 43: 78}

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i, customerID := range []int64{42, 43} {
		wg.Add(1)
		go func(slot int, id int64) {
			defer wg.Done()

			addressID := addresses[id]
			_, results[slot] = s.OrderService.Create(s.Ctx, customer(id), &service.CreateOrderInput{
				Items:             []service.ItemRequest{{ProductID: 1, Quantity: 1}},
				ShippingAddressID: &addressID,
			})
		}(i, customerID)
	}
	wg.Wait()

	var failures int
	for _, err := range results {
		if err != nil {
			s.Require().ErrorIs(err, repository.ErrInsufficientStock)
			failures++
		}
	}

	s.Equal(1, failures, "exactly one of the two concurrent orders must lose the last unit")
	s.Equal(int64(0), s.productStock(1))
}

func (s *IntegrationTestSuite) TestCreateOrder_StaffOnBehalfStartsConfirmed() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	addressID := int64(77)
	targetCustomer := int64(42)

	order, err := s.OrderService.Create(s.Ctx, staff(7), &service.CreateOrderInput{
		Items:             []service.ItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddressID: &addressID,
		CustomerID:        &targetCustomer,
	})
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusConfirmed, order.Status)
	s.Equal(int64(42), order.CustomerID)

	loaded, err := s.OrderService.Get(s.Ctx, staff(7), order.ID)
	s.Require().NoError(err)
	s.Require().Len(loaded.StatusLog, 1)
	s.Equal(int64(7), loaded.StatusLog[0].ActorID)
	s.Equal(domain.RoleStaff, loaded.StatusLog[0].ActorRole)
}

func (s *IntegrationTestSuite) TestCreateOrder_CustomerCannotOrderForOthers() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	addressID := int64(77)
	otherCustomer := int64(99)

	_, err := s.OrderService.Create(s.Ctx, customer(42), &service.CreateOrderInput{
		Items:             []service.ItemRequest{{ProductID: 1, Quantity: 1}},
		ShippingAddressID: &addressID,
		CustomerID:        &otherCustomer,
	})
	s.Require().ErrorIs(err, domain.ErrForbidden)
}

func (s *IntegrationTestSuite) TestGetOrder_ScopedToOwner() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedAddress(77, 42)

	order := s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})

	_, err := s.OrderService.Get(s.Ctx, customer(43), order.ID)
	s.Require().ErrorIs(err, repository.ErrOrderNotFound)

	_, err = s.OrderService.Get(s.Ctx, staff(7), order.ID)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TestListOrders_FiltersAndScoping() {
	s.seedProduct(1, "Oud Perfume", 5350, 10)
	s.seedProduct(2, "Dates Box", 199, 10)
	s.seedAddress(77, 42)
	s.seedAddress(78, 43)

	s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 1, Quantity: 1})
	s.placeOrder(customer(42), 77, service.ItemRequest{ProductID: 2, Quantity: 1})
	s.placeOrder(customer(43), 78, service.ItemRequest{ProductID: 1, Quantity: 1})

	orders, total, err := s.OrderService.List(s.Ctx, customer(42), service.ListQuery{})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(orders, 2)

	orders, total, err = s.OrderService.List(s.Ctx, staff(7), service.ListQuery{})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(orders, 3)

	orders, total, err = s.OrderService.List(s.Ctx, staff(7), service.ListQuery{Search: "dates"})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(orders, 1)
	s.Equal("Dates Box", orders[0].Items[0].Name)
}
