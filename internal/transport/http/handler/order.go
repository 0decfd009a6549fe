package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/yasmin-dev/souq-orders/internal/currency"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/service"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"github.com/yasmin-dev/souq-orders/pkg/utils"
	"go.uber.org/zap"
)

type OrderHandler struct {
	service   service.OrderService
	presenter *currency.Presenter
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewOrderHandler(
	svc service.OrderService,
	presenter *currency.Presenter,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		service:   svc,
		presenter: presenter,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (h *OrderHandler) fail(c *fiber.Ctx, err error) error {
	status, code := mapError(err)

	if status == fiber.StatusInternalServerError {
		mylogger.Error(
			c.UserContext(),
			h.logger,
			"Order operation failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}

	mylogger.Warn(
		c.UserContext(),
		h.logger,
		"Order operation rejected",
		zap.String("path", c.Path()),
		zap.String("code", code),
		zap.Error(err),
	)

	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *OrderHandler) present(c *fiber.Ctx, order *domain.Order) *currency.PresentedOrder {
	return h.presenter.Present(c.UserContext(), order, c.Query("currency"))
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity"})
	}

	input := new(service.CreateOrderInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	order, err := h.service.Create(c.UserContext(), actor, input)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.present(c, order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := h.service.Get(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(h.present(c, order))
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity"})
	}

	query := service.ListQuery{
		Status: domain.OrderStatus(c.Query("status")),
		Search: c.Query("search"),
		Page:   int64(c.QueryInt("page", 1)),
		Limit:  int64(c.QueryInt("limit", 20)),
	}

	if query.Status != "" && !query.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown status filter"})
	}

	orders, total, err := h.service.List(c.UserContext(), actor, query)
	if err != nil {
		return h.fail(c, err)
	}

	presented := make([]*currency.PresentedOrder, 0, len(orders))
	for i := range orders {
		presented = append(presented, h.present(c, &orders[i]))
	}

	return c.JSON(fiber.Map{
		"orders": presented,
		"total":  total,
		"page":   query.Page,
		"limit":  query.Limit,
	})
}

func (h *OrderHandler) Update(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(service.UpdateOrderInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	order, err := h.service.Update(c.UserContext(), actor, id, input)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(h.present(c, order))
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := h.service.Cancel(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(h.present(c, order))
}

type changeStatusInput struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

func (h *OrderHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing identity"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(changeStatusInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	to := domain.OrderStatus(input.Status)
	if !to.Valid() {
		return h.fail(c, domain.ErrInvalidTransition)
	}

	order, err := h.service.ChangeStatus(c.UserContext(), actor, id, to, input.Note)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(h.present(c, order))
}

func (h *OrderHandler) StatusOptions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"statuses": domain.StatusOptions()})
}

func actorFromCtx(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals("actor").(domain.Actor)
	return actor, ok
}
