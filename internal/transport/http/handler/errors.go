package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
)

// mapError translates the service error taxonomy into an HTTP status and a
// stable machine-readable code. Unknown errors stay generic on the wire.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice):
		return fiber.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrProductUnavailable):
		return fiber.StatusBadRequest, "product_unavailable"
	case errors.Is(err, domain.ErrOrderNotEditable):
		return fiber.StatusBadRequest, "order_cannot_be_updated"
	case errors.Is(err, domain.ErrOrderNotCancellable):
		return fiber.StatusBadRequest, "order_cannot_be_cancelled"
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, repository.ErrAddressNotOwned):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrOrderNotFound):
		return fiber.StatusNotFound, "order_not_found"
	case errors.Is(err, repository.ErrProductNotFound):
		return fiber.StatusNotFound, "product_not_found"
	case errors.Is(err, repository.ErrAddressNotFound):
		return fiber.StatusNotFound, "address_not_found"
	case errors.Is(err, repository.ErrInsufficientStock):
		return fiber.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, "invalid_transition"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}
