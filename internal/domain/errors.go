package domain

import "errors"

var (
	ErrEmptyOrder          = errors.New("order must contain at least one item")
	ErrInvalidQuantity     = errors.New("item quantity must be a positive integer")
	ErrInvalidPrice        = errors.New("product has no valid price")
	ErrProductUnavailable  = errors.New("product is not available for ordering")
	ErrInvalidTransition   = errors.New("status transition is not allowed")
	ErrOrderNotEditable    = errors.New("order can no longer be updated")
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")
	ErrForbidden           = errors.New("actor is not permitted to perform this operation")
)
