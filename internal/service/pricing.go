package service

import (
	"context"
	"fmt"

	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"go.uber.org/zap"
)

type ItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity" validate:"required,gt=0"`
}

// Pricer validates a requested item list against the catalog and captures
// unit prices at this instant. It is strictly read-only; all stock mutation
// is the reservation ledger's job.
type Pricer struct {
	catalog repository.CatalogRepository
	logger  *zap.Logger
}

func NewPricer(catalog repository.CatalogRepository, logger *zap.Logger) *Pricer {
	return &Pricer{catalog: catalog, logger: logger}
}

// PriceItems resolves every requested product, checks availability and stock,
// and returns priced order items plus the subtotal in base-currency minor
// units. Requests for the same product are merged before validation.
func (p *Pricer) PriceItems(ctx context.Context, customerID int64, reqs []ItemRequest, addressID *int64) ([]domain.OrderItem, int64, error) {
	return p.price(ctx, customerID, reqs, addressID, true)
}

// PriceItemsSkipStock validates and prices without the stock fast-fail. Used
// during an item swap, where the released stock is only visible inside the
// swap transaction and the ledger's conditional decrement is the authority.
func (p *Pricer) PriceItemsSkipStock(ctx context.Context, customerID int64, reqs []ItemRequest) ([]domain.OrderItem, int64, error) {
	return p.price(ctx, customerID, reqs, nil, false)
}

func (p *Pricer) price(ctx context.Context, customerID int64, reqs []ItemRequest, addressID *int64, checkStock bool) ([]domain.OrderItem, int64, error) {
	if len(reqs) == 0 {
		return nil, 0, domain.ErrEmptyOrder
	}

	merged := make([]ItemRequest, 0, len(reqs))
	byProduct := make(map[int64]int, len(reqs))
	for _, req := range reqs {
		if req.Quantity <= 0 {
			return nil, 0, fmt.Errorf("product %d: %w", req.ProductID, domain.ErrInvalidQuantity)
		}

		if idx, ok := byProduct[req.ProductID]; ok {
			merged[idx].Quantity += req.Quantity

			// Summing duplicates can wrap int32 even when every part passed
			// the positivity check.
			if merged[idx].Quantity <= 0 {
				return nil, 0, fmt.Errorf("product %d: %w", req.ProductID, domain.ErrInvalidQuantity)
			}
			continue
		}

		byProduct[req.ProductID] = len(merged)
		merged = append(merged, req)
	}

	if addressID != nil {
		if err := p.catalog.CheckAddressOwnership(ctx, *addressID, customerID); err != nil {
			return nil, 0, err
		}
	}

	ids := make([]int64, 0, len(merged))
	for _, req := range merged {
		ids = append(ids, req.ProductID)
	}

	products, err := p.catalog.GetProductsForOrder(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.OrderItem, 0, len(merged))
	var subtotal int64

	for _, req := range merged {
		product, ok := products[req.ProductID]
		if !ok {
			return nil, 0, fmt.Errorf("product %d: %w", req.ProductID, repository.ErrProductNotFound)
		}

		if !product.Orderable() {
			mylogger.Warn(
				ctx,
				p.logger,
				"Product not orderable",
				zap.Int64("product_id", product.ID),
				zap.String("product_status", string(product.Status)),
				zap.Bool("is_allowed", product.IsAllowed),
			)

			return nil, 0, fmt.Errorf("product %d: %w", req.ProductID, domain.ErrProductUnavailable)
		}

		if product.Price <= 0 {
			return nil, 0, fmt.Errorf("product %d: %w", req.ProductID, domain.ErrInvalidPrice)
		}

		// Fast fail on stock here; the ledger re-checks at mutation time
		// because concurrent orders may drain stock in between.
		if checkStock && product.Stock < int64(req.Quantity) {
			return nil, 0, fmt.Errorf("product %d: %w", req.ProductID, repository.ErrInsufficientStock)
		}

		lineTotal := product.Price * int64(req.Quantity)
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  req.Quantity,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}

	return items, subtotal, nil
}
