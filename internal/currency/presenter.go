package currency

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yasmin-dev/souq-orders/internal/domain"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// PresentedOrder is the read-time view of an order with all monetary fields
// converted into the requested display currency. The stored order is never
// touched; presenting the same order twice in different currencies is safe.
type PresentedOrder struct {
	ID                string             `json:"id"`
	CustomerID        int64              `json:"customer_id"`
	Status            domain.StatusLabel `json:"status"`
	Items             []PresentedItem    `json:"items"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	ShippingCost      decimal.Decimal    `json:"shipping_cost"`
	Total             decimal.Decimal    `json:"total"`
	Currency          string             `json:"currency"`
	CurrencyFallback  bool               `json:"currency_fallback,omitempty"`
	ShippingAddressID *int64             `json:"shipping_address_id"`
	PaymentMethod     string             `json:"payment_method,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	StatusLog         []PresentedLog     `json:"status_log,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type PresentedItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int32           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type PresentedLog struct {
	Status    domain.StatusLabel `json:"status"`
	ActorID   int64              `json:"actor_id"`
	ActorRole domain.Role        `json:"actor_role"`
	Note      string             `json:"note,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type Presenter struct {
	base   string
	rates  RateProvider
	logger *zap.Logger
}

func NewPresenter(baseCurrency string, rates RateProvider, logger *zap.Logger) *Presenter {
	return &Presenter{
		base:   strings.ToUpper(baseCurrency),
		rates:  rates,
		logger: logger,
	}
}

var centsPerUnit = decimal.NewFromInt(100)

// Present converts the order's stored base-currency amounts into the target
// currency. A missing rate or a failing rate source degrades to the base
// currency with an explicit fallback flag instead of failing the request.
func (p *Presenter) Present(ctx context.Context, order *domain.Order, target string) *PresentedOrder {
	target = strings.ToUpper(strings.TrimSpace(target))

	rate := decimal.NewFromInt(1)
	currency := p.base
	fallback := false

	if target != "" && target != p.base {
		r, err := p.rates.Rate(ctx, target)
		if err != nil {
			mylogger.Warn(
				ctx,
				p.logger,
				"Rate lookup failed, falling back to base currency",
				zap.String("currency", target),
				zap.Error(err),
			)

			fallback = true
		} else {
			rate = r
			currency = target
		}
	}

	out := &PresentedOrder{
		ID:                order.ID.String(),
		CustomerID:        order.CustomerID,
		Status:            domain.LabelFor(order.Status),
		Items:             make([]PresentedItem, 0, len(order.Items)),
		Subtotal:          convert(order.Subtotal, rate),
		ShippingCost:      convert(order.ShippingCost, rate),
		Currency:          currency,
		CurrencyFallback:  fallback,
		ShippingAddressID: order.ShippingAddressID,
		PaymentMethod:     order.PaymentMethod,
		Notes:             order.Notes,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}

	// The grand total is derived from the converted components so that
	// total = subtotal + shipping holds exactly in the target currency.
	out.Total = out.Subtotal.Add(out.ShippingCost)

	for _, item := range order.Items {
		out.Items = append(out.Items, PresentedItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: convert(item.UnitPrice, rate),
			Quantity:  item.Quantity,
			LineTotal: convert(item.LineTotal, rate),
		})
	}

	for _, entry := range order.StatusLog {
		out.StatusLog = append(out.StatusLog, PresentedLog{
			Status:    domain.LabelFor(entry.Status),
			ActorID:   entry.ActorID,
			ActorRole: entry.ActorRole,
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}

	return out
}

func convert(minorUnits int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(minorUnits).Div(centsPerUnit).Mul(rate).Round(2)
}
