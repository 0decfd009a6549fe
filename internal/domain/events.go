package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderPlacedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	Total      int64     `json:"total"`
	PlacedAt   time.Time `json:"placed_at"`
}

type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID   `json:"order_id"`
	CustomerID int64       `json:"customer_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	TitleEn    string      `json:"title_en"`
	TitleAr    string      `json:"title_ar"`
	MessageEn  string      `json:"message_en"`
	MessageAr  string      `json:"message_ar"`
	ChangedAt  time.Time   `json:"changed_at"`
}

// RateUpdatedEvent arrives on the rate_events topic from the pricing feed and
// upserts the stored exchange rate for one currency code.
type RateUpdatedEvent struct {
	Code      string    `json:"code"`
	Rate      string    `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
}
