package domain

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type Actor struct {
	ID   int64
	Role Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// transitions is the forward edge set of the status graph. Terminal statuses
// have no outgoing edges. The refunded edge is handled separately because it
// is allowed from every non-terminal status.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) Editable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusRefunded {
		return !s.Terminal()
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CanTransition centralizes the actor rules of the status graph: who may move
// an order from one status to the next.
func CanTransition(actor Actor, from, to OrderStatus) error {
	if !to.Valid() {
		return ErrInvalidTransition
	}
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}

	switch to {
	case OrderStatusCancelled:
		// Customers cancel their own orders while still editable; ownership
		// is checked by the caller against the loaded order.
		if actor.Role == RoleCustomer && !from.Editable() {
			return ErrOrderNotCancellable
		}
		return nil
	case OrderStatusRefunded:
		if actor.Role != RoleAdmin {
			return ErrForbidden
		}
		return nil
	default:
		if !actor.IsStaff() {
			return ErrForbidden
		}
		return nil
	}
}

// StatusLabel is the bilingual display form of a status. Orders store only the
// canonical status string; rendering happens at the presentation boundary.
type StatusLabel struct {
	Value OrderStatus `json:"value"`
	En    string      `json:"en"`
	Ar    string      `json:"ar"`
}

var statusLabels = []StatusLabel{
	{OrderStatusPending, "Pending", "قيد الانتظار"},
	{OrderStatusConfirmed, "Confirmed", "مؤكد"},
	{OrderStatusProcessing, "Processing", "قيد التجهيز"},
	{OrderStatusShipped, "Shipped", "تم الشحن"},
	{OrderStatusDelivered, "Delivered", "تم التوصيل"},
	{OrderStatusCancelled, "Cancelled", "ملغي"},
	{OrderStatusRefunded, "Refunded", "مسترد"},
}

func StatusOptions() []StatusLabel {
	out := make([]StatusLabel, len(statusLabels))
	copy(out, statusLabels)
	return out
}

func LabelFor(s OrderStatus) StatusLabel {
	for _, l := range statusLabels {
		if l.Value == s {
			return l
		}
	}
	return StatusLabel{Value: s, En: string(s), Ar: string(s)}
}
