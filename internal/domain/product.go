package domain

type ProductStatus string

const (
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusApproved ProductStatus = "approved"
	ProductStatusDeclined ProductStatus = "declined"
)

// CatalogProduct is the slice of the externally owned product record the
// order core reads: price in base-currency minor units, the stock counter
// and the two availability gates.
type CatalogProduct struct {
	ID        int64         `db:"id"`
	Name      string        `db:"name"`
	Price     int64         `db:"price"`
	Stock     int64         `db:"stock"`
	Status    ProductStatus `db:"status"`
	IsAllowed bool          `db:"is_allowed"`
}

func (p CatalogProduct) Orderable() bool {
	return p.Status == ProductStatusApproved && p.IsAllowed
}
