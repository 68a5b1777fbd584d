package domain

import "context"

// DeliveryRepository persists local delivery records.
type DeliveryRepository interface {
	Save(ctx context.Context, record *DeliveryRecord) error
	FindByRowID(ctx context.Context, rowID string) (*DeliveryRecord, error)
	// FindPending returns records whose status is not terminal, regardless
	// of delivery type; the caller decides what to do with livreur orders.
	FindPending(ctx context.Context) ([]*DeliveryRecord, error)
	UpdateStatus(ctx context.Context, rowID, status string) error
	List(ctx context.Context, limit, offset int) ([]*DeliveryRecord, error)
}

// ProductRepository persists catalog products and performs the atomic
// stock adjustments. All three adjustment operations are single conditional
// updates so concurrent adjustments never lose a write to each other.
type ProductRepository interface {
	FindByCode(ctx context.Context, code string) (*Product, error)
	// FindByNameContains returns products whose name matches the searched
	// name by case-insensitive containment in either direction.
	FindByNameContains(ctx context.Context, name string) ([]*Product, error)

	// DecrementAllowNegative subtracts qty from the variant regardless of
	// the resulting sign. Fails only when the product/variant is missing.
	DecrementAllowNegative(ctx context.Context, productID, variantName string, qty int) error
	// DecrementGuarded subtracts qty only when the variant holds at least
	// qty units; otherwise returns ErrInsufficientStock.
	DecrementGuarded(ctx context.Context, productID, variantName string, qty int) error
	// Increment adds qty unconditionally.
	Increment(ctx context.Context, productID, variantName string, qty int) error
}

// SheetStore is the narrow surface of the tabular order store the
// reconciliation engine writes through. Rows and columns are 1-indexed;
// columns resolve from an explicit letter or by header-name lookup.
type SheetStore interface {
	ReadHeaderRow(ctx context.Context) ([]string, error)
	WriteCell(ctx context.Context, tab, columnLetter string, rowNumber int, value string) error
	WriteCellByHeader(ctx context.Context, tab, headerName string, rowNumber int, value string) error
}
