package domain

import (
	"errors"
	"time"
)

// DeliveryType identifies how an order is fulfilled. The two api_* types are
// carrier profiles reconciled against their feeds; livreur orders are handed
// to a delivery person and closed manually, never reconciled.
type DeliveryType string

const (
	DeliveryTypeDHD     DeliveryType = "api_dhd"
	DeliveryTypeSook    DeliveryType = "api_sook"
	DeliveryTypeLivreur DeliveryType = "livreur"
)

// Local stored status values. The store keeps the historical mixed-language
// vocabulary; comparisons always go through normalization, never raw equality.
const (
	LocalStatusNew         = "new"
	LocalStatusReadyToShip = "ready_to_ship"
	LocalStatusShipped     = "SHIPPED"
	LocalStatusDelivered   = "livrée"
	LocalStatusReturned    = "retours"
	LocalStatusAbandoned   = "abandoned"
)

var (
	ErrDeliveryNotFound = errors.New("delivery record not found")
	ErrRowIDRequired    = errors.New("rowId is required")
)

// DeliveryRecord is the local document tracking one order's delivery
// metadata, keyed by the order's row address in the tabular store.
type DeliveryRecord struct {
	RowID        string            `bson:"rowId" json:"rowId"`
	Status       string            `bson:"status" json:"status"`
	Tracking     string            `bson:"tracking,omitempty" json:"tracking,omitempty"`
	DeliveryType DeliveryType      `bson:"deliveryType" json:"deliveryType"`
	Row          map[string]string `bson:"row,omitempty" json:"row,omitempty"`
	CreatedAt    time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// NewDeliveryRecord creates a delivery record in its initial state.
func NewDeliveryRecord(rowID string, deliveryType DeliveryType, row map[string]string) (*DeliveryRecord, error) {
	if rowID == "" {
		return nil, ErrRowIDRequired
	}
	now := time.Now().UTC()
	return &DeliveryRecord{
		RowID:        rowID,
		Status:       LocalStatusNew,
		DeliveryType: deliveryType,
		Row:          row,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsCarrierManaged reports whether the record participates in carrier
// reconciliation at all.
func (d *DeliveryRecord) IsCarrierManaged() bool {
	return d.DeliveryType == DeliveryTypeDHD || d.DeliveryType == DeliveryTypeSook
}

// LocalStatusFor maps a canonical status to the value stored locally and in
// the tabular store.
func LocalStatusFor(status CanonicalStatus) string {
	switch status {
	case StatusShipped:
		return LocalStatusShipped
	case StatusDelivered:
		return LocalStatusDelivered
	case StatusReturned:
		return LocalStatusReturned
	case StatusCancelled:
		return LocalStatusAbandoned
	default:
		return ""
	}
}

var (
	deliveredEquivalents = []string{"livree", "delivered"}
	returnedEquivalents  = []string{"retours", "retour", "returned"}
	cancelledEquivalents = []string{"abandoned", "annule", "cancelled"}
)

// IsDeliveredEquivalent reports whether a stored status means delivered.
func IsDeliveredEquivalent(status string) bool {
	return isEquivalent(status, deliveredEquivalents)
}

// IsReturnedEquivalent reports whether a stored status means returned.
func IsReturnedEquivalent(status string) bool {
	return isEquivalent(status, returnedEquivalents)
}

// IsTerminalStatus reports whether a stored status excludes the order from
// future carrier scans.
func IsTerminalStatus(status string) bool {
	return IsDeliveredEquivalent(status) ||
		IsReturnedEquivalent(status) ||
		isEquivalent(status, cancelledEquivalents)
}

// SameStatus compares two stored status strings case- and
// diacritic-insensitively.
func SameStatus(a, b string) bool {
	return NormalizeText(a) == NormalizeText(b)
}

func isEquivalent(status string, set []string) bool {
	normalized := NormalizeText(status)
	for _, s := range set {
		if normalized == s {
			return true
		}
	}
	return false
}

// ReconcileOrder is the sanitized shape of one local order handed to the
// reconciliation entry point. Only identifiers and the current status
// survive sanitization.
type ReconcileOrder struct {
	RowID         string            `json:"rowId"`
	Tracking      string            `json:"tracking,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	CurrentStatus string            `json:"currentStatus,omitempty"`
	DeliveryType  DeliveryType      `json:"deliveryType,omitempty"`
	Row           map[string]string `json:"-"`
}

// HasIdentifier reports whether the order carries at least one usable
// carrier-side identifier.
func (o ReconcileOrder) HasIdentifier() bool {
	return NormalizeIdentifier(o.Tracking) != "" || NormalizeIdentifier(o.Reference) != ""
}

var referenceHeaders = []string{"reference", "ref", "numero de commande", "num commande", "order id"}

// Reference extracts the free-text carrier reference from the row snapshot.
func (d *DeliveryRecord) Reference() string {
	return lookupField(d.Row, referenceHeaders)
}

// Sanitize reduces a delivery record to the shape the reconciliation entry
// point accepts.
func (d *DeliveryRecord) Sanitize() ReconcileOrder {
	return ReconcileOrder{
		RowID:         d.RowID,
		Tracking:      d.Tracking,
		Reference:     d.Reference(),
		CurrentStatus: d.Status,
		DeliveryType:  d.DeliveryType,
		Row:           d.Row,
	}
}
