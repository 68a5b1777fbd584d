package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

// Skip reasons reported in ReconcileResult.Skipped.
const (
	SkipReasonDeliveryPerson = "delivery_person_order"
	SkipReasonMissingToken   = "missing_token"
	SkipReasonUnknownStatus  = "unknown_status"
)

// StatusUpdate records one applied status transition.
type StatusUpdate struct {
	RowID         string `json:"rowId"`
	Carrier       string `json:"carrier"`
	CarrierStatus string `json:"carrierStatus"`
	OldStatus     string `json:"oldStatus"`
	NewStatus     string `json:"newStatus"`
}

// SkippedOrder records one order left untouched and why.
type SkippedOrder struct {
	RowID  string `json:"rowId"`
	Reason string `json:"reason"`
}

// OrderError records one per-order failure; other orders keep processing.
type OrderError struct {
	RowID string `json:"rowId,omitempty"`
	Error string `json:"error"`
}

// ReconcileResult is the outcome of one reconciliation run.
type ReconcileResult struct {
	RunID         string         `json:"runId"`
	Updates       []StatusUpdate `json:"updates"`
	NotFound      []string       `json:"notFound"`
	Skipped       []SkippedOrder `json:"skipped"`
	Errors        []OrderError   `json:"errors"`
	FetchedOrders int            `json:"fetchedOrders"`
	PagesFetched  int            `json:"pagesFetched"`
}

// ReconcileConfig holds the tabular-store addressing for status writes.
type ReconcileConfig struct {
	SheetTab     string
	StatusHeader string
}

// ReconcileService is the top-level reconciliation routine: it groups
// pending orders by carrier profile, scans the feeds, classifies carrier
// statuses, applies idempotent status transitions and dispatches
// best-effort stock adjustments on newly-delivered orders.
type ReconcileService struct {
	scanner    *CarrierScanner
	stock      *StockService
	dispatcher *Dispatcher
	deliveries domain.DeliveryRepository
	sheet      domain.SheetStore
	profiles   map[domain.DeliveryType]domain.CarrierProfile
	config     ReconcileConfig
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewReconcileService creates a reconcile service.
func NewReconcileService(
	scanner *CarrierScanner,
	stock *StockService,
	dispatcher *Dispatcher,
	deliveries domain.DeliveryRepository,
	sheet domain.SheetStore,
	profiles map[domain.DeliveryType]domain.CarrierProfile,
	config ReconcileConfig,
	logger *logging.Logger,
	m *metrics.Metrics,
) *ReconcileService {
	return &ReconcileService{
		scanner:    scanner,
		stock:      stock,
		dispatcher: dispatcher,
		deliveries: deliveries,
		sheet:      sheet,
		profiles:   profiles,
		config:     config,
		logger:     logger.WithComponent("reconcile-service"),
		metrics:    m,
	}
}

// carrierOrder fixes the processing order of profiles within a run.
var carrierOrder = []domain.DeliveryType{domain.DeliveryTypeDHD, domain.DeliveryTypeSook}

// Reconcile is the sole entry point for both the scheduler and manual sync.
// Calling it twice with no upstream changes produces zero updates the
// second time.
func (s *ReconcileService) Reconcile(ctx context.Context, orders []domain.ReconcileOrder, window domain.FeedWindow) *ReconcileResult {
	runID := uuid.New().String()
	ctx = logging.ContextWithRunID(ctx, runID)
	start := time.Now()

	result := &ReconcileResult{
		RunID:    runID,
		Updates:  []StatusUpdate{},
		NotFound: []string{},
		Skipped:  []SkippedOrder{},
		Errors:   []OrderError{},
	}

	batches := make(map[domain.DeliveryType][]domain.ReconcileOrder)
	for _, order := range orders {
		if order.DeliveryType == domain.DeliveryTypeLivreur {
			result.Skipped = append(result.Skipped, SkippedOrder{RowID: order.RowID, Reason: SkipReasonDeliveryPerson})
			s.metrics.RecordOrderSkipped(SkipReasonDeliveryPerson)
			continue
		}
		profile, ok := s.profiles[order.DeliveryType]
		if !ok || !profile.IsConfigured() {
			result.Skipped = append(result.Skipped, SkippedOrder{RowID: order.RowID, Reason: SkipReasonMissingToken})
			s.metrics.RecordOrderSkipped(SkipReasonMissingToken)
			continue
		}
		batches[order.DeliveryType] = append(batches[order.DeliveryType], order)
	}

	// Profiles are processed sequentially; a feed failure for one carrier
	// never affects the other.
	for _, deliveryType := range carrierOrder {
		batch := batches[deliveryType]
		if len(batch) == 0 {
			continue
		}
		profile := s.profiles[deliveryType]

		scan := s.scanner.Scan(ctx, profile, batch, window)
		result.PagesFetched += scan.PagesFetched
		result.FetchedOrders += scan.FetchedOrders

		if scan.FeedError != nil {
			result.Errors = append(result.Errors, OrderError{
				Error: fmt.Sprintf("carrier %s: %v", profile.Label, scan.FeedError),
			})
		}

		for _, match := range scan.Matches {
			s.applyMatch(ctx, profile, match, result)
		}
		for _, order := range scan.NotFound {
			result.NotFound = append(result.NotFound, order.RowID)
		}
	}

	s.logger.ReconcileRun(ctx, runID,
		len(result.Updates), len(result.NotFound), len(result.Skipped), len(result.Errors),
		result.FetchedOrders, result.PagesFetched, time.Since(start))

	return result
}

// ReconcilePending runs reconciliation over every non-terminal local order.
func (s *ReconcileService) ReconcilePending(ctx context.Context, window domain.FeedWindow) (*ReconcileResult, error) {
	records, err := s.deliveries.FindPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending deliveries: %w", err)
	}

	orders := make([]domain.ReconcileOrder, 0, len(records))
	for _, record := range records {
		orders = append(orders, record.Sanitize())
	}

	return s.Reconcile(ctx, orders, window), nil
}

func (s *ReconcileService) applyMatch(ctx context.Context, profile domain.CarrierProfile, match OrderMatch, result *ReconcileResult) {
	order := match.Order
	canonical := domain.Classify(match.Entry.Status)

	if canonical == domain.StatusUnknown {
		// An unrecognized carrier string must never regress a known
		// status, so the order is left untouched.
		s.logger.Debug("Unclassifiable carrier status",
			"rowId", order.RowID,
			"carrier", profile.Label,
			"carrierStatus", match.Entry.Status,
		)
		s.metrics.RecordUnknownStatus(profile.Label)
		result.Skipped = append(result.Skipped, SkippedOrder{RowID: order.RowID, Reason: SkipReasonUnknownStatus})
		return
	}

	newStatus := domain.LocalStatusFor(canonical)

	// Re-read the stored status just before deciding, to shrink the race
	// window against manual user actions on the same order.
	currentStatus := order.CurrentStatus
	row := order.Row
	if record, err := s.deliveries.FindByRowID(ctx, order.RowID); err == nil && record != nil {
		currentStatus = record.Status
		row = record.Row
	}

	if domain.SameStatus(currentStatus, newStatus) {
		return
	}

	if err := s.writeStatus(ctx, order.RowID, newStatus); err != nil {
		result.Errors = append(result.Errors, OrderError{RowID: order.RowID, Error: err.Error()})
		return
	}

	result.Updates = append(result.Updates, StatusUpdate{
		RowID:         order.RowID,
		Carrier:       profile.Label,
		CarrierStatus: match.Entry.Status,
		OldStatus:     currentStatus,
		NewStatus:     newStatus,
	})
	s.metrics.RecordStatusUpdate(profile.Label, string(canonical))

	// Stock effects are dispatched, never awaited: a slow or failing
	// catalog write cannot delay or fail the status transition.
	switch {
	case canonical == domain.StatusDelivered && !domain.IsDeliveredEquivalent(currentStatus):
		rowID, rowCopy := order.RowID, copyRow(row)
		s.dispatcher.Dispatch("stock-decrement:"+rowID, func(taskCtx context.Context) error {
			return s.stock.DecrementForDelivery(taskCtx, rowID, rowCopy)
		})
	case canonical == domain.StatusReturned && domain.IsDeliveredEquivalent(currentStatus):
		rowID, rowCopy := order.RowID, copyRow(row)
		s.dispatcher.Dispatch("stock-increment:"+rowID, func(taskCtx context.Context) error {
			return s.stock.IncrementForReturn(taskCtx, rowID, rowCopy)
		})
	}
}

// MarkDelivered applies a manual delivery action. Store-write failures are
// surfaced to the caller; the stock decrement is dispatched best-effort and
// its failure never reaches the user.
func (s *ReconcileService) MarkDelivered(ctx context.Context, rowID string) error {
	record, err := s.deliveries.FindByRowID(ctx, rowID)
	if err != nil {
		return err
	}

	if domain.IsDeliveredEquivalent(record.Status) {
		return nil
	}

	if err := s.writeStatus(ctx, rowID, domain.LocalStatusDelivered); err != nil {
		return err
	}

	row := copyRow(record.Row)
	s.dispatcher.Dispatch("stock-decrement:"+rowID, func(taskCtx context.Context) error {
		return s.stock.DecrementForDelivery(taskCtx, rowID, row)
	})

	return nil
}

// writeStatus persists the transition to the tabular store first (the
// source of truth), then mirrors it into the local document store.
func (s *ReconcileService) writeStatus(ctx context.Context, rowID, status string) error {
	rowNumber, err := strconv.Atoi(rowID)
	if err != nil {
		return fmt.Errorf("invalid row address %q: %w", rowID, err)
	}

	if err := s.sheet.WriteCellByHeader(ctx, s.config.SheetTab, s.config.StatusHeader, rowNumber, status); err != nil {
		return fmt.Errorf("writing status cell: %w", err)
	}

	if err := s.deliveries.UpdateStatus(ctx, rowID, status); err != nil {
		return fmt.Errorf("updating delivery record: %w", err)
	}

	return nil
}

func copyRow(row map[string]string) map[string]string {
	if row == nil {
		return nil
	}
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
