package application

import (
	"context"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

// StockService performs catalog stock adjustments. The delivery-driven
// adjustments are best-effort: a missing product or a failed write is
// logged, counted, and reported back as an error value, but callers on the
// automatic path are expected to swallow it.
type StockService struct {
	matcher  *CatalogMatcher
	products domain.ProductRepository
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewStockService creates a stock service.
func NewStockService(matcher *CatalogMatcher, products domain.ProductRepository, logger *logging.Logger, m *metrics.Metrics) *StockService {
	return &StockService{
		matcher:  matcher,
		products: products,
		logger:   logger.WithComponent("stock-service"),
		metrics:  m,
	}
}

// DecrementForDelivery extracts the product from the order row, matches it
// against the catalog and decrements the matched variant, allowing the
// quantity to go negative. Over-selling stays visible instead of being
// silently blocked.
func (s *StockService) DecrementForDelivery(ctx context.Context, rowID string, row map[string]string) error {
	extracted := domain.ExtractProduct(row)

	product, variant, err := s.matcher.Match(ctx, extracted)
	if err != nil {
		s.record(ctx, "decrement", rowID, extracted, err)
		return err
	}

	err = s.products.DecrementAllowNegative(ctx, product.ID, variant.Name, extracted.Quantity)
	s.record(ctx, "decrement", rowID, extracted, err)
	return err
}

// IncrementForReturn reverses a prior delivery decrement when an order moves
// from a delivered-equivalent status back to returned.
func (s *StockService) IncrementForReturn(ctx context.Context, rowID string, row map[string]string) error {
	extracted := domain.ExtractProduct(row)

	product, variant, err := s.matcher.Match(ctx, extracted)
	if err != nil {
		s.record(ctx, "increment", rowID, extracted, err)
		return err
	}

	err = s.products.Increment(ctx, product.ID, variant.Name, extracted.Quantity)
	s.record(ctx, "increment", rowID, extracted, err)
	return err
}

// DecrementGuarded matches and decrements only when enough stock is on
// hand; domain.ErrInsufficientStock is surfaced to the caller. Used by the
// manual bulk-stock endpoint, never by the automatic delivery flow.
func (s *StockService) DecrementGuarded(ctx context.Context, extracted domain.ExtractedProduct) error {
	product, variant, err := s.matcher.Match(ctx, extracted)
	if err != nil {
		s.record(ctx, "decrement_guarded", "", extracted, err)
		return err
	}

	err = s.products.DecrementGuarded(ctx, product.ID, variant.Name, extracted.Quantity)
	s.record(ctx, "decrement_guarded", "", extracted, err)
	return err
}

// IncrementItem applies an unconditional increment for an explicit item.
// Used by the manual stock endpoint to reverse an earlier decrement.
func (s *StockService) IncrementItem(ctx context.Context, extracted domain.ExtractedProduct) error {
	product, variant, err := s.matcher.Match(ctx, extracted)
	if err != nil {
		s.record(ctx, "increment", "", extracted, err)
		return err
	}

	err = s.products.Increment(ctx, product.ID, variant.Name, extracted.Quantity)
	s.record(ctx, "increment", "", extracted, err)
	return err
}

func (s *StockService) record(ctx context.Context, operation, rowID string, extracted domain.ExtractedProduct, err error) {
	name := extracted.Name
	if name == "" {
		name = extracted.Code
	}
	s.logger.StockAdjustment(ctx, rowID, name, extracted.Variant, extracted.Quantity, err == nil, err)
	s.metrics.RecordStockAdjustment(operation, err == nil)
}
