package application

import (
	"context"
	"errors"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

var errUnexpected = errors.New("unexpected call")

func newTestLogger() *logging.Logger {
	return logging.New(logging.DefaultConfig("test"))
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(metrics.DefaultConfig("test"))
}

type fakeFeedClient struct {
	fetchPageFn func(ctx context.Context, profile domain.CarrierProfile, page int, window domain.FeedWindow) (*domain.FeedPage, error)
}

func (f *fakeFeedClient) FetchPage(ctx context.Context, profile domain.CarrierProfile, page int, window domain.FeedWindow) (*domain.FeedPage, error) {
	if f.fetchPageFn != nil {
		return f.fetchPageFn(ctx, profile, page, window)
	}
	return nil, errUnexpected
}

type fakeDeliveryRepo struct {
	saveFn         func(ctx context.Context, record *domain.DeliveryRecord) error
	findByRowIDFn  func(ctx context.Context, rowID string) (*domain.DeliveryRecord, error)
	findPendingFn  func(ctx context.Context) ([]*domain.DeliveryRecord, error)
	updateStatusFn func(ctx context.Context, rowID, status string) error
	listFn         func(ctx context.Context, limit, offset int) ([]*domain.DeliveryRecord, error)
}

func (f *fakeDeliveryRepo) Save(ctx context.Context, record *domain.DeliveryRecord) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, record)
	}
	return errUnexpected
}

func (f *fakeDeliveryRepo) FindByRowID(ctx context.Context, rowID string) (*domain.DeliveryRecord, error) {
	if f.findByRowIDFn != nil {
		return f.findByRowIDFn(ctx, rowID)
	}
	return nil, errUnexpected
}

func (f *fakeDeliveryRepo) FindPending(ctx context.Context) ([]*domain.DeliveryRecord, error) {
	if f.findPendingFn != nil {
		return f.findPendingFn(ctx)
	}
	return nil, errUnexpected
}

func (f *fakeDeliveryRepo) UpdateStatus(ctx context.Context, rowID, status string) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, rowID, status)
	}
	return errUnexpected
}

func (f *fakeDeliveryRepo) List(ctx context.Context, limit, offset int) ([]*domain.DeliveryRecord, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit, offset)
	}
	return nil, errUnexpected
}

type fakeProductRepo struct {
	findByCodeFn             func(ctx context.Context, code string) (*domain.Product, error)
	findByNameContainsFn     func(ctx context.Context, name string) ([]*domain.Product, error)
	decrementAllowNegativeFn func(ctx context.Context, productID, variantName string, qty int) error
	decrementGuardedFn       func(ctx context.Context, productID, variantName string, qty int) error
	incrementFn              func(ctx context.Context, productID, variantName string, qty int) error
}

func (f *fakeProductRepo) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	if f.findByCodeFn != nil {
		return f.findByCodeFn(ctx, code)
	}
	return nil, errUnexpected
}

func (f *fakeProductRepo) FindByNameContains(ctx context.Context, name string) ([]*domain.Product, error) {
	if f.findByNameContainsFn != nil {
		return f.findByNameContainsFn(ctx, name)
	}
	return nil, errUnexpected
}

func (f *fakeProductRepo) DecrementAllowNegative(ctx context.Context, productID, variantName string, qty int) error {
	if f.decrementAllowNegativeFn != nil {
		return f.decrementAllowNegativeFn(ctx, productID, variantName, qty)
	}
	return errUnexpected
}

func (f *fakeProductRepo) DecrementGuarded(ctx context.Context, productID, variantName string, qty int) error {
	if f.decrementGuardedFn != nil {
		return f.decrementGuardedFn(ctx, productID, variantName, qty)
	}
	return errUnexpected
}

func (f *fakeProductRepo) Increment(ctx context.Context, productID, variantName string, qty int) error {
	if f.incrementFn != nil {
		return f.incrementFn(ctx, productID, variantName, qty)
	}
	return errUnexpected
}

type fakeSheetStore struct {
	readHeaderRowFn     func(ctx context.Context) ([]string, error)
	writeCellFn         func(ctx context.Context, tab, columnLetter string, rowNumber int, value string) error
	writeCellByHeaderFn func(ctx context.Context, tab, headerName string, rowNumber int, value string) error
}

func (f *fakeSheetStore) ReadHeaderRow(ctx context.Context) ([]string, error) {
	if f.readHeaderRowFn != nil {
		return f.readHeaderRowFn(ctx)
	}
	return nil, errUnexpected
}

func (f *fakeSheetStore) WriteCell(ctx context.Context, tab, columnLetter string, rowNumber int, value string) error {
	if f.writeCellFn != nil {
		return f.writeCellFn(ctx, tab, columnLetter, rowNumber, value)
	}
	return errUnexpected
}

func (f *fakeSheetStore) WriteCellByHeader(ctx context.Context, tab, headerName string, rowNumber int, value string) error {
	if f.writeCellByHeaderFn != nil {
		return f.writeCellByHeaderFn(ctx, tab, headerName, rowNumber, value)
	}
	return errUnexpected
}
