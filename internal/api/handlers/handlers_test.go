package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oms-platform/reconciliation-service/internal/application"
	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

var errUnexpected = errors.New("unexpected call")

type fakeFeedClient struct {
	fetchPageFn func(context.Context, domain.CarrierProfile, int, domain.FeedWindow) (*domain.FeedPage, error)
}

func (f *fakeFeedClient) FetchPage(ctx context.Context, profile domain.CarrierProfile, page int, window domain.FeedWindow) (*domain.FeedPage, error) {
	if f.fetchPageFn == nil {
		return nil, errUnexpected
	}
	return f.fetchPageFn(ctx, profile, page, window)
}

type fakeDeliveryRepo struct {
	saveFn         func(context.Context, *domain.DeliveryRecord) error
	findByRowIDFn  func(context.Context, string) (*domain.DeliveryRecord, error)
	findPendingFn  func(context.Context) ([]*domain.DeliveryRecord, error)
	updateStatusFn func(context.Context, string, string) error
	listFn         func(context.Context, int, int) ([]*domain.DeliveryRecord, error)
}

func (f *fakeDeliveryRepo) Save(ctx context.Context, record *domain.DeliveryRecord) error {
	if f.saveFn == nil {
		return errUnexpected
	}
	return f.saveFn(ctx, record)
}

func (f *fakeDeliveryRepo) FindByRowID(ctx context.Context, rowID string) (*domain.DeliveryRecord, error) {
	if f.findByRowIDFn == nil {
		return nil, errUnexpected
	}
	return f.findByRowIDFn(ctx, rowID)
}

func (f *fakeDeliveryRepo) FindPending(ctx context.Context) ([]*domain.DeliveryRecord, error) {
	if f.findPendingFn == nil {
		return nil, errUnexpected
	}
	return f.findPendingFn(ctx)
}

func (f *fakeDeliveryRepo) UpdateStatus(ctx context.Context, rowID, status string) error {
	if f.updateStatusFn == nil {
		return errUnexpected
	}
	return f.updateStatusFn(ctx, rowID, status)
}

func (f *fakeDeliveryRepo) List(ctx context.Context, limit, offset int) ([]*domain.DeliveryRecord, error) {
	if f.listFn == nil {
		return nil, errUnexpected
	}
	return f.listFn(ctx, limit, offset)
}

type fakeProductRepo struct {
	findByCodeFn        func(context.Context, string) (*domain.Product, error)
	findByNameFn        func(context.Context, string) ([]*domain.Product, error)
	decrementGuardedFn  func(context.Context, string, string, int) error
	decrementAllowNegFn func(context.Context, string, string, int) error
	incrementFn         func(context.Context, string, string, int) error
}

func (f *fakeProductRepo) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	if f.findByCodeFn == nil {
		return nil, errUnexpected
	}
	return f.findByCodeFn(ctx, code)
}

func (f *fakeProductRepo) FindByNameContains(ctx context.Context, name string) ([]*domain.Product, error) {
	if f.findByNameFn == nil {
		return nil, errUnexpected
	}
	return f.findByNameFn(ctx, name)
}

func (f *fakeProductRepo) DecrementAllowNegative(ctx context.Context, productID, variantName string, qty int) error {
	if f.decrementAllowNegFn == nil {
		return errUnexpected
	}
	return f.decrementAllowNegFn(ctx, productID, variantName, qty)
}

func (f *fakeProductRepo) DecrementGuarded(ctx context.Context, productID, variantName string, qty int) error {
	if f.decrementGuardedFn == nil {
		return errUnexpected
	}
	return f.decrementGuardedFn(ctx, productID, variantName, qty)
}

func (f *fakeProductRepo) Increment(ctx context.Context, productID, variantName string, qty int) error {
	if f.incrementFn == nil {
		return errUnexpected
	}
	return f.incrementFn(ctx, productID, variantName, qty)
}

type fakeSheetStore struct {
	writeCellByHeaderFn func(context.Context, string, string, int, string) error
}

func (f *fakeSheetStore) ReadHeaderRow(context.Context) ([]string, error) {
	return nil, errUnexpected
}

func (f *fakeSheetStore) WriteCell(context.Context, string, string, int, string) error {
	return errUnexpected
}

func (f *fakeSheetStore) WriteCellByHeader(ctx context.Context, tab, headerName string, rowNumber int, value string) error {
	if f.writeCellByHeaderFn == nil {
		return errUnexpected
	}
	return f.writeCellByHeaderFn(ctx, tab, headerName, rowNumber, value)
}

type handlerEnv struct {
	router     *gin.Engine
	scheduler  *application.Scheduler
	service    *application.ReconcileService
	feed       *fakeFeedClient
	deliveries *fakeDeliveryRepo
	products   *fakeProductRepo
	sheet      *fakeSheetStore
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	feed := &fakeFeedClient{}
	deliveries := &fakeDeliveryRepo{}
	products := &fakeProductRepo{}
	sheet := &fakeSheetStore{}

	logger := logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "test",
		Environment: "test",
		Version:     "test",
		Output:      io.Discard,
	})
	m := metrics.New(metrics.DefaultConfig("handlers-test"))

	scanner := application.NewCarrierScanner(feed, logger, m)
	matcher := application.NewCatalogMatcher(products, logger)
	stock := application.NewStockService(matcher, products, logger, m)
	dispatcher := application.NewDispatcher(4, time.Second, logger)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	profiles := map[domain.DeliveryType]domain.CarrierProfile{
		domain.DeliveryTypeDHD: {Label: "dhd", BaseURL: "http://dhd.test", Token: "t"},
	}
	service := application.NewReconcileService(
		scanner, stock, dispatcher, deliveries, sheet, profiles,
		application.ReconcileConfig{SheetTab: "Orders", StatusHeader: "Status"},
		logger, m,
	)
	scheduler := application.NewScheduler(service, time.Hour, logger, m)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/api/v1")
	NewReconcileHandler(scheduler, logger).RegisterRoutes(group)
	NewDeliveryHandler(service, deliveries, logger).RegisterRoutes(group)
	NewStockHandler(stock, logger).RegisterRoutes(group)

	return &handlerEnv{
		router:     router,
		scheduler:  scheduler,
		service:    service,
		feed:       feed,
		deliveries: deliveries,
		products:   products,
		sheet:      sheet,
	}
}

func performRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRunNowEmptyBody(t *testing.T) {
	env := newHandlerEnv(t)
	env.deliveries.findPendingFn = func(context.Context) ([]*domain.DeliveryRecord, error) {
		return nil, nil
	}

	resp := performRequest(env.router, http.MethodPost, "/api/v1/reconcile/run", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var result application.ReconcileResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.NotEmpty(t, result.RunID)
	require.Empty(t, result.Updates)
}

func TestRunNowForwardsWindow(t *testing.T) {
	env := newHandlerEnv(t)
	var gotWindow domain.FeedWindow
	env.deliveries.findPendingFn = func(context.Context) ([]*domain.DeliveryRecord, error) {
		return []*domain.DeliveryRecord{
			{RowID: "2", Status: "SHIPPED", Tracking: "TRK-1", DeliveryType: domain.DeliveryTypeDHD},
		}, nil
	}
	env.feed.fetchPageFn = func(_ context.Context, _ domain.CarrierProfile, _ int, window domain.FeedWindow) (*domain.FeedPage, error) {
		gotWindow = window
		return &domain.FeedPage{CurrentPage: 1, LastPage: 1}, nil
	}

	body, _ := json.Marshal(map[string]string{
		"startDate": "2026-08-01",
		"endDate":   "2026-08-31",
	})
	resp := performRequest(env.router, http.MethodPost, "/api/v1/reconcile/run", body)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "2026-08-01", gotWindow.StartDate)
	require.Equal(t, "2026-08-31", gotWindow.EndDate)
}

func TestRunNowConflictWhileRunning(t *testing.T) {
	env := newHandlerEnv(t)

	release := make(chan struct{})
	started := make(chan struct{})
	env.deliveries.findPendingFn = func(context.Context) ([]*domain.DeliveryRecord, error) {
		close(started)
		<-release
		return nil, nil
	}

	go func() {
		_, _ = env.scheduler.RunNow(context.Background(), domain.FeedWindow{})
	}()
	<-started
	defer close(release)

	resp := performRequest(env.router, http.MethodPost, "/api/v1/reconcile/run", nil)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetStatus(t *testing.T) {
	env := newHandlerEnv(t)

	resp := performRequest(env.router, http.MethodGet, "/api/v1/reconcile/status", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var status application.SchedulerStatus
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	require.False(t, status.Running)
	require.Nil(t, status.LastRun)
}

func TestListDeliveries(t *testing.T) {
	env := newHandlerEnv(t)
	env.deliveries.listFn = func(_ context.Context, limit, offset int) ([]*domain.DeliveryRecord, error) {
		require.Equal(t, 25, limit)
		require.Equal(t, 50, offset)
		return []*domain.DeliveryRecord{{RowID: "2"}}, nil
	}

	resp := performRequest(env.router, http.MethodGet, "/api/v1/deliveries?limit=25&offset=50", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"total":1`)
}

func TestGetDeliveryNotFound(t *testing.T) {
	env := newHandlerEnv(t)
	env.deliveries.findByRowIDFn = func(context.Context, string) (*domain.DeliveryRecord, error) {
		return nil, domain.ErrDeliveryNotFound
	}

	resp := performRequest(env.router, http.MethodGet, "/api/v1/deliveries/42", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMarkDelivered(t *testing.T) {
	env := newHandlerEnv(t)
	env.deliveries.findByRowIDFn = func(_ context.Context, rowID string) (*domain.DeliveryRecord, error) {
		return &domain.DeliveryRecord{RowID: rowID, Status: "SHIPPED"}, nil
	}
	var wroteStatus string
	env.sheet.writeCellByHeaderFn = func(_ context.Context, _, _ string, _ int, value string) error {
		wroteStatus = value
		return nil
	}
	env.deliveries.updateStatusFn = func(context.Context, string, string) error { return nil }
	env.products.findByCodeFn = func(context.Context, string) (*domain.Product, error) {
		return nil, domain.ErrProductNotFound
	}
	env.products.findByNameFn = func(context.Context, string) ([]*domain.Product, error) {
		return nil, nil
	}

	resp := performRequest(env.router, http.MethodPost, "/api/v1/deliveries/7/deliver", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, domain.LocalStatusDelivered, wroteStatus)
}

func TestMarkDeliveredNotFound(t *testing.T) {
	env := newHandlerEnv(t)
	env.deliveries.findByRowIDFn = func(context.Context, string) (*domain.DeliveryRecord, error) {
		return nil, domain.ErrDeliveryNotFound
	}

	resp := performRequest(env.router, http.MethodPost, "/api/v1/deliveries/7/deliver", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDecrementStockBadJSON(t *testing.T) {
	env := newHandlerEnv(t)
	resp := performRequest(env.router, http.MethodPost, "/api/v1/stock/decrement", []byte("{bad"))
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDecrementStockApplied(t *testing.T) {
	env := newHandlerEnv(t)
	env.products.findByCodeFn = func(_ context.Context, code string) (*domain.Product, error) {
		return &domain.Product{
			ID:   "p-1",
			Name: "T-shirt",
			Variants: []domain.Variant{
				{Name: "Rouge / M", Quantity: 10},
			},
		}, nil
	}
	var gotQty int
	env.products.decrementGuardedFn = func(_ context.Context, productID, variantName string, qty int) error {
		require.Equal(t, "p-1", productID)
		require.Equal(t, "Rouge / M", variantName)
		gotQty = qty
		return nil
	}

	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"code": "TS-1", "variant": "Rouge / M", "quantity": 3},
		},
	})
	resp := performRequest(env.router, http.MethodPost, "/api/v1/stock/decrement", body)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 3, gotQty)
	require.Contains(t, resp.Body.String(), `"applied":1`)
}

func TestDecrementStockInsufficient(t *testing.T) {
	env := newHandlerEnv(t)
	env.products.findByCodeFn = func(context.Context, string) (*domain.Product, error) {
		return &domain.Product{
			ID:       "p-1",
			Name:     "T-shirt",
			Variants: []domain.Variant{{Name: "default", Quantity: 1}},
		}, nil
	}
	env.products.decrementGuardedFn = func(context.Context, string, string, int) error {
		return domain.ErrInsufficientStock
	}

	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"code": "TS-1", "quantity": 5},
		},
	})
	resp := performRequest(env.router, http.MethodPost, "/api/v1/stock/decrement", body)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, resp.Body.String(), `"failed":1`)
}

func TestIncrementStockApplied(t *testing.T) {
	env := newHandlerEnv(t)
	env.products.findByCodeFn = func(context.Context, string) (*domain.Product, error) {
		return &domain.Product{
			ID:       "p-1",
			Name:     "T-shirt",
			Variants: []domain.Variant{{Name: "default", Quantity: 0}},
		}, nil
	}
	var gotQty int
	env.products.incrementFn = func(_ context.Context, productID, variantName string, qty int) error {
		require.Equal(t, "p-1", productID)
		gotQty = qty
		return nil
	}

	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"code": "TS-1", "quantity": 2},
		},
	})
	resp := performRequest(env.router, http.MethodPost, "/api/v1/stock/increment", body)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 2, gotQty)
}

func TestDecrementStockUnknownProduct(t *testing.T) {
	env := newHandlerEnv(t)
	env.products.findByCodeFn = func(context.Context, string) (*domain.Product, error) {
		return nil, domain.ErrProductNotFound
	}
	env.products.findByNameFn = func(context.Context, string) ([]*domain.Product, error) {
		return nil, nil
	}

	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"code": "NOPE", "quantity": 1},
		},
	})
	resp := performRequest(env.router, http.MethodPost, "/api/v1/stock/decrement", body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
