package carriers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
	"github.com/oms-platform/reconciliation-service/pkg/resilience"
)

var feedTracer = otel.Tracer("reconciliation-service/carriers")

// RequestTimeout bounds each feed page request so a hung upstream cannot
// stall a reconciliation run past one tick.
const RequestTimeout = 10 * time.Second

// HTTPFeedClient implements domain.FeedClient against the carriers' shared
// order-list API shape. Each carrier profile gets its own circuit breaker so
// one flapping upstream never opens the other's circuit.
type HTTPFeedClient struct {
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewHTTPFeedClient creates a feed client.
func NewHTTPFeedClient(logger *logging.Logger, m *metrics.Metrics) *HTTPFeedClient {
	return &HTTPFeedClient{
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		logger:   logger.WithComponent("feed-client"),
		metrics:  m,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// FetchPage fetches one page of the carrier's order feed.
func (c *HTTPFeedClient) FetchPage(ctx context.Context, profile domain.CarrierProfile, page int, window domain.FeedWindow) (*domain.FeedPage, error) {
	ctx, span := feedTracer.Start(ctx, "carriers.FetchPage",
		trace.WithAttributes(
			attribute.String("carrier", profile.Label),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if !profile.IsConfigured() {
		return nil, fmt.Errorf("carrier %s is not configured", profile.Label)
	}

	breaker := c.breakerFor(profile.Label)

	result, err := breaker.Execute(ctx, func() (interface{}, error) {
		return c.fetchPage(ctx, profile, page, window)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	feedPage := result.(*domain.FeedPage)
	span.SetAttributes(
		attribute.Int("entries", len(feedPage.Data)),
		attribute.Int("last_page", feedPage.LastPage),
	)
	return feedPage, nil
}

func (c *HTTPFeedClient) fetchPage(ctx context.Context, profile domain.CarrierProfile, page int, window domain.FeedWindow) (*domain.FeedPage, error) {
	endpoint, err := url.Parse(profile.BaseURL + "/api/v1/get/orders")
	if err != nil {
		return nil, fmt.Errorf("invalid carrier base URL: %w", err)
	}

	query := endpoint.Query()
	query.Set("page", strconv.Itoa(page))
	if window.StartDate != "" {
		query.Set("start_date", window.StartDate)
	}
	if window.EndDate != "" {
		query.Set("end_date", window.EndDate)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+profile.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("carrier %s returned status %d: %s", profile.Label, resp.StatusCode, string(body))
	}

	var payload feedPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}

	return payload.toDomain(), nil
}

func (c *HTTPFeedClient) breakerFor(label string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if breaker, ok := c.breakers[label]; ok {
		return breaker
	}

	breaker := resilience.NewCircuitBreaker(
		resilience.DefaultCircuitBreakerConfig("carrier-feed-"+label),
		c.logger.Logger,
	)
	c.breakers[label] = breaker
	return breaker
}

// feedPageResponse mirrors the carriers' wire format. Entries are
// schema-loose: any field may be absent, null, or a number instead of a
// string.
type feedPageResponse struct {
	Data        []feedEntryResponse `json:"data"`
	CurrentPage int                 `json:"current_page"`
	LastPage    int                 `json:"last_page"`
}

type feedEntryResponse struct {
	Tracking  looseString `json:"tracking"`
	Reference looseString `json:"reference"`
	Status    looseString `json:"status"`
}

func (r *feedPageResponse) toDomain() *domain.FeedPage {
	page := &domain.FeedPage{
		CurrentPage: r.CurrentPage,
		LastPage:    r.LastPage,
		Data:        make([]domain.FeedEntry, 0, len(r.Data)),
	}
	for _, entry := range r.Data {
		page.Data = append(page.Data, domain.FeedEntry{
			Tracking:  string(entry.Tracking),
			Reference: string(entry.Reference),
			Status:    string(entry.Status),
		})
	}
	return page
}

// looseString tolerates null and numeric JSON values.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = looseString(num.String())
		return nil
	}
	return fmt.Errorf("unsupported value %s", string(data))
}
