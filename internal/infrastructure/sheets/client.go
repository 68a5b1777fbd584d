package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
)

var sheetsTracer = otel.Tracer("reconciliation-service/sheets")

// HeaderCacheTTL bounds how long a header row is trusted before re-reading.
const HeaderCacheTTL = 5 * time.Minute

// Config holds the tabular-store connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the tabular order store over HTTP. Rows and columns are
// 1-indexed; columns are addressed by letter. The header row is cached on
// the client instance (not a package singleton) so separate clients never
// share cache state.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger

	headerCache headerCache
}

// headerCache is the explicit header-row cache with a TTL.
type headerCache struct {
	mu        sync.Mutex
	values    []string
	fetchedAt time.Time
}

// NewClient creates a sheet client.
func NewClient(config Config, logger *logging.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.WithComponent("sheet-client"),
	}
}

// ReadHeaderRow returns the first row of the sheet, cached for
// HeaderCacheTTL.
func (c *Client) ReadHeaderRow(ctx context.Context) ([]string, error) {
	c.headerCache.mu.Lock()
	defer c.headerCache.mu.Unlock()

	if c.headerCache.values != nil && time.Since(c.headerCache.fetchedAt) < HeaderCacheTTL {
		return append([]string(nil), c.headerCache.values...), nil
	}

	values, err := c.fetchHeaderRow(ctx)
	if err != nil {
		return nil, err
	}

	c.headerCache.values = values
	c.headerCache.fetchedAt = time.Now()
	return append([]string(nil), values...), nil
}

// WriteCell writes one value at an explicit column letter and 1-indexed row.
func (c *Client) WriteCell(ctx context.Context, tab, columnLetter string, rowNumber int, value string) error {
	ctx, span := sheetsTracer.Start(ctx, "sheets.WriteCell",
		trace.WithAttributes(
			attribute.String("tab", tab),
			attribute.String("cell", fmt.Sprintf("%s%d", columnLetter, rowNumber)),
		),
	)
	defer span.End()

	if rowNumber < 1 {
		return fmt.Errorf("row number must be 1-indexed, got %d", rowNumber)
	}

	endpoint := fmt.Sprintf("%s/api/v1/sheets/%s/cells/%s%d",
		c.baseURL, url.PathEscape(tab), columnLetter, rowNumber)

	body, err := json.Marshal(map[string]string{"value": value})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write cell: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("sheet store returned status %d: %s", resp.StatusCode, string(respBody))
		span.RecordError(err)
		return err
	}

	return nil
}

// WriteCellByHeader resolves the column letter from the header row, then
// writes the cell.
func (c *Client) WriteCellByHeader(ctx context.Context, tab, headerName string, rowNumber int, value string) error {
	headers, err := c.ReadHeaderRow(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve column %q: %w", headerName, err)
	}

	column, ok := findColumn(headers, headerName)
	if !ok {
		// The sheet layout may have changed since the cache fill.
		c.invalidateHeaderCache()
		headers, err = c.ReadHeaderRow(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve column %q: %w", headerName, err)
		}
		column, ok = findColumn(headers, headerName)
		if !ok {
			return fmt.Errorf("column %q not found in header row", headerName)
		}
	}

	return c.WriteCell(ctx, tab, column, rowNumber, value)
}

func (c *Client) invalidateHeaderCache() {
	c.headerCache.mu.Lock()
	c.headerCache.values = nil
	c.headerCache.mu.Unlock()
}

func (c *Client) fetchHeaderRow(ctx context.Context) ([]string, error) {
	endpoint := c.baseURL + "/api/v1/sheets/header"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sheet store returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Values []string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode header row: %w", err)
	}
	return payload.Values, nil
}

// findColumn maps a header name to its column letter (1-indexed: the first
// header is column A).
func findColumn(headers []string, name string) (string, bool) {
	for i, header := range headers {
		if domain.SameText(header, name) {
			return ColumnLetter(i + 1), true
		}
	}
	return "", false
}

// ColumnLetter converts a 1-indexed column number to its letter address
// (1 -> A, 26 -> Z, 27 -> AA).
func ColumnLetter(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

var _ domain.SheetStore = (*Client)(nil)
