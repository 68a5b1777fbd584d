package application

import (
	"context"
	"time"

	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
	"github.com/oms-platform/reconciliation-service/pkg/metrics"
)

// MaxFeedPages caps how deep a single scan pages into a carrier feed.
const MaxFeedPages = 250

// OrderMatch pairs a local order with the carrier entry that matched it.
type OrderMatch struct {
	Order domain.ReconcileOrder
	Entry domain.FeedEntry
}

// ScanResult is the outcome of paging one carrier profile's feed against a
// batch of local orders.
type ScanResult struct {
	Matches       []OrderMatch
	NotFound      []domain.ReconcileOrder
	PagesFetched  int
	FetchedOrders int
	// FeedError holds the error that aborted the page loop, if any.
	// Matches collected before the failure are still valid.
	FeedError error
}

// CarrierScanner pages through a carrier feed and matches entries against a
// batch of local orders by normalized tracking number or reference.
type CarrierScanner struct {
	feed    domain.FeedClient
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewCarrierScanner creates a carrier scanner.
func NewCarrierScanner(feed domain.FeedClient, logger *logging.Logger, m *metrics.Metrics) *CarrierScanner {
	return &CarrierScanner{
		feed:    feed,
		logger:  logger.WithComponent("carrier-scanner"),
		metrics: m,
	}
}

// Scan matches the batch against the profile's feed. It stops as soon as
// every order has matched, when the carrier-reported last page is reached,
// or at the page cap. A feed error aborts the loop but keeps the matches
// collected so far.
func (s *CarrierScanner) Scan(ctx context.Context, profile domain.CarrierProfile, orders []domain.ReconcileOrder, window domain.FeedWindow) *ScanResult {
	result := &ScanResult{}
	if len(orders) == 0 {
		return result
	}

	trackingIdx := make(map[string][]int)
	referenceIdx := make(map[string][]int)
	for i, order := range orders {
		if t := domain.NormalizeIdentifier(order.Tracking); t != "" {
			trackingIdx[t] = append(trackingIdx[t], i)
		}
		if r := domain.NormalizeIdentifier(order.Reference); r != "" {
			referenceIdx[r] = append(referenceIdx[r], i)
		}
	}

	matched := make(map[string]bool, len(orders))

	for page := 1; page <= MaxFeedPages; page++ {
		start := time.Now()
		feedPage, err := s.feed.FetchPage(ctx, profile, page, window)
		s.logger.FeedFetch(ctx, profile.Label, page, pageSize(feedPage), time.Since(start), err)

		if err != nil {
			s.metrics.RecordFeedPage(profile.Label, false)
			result.FeedError = err
			break
		}

		s.metrics.RecordFeedPage(profile.Label, true)
		result.PagesFetched++
		result.FetchedOrders += len(feedPage.Data)

		for _, entry := range feedPage.Data {
			tracking := domain.NormalizeIdentifier(entry.Tracking)
			reference := domain.NormalizeIdentifier(entry.Reference)
			if tracking == "" && reference == "" {
				continue
			}

			for _, idx := range candidateOrders(trackingIdx[tracking], referenceIdx[reference]) {
				order := orders[idx]
				// First carrier sighting wins; later duplicates for
				// the same row are ignored.
				if matched[order.RowID] {
					continue
				}
				matched[order.RowID] = true
				result.Matches = append(result.Matches, OrderMatch{Order: order, Entry: entry})
			}
		}

		if len(matched) == len(orders) {
			break
		}
		if feedPage.LastPage > 0 && page >= feedPage.LastPage {
			break
		}
	}

	for _, order := range orders {
		if !matched[order.RowID] {
			result.NotFound = append(result.NotFound, order)
		}
	}

	return result
}

func candidateOrders(byTracking, byReference []int) []int {
	if len(byReference) == 0 {
		return byTracking
	}
	if len(byTracking) == 0 {
		return byReference
	}
	seen := make(map[int]bool, len(byTracking)+len(byReference))
	combined := make([]int, 0, len(byTracking)+len(byReference))
	for _, idx := range byTracking {
		if !seen[idx] {
			seen[idx] = true
			combined = append(combined, idx)
		}
	}
	for _, idx := range byReference {
		if !seen[idx] {
			seen[idx] = true
			combined = append(combined, idx)
		}
	}
	return combined
}

func pageSize(p *domain.FeedPage) int {
	if p == nil {
		return 0
	}
	return len(p.Data)
}
