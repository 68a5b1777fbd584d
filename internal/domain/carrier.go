package domain

import "context"

// CarrierProfile is one configured external delivery API.
type CarrierProfile struct {
	Label   string
	BaseURL string
	Token   string
}

// IsConfigured reports whether the profile can be called at all.
func (p CarrierProfile) IsConfigured() bool {
	return p.BaseURL != "" && p.Token != ""
}

// FeedEntry is one order from the carrier feed. The feed has no stable
// schema guarantee; any field may be absent.
type FeedEntry struct {
	Tracking  string `json:"tracking"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// FeedPage is one page of the carrier's paginated order list.
type FeedPage struct {
	Data        []FeedEntry `json:"data"`
	CurrentPage int         `json:"current_page"`
	LastPage    int         `json:"last_page"`
}

// FeedWindow optionally narrows the feed to a date range.
type FeedWindow struct {
	StartDate string
	EndDate   string
}

// FeedClient fetches pages from a carrier's order-list endpoint.
type FeedClient interface {
	FetchPage(ctx context.Context, profile CarrierProfile, page int, window FeedWindow) (*FeedPage, error)
}
