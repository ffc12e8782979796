package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is the canonical listing record every feed shape normalizes into.
// ID is the stable deduplication key across pages and across feed types;
// a fetch never emits the same ID twice.
type Item struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	PriceAmount      decimal.Decimal `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency"`
	TotalPriceAmount decimal.Decimal `json:"total_price_amount"`
	Condition        string          `json:"condition"`
	CanBuy           bool            `json:"can_buy"`
	IsReserved       bool            `json:"is_reserved"`
	Brand            string          `json:"brand,omitempty"`
	SizeLabel        string          `json:"size_label,omitempty"`
	SellerLogin      string          `json:"seller_login,omitempty"`
	SellerIsBusiness bool            `json:"seller_is_business"`
	FavouriteCount   int             `json:"favourite_count"`
	ViewCount        int             `json:"view_count"`
	AddedSince       time.Time       `json:"added_since,omitempty"`
	Photos           []Photo         `json:"photos,omitempty"`
	URL              string          `json:"url"`

	// SearchScore is the upstream relevance/tracking signal when the feed
	// provides one, zero otherwise. Blended into local scoring at low
	// weight.
	SearchScore float64 `json:"search_score,omitempty"`
}

// Available reports whether the listing can actually be bought right now.
func (i Item) Available() bool {
	return i.CanBuy && !i.IsReserved
}

// Photo is a listing photo. Timestamp, when known, is the upload time and
// doubles as the listing age signal for stale-feed detection.
type Photo struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// SearchFilters describes one upstream catalog query. Zero values mean
// "not set" and are omitted from the request.
type SearchFilters struct {
	SearchText string
	PriceFrom  decimal.Decimal
	PriceTo    decimal.Decimal
	Currency   string
	Order      string
	// Statuses restricts item condition grades server-side
	// (e.g. "new_with_tags", "very_good").
	Statuses []string
}
