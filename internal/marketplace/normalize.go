package marketplace

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The upstream exposes the same listing through several feeds, each with its
// own field names and price encodings (nested object vs flat numeric-as-
// string). Everything converges on Item here. Availability flags the feed
// does not carry default conservatively: unknown means not buyable.

// rawPrice is the nested price object used by the search feed. Decimal's
// UnmarshalJSON accepts both `"12.5"` and `12.5`, which is exactly the
// inconsistency the upstream exhibits.
type rawPrice struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

type rawUser struct {
	Login    string `json:"login"`
	Business bool   `json:"business"`
}

type rawPhoto struct {
	URL            string `json:"url"`
	HighResolution *struct {
		Timestamp int64 `json:"timestamp"`
	} `json:"high_resolution"`
}

func (p rawPhoto) toPhoto() Photo {
	ph := Photo{URL: p.URL}
	if p.HighResolution != nil && p.HighResolution.Timestamp > 0 {
		ph.Timestamp = time.Unix(p.HighResolution.Timestamp, 0).UTC()
	}
	return ph
}

// SearchResultItem mirrors one entry of the paginated catalog search feed.
type SearchResultItem struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Price          rawPrice   `json:"price"`
	TotalItemPrice *rawPrice  `json:"total_item_price"`
	BrandTitle     string     `json:"brand_title"`
	SizeTitle      string     `json:"size_title"`
	Status         string     `json:"status"`
	IsReserved     *bool      `json:"is_reserved"`
	CanBuy         *bool      `json:"can_buy"`
	User           *rawUser   `json:"user"`
	FavouriteCount int        `json:"favourite_count"`
	ViewCount      int        `json:"view_count"`
	Photo          *rawPhoto  `json:"photo"`
	Photos         []rawPhoto `json:"photos"`
	URL            string     `json:"url"`
	SearchTracking *struct {
		Score float64 `json:"score"`
	} `json:"search_tracking_params"`
}

// PromotedClosetItem mirrors an entry of the promoted-closet feed: flat
// string price, separate currency field, no availability flags at all.
type PromotedClosetItem struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	BrandTitle     string          `json:"brand_title"`
	SizeTitle      string          `json:"size_title"`
	FavouriteCount int             `json:"favourite_count"`
	Photos         []rawPhoto      `json:"photos"`
	URL            string          `json:"url"`
}

// HomepageFeedItem mirrors an entry of the personalised homepage feed.
type HomepageFeedItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Price       rawPrice  `json:"price"`
	Condition   string    `json:"status"`
	IsReserved  *bool     `json:"is_reserved"`
	IsSellable  *bool     `json:"is_sellable"`
	Photo       *rawPhoto `json:"photo"`
	URL         string    `json:"url"`
	ContentSrc  string    `json:"content_source"`
	SellerLogin string    `json:"user_login"`
}

// FromSearchResult normalizes a search feed entry.
func FromSearchResult(raw SearchResultItem) (Item, error) {
	if raw.ID == 0 {
		return Item{}, &ShapeError{Feed: "search", Reason: "missing item id"}
	}
	item := Item{
		ID:             raw.ID,
		Title:          strings.TrimSpace(raw.Title),
		Description:    strings.TrimSpace(raw.Description),
		PriceAmount:    raw.Price.Amount,
		PriceCurrency:  raw.Price.CurrencyCode,
		Condition:      raw.Status,
		CanBuy:         raw.CanBuy != nil && *raw.CanBuy,
		IsReserved:     raw.IsReserved != nil && *raw.IsReserved,
		Brand:          raw.BrandTitle,
		SizeLabel:      raw.SizeTitle,
		FavouriteCount: raw.FavouriteCount,
		ViewCount:      raw.ViewCount,
		URL:            raw.URL,
	}
	if raw.TotalItemPrice != nil {
		item.TotalPriceAmount = raw.TotalItemPrice.Amount
	}
	if raw.User != nil {
		item.SellerLogin = raw.User.Login
		item.SellerIsBusiness = raw.User.Business
	}
	if raw.SearchTracking != nil {
		item.SearchScore = raw.SearchTracking.Score
	}
	for _, p := range raw.Photos {
		item.Photos = append(item.Photos, p.toPhoto())
	}
	if len(item.Photos) == 0 && raw.Photo != nil {
		item.Photos = append(item.Photos, raw.Photo.toPhoto())
	}
	for _, p := range item.Photos {
		if !p.Timestamp.IsZero() {
			item.AddedSince = p.Timestamp
			break
		}
	}
	return item, nil
}

// FromPromotedCloset normalizes a promoted-closet entry. The feed carries no
// availability flags, so the item comes back not buyable until a fuller
// record is seen.
func FromPromotedCloset(raw PromotedClosetItem) (Item, error) {
	if raw.ID == 0 {
		return Item{}, &ShapeError{Feed: "promoted_closet", Reason: "missing item id"}
	}
	item := Item{
		ID:             raw.ID,
		Title:          strings.TrimSpace(raw.Title),
		PriceAmount:    raw.Price,
		PriceCurrency:  raw.Currency,
		Brand:          raw.BrandTitle,
		SizeLabel:      raw.SizeTitle,
		FavouriteCount: raw.FavouriteCount,
		URL:            raw.URL,
	}
	for _, p := range raw.Photos {
		item.Photos = append(item.Photos, p.toPhoto())
	}
	for _, p := range item.Photos {
		if !p.Timestamp.IsZero() {
			item.AddedSince = p.Timestamp
			break
		}
	}
	return item, nil
}

// FromHomepageFeed normalizes a homepage feed entry.
func FromHomepageFeed(raw HomepageFeedItem) (Item, error) {
	if raw.ID == 0 {
		return Item{}, &ShapeError{Feed: "homepage", Reason: "missing item id"}
	}
	item := Item{
		ID:            raw.ID,
		Title:         strings.TrimSpace(raw.Title),
		PriceAmount:   raw.Price.Amount,
		PriceCurrency: raw.Price.CurrencyCode,
		Condition:     raw.Condition,
		CanBuy:        raw.IsSellable != nil && *raw.IsSellable,
		IsReserved:    raw.IsReserved != nil && *raw.IsReserved,
		SellerLogin:   raw.SellerLogin,
		URL:           raw.URL,
	}
	if raw.Photo != nil {
		ph := raw.Photo.toPhoto()
		item.Photos = append(item.Photos, ph)
		item.AddedSince = ph.Timestamp
	}
	return item, nil
}

// decodeSearchItem decodes and normalizes one raw search feed entry.
func decodeSearchItem(raw json.RawMessage) (Item, error) {
	var sr SearchResultItem
	if err := json.Unmarshal(raw, &sr); err != nil {
		return Item{}, &ShapeError{Feed: "search", Reason: err.Error()}
	}
	return FromSearchResult(sr)
}
