package marketplace

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestFromSearchResultStringAndNumericPrices(t *testing.T) {
	// The upstream emits prices both as quoted strings and bare numbers,
	// sometimes within the same page.
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"string price", `{"id": 1, "title": "Zelda", "price": {"amount": "24.50", "currency_code": "EUR"}}`, "24.5"},
		{"numeric price", `{"id": 2, "title": "Mario", "price": {"amount": 24.50, "currency_code": "EUR"}}`, "24.5"},
		{"integer price", `{"id": 3, "title": "Metroid", "price": {"amount": 30, "currency_code": "EUR"}}`, "30"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var sr SearchResultItem
			if err := json.Unmarshal([]byte(c.raw), &sr); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			item, err := FromSearchResult(sr)
			if err != nil {
				t.Fatalf("FromSearchResult: %v", err)
			}
			if item.PriceAmount.String() != c.want {
				t.Errorf("PriceAmount = %s; want %s", item.PriceAmount, c.want)
			}
			if item.PriceCurrency != "EUR" {
				t.Errorf("PriceCurrency = %q; want EUR", item.PriceCurrency)
			}
		})
	}
}

func TestFromSearchResultConservativeAvailability(t *testing.T) {
	// Absent flags default to not buyable, never the optimistic reading.
	var sr SearchResultItem
	raw := `{"id": 9, "title": "Pokemon", "price": {"amount": "12", "currency_code": "EUR"}}`
	if err := json.Unmarshal([]byte(raw), &sr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	item, err := FromSearchResult(sr)
	if err != nil {
		t.Fatalf("FromSearchResult: %v", err)
	}
	if item.CanBuy || item.IsReserved {
		t.Errorf("missing flags must normalize to CanBuy=false IsReserved=false, got %+v", item)
	}
	if item.Available() {
		t.Errorf("item with unknown availability must not be Available")
	}
}

func TestFromSearchResultFullRecord(t *testing.T) {
	canBuy, reserved := true, false
	sr := SearchResultItem{
		ID:          42,
		Title:       "  Dragon Quest XI  ",
		Description: "complet en boîte",
		Price:       rawPrice{Amount: mustDecimal(t, "35.00"), CurrencyCode: "EUR"},
		CanBuy:      &canBuy,
		IsReserved:  &reserved,
		User:        &rawUser{Login: "seller42", Business: true},
		Photos: []rawPhoto{
			{URL: "https://img/1.jpg", HighResolution: &struct {
				Timestamp int64 `json:"timestamp"`
			}{Timestamp: 1700000000}},
		},
		SearchTracking: &struct {
			Score float64 `json:"score"`
		}{Score: 0.7},
	}
	item, err := FromSearchResult(sr)
	if err != nil {
		t.Fatalf("FromSearchResult: %v", err)
	}
	if item.Title != "Dragon Quest XI" {
		t.Errorf("Title = %q; want trimmed", item.Title)
	}
	if !item.Available() {
		t.Errorf("buyable unreserved item must be Available")
	}
	if item.SellerLogin != "seller42" || !item.SellerIsBusiness {
		t.Errorf("seller fields lost: %+v", item)
	}
	if item.SearchScore != 0.7 {
		t.Errorf("SearchScore = %v; want 0.7", item.SearchScore)
	}
	wantAdded := time.Unix(1700000000, 0).UTC()
	if !item.AddedSince.Equal(wantAdded) {
		t.Errorf("AddedSince = %v; want %v", item.AddedSince, wantAdded)
	}
}

func TestFromPromotedClosetNotBuyable(t *testing.T) {
	raw := PromotedClosetItem{
		ID:       7,
		Title:    "Jeu PS5",
		Price:    mustDecimal(t, "15"),
		Currency: "EUR",
	}
	item, err := FromPromotedCloset(raw)
	if err != nil {
		t.Fatalf("FromPromotedCloset: %v", err)
	}
	if item.Available() {
		t.Errorf("promoted closet carries no availability, item must not be Available")
	}
	if item.PriceAmount.String() != "15" || item.PriceCurrency != "EUR" {
		t.Errorf("price lost: %s %s", item.PriceAmount, item.PriceCurrency)
	}
}

func TestFromHomepageFeedSellableFlag(t *testing.T) {
	sellable := true
	item, err := FromHomepageFeed(HomepageFeedItem{
		ID:         11,
		Title:      "Mario Kart 8",
		Price:      rawPrice{Amount: mustDecimal(t, "40"), CurrencyCode: "EUR"},
		IsSellable: &sellable,
	})
	if err != nil {
		t.Fatalf("FromHomepageFeed: %v", err)
	}
	if !item.CanBuy {
		t.Errorf("is_sellable=true must map to CanBuy")
	}
}

func TestNormalizeRejectsMissingID(t *testing.T) {
	var shapeErr *ShapeError
	if _, err := FromSearchResult(SearchResultItem{Title: "no id"}); !errors.As(err, &shapeErr) {
		t.Errorf("search: err = %v; want ShapeError", err)
	}
	if _, err := FromPromotedCloset(PromotedClosetItem{Title: "no id"}); !errors.As(err, &shapeErr) {
		t.Errorf("promoted closet: err = %v; want ShapeError", err)
	}
	if _, err := FromHomepageFeed(HomepageFeedItem{Title: "no id"}); !errors.As(err, &shapeErr) {
		t.Errorf("homepage: err = %v; want ShapeError", err)
	}
}
