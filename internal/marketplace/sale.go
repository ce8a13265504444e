package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide distinguishes direct listing purchases from accepted offers.
type OrderSide string

const (
	// OrderSideAsk is a direct purchase of a listing.
	OrderSideAsk OrderSide = "ask"
	// OrderSideBid is an accepted offer.
	OrderSideBid OrderSide = "bid"
)

// Sale is the normalized record every discovery strategy produces.
// OrderHash is the dedup key; it may be empty for records synthesized
// from endpoints that do not expose it, in which case the sale is never
// deduplicated and will be re-announced while it stays in the lookback
// window.
type Sale struct {
	ID             string
	OrderHash      string
	TokenID        string
	Contract       string
	TokenName      string
	CollectionName string
	PriceETH       decimal.Decimal
	Side           OrderSide
	Timestamp      time.Time
}
