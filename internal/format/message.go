package format

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-sales-bot/internal/marketplace"
)

const (
	defaultCollectionName = "Primitive"
	fiatPlaceholder       = "$???"
)

var tokenNumberPattern = regexp.MustCompile(`#(\d+)`)

// Formatter renders one sale into publishable text.
type Formatter struct {
	contract string
	logger   zerolog.Logger
}

// NewFormatter builds a formatter bound to the target contract address.
func NewFormatter(contract string, logger zerolog.Logger) *Formatter {
	return &Formatter{
		contract: strings.ToLower(contract),
		logger:   logger.With().Str("component", "formatter").Logger(),
	}
}

// Format produces the announcement text for a sale, or ok=false when the
// record is unusable: wrong contract, or no token identity to display.
// The fiat amount is omitted in favour of a placeholder when the rate is
// not positive.
func (f *Formatter) Format(sale marketplace.Sale, rate decimal.Decimal) (string, bool) {
	if sale.Contract != "" && !strings.EqualFold(sale.Contract, f.contract) {
		f.logger.Warn().
			Str("contract", sale.Contract).
			Str("target", f.contract).
			Msg("skipping sale for a different contract")
		return "", false
	}

	if sale.TokenID == "" && sale.TokenName == "" {
		f.logger.Warn().Str("id", sale.ID).Msg("sale has no token identity, skipping")
		return "", false
	}

	displayID := displayTokenID(sale.TokenID, sale.TokenName)

	fiat := fiatPlaceholder
	if rate.IsPositive() {
		usd := sale.PriceETH.Mul(rate)
		fiat = "$" + humanize.FormatFloat("#,###.##", usd.InexactFloat64())
	}

	action := "bought for"
	if sale.Side == marketplace.OrderSideBid {
		action = "offer accepted for"
	}

	collection := sale.CollectionName
	if collection == "" {
		collection = defaultCollectionName
	}

	linkContract := sale.Contract
	if linkContract == "" {
		linkContract = f.contract
	}

	message := fmt.Sprintf(
		"%s #%s %s %s Ξ [%s]\n\n⤷https://opensea.io/assets/base/%s/%s",
		collection,
		displayID,
		action,
		sale.PriceETH.StringFixed(4),
		fiat,
		strings.ToLower(linkContract),
		sale.TokenID,
	)
	return message, true
}

// displayTokenID prettifies the raw token id. Numeric ids collapse to
// canonical decimal form; long opaque ids prefer a number extracted from
// the token name, then the name itself, then a truncated form.
func displayTokenID(raw, name string) string {
	if raw == "" {
		return name
	}
	if n, ok := new(big.Int).SetString(raw, 10); ok {
		return n.String()
	}
	if len(raw) > 10 {
		if name != "" {
			if m := tokenNumberPattern.FindStringSubmatch(name); m != nil {
				return m[1]
			}
			return name
		}
		return raw[:4] + "..." + raw[len(raw)-4:]
	}
	return raw
}
