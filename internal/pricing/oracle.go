package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Options parameterise the fiat price oracle.
type Options struct {
	SourceURLs  []string
	FallbackUSD float64
	Timeout     time.Duration
}

// Oracle fetches the ETH/USD rate from redundant upstream sources.
type Oracle struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
}

// NewOracle constructs a price oracle.
func NewOracle(opts Options, logger zerolog.Logger) *Oracle {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Oracle{
		opts:   opts,
		logger: logger.With().Str("component", "price_oracle").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Rate returns the current ETH/USD rate. Sources are tried in order and
// the first HTTP 200 response with a recognizable shape wins. When every
// source fails the configured fallback is returned, so the method itself
// never fails; a non-positive fallback yields zero, which the formatter
// renders as a placeholder.
func (o *Oracle) Rate(ctx context.Context) decimal.Decimal {
	for _, source := range o.opts.SourceURLs {
		rate, err := o.fetchRate(ctx, source)
		if err != nil {
			o.logger.Warn().Err(err).Str("source", source).Msg("price source failed")
			continue
		}
		o.logger.Debug().Str("source", source).Str("usd", rate.String()).Msg("fetched eth price")
		return rate
	}

	if o.opts.FallbackUSD > 0 {
		fallback := decimal.NewFromFloat(o.opts.FallbackUSD)
		o.logger.Warn().Str("usd", fallback.String()).Msg("all price sources failed, using fallback rate")
		return fallback
	}

	o.logger.Warn().Msg("all price sources failed and no fallback configured")
	return decimal.Zero
}

// priceResponse covers both supported source shapes: CoinGecko nests the
// rate under ethereum.usd, CryptoCompare returns a flat USD field.
type priceResponse struct {
	Ethereum *struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"ethereum"`
	USD *decimal.Decimal `json:"USD"`
}

func (o *Oracle) fetchRate(ctx context.Context, source string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("price source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var res priceResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode price response: %w", err)
	}

	switch {
	case res.Ethereum != nil:
		return res.Ethereum.USD, nil
	case res.USD != nil:
		return *res.USD, nil
	default:
		return decimal.Decimal{}, errors.New("unrecognized price response shape")
	}
}
