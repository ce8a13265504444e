package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const pageLimit = "100"

// Options parameterise the Reservoir client.
type Options struct {
	BaseURL     string
	APIKey      string
	Contract    string
	Chain       string
	IncludeBids bool
	Timeout     time.Duration
}

// Client discovers sales through an ordered chain of Reservoir endpoint
// strategies, stopping at the first one that yields results.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a Reservoir client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-base.reservoir.tools"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "marketplace").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// RecentSales returns recent sales for the configured contract,
// most-recent-first. A strategy that fails or comes back empty hands
// over to the next one; total exhaustion yields an empty slice, not an
// error. Placeholder data is never synthesized.
func (c *Client) RecentSales(ctx context.Context, lookbackDays int) ([]Sale, error) {
	sales, err := c.fetchSales(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("sales endpoint failed, falling back to token activity")
	}
	if len(sales) > 0 {
		c.logger.Info().Int("count", len(sales)).Msg("found sales via sales endpoint")
		return sales, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sales, err = c.fetchActivity(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("token activity endpoint failed")
	}
	if len(sales) > 0 {
		c.logger.Info().Int("count", len(sales)).Msg("converted token activities to sales")
		return sales, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.opts.IncludeBids {
		sales, err = c.fetchFills(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("order fills endpoint failed")
		}
		if len(sales) > 0 {
			c.logger.Info().Int("count", len(sales)).Msg("converted order fills to sales")
			return sales, nil
		}
	}

	c.logger.Debug().Int("lookback_days", lookbackDays).Msg("no sales found for contract")
	return nil, nil
}

func (c *Client) fetchSales(ctx context.Context) ([]Sale, error) {
	var res salesResponse
	if err := c.get(ctx, "/sales/v6", c.baseQuery(), &res); err != nil {
		return nil, err
	}

	sales := make([]Sale, 0, len(res.Sales))
	for _, entry := range res.Sales {
		side := OrderSideAsk
		if entry.OrderSide == string(OrderSideBid) {
			side = OrderSideBid
		}
		ts := time.Time{}
		if entry.Timestamp > 0 {
			ts = time.Unix(entry.Timestamp, 0).UTC()
		}
		sales = append(sales, Sale{
			ID:             entry.ID,
			OrderHash:      entry.OrderHash,
			TokenID:        entry.Token.TokenID,
			Contract:       entry.Token.Contract,
			TokenName:      entry.Token.Name,
			CollectionName: entry.Token.Collection.Name,
			PriceETH:       entry.Price.Amount.Decimal,
			Side:           side,
			Timestamp:      ts,
		})
	}
	return sales, nil
}

// fetchActivity converts sale-type token activities. The activity shape
// cannot express bids, so every converted record is ask-side and carries
// no order hash.
func (c *Client) fetchActivity(ctx context.Context) ([]Sale, error) {
	query := c.baseQuery()
	query.Set("types", "sale")

	var res activityResponse
	if err := c.get(ctx, "/tokens/activity/v5", query, &res); err != nil {
		return nil, err
	}

	var sales []Sale
	for _, activity := range res.Activities {
		if activity.Type != "sale" {
			continue
		}
		sales = append(sales, Sale{
			ID:             activity.ID,
			TokenID:        activity.Token.TokenID,
			Contract:       activity.Contract,
			TokenName:      activity.Token.TokenName,
			CollectionName: activity.Collection.CollectionName,
			PriceETH:       activity.Price.Amount.Decimal,
			Side:           OrderSideAsk,
		})
	}
	return sales, nil
}

// fetchFills converts accepted offers. Fills for other contracts come
// back interleaved, so each one is re-checked against the target.
func (c *Client) fetchFills(ctx context.Context) ([]Sale, error) {
	var res fillsResponse
	if err := c.get(ctx, "/orders/fills/v6", c.baseQuery(), &res); err != nil {
		return nil, err
	}

	var sales []Sale
	for _, fill := range res.Fills {
		if !strings.EqualFold(fill.Contract, c.opts.Contract) {
			continue
		}
		ts := time.Now().UTC()
		if fill.CreatedAt != "" {
			if parsed, err := time.Parse(time.RFC3339, fill.CreatedAt); err == nil {
				ts = parsed.UTC()
			}
		}
		collection := fill.CollectionName
		if collection == "" {
			collection = "Primitives"
		}
		sales = append(sales, Sale{
			ID:             fill.ID,
			OrderHash:      fill.OrderHash,
			TokenID:        fill.TokenID,
			Contract:       fill.Contract,
			TokenName:      fill.TokenName,
			CollectionName: collection,
			PriceETH:       fill.Price,
			Side:           OrderSideBid,
			Timestamp:      ts,
		})
	}
	return sales, nil
}

// TokenImage looks up the preview image URL for one token.
func (c *Client) TokenImage(ctx context.Context, contract, tokenID string) (string, error) {
	query := url.Values{}
	query.Set("tokens", fmt.Sprintf("%s:%s", contract, tokenID))
	query.Set("includeAttributes", "false")
	query.Set("includeTopBid", "false")
	query.Set("chains", c.chain())

	var res tokensResponse
	if err := c.get(ctx, "/tokens/v6", query, &res); err != nil {
		return "", err
	}
	if len(res.Tokens) == 0 || res.Tokens[0].Token.Image == "" {
		return "", errors.New("no image url in token metadata")
	}
	return res.Tokens[0].Token.Image, nil
}

func (c *Client) baseQuery() url.Values {
	query := url.Values{}
	query.Set("contract", c.opts.Contract)
	query.Set("limit", pageLimit)
	query.Set("sortDirection", "desc")
	query.Set("chains", c.chain())
	return query
}

func (c *Client) chain() string {
	if c.opts.Chain == "" {
		return "base"
	}
	return c.opts.Chain
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("x-api-key", c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("reservoir api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("reservoir api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("reservoir api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("reservoir api error (%d)", status)
}
