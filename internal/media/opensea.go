package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OpenSeaOptions parameterise the fallback metadata client.
type OpenSeaOptions struct {
	BaseURL string
	Chain   string
	Timeout time.Duration
}

// OpenSeaClient resolves image URLs through the OpenSea v2 NFT endpoint.
// It is only used when the primary metadata source has no usable image.
type OpenSeaClient struct {
	opts    OpenSeaOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewOpenSeaClient constructs the fallback client.
func NewOpenSeaClient(opts OpenSeaOptions, logger zerolog.Logger) *OpenSeaClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.opensea.io"
	}

	return &OpenSeaClient{
		opts:    opts,
		logger:  logger.With().Str("component", "opensea").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// TokenImage implements Source.
func (c *OpenSeaClient) TokenImage(ctx context.Context, contract, tokenID string) (string, error) {
	chain := c.opts.Chain
	if chain == "" {
		chain = "base"
	}

	endpoint := fmt.Sprintf("%s/api/v2/chain/%s/contract/%s/nfts/%s", c.baseURL, chain, contract, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("opensea api error (%d)", resp.StatusCode)
	}

	var res struct {
		NFT struct {
			ImageURL string `json:"image_url"`
		} `json:"nft"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode opensea response: %w", err)
	}
	if res.NFT.ImageURL == "" {
		return "", errors.New("no image url in opensea response")
	}
	return res.NFT.ImageURL, nil
}

var _ Source = (*OpenSeaClient)(nil)
