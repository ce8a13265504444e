package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Source looks up the preview image URL for one token.
type Source interface {
	TokenImage(ctx context.Context, contract, tokenID string) (string, error)
}

// Resolver fetches a preview image for a token, trying a primary
// metadata source then a fallback, and stores the bytes locally. It is
// strictly best-effort: no failure escapes its boundary.
type Resolver struct {
	primary  Source
	fallback Source
	client   *http.Client
	dataDir  string
	logger   zerolog.Logger
}

// NewResolver constructs a resolver. fallback may be nil.
func NewResolver(primary, fallback Source, dataDir string, timeout time.Duration, logger zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		primary:  primary,
		fallback: fallback,
		client:   &http.Client{Timeout: timeout},
		dataDir:  dataDir,
		logger:   logger.With().Str("component", "image_resolver").Logger(),
	}
}

// Resolve returns the local path of the downloaded preview image, or
// ok=false when neither source produced one. Callers proceed without an
// image in that case.
func (r *Resolver) Resolve(ctx context.Context, contract, tokenID string) (string, bool) {
	if tokenID == "" {
		return "", false
	}

	if path, ok := r.tryDownload(ctx, r.primary, contract, tokenID); ok {
		return path, true
	}
	if r.fallback != nil {
		if path, ok := r.tryDownload(ctx, r.fallback, contract, tokenID); ok {
			r.logger.Info().Str("token_id", tokenID).Msg("image resolved via fallback source")
			return path, true
		}
	}

	r.logger.Warn().Str("token_id", tokenID).Msg("no preview image available")
	return "", false
}

func (r *Resolver) tryDownload(ctx context.Context, source Source, contract, tokenID string) (string, bool) {
	if source == nil {
		return "", false
	}

	imageURL, err := source.TokenImage(ctx, contract, tokenID)
	if err != nil {
		r.logger.Debug().Err(err).Str("token_id", tokenID).Msg("image lookup failed")
		return "", false
	}

	path, err := r.download(ctx, imageURL, tokenID)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", imageURL).Msg("image download failed")
		return "", false
	}
	return path, true
}

func (r *Resolver) download(ctx context.Context, imageURL, tokenID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(r.dataDir, fmt.Sprintf("nft_%s.jpg", tokenID))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return "", err
	}

	r.logger.Debug().Str("path", path).Msg("image saved")
	return path, nil
}
