package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-sales-bot/internal/format"
	"nft-sales-bot/internal/marketplace"
	"nft-sales-bot/internal/publisher"
	"nft-sales-bot/internal/storage"
)

// SaleSource discovers recent sales for the target contract.
type SaleSource interface {
	RecentSales(ctx context.Context, lookbackDays int) ([]marketplace.Sale, error)
}

// RateSource returns the current ETH/USD rate; it never fails.
type RateSource interface {
	Rate(ctx context.Context) decimal.Decimal
}

// ImageResolver fetches a local preview image path, best-effort.
type ImageResolver interface {
	Resolve(ctx context.Context, contract, tokenID string) (string, bool)
}

// Options carry the per-cycle parameters.
type Options struct {
	Contract     string
	LookbackDays int
}

// testLookbackDays are the widening windows used by the one-shot test
// posting mode.
var (
	testLookbackDays = []int{365, 730, 1095}
	testRetryDelay   = 10 * time.Second
)

// Service orchestrates one check cycle: discover, dedup, format, resolve
// image, publish, persist.
type Service struct {
	opts      Options
	source    SaleSource
	oracle    RateSource
	images    ImageResolver
	formatter *format.Formatter
	publisher publisher.Publisher
	store     storage.ProcessedStore
	logger    zerolog.Logger
}

// New constructs the announcement service.
func New(opts Options, source SaleSource, oracle RateSource, images ImageResolver, formatter *format.Formatter, pub publisher.Publisher, store storage.ProcessedStore, logger zerolog.Logger) *Service {
	return &Service{
		opts:      opts,
		source:    source,
		oracle:    oracle,
		images:    images,
		formatter: formatter,
		publisher: pub,
		store:     store,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// ProcessCycle runs one check and returns the number of newly published
// sales. A failure on one sale never aborts the rest of the batch; a
// sale that fails to format or publish stays unmarked and is retried
// naturally on the next cycle.
func (s *Service) ProcessCycle(ctx context.Context) (int, error) {
	processed, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load processed sales: %w", err)
	}
	seen := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		seen[id] = struct{}{}
	}

	sales, err := s.source.RecentSales(ctx, s.opts.LookbackDays)
	if err != nil {
		return 0, fmt.Errorf("discover sales: %w", err)
	}
	if len(sales) == 0 {
		s.logger.Debug().Msg("no sales found in this check")
		return 0, nil
	}

	published := 0
	for _, sale := range sales {
		if err := ctx.Err(); err != nil {
			return published, err
		}

		// Sales without an order hash cannot be deduplicated and are
		// re-announced while they stay in the lookback window.
		if sale.OrderHash != "" {
			if _, ok := seen[sale.OrderHash]; ok {
				continue
			}
		}

		if !s.contractMatches(sale) {
			s.logger.Debug().Str("contract", sale.Contract).Msg("skipping sale for different contract")
			continue
		}

		if !s.publishSale(ctx, sale) {
			continue
		}
		published++

		if sale.OrderHash != "" {
			seen[sale.OrderHash] = struct{}{}
			if err := s.store.Append(ctx, sale.OrderHash); err != nil {
				s.logger.Error().Err(err).Str("order_hash", sale.OrderHash).Msg("failed to persist processed sale")
			}
		}
	}

	s.logger.Info().Int("published", published).Int("discovered", len(sales)).Msg("check cycle complete")
	return published, nil
}

// TestPost finds the most recent publishable sale across widening
// historical windows and announces it once.
func (s *Service) TestPost(ctx context.Context) error {
	for attempt, days := range testLookbackDays {
		s.logger.Info().Int("attempt", attempt+1).Int("lookback_days", days).Msg("searching for a sale to test with")

		sales, err := s.source.RecentSales(ctx, days)
		if err != nil {
			return fmt.Errorf("discover sales: %w", err)
		}

		if len(sales) == 0 {
			if attempt < len(testLookbackDays)-1 {
				s.logger.Info().Dur("wait", testRetryDelay).Msg("no sales found, widening the window")
				if err := sleepCtx(ctx, testRetryDelay); err != nil {
					return err
				}
			}
			continue
		}

		for _, sale := range sales {
			if !s.contractMatches(sale) {
				continue
			}
			if s.publishSale(ctx, sale) {
				s.logger.Info().Str("id", sale.ID).Msg("test post succeeded")
				return nil
			}
		}
		return errors.New("found sales but none could be published")
	}

	return fmt.Errorf("no sales found after %d attempts", len(testLookbackDays))
}

func (s *Service) contractMatches(sale marketplace.Sale) bool {
	return sale.Contract == "" || strings.EqualFold(sale.Contract, s.opts.Contract)
}

func (s *Service) publishSale(ctx context.Context, sale marketplace.Sale) bool {
	rate := s.oracle.Rate(ctx)

	text, ok := s.formatter.Format(sale, rate)
	if !ok {
		return false
	}

	contract := sale.Contract
	if contract == "" {
		contract = s.opts.Contract
	}
	imagePath, _ := s.resolveImage(ctx, contract, sale.TokenID)

	if err := s.publisher.Publish(ctx, text, imagePath); err != nil {
		s.logger.Error().Err(err).Str("id", sale.ID).Msg("publish failed, sale will be retried next cycle")
		return false
	}

	s.logger.Info().
		Str("id", sale.ID).
		Str("order_hash", sale.OrderHash).
		Str("side", string(sale.Side)).
		Msg("sale announced")
	return true
}

func (s *Service) resolveImage(ctx context.Context, contract, tokenID string) (string, bool) {
	if s.images == nil {
		return "", false
	}
	return s.images.Resolve(ctx, contract, tokenID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
