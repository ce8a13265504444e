package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"nft-sales-bot/internal/config"
	"nft-sales-bot/internal/format"
	"nft-sales-bot/internal/marketplace"
	"nft-sales-bot/internal/media"
	"nft-sales-bot/internal/poller"
	"nft-sales-bot/internal/pricing"
	"nft-sales-bot/internal/publisher"
	"nft-sales-bot/internal/service"
	"nft-sales-bot/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newMarketplace() *marketplace.Client {
	return marketplace.NewClient(marketplace.Options{
		BaseURL:     a.Config.Reservoir.BaseURL,
		APIKey:      a.Config.Reservoir.APIKey,
		Contract:    a.Config.Reservoir.Contract,
		Chain:       a.Config.Reservoir.Chain,
		IncludeBids: a.Config.Reservoir.IncludeBids,
		Timeout:     a.Config.Reservoir.RequestTimeout,
	}, a.Logger)
}

func (a *App) newService() (*service.Service, error) {
	store, err := storage.NewFileStore(a.Config.Storage.DataDir, a.Logger)
	if err != nil {
		return nil, err
	}

	source := a.newMarketplace()

	oracle := pricing.NewOracle(pricing.Options{
		SourceURLs:  a.Config.Pricing.SourceURLs,
		FallbackUSD: a.Config.Pricing.FallbackUSD,
		Timeout:     a.Config.Pricing.RequestTimeout,
	}, a.Logger)

	fallback := media.NewOpenSeaClient(media.OpenSeaOptions{
		BaseURL: a.Config.OpenSea.BaseURL,
		Chain:   a.Config.Reservoir.Chain,
		Timeout: a.Config.OpenSea.RequestTimeout,
	}, a.Logger)
	images := media.NewResolver(source, fallback, a.Config.Storage.DataDir, a.Config.OpenSea.RequestTimeout, a.Logger)

	formatter := format.NewFormatter(a.Config.Reservoir.Contract, a.Logger)

	tweeter := publisher.NewTwitter(publisher.Options{
		APIKey:            a.Config.Twitter.APIKey,
		APISecret:         a.Config.Twitter.APISecret,
		AccessToken:       a.Config.Twitter.AccessToken,
		AccessTokenSecret: a.Config.Twitter.AccessTokenSecret,
		APIBase:           a.Config.Twitter.APIBase,
		UploadBase:        a.Config.Twitter.UploadBase,
		Timeout:           a.Config.Twitter.RequestTimeout,
	}, a.Logger)

	opts := service.Options{
		Contract:     a.Config.Reservoir.Contract,
		LookbackDays: a.Config.Reservoir.LookbackDays,
	}

	return service.New(opts, source, oracle, images, formatter, tweeter, store, a.Logger), nil
}

// Run executes the long-running announcement loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := a.newService()
	if err != nil {
		return err
	}

	loop := poller.New(poller.Options{
		Cooldown:     a.Config.Poller.Cooldown,
		Idle:         a.Config.Poller.Idle,
		StartupDelay: a.Config.Poller.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Str("contract", a.Config.Reservoir.Contract).
		Dur("cooldown", a.Config.Poller.Cooldown).
		Dur("idle", a.Config.Poller.Idle).
		Msg("starting sales announcement loop")

	err = loop.Run(ctx, svc.ProcessCycle)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("announcement loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("announcement loop stopped")
	return nil
}

// TestPost publishes the single most recent historical sale once.
func (a *App) TestPost(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := a.newService()
	if err != nil {
		return err
	}
	return svc.TestPost(ctx)
}
