package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one check cycle and reports how many sales it published.
type TickFunc func(ctx context.Context) (int, error)

// Options tune poller behaviour.
type Options struct {
	Cooldown     time.Duration
	Idle         time.Duration
	StartupDelay time.Duration
}

// Poller drives the check loop: after a cycle that published at least
// one sale it waits the short cooldown, otherwise the longer idle
// interval. Waits are cancellable through the context.
type Poller struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Poller instance.
func New(opts Options, logger zerolog.Logger) *Poller {
	if opts.Cooldown <= 0 || opts.Idle <= 0 {
		panic("poller intervals must be positive")
	}
	return &Poller{opts: opts, logger: logger.With().Str("component", "poller").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled. Tick
// errors are logged and the loop continues; there is no fatal error path
// in steady state.
func (p *Poller) Run(ctx context.Context, tick TickFunc) error {
	if p.opts.StartupDelay > 0 {
		if err := p.wait(ctx, p.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.logger.Info().Time("at", time.Now().UTC()).Msg("checking for new sales")
		published, err := tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error().Err(err).Msg("check cycle failed")
		}

		delay := p.opts.Idle
		if published > 0 {
			delay = p.opts.Cooldown
			p.logger.Info().Int("published", published).Dur("cooldown", delay).Msg("sales posted, cooling down")
		} else {
			p.logger.Debug().Dur("idle", delay).Msg("no new sales, waiting")
		}

		if err := p.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
