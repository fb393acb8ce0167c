// Package sweeper implements the periodic expiry sweep over rented accounts.

package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-maxrent/internal/config"
	"github.com/danilovkiri/dk-go-maxrent/internal/models/modeldto"
	serviceErrors "github.com/danilovkiri/dk-go-maxrent/internal/service/errors"
	sweeperService "github.com/danilovkiri/dk-go-maxrent/internal/service/sweeper/v1"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// releaseTimeout bounds a single settlement so that one stuck account cannot stall a tick.
const releaseTimeout = 10 * time.Second

// Sweeper defines attributes of a struct available to its methods.
type Sweeper struct {
	releaser sweeperService.Releaser
	log      *zerolog.Logger
	interval time.Duration
	workers  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// InitSweeper initializes a stopped sweeper.
func InitSweeper(releaser sweeperService.Releaser, cfg *config.SweeperConfig, log *zerolog.Logger) (*Sweeper, error) {
	if releaser == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil releaser was passed to sweeper initializer"}
	}
	if cfg == nil || cfg.Interval <= 0 {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "non-positive sweep interval was passed to sweeper initializer"}
	}
	workers := cfg.WorkerNumber
	if workers <= 0 {
		workers = 1
	}
	return &Sweeper{
		releaser: releaser,
		log:      log,
		interval: cfg.Interval,
		workers:  workers,
	}, nil
}

// Start launches the sweep loop. It runs until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("sweeper is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().Msg(fmt.Sprintf("started expiry sweep every %s", s.interval))
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("stopped expiry sweep")
				return
			case <-ticker.C:
				if _, err := s.Tick(ctx); err != nil {
					s.log.Warn().Err(err).Msg("expiry sweep tick failed, retrying on next tick")
				}
			}
		}
	}()
	return nil
}

// Stop cancels the sweep loop and waits for the running tick to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Tick performs one full scan and releases every expired account independently.
// Failed releases are counted and left for the next tick.
func (s *Sweeper) Tick(ctx context.Context) (modeldto.SweepReport, error) {
	report := modeldto.SweepReport{Credited: decimal.Zero}
	ids, err := s.releaser.ListExpired(ctx)
	if err != nil {
		return report, err
	}
	report.Scanned = len(ids)
	if len(ids) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			releaseCtx, cancel := context.WithTimeout(ctx, releaseTimeout)
			defer cancel()
			settlement, err := s.releaser.Release(releaseCtx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.log.Warn().Err(err).Msg(fmt.Sprintf("releasing expired account %d failed", id))
				return nil
			}
			if settlement.Released {
				report.Released++
				report.Credited = report.Credited.Add(settlement.Amount)
			}
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info().
		Int("scanned", report.Scanned).
		Int("released", report.Released).
		Int("failed", report.Failed).
		Str("credited", report.Credited.String()).
		Msg("expiry sweep done")
	return report, nil
}
