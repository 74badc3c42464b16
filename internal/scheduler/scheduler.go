package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bazaar-backend/internal/domain"
	"bazaar-backend/internal/listings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the periodic expiry sweep over approved listings whose
// expiry horizon has passed. Configured with either a cron expression or a
// fixed interval (default hourly).
type Scheduler struct {
	Listings    *listings.Service
	Cron        string
	Interval    time.Duration
	ItemTimeout time.Duration

	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a scheduler over the given listings service.
func New(svc *listings.Service, cronExpr string, interval, itemTimeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if itemTimeout <= 0 {
		itemTimeout = 5 * time.Second
	}
	return &Scheduler{
		Listings:    svc,
		Cron:        cronExpr,
		Interval:    interval,
		ItemTimeout: itemTimeout,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.Cron != "" {
		log.Info().Str("cron", s.Cron).Msg("Starting expiry scheduler")
		s.cron = cron.New()
		_, err := s.cron.AddFunc(s.Cron, func() {
			if err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Expiry sweep failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	log.Info().Dur("interval", s.Interval).Msg("Starting expiry scheduler")
	s.ticker = time.NewTicker(s.Interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				if err := s.Sweep(ctx); err != nil {
					log.Error().Err(err).Msg("Expiry sweep failed")
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop halts the background loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.stopOnce.Do(func() { close(s.stopCh) })
	}
}

// Sweep runs one expiry pass. Idempotent: a listing expired by an earlier
// pass (or a concurrent caller) is skipped, and one listing's failure never
// aborts the rest of the scan.
func (s *Scheduler) Sweep(ctx context.Context) error {
	ids, err := s.Listings.FindExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	log.Info().Int("count", len(ids)).Msg("Expiring listings past horizon")

	for _, id := range ids {
		itemCtx, cancel := context.WithTimeout(ctx, s.ItemTimeout)
		_, err := s.Listings.TransitionStatus(itemCtx, id, listings.SystemActor, domain.ListingExpired)
		cancel()
		if err == nil {
			continue
		}
		switch domain.KindOf(err) {
		case domain.KindInvalidTransition, domain.KindConflict, domain.KindNotFound:
			// Already expired, sold, or removed since the scan; nothing to do.
		default:
			log.Warn().Err(err).Str("listing_id", id.String()).Msg("Failed to expire listing")
		}
	}
	return nil
}
