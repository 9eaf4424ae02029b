package history

import (
	"context"
	"fmt"
	"time"

	"github.com/KingHippopotamus/pmax-helper/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ImageRemover deletes hosted character images that belong to purged records.
type ImageRemover interface {
	Remove(ctx context.Context, hostedURL string) error
}

// Sweeper periodically deletes generations older than the retention window.
type Sweeper struct {
	store     *Store
	remover   ImageRemover
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.SugaredLogger
}

func NewSweeper(store *Store, remover ImageRemover, retention time.Duration, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		store:     store,
		remover:   remover,
		retention: retention,
		now:       time.Now,
		log:       logger.OrNop(log),
	}
}

// Start schedules Sweep on spec, a standard cron expression or descriptor such as "@every 1h".
func (s *Sweeper) Start(spec string) error {
	if !s.store.Enabled() || s.retention <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Errorw("history sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("history: schedule sweep %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.log.Infow("history sweeper started", "spec", spec, "retention", s.retention.String())
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep purges expired records once and removes their hosted images.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	expired, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.remover != nil {
		for _, gen := range expired {
			if gen.HostedImageURL == "" {
				continue
			}
			if err := s.remover.Remove(ctx, gen.HostedImageURL); err != nil {
				s.log.Warnw("remove hosted image failed", "generation_id", gen.ID, "error", err)
			}
		}
	}
	if len(expired) > 0 {
		s.log.Infow("history sweep complete", "purged", len(expired))
	}
	return len(expired), nil
}
