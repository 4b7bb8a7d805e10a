// Package sweeper runs the background loop that permanently removes
// mappings soft-deleted past their grace period.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/metrics"
	"github.com/rajweepmondal/url-shortener/internal/repository/interfaces"
)

// Sweeper periodically hard-deletes soft-deleted mappings older than
// GracePeriod, in batches of BatchSize, every Interval.
type Sweeper struct {
	repo        interfaces.URLRepository
	interval    time.Duration
	gracePeriod time.Duration
	batchSize   int
	logger      *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// New constructs a Sweeper. Call Run to start the background loop.
func New(repo interfaces.URLRepository, interval, gracePeriod time.Duration, batchSize int, logger *zap.Logger) *Sweeper {
	if batchSize < 1 {
		batchSize = 500
	}
	return &Sweeper{
		repo:        repo,
		interval:    interval,
		gracePeriod: gracePeriod,
		batchSize:   batchSize,
		logger:      logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run blocks, sweeping on every tick of Interval, until Stop is called.
func (s *Sweeper) Run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// Stop signals the loop to exit and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.gracePeriod)
	mappings, err := s.repo.FindSoftDeletedOlderThan(ctx, cutoff, s.batchSize)
	if err != nil {
		s.logger.Error("sweeper failed to list soft-deleted mappings", zap.Error(err))
		return
	}
	if len(mappings) == 0 {
		return
	}

	ids := make([]string, len(mappings))
	for i, m := range mappings {
		ids[i] = m.ID.String()
	}

	deleted, err := s.repo.HardDelete(ctx, ids)
	if err != nil {
		s.logger.Error("sweeper failed to hard-delete mappings", zap.Error(err))
		return
	}

	metrics.SweptMappings.Add(float64(deleted))
	s.logger.Info("sweeper hard-deleted expired soft-deleted mappings", zap.Int64("count", deleted))
}
