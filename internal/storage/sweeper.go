package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
)

// Sweeper drops expired entries from in-process caches on a cron schedule.
type Sweeper struct {
	schedule string
	caches   map[string]Sweepable
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewSweeper creates a sweeper. schedule accepts standard cron syntax and
// descriptors such as "@every 1m".
func NewSweeper(schedule string) *Sweeper {
	return &Sweeper{
		schedule: schedule,
		caches:   make(map[string]Sweepable),
		cron:     cron.New(),
		logger:   logging.For("cache.sweeper"),
	}
}

// Register adds a cache under name. Call before Start.
func (s *Sweeper) Register(name string, c Sweepable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches[name] = c
}

// Start schedules the sweep and stops it when ctx is done. An empty
// schedule disables sweeping.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("cache sweeper started", "schedule", s.schedule, "caches", len(s.caches))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep runs one pass over every registered cache.
func (s *Sweeper) Sweep() {
	s.mu.Lock()
	caches := make(map[string]Sweepable, len(s.caches))
	for k, v := range s.caches {
		caches[k] = v
	}
	s.mu.Unlock()

	for name, c := range caches {
		if removed := c.CleanupExpired(); removed > 0 {
			s.logger.Debug("swept expired cache entries", "cache", name, "removed", removed)
		}
	}
}

// Stats returns the current size of every registered cache.
func (s *Sweeper) Stats() map[string]CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]CacheStats, len(s.caches))
	for name, c := range s.caches {
		stats[name] = c.GetStats()
	}
	return stats
}

// Stop stops the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("cache sweeper stopped")
	}
}
