// Package scheduler runs the periodic maintenance jobs: stats retention
// pruning and index compaction.
package scheduler

import (
	"context"
	"time"

	"coursechat-backend/internal/index"
	"coursechat-backend/internal/logger"
	"coursechat-backend/internal/stats"

	"github.com/go-co-op/gocron"
)

type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleStatsPrune drops ask samples past the retention window once a
// day.
func (s *Scheduler) ScheduleStatsPrune(store stats.Store, retention time.Duration) error {
	_, err := s.scheduler.Every(24 * time.Hour).Tag("stats-prune").Do(func() {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
		defer cancel()

		removed, err := store.Prune(ctx, retention)
		if err != nil {
			logger.Error("stats prune failed", "error", err)
			return
		}
		logger.Info("stats prune complete", "removed", removed)
	})
	return err
}

// ScheduleIndexCompaction sweeps chunks left behind by crashed or
// abandoned ingests once an hour.
func (s *Scheduler) ScheduleIndexCompaction(store *index.Store) error {
	_, err := s.scheduler.Every(1 * time.Hour).Tag("index-compaction").Do(func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
		defer cancel()

		removed, err := store.CompactSuperseded(ctx)
		if err != nil {
			logger.Error("index compaction failed", "error", err)
			return
		}
		if removed > 0 {
			logger.Info("index compaction complete", "removed", removed)
		}
	})
	return err
}
