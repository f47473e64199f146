package scheduler

import (
	"context"
	"log/slog"
	"time"

	"books_importer/internal/domain"
)

// Importer runs one full import.
type Importer interface {
	Run(ctx context.Context) (*domain.ImportStats, error)
}

// Scheduler re-runs the full import on a fixed interval. Used only when the
// importer is configured to stay resident; the default is a single run.
type Scheduler struct {
	importer Importer
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(importer Importer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		importer: importer,
		interval: interval,
		logger:   logger,
	}
}

// Start runs an import immediately, then on every tick until ctx is
// cancelled. A failed run is logged and the loop keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runImport(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runImport(ctx)
		}
	}
}

func (s *Scheduler) runImport(ctx context.Context) {
	if _, err := s.importer.Run(ctx); err != nil {
		s.logger.Error("scheduled import failed", "error", err)
	}
}
