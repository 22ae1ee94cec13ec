package scheduler

import (
	"context"
	"time"

	"document-summarizer/internal/logger"
	"document-summarizer/internal/telemetry"
	"document-summarizer/models"
)

const (
	TagCleanupFailed = "cleanup-failed-documents"
	TagStats         = "processing-stats"
)

// Maintenance is what the periodic jobs need from the document service
type Maintenance interface {
	CleanupFailed(ctx context.Context, retention time.Duration) (int, error)
	Stats(ctx context.Context) (*models.ProcessingStats, error)
}

type MaintenanceConfig struct {
	ErrorRetention  time.Duration
	CleanupInterval time.Duration
	StatsInterval   time.Duration
}

// RegisterMaintenance schedules failed-document cleanup and stats reporting
func RegisterMaintenance(s *Scheduler, m Maintenance, metrics *telemetry.Metrics, cfg MaintenanceConfig) error {
	if err := s.ScheduleInterval(TagCleanupFailed, cfg.CleanupInterval, CleanupJob(m, cfg.ErrorRetention)); err != nil {
		return err
	}
	return s.ScheduleInterval(TagStats, cfg.StatsInterval, StatsJob(m, metrics))
}

func CleanupJob(m Maintenance, retention time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		removed, err := m.CleanupFailed(ctx, retention)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Info("Cleaned up failed documents", "removed", removed, "retention", retention.String())
		}
		return nil
	}
}

func StatsJob(m Maintenance, metrics *telemetry.Metrics) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		stats, err := m.Stats(ctx)
		if err != nil {
			return err
		}
		metrics.RecordStatusCounts(ctx, map[string]int64{
			models.StatusCompleted:  stats.Completed,
			models.StatusProcessing: stats.Processing,
			models.StatusError:      stats.Error,
		})
		logger.Info("Processing stats",
			"total", stats.Total,
			"completed", stats.Completed,
			"processing", stats.Processing,
			"error", stats.Error,
			"completion_rate", stats.CompletionRate,
		)
		return nil
	}
}
