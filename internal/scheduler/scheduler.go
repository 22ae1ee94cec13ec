package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"document-summarizer/internal/logger"
)

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
	timeout   time.Duration
}

// NewScheduler creates a scheduler whose jobs each get timeout to finish
func NewScheduler(timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	// A slow run is never overlapped by the next tick
	s.SingletonModeAll()

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
		timeout:   timeout,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels running jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleInterval schedules a job to run at regular intervals, starting now
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Every(every).Tag(tag).Do(func() {
		s.run(tag, job)
	})
	return err
}

func (s *Scheduler) run(tag string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		logger.Error("Scheduled job failed", "job", tag, "error", err, "duration", time.Since(start).String())
		return
	}
	logger.Debug("Scheduled job finished", "job", tag, "duration", time.Since(start).String())
}

// Tags lists the tags of scheduled jobs
func (s *Scheduler) Tags() []string {
	var tags []string
	for _, job := range s.scheduler.Jobs() {
		tags = append(tags, job.Tags()...)
	}
	return tags
}
