// Package scheduler runs the periodic standings cache warm.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/abrezinsky/standings/internal/logger"
	"github.com/abrezinsky/standings/internal/services"
)

// DefaultInterval is the warm period when none is configured
const DefaultInterval = 5 * time.Minute

// Warmer precomputes cached standings
type Warmer interface {
	WarmCache(ctx context.Context) error
}

// CacheWarmer runs Warmer on a fixed interval. A trigger that fires while
// the previous run is still going is skipped.
type CacheWarmer struct {
	log       logger.Logger
	warmer    Warmer
	scheduler gocron.Scheduler
	job       gocron.Job
}

// New creates a CacheWarmer. The first run happens as soon as Start is
// called. interval <= 0 uses DefaultInterval.
func New(log logger.Logger, warmer Warmer, interval time.Duration, opts ...gocron.SchedulerOption) (*CacheWarmer, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	w := &CacheWarmer{log: log, warmer: warmer, scheduler: sched}
	w.job, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(w.run),
		gocron.WithName("standings-cache-warm"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule cache warm: %w", err)
	}
	return w, nil
}

func (w *CacheWarmer) run(ctx context.Context) {
	err := w.warmer.WarmCache(ctx)
	switch {
	case err == nil:
	case stderrors.Is(err, services.ErrNoCurrentSeason):
		w.log.Info("No current season, skipping cache warm")
	case stderrors.Is(err, services.ErrWarmInProgress):
		w.log.Debug("Cache warm already running, skipping")
	default:
		w.log.Error("Cache warm failed", "error", err)
	}
}

// Start begins the schedule
func (w *CacheWarmer) Start() {
	w.scheduler.Start()
	w.log.Info("Cache warmer started", "job", w.job.Name())
}

// RunNow triggers a warm outside the schedule
func (w *CacheWarmer) RunNow() error {
	return w.job.RunNow()
}

// Shutdown stops the schedule and waits for a running warm to finish
func (w *CacheWarmer) Shutdown() error {
	return w.scheduler.Shutdown()
}
