package session

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cardduel/server/logger"
)

// StartEviction runs CleanupIdle every interval. The caller owns the returned
// scheduler and must Shutdown it.
func StartEviction(store *Store, interval, maxAge time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := store.CleanupIdle(maxAge); n > 0 {
				logger.InfoGlobal().
					Int("evicted", n).
					Int("remaining", store.Count()).
					Msg("Evicted idle sessions")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule eviction: %w", err)
	}

	sched.Start()
	return sched, nil
}
