// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the periodic housekeeping jobs: the token
// retention sweep and the promo event deactivation sweep. Both are safe to
// run on every instance — they only touch rows already past their windows.
func StartMaintenanceScheduler(tokens *TokenService, events *EventRegistry, retention time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Hourly: drop expired, never-consumed tokens past retention.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			purged, err := tokens.PurgeExpired(retention)
			if err != nil {
				log.Printf("[Scheduler] token retention sweep failed: %v", err)
				return
			}
			if purged > 0 {
				log.Printf("[Scheduler] purged %d expired tokens", purged)
			}
		}),
	)

	// Every 10 minutes: flag promo events past their end time inactive.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			ended, err := events.DeactivateEnded()
			if err != nil {
				log.Printf("[Scheduler] promo event sweep failed: %v", err)
				return
			}
			if ended > 0 {
				log.Printf("[Scheduler] deactivated %d ended promo events", ended)
			}
		}),
	)
}
