package refresh

import (
	"context"
	"log"
	"time"
)

// DefaultPollInterval is how often the scheduler re-checks the ledger.
const DefaultPollInterval = 30 * time.Minute

// Scheduler runs the orchestrator on an interval until its context ends.
// Freshness checks make the repeated passes cheap: a pass where every layer
// is within threshold touches nothing.
type Scheduler struct {
	orc      *Orchestrator
	interval time.Duration
}

func NewScheduler(orc *Orchestrator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{orc: orc, interval: interval}
}

// Run refreshes immediately, then on every tick. It returns when ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: refreshing every %s", s.interval)
	s.pass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	start := time.Now()
	statuses := s.orc.RefreshAll(ctx, false)
	updated := 0
	failed := 0
	for _, st := range statuses {
		updated += st.Updated()
		failed += len(st.Errs())
	}
	log.Printf("scheduler: pass done in %s, %d layers updated, %d step errors", time.Since(start).Round(time.Millisecond), updated, failed)
}
