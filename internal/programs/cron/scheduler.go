package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Reconciler recomputes rating aggregates for every program.
type Reconciler interface {
	ReconcileAllAggregates(ctx context.Context) (int, error)
}

type Scheduler struct {
	spec       string
	reconciler Reconciler
}

func NewScheduler(spec string, reconciler Reconciler) *Scheduler {
	return &Scheduler{spec: spec, reconciler: reconciler}
}

// Start initializes cron tasks. The nightly sweep repairs any aggregate
// drift left by the non-transactional recompute on the write path.
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(s.spec, func() {
		s.runReconcile()
	})
	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Printf("Cron scheduler started (aggregate reconciliation at %q)", s.spec)
	c.Start()
}

func (s *Scheduler) runReconcile() {
	log.Println("Aggregate reconciliation started...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.reconciler.ReconcileAllAggregates(ctx)
	if err != nil {
		log.Printf("Aggregate reconciliation finished with errors (reconciled %d): %v", n, err)
		return
	}
	log.Printf("Aggregate reconciliation finished (reconciled %d programs)", n)
}
