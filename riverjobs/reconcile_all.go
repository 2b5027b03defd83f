// Package riverjobs hosts the background jobs of the account service.
package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"

	"github.com/kehilla-app/accounts/core"
)

type ReconcileAllArgs struct{}

func (ReconcileAllArgs) Kind() string { return "accounts_reconcile_all" }

func (ReconcileAllArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
		},
	}
}

// ReconcileAllWorker runs the drift-repair sweep over every profile. The
// sweep isolates per-profile failures itself; the job only fails when the
// sweep cannot run at all.
type ReconcileAllWorker struct {
	river.WorkerDefaults[ReconcileAllArgs]
	svc *core.Service
}

func NewReconcileAllWorker(svc *core.Service) *ReconcileAllWorker {
	return &ReconcileAllWorker{svc: svc}
}

func (w *ReconcileAllWorker) Timeout(*river.Job[ReconcileAllArgs]) time.Duration {
	return 10 * time.Minute
}

func (w *ReconcileAllWorker) Work(ctx context.Context, job *river.Job[ReconcileAllArgs]) error {
	if w == nil || w.svc == nil {
		return errors.New("reconcile: service not configured")
	}
	_, err := w.svc.ReconcileAll(ctx)
	return err
}
