package riverjobs

import (
	"fmt"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"

	"github.com/kehilla-app/accounts/core"
)

// RegisterReconcileAllWorker registers the sweep worker into a River workers
// registry.
func RegisterReconcileAllWorker(ws *river.Workers, svc *core.Service) {
	river.AddWorker(ws, NewReconcileAllWorker(svc))
}

// AddReconcileAllPeriodicJob adds a periodic job that enqueues the sweep on a
// cron schedule.
//
// Example cron: "0 3 * * *" (daily at 3 AM).
func AddReconcileAllPeriodicJob[T any](client *river.Client[T], cronSpec string, runOnStart bool) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	args := ReconcileAllArgs{}
	opts := args.InsertOpts()
	_ = client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	)
	return nil
}
