// Package orphanreaper runs CleanupOrphans as a periodic river job, one
// per configured project alias, grounded on the teacher's river.Worker
// pattern in internal/queue/asset_retry_worker.go.
package orphanreaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"assetvault/internal/assetcore"

	"github.com/riverqueue/river"
)

// SweepArgs is the job payload for one project's orphan sweep.
type SweepArgs struct {
	ProjectAlias string `json:"project_alias"`
}

// Kind identifies this job type to river.
func (SweepArgs) Kind() string { return "orphan_sweep" }

// InsertOpts dedupes sweeps for the same alias within a short window so a
// slow sweep can't pile up retries behind it.
func (SweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true, ByPeriod: time.Minute}}
}

// Worker sweeps orphaned assets for one project alias via Service.CleanupOrphans.
type Worker struct {
	river.WorkerDefaults[SweepArgs]
	Service *assetcore.Service
}

// Work runs the sweep for the job's project alias.
func (w *Worker) Work(ctx context.Context, job *river.Job[SweepArgs]) error {
	deleted, err := w.Service.CleanupOrphans(ctx, job.Args.ProjectAlias)
	if err != nil {
		return fmt.Errorf("cleanup orphans for %s: %w", job.Args.ProjectAlias, err)
	}
	log.Printf("[OrphanReaper] swept %s: %d orphan(s) removed", job.Args.ProjectAlias, deleted)
	return nil
}

// PeriodicJobs builds one river.PeriodicJob per alias, firing at period.
// cmd/assetd registers these against the river.Client's periodic job
// scheduler at startup.
func PeriodicJobs(aliases []string, period time.Duration) []*river.PeriodicJob {
	jobs := make([]*river.PeriodicJob, 0, len(aliases))
	for _, alias := range aliases {
		alias := alias
		jobs = append(jobs, river.NewPeriodicJob(
			river.PeriodicInterval(period),
			func() (river.JobArgs, *river.InsertOpts) {
				return SweepArgs{ProjectAlias: alias}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		))
	}
	return jobs
}
