// Package restore re-enqueues Pending jobs left over from a previous
// process on startup, claiming each one first so two instances racing
// on the same database can't both pick it up. Ported from the
// original project's main.rs startup restoration block.
package restore

import (
	"context"
	"log/slog"

	"github.com/yourflock/ingestd/internal/job"
	"github.com/yourflock/ingestd/internal/queue"
	"github.com/yourflock/ingestd/internal/store"
)

// Run lists Pending jobs, claims each one, and enqueues it at Normal
// priority. A claim failure (another instance got there first) is
// logged and skipped, not treated as fatal. If enqueueing a claimed job
// fails (e.g. the queue is already full), the claim is reversed so the
// job remains eligible for a future restart.
func Run(ctx context.Context, st *store.Store, q *queue.JobQueue) {
	log := slog.Default()
	log.Info("restoring pending jobs from database to queue")

	pending, err := st.ListPending(ctx)
	if err != nil {
		log.Warn("failed to list pending jobs for restoration", "error", err)
		return
	}
	log.Info("found pending jobs to restore", "count", len(pending))

	for _, j := range pending {
		claimed, err := st.TryClaimPending(ctx, j.ID)
		if err != nil {
			log.Warn("failed to claim job for restoration", "job_id", j.ID, "error", err)
			continue
		}
		if !claimed {
			log.Info("job already claimed or no longer pending, skipping restoration", "job_id", j.ID)
			continue
		}

		log.Info("claimed job, restoring to queue", "job_id", j.ID)
		if err := q.Enqueue(j.ID, job.Normal); err != nil {
			log.Warn("failed to restore job to queue", "job_id", j.ID, "error", err)
			if unclaimErr := st.Unclaim(ctx, j.ID); unclaimErr != nil {
				log.Warn("failed to unclaim job after queue failure", "job_id", j.ID, "error", unclaimErr)
			}
		}
	}
}
