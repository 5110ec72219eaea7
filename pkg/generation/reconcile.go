package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/gospelux/gospelux/pkg/heygen"
	"github.com/gospelux/gospelux/pkg/storage"
)

// lastSweepSetting records when a sweep last completed, so operators
// can tell a healthy idle loop from a dead one.
const lastSweepSetting = "last_sweep"

// Reconcile runs one sweep of the pipeline: it resubmits jobs stuck in
// the queue and polls the provider for jobs whose callback never
// arrived. Each sweep is bounded to batchLimit jobs per phase so a
// backlog can't starve the loop. Individual job failures are recorded
// on the job and don't abort the sweep.
func (g *Generator) Reconcile(ctx context.Context, batchLimit int) error {
	if batchLimit <= 0 {
		batchLimit = 5
	}
	if err := g.sweepQueued(ctx, batchLimit); err != nil {
		return err
	}
	if err := g.sweepProcessing(ctx, batchLimit); err != nil {
		return err
	}
	if err := g.store.SetSetting(ctx, &storage.Setting{
		ID:    lastSweepSetting,
		Value: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		g.log("generation: couldn't record sweep time: %v", err)
	}
	return nil
}

// sweepQueued resubmits jobs that never made it to the provider, e.g.
// because the process died between the insert and the submission.
func (g *Generator) sweepQueued(ctx context.Context, limit int) error {
	jobs, err := g.store.ListJobs(ctx, 1, limit, "created_at asc",
		storage.Where("status = ?", storage.Queued))
	if err != nil {
		return fmt.Errorf("generation: couldn't list queued jobs: %w", err)
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.submitJob(ctx, job); err != nil {
			// submitJob already marked the job failed
			g.log("generation: couldn't resubmit job %s: %v", job.ID, err)
		}
	}
	return nil
}

// sweepProcessing polls provider state for in-flight jobs and applies
// terminal results that the callback path missed.
func (g *Generator) sweepProcessing(ctx context.Context, limit int) error {
	jobs, err := g.store.ListJobs(ctx, 1, limit, "updated_at asc",
		storage.Where("status = ?", storage.Processing))
	if err != nil {
		return fmt.Errorf("generation: couldn't list processing jobs: %w", err)
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		var perr error
		switch job.Kind {
		case storage.SongKind:
			perr = g.pollSong(ctx, job)
		case storage.VideoKind:
			perr = g.pollVideo(ctx, job)
		default:
			perr = fmt.Errorf("generation: unknown job kind %q", job.Kind)
		}
		if perr != nil {
			// Polls are retried on the next sweep, don't fail the job
			g.log("generation: couldn't poll job %s: %v", job.ID, perr)
		}
	}
	return nil
}

func (g *Generator) pollSong(ctx context.Context, job *storage.Job) error {
	info, err := g.music.RecordInfo(ctx, job.ExternalID)
	if err != nil {
		return err
	}
	if !info.Done() {
		g.log("generation: job %s still %s", job.ID, info.Status)
		return nil
	}
	if !info.Succeeded() {
		return g.finish(ctx, job.ID, storage.Failed, fmt.Sprintf("task ended with status %s", info.Status))
	}
	stored, err := g.storeTracks(ctx, job, info.Tracks)
	if err != nil {
		return err
	}
	if stored == 0 {
		return g.finish(ctx, job.ID, storage.Failed, "task succeeded with no usable tracks")
	}
	return g.finish(ctx, job.ID, storage.Completed, "")
}

func (g *Generator) pollVideo(ctx context.Context, job *storage.Job) error {
	status, err := g.video.GetVideoStatus(ctx, job.ExternalID)
	if err != nil {
		return err
	}
	switch status.Status {
	case heygen.StatusCompleted:
		if err := g.storeVideo(ctx, job, job.ExternalID, status.VideoURL); err != nil {
			return err
		}
		return g.finish(ctx, job.ID, storage.Completed, "")
	case heygen.StatusFailed:
		msg := status.Error.Message
		if msg == "" {
			msg = "video generation failed"
		}
		return g.finish(ctx, job.ID, storage.Failed, msg)
	}
	g.log("generation: job %s still %s", job.ID, status.Status)
	return nil
}
