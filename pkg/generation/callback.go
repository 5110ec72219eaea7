package generation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gospelux/gospelux/pkg/filestore"
	"github.com/gospelux/gospelux/pkg/heygen"
	"github.com/gospelux/gospelux/pkg/storage"
	"github.com/gospelux/gospelux/pkg/suno"
)

// HandleSongCallback ingests a music provider webhook. Unknown task ids
// yield a NotFoundError so the web layer can acknowledge stale
// deliveries, and deliveries for jobs that already finished are a
// no-op.
func (g *Generator) HandleSongCallback(ctx context.Context, payload *suno.CallbackPayload) error {
	taskID := payload.Data.TaskID
	if taskID == "" {
		return &ValidationError{Field: "task_id", Message: "is required"}
	}
	job, err := g.store.GetJobByExternalID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{ExternalID: taskID}
		}
		return err
	}
	// Finished jobs never change again, even when the provider
	// redelivers a success
	if job.Status != storage.Processing {
		g.log("generation: ignoring callback for %s job %s", job.Status, job.ID)
		return nil
	}
	if payload.Code != 200 {
		msg := payload.Msg
		if msg == "" {
			msg = "generation failed"
		}
		return g.finish(ctx, job.ID, storage.Failed, msg)
	}
	stored, err := g.storeTracks(ctx, job, payload.Data.Data)
	if err != nil {
		return err
	}
	if stored == 0 {
		return g.finish(ctx, job.ID, storage.Failed, "callback delivered no usable tracks")
	}
	return g.finish(ctx, job.ID, storage.Completed, "")
}

// HandleVideoCallback ingests a video provider webhook.
func (g *Generator) HandleVideoCallback(ctx context.Context, payload *heygen.CallbackPayload) error {
	videoID := payload.EventData.VideoID
	if videoID == "" {
		return &ValidationError{Field: "video_id", Message: "is required"}
	}
	job, err := g.store.GetJobByExternalID(ctx, videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{ExternalID: videoID}
		}
		return err
	}
	if job.Status != storage.Processing {
		g.log("generation: ignoring callback for %s job %s", job.Status, job.ID)
		return nil
	}
	switch payload.EventType {
	case heygen.EventVideoCompleted, heygen.EventAvatarVideoSuccess:
		if err := g.storeVideo(ctx, job, videoID, payload.ResultURL()); err != nil {
			g.log("generation: couldn't store video of job %s: %v", job.ID, err)
			return g.finish(ctx, job.ID, storage.Failed, fmt.Sprintf("couldn't store video: %v", err))
		}
		return g.finish(ctx, job.ID, storage.Completed, "")
	case heygen.EventVideoFailed, heygen.EventAvatarVideoFail:
		msg := payload.EventData.Msg
		if msg == "" {
			msg = "video generation failed"
		}
		return g.finish(ctx, job.ID, storage.Failed, msg)
	}
	// Intermediate events are not tracked
	g.log("generation: ignoring event %q for job %s", payload.EventType, job.ID)
	return nil
}

// storeTracks downloads and persists the tracks of a song result,
// skipping tracks the job already has. It returns the number of tracks
// the job ends up with.
func (g *Generator) storeTracks(ctx context.Context, job *storage.Job, tracks []suno.Track) (int, error) {
	stored := 0
	for _, track := range tracks {
		if track.ID == "" || track.AudioURL == "" {
			g.log("generation: skipping incomplete track %q of job %s", track.ID, job.ID)
			continue
		}
		ok, err := g.store.HasArtifact(ctx, job.ID, track.ID)
		if err != nil {
			return stored, err
		}
		if ok {
			stored++
			continue
		}
		id := newID()
		path, err := g.download(ctx, track.AudioURL, ".mp3")
		if err != nil {
			g.log("generation: couldn't download track %s of job %s: %v", track.ID, job.ID, err)
			continue
		}
		err = g.files.SetMP3(ctx, path, id)
		os.Remove(path)
		if err != nil {
			g.log("generation: couldn't store track %s of job %s: %v", track.ID, job.ID, err)
			continue
		}
		added, err := g.store.AddArtifact(ctx, &storage.Artifact{
			ID:         id,
			JobID:      job.ID,
			ProviderID: track.ID,
			URL:        track.AudioURL,
			File:       filestore.MP3(id),
			Title:      track.Title,
			Duration:   track.Duration,
		})
		if err != nil {
			return stored, err
		}
		if !added {
			g.log("generation: track %s of job %s was stored concurrently", track.ID, job.ID)
		}
		stored++
	}
	return stored, nil
}

// storeVideo downloads and persists the single video artifact of a
// video result.
func (g *Generator) storeVideo(ctx context.Context, job *storage.Job, videoID, videoURL string) error {
	ok, err := g.store.HasArtifact(ctx, job.ID, videoID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if videoURL == "" {
		return &ProviderError{Provider: "heygen", Message: "completed video has no url"}
	}
	id := newID()
	path, err := g.download(ctx, videoURL, ".mp4")
	if err != nil {
		return err
	}
	defer os.Remove(path)
	if err := g.files.SetMP4(ctx, path, id); err != nil {
		return err
	}
	if _, err := g.store.AddArtifact(ctx, &storage.Artifact{
		ID:         id,
		JobID:      job.ID,
		ProviderID: videoID,
		URL:        videoURL,
		File:       filestore.MP4(id),
		Title:      job.Title,
		Duration:   float32(job.DurationSecs),
	}); err != nil {
		return err
	}
	return nil
}

// finish applies a terminal transition, treating a lost race as success
// since someone else already finished the job.
func (g *Generator) finish(ctx context.Context, id, status, errMsg string) error {
	err := g.store.FinishJob(ctx, id, status, errMsg)
	if errors.Is(err, storage.ErrConflict) {
		g.log("generation: job %s already finished", id)
		return nil
	}
	return err
}
