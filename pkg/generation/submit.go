package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/gospelux/gospelux/pkg/heygen"
	"github.com/gospelux/gospelux/pkg/script"
	"github.com/gospelux/gospelux/pkg/storage"
	"github.com/gospelux/gospelux/pkg/suno"
)

// SubmitSong validates a song request, persists a queued job and hands
// it to the music provider. The returned job is in processing state on
// success and failed state when the provider rejected the submission.
func (g *Generator) SubmitSong(ctx context.Context, req *SongRequest) (*storage.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = g.deriveTitle(ctx, req.SourceText)
	}
	lyrics := script.Lyrics(req.SourceText, req.Genre, req.Mood)

	job := &storage.Job{
		ID:         newID(),
		Kind:       storage.SongKind,
		Owner:      req.Owner,
		SourceText: req.SourceText,
		Title:      title,
		Lyrics:     lyrics,
		Genre:      req.Genre,
		Mood:       req.Mood,
		Status:     storage.Queued,
	}
	if err := g.store.SetJob(ctx, job); err != nil {
		return nil, err
	}
	if err := g.submitJob(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// SubmitVideo validates a video request, persists a queued job and
// hands it to the video provider.
func (g *Generator) SubmitVideo(ctx context.Context, req *VideoRequest) (*storage.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = g.deriveTitle(ctx, req.SourceText)
	}

	job := &storage.Job{
		ID:           newID(),
		Kind:         storage.VideoKind,
		Owner:        req.Owner,
		SourceText:   req.SourceText,
		Title:        title,
		Style:        req.Style,
		DurationSecs: req.Duration.Secs(),
		Status:       storage.Queued,
	}
	if err := g.store.SetJob(ctx, job); err != nil {
		return nil, err
	}
	if err := g.submitJob(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// submitJob sends a queued job to its provider and moves it to
// processing. A provider failure marks the job failed before the error
// is returned, so callers never leave a dead job in the queue.
func (g *Generator) submitJob(ctx context.Context, job *storage.Job) error {
	var externalID string
	var err error
	switch job.Kind {
	case storage.SongKind:
		externalID, err = g.submitSong(ctx, job)
	case storage.VideoKind:
		externalID, err = g.submitVideo(ctx, job)
	default:
		err = fmt.Errorf("generation: unknown job kind %q", job.Kind)
	}
	if err != nil {
		if ferr := g.store.FinishJob(ctx, job.ID, storage.Failed, err.Error()); ferr != nil && ferr != storage.ErrConflict {
			g.log("generation: couldn't mark job %s failed: %v", job.ID, ferr)
		}
		job.Status = storage.Failed
		job.Error = err.Error()
		return err
	}
	if err := g.store.StartJob(ctx, job.ID, externalID); err != nil {
		return err
	}
	job.Status = storage.Processing
	job.ExternalID = externalID
	return nil
}

func (g *Generator) submitSong(ctx context.Context, job *storage.Job) (string, error) {
	taskID, err := g.music.Generate(ctx, &suno.GenerateRequest{
		Prompt:     job.Lyrics,
		Style:      fmt.Sprintf("%s, %s", job.Genre, job.Mood),
		Title:      job.Title,
		CustomMode: true,
	})
	if err != nil {
		return "", &ProviderError{
			Provider: "suno",
			Code:     suno.StatusCode(err),
			Message:  "couldn't submit song",
			Err:      err,
		}
	}
	return taskID, nil
}

func (g *Generator) submitVideo(ctx context.Context, job *storage.Job) (string, error) {
	scenes, err := script.Generate(ctx, g.llm, job.SourceText, job.Style, job.DurationSecs)
	if err != nil {
		return "", err
	}
	voices, err := g.video.Voices(ctx)
	if err != nil {
		return "", &ProviderError{Provider: "heygen", Message: "couldn't list voices", Err: err}
	}
	avatars, err := g.video.Avatars(ctx)
	if err != nil {
		return "", &ProviderError{Provider: "heygen", Message: "couldn't list avatars", Err: err}
	}
	var inputs []heygen.SceneInput
	for _, s := range scenes {
		voice, err := heygen.SelectVoice(voices, s.SpeakerType)
		if err != nil {
			return "", &ProviderError{Provider: "heygen", Message: "couldn't select voice", Err: err}
		}
		avatar, err := heygen.SelectAvatar(avatars, s.SpeakerType)
		if err != nil {
			return "", &ProviderError{Provider: "heygen", Message: "couldn't select avatar", Err: err}
		}
		inputs = append(inputs, heygen.SceneInput{
			AvatarID: avatar.AvatarID,
			VoiceID:  voice.VoiceID,
			Text:     s.Text,
		})
	}
	videoID, err := g.video.CreateVideo(ctx, inputs, job.Title)
	if err != nil {
		return "", &ProviderError{
			Provider: "heygen",
			Code:     heygen.StatusCode(err),
			Message:  "couldn't submit video",
			Err:      err,
		}
	}
	return videoID, nil
}

// deriveTitle asks the model for a title, falling back to a truncated
// passage so a missing title never blocks the generation.
func (g *Generator) deriveTitle(ctx context.Context, sourceText string) string {
	title, err := script.Title(ctx, g.llm, sourceText)
	if err != nil {
		g.log("generation: couldn't derive title: %v", err)
		return truncate(sourceText, 60)
	}
	return title
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}
