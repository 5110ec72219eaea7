package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gospelux/gospelux/pkg/heygen"
	"github.com/gospelux/gospelux/pkg/storage"
	"github.com/gospelux/gospelux/pkg/suno"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New("sqlite", ":memory:", false)
	if err != nil {
		t.Fatalf("couldn't create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Start(ctx); err != nil {
		t.Fatalf("couldn't start store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("couldn't migrate store: %v", err)
	}
	return store
}

type fakeMusic struct {
	taskID    string
	genErr    error
	failTitle string
	info      *suno.TaskInfo
	infoErr   error
	requests  []*suno.GenerateRequest
}

func (f *fakeMusic) Generate(ctx context.Context, req *suno.GenerateRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.genErr != nil {
		return "", f.genErr
	}
	if f.failTitle != "" && req.Title == f.failTitle {
		return "", errors.New("rejected")
	}
	return f.taskID, nil
}

func (f *fakeMusic) RecordInfo(ctx context.Context, taskID string) (*suno.TaskInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info == nil {
		return &suno.TaskInfo{TaskID: taskID, Status: suno.StatusPending}, nil
	}
	return f.info, nil
}

type fakeVideo struct {
	videoID   string
	createErr error
	status    *heygen.VideoStatus
	statusErr error
	scenes    []heygen.SceneInput
}

func (f *fakeVideo) CreateVideo(ctx context.Context, scenes []heygen.SceneInput, title string) (string, error) {
	f.scenes = scenes
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.videoID, nil
}

func (f *fakeVideo) GetVideoStatus(ctx context.Context, videoID string) (*heygen.VideoStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status == nil {
		return &heygen.VideoStatus{Status: heygen.StatusProcessing}, nil
	}
	return f.status, nil
}

func (f *fakeVideo) Voices(ctx context.Context) ([]heygen.Voice, error) {
	return []heygen.Voice{
		{VoiceID: "v-f", Name: "Amber", Gender: "female"},
		{VoiceID: "v-m", Name: "Deep Marcus", Gender: "male"},
		{VoiceID: "v-n", Name: "River", Gender: "neutral"},
	}, nil
}

func (f *fakeVideo) Avatars(ctx context.Context) ([]heygen.Avatar, error) {
	return []heygen.Avatar{
		{AvatarID: "a-f", Name: "Grace", Gender: "female"},
		{AvatarID: "a-m", Name: "Daniel", Gender: "male"},
	}, nil
}

type fakeLLM struct {
	title  string
	script string
	err    error
}

func (f *fakeLLM) ChatCompletion(ctx context.Context, msg string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	// Script prompts ask for a scenes object, title prompts don't
	if f.script != "" && strings.Contains(msg, "scenes") {
		return f.script, nil
	}
	return fmt.Sprintf("How about %q?", f.title), nil
}

type fakeFiles struct {
	lck    sync.Mutex
	mp3s   []string
	mp4s   []string
	setErr error
}

func (f *fakeFiles) SetMP3(ctx context.Context, path, id string) error {
	f.lck.Lock()
	defer f.lck.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.mp3s = append(f.mp3s, id)
	return nil
}

func (f *fakeFiles) SetMP4(ctx context.Context, path, id string) error {
	f.lck.Lock()
	defer f.lck.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.mp4s = append(f.mp4s, id)
	return nil
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, store *storage.Store, music *fakeMusic, video *fakeVideo, llm *fakeLLM, files *fakeFiles) *Generator {
	t.Helper()
	return New(&Config{
		Store: store,
		Music: music,
		Video: video,
		LLM:   llm,
		Files: files,
	})
}

const testScript = `{"scenes": [` +
	`{"speaker_type": "presenter", "text": "Today we read from Genesis."},` +
	`{"speaker_type": "god", "text": "Let there be light."}]}`

func TestSubmitSong(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{taskID: "task-1"}
	llm := &fakeLLM{title: "Let There Be Light"}
	g := newTestGenerator(t, store, music, &fakeVideo{}, llm, &fakeFiles{})

	job, err := g.SubmitSong(context.Background(), &SongRequest{
		Owner:      "alice",
		SourceText: "And God said, Let there be light",
		Genre:      "gospel",
		Mood:       "joyful",
	})
	if err != nil {
		t.Fatalf("couldn't submit song: %v", err)
	}
	if job.Status != storage.Processing {
		t.Errorf("want status %s, got %s", storage.Processing, job.Status)
	}
	if job.ExternalID != "task-1" {
		t.Errorf("want external id task-1, got %s", job.ExternalID)
	}
	if job.Title != "Let There Be Light" {
		t.Errorf("unexpected title %q", job.Title)
	}

	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Processing || stored.ExternalID != "task-1" {
		t.Errorf("stored job not started: %+v", stored)
	}
	if len(music.requests) != 1 {
		t.Fatalf("want 1 provider request, got %d", len(music.requests))
	}
	if !music.requests[0].CustomMode {
		t.Error("want custom mode submission")
	}
}

func TestSubmitSongValidation(t *testing.T) {
	store := newTestStore(t)
	g := newTestGenerator(t, store, &fakeMusic{}, &fakeVideo{}, &fakeLLM{}, &fakeFiles{})

	tests := []struct {
		name string
		req  *SongRequest
	}{
		{name: "missing verse", req: &SongRequest{Genre: "gospel"}},
		{name: "bad genre", req: &SongRequest{SourceText: "John 3:16", Genre: "metal"}},
		{name: "bad mood", req: &SongRequest{SourceText: "John 3:16", Mood: "angry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.SubmitSong(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("want ValidationError, got %v", err)
			}
		})
	}

	// No jobs should have been created
	jobs, err := store.ListJobs(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("couldn't list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("want no jobs, got %d", len(jobs))
	}
}

func TestSubmitSongProviderError(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{genErr: errors.New("quota exceeded")}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{title: "T"}, &fakeFiles{})

	job, err := g.SubmitSong(context.Background(), &SongRequest{
		Owner:      "alice",
		SourceText: "Psalm 23",
	})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("want ProviderError, got %v", err)
	}
	if job == nil {
		t.Fatal("want job even on provider failure")
	}
	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Failed {
		t.Errorf("want status %s, got %s", storage.Failed, stored.Status)
	}
	if stored.Error == "" {
		t.Error("want error message on failed job")
	}
}

func TestSubmitVideo(t *testing.T) {
	store := newTestStore(t)
	video := &fakeVideo{videoID: "vid-1"}
	llm := &fakeLLM{title: "The First Light", script: testScript}
	g := newTestGenerator(t, store, &fakeMusic{}, video, llm, &fakeFiles{})

	job, err := g.SubmitVideo(context.Background(), &VideoRequest{
		Owner:      "alice",
		SourceText: "Genesis 1:3",
		Style:      "cinematic",
	})
	if err != nil {
		t.Fatalf("couldn't submit video: %v", err)
	}
	if job.Status != storage.Processing || job.ExternalID != "vid-1" {
		t.Errorf("job not started: %+v", job)
	}
	if len(video.scenes) != 2 {
		t.Fatalf("want 2 scenes, got %d", len(video.scenes))
	}
	// The god scene gets the deep male voice
	if video.scenes[1].VoiceID != "v-m" {
		t.Errorf("want voice v-m for god scene, got %s", video.scenes[1].VoiceID)
	}
	if video.scenes[0].VoiceID != "v-n" {
		t.Errorf("want neutral voice for presenter scene, got %s", video.scenes[0].VoiceID)
	}
}

func TestSubmitVideoScriptFailure(t *testing.T) {
	store := newTestStore(t)
	llm := &fakeLLM{title: "T", script: "I can't help with that."}
	g := newTestGenerator(t, store, &fakeMusic{}, &fakeVideo{videoID: "vid-1"}, llm, &fakeFiles{})

	job, err := g.SubmitVideo(context.Background(), &VideoRequest{
		Owner:      "alice",
		SourceText: "Genesis 1:3",
	})
	if err == nil {
		t.Fatal("want error, got nil")
	}
	stored, gerr := store.GetJob(context.Background(), job.ID)
	if gerr != nil {
		t.Fatalf("couldn't get job: %v", gerr)
	}
	if stored.Status != storage.Failed {
		t.Errorf("want status %s, got %s", storage.Failed, stored.Status)
	}
}

func TestHandleSongCallback(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{taskID: "task-1"}
	files := &fakeFiles{}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{title: "T"}, files)
	srv := mediaServer(t)

	job, err := g.SubmitSong(context.Background(), &SongRequest{Owner: "alice", SourceText: "Psalm 23"})
	if err != nil {
		t.Fatalf("couldn't submit song: %v", err)
	}

	payload := &suno.CallbackPayload{Code: 200}
	payload.Data.TaskID = "task-1"
	payload.Data.Data = []suno.Track{
		{ID: "clip-1", AudioURL: srv.URL + "/1.mp3", Title: "Take 1", Duration: 93.2},
		{ID: "clip-2", AudioURL: srv.URL + "/2.mp3", Title: "Take 2", Duration: 91.7},
	}
	if err := g.HandleSongCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}

	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Completed {
		t.Errorf("want status %s, got %s", storage.Completed, stored.Status)
	}
	if len(stored.Artifacts) != 2 {
		t.Fatalf("want 2 artifacts, got %d", len(stored.Artifacts))
	}
	if len(files.mp3s) != 2 {
		t.Errorf("want 2 stored files, got %d", len(files.mp3s))
	}

	// A duplicate delivery is a no-op
	if err := g.HandleSongCallback(context.Background(), payload); err != nil {
		t.Fatalf("duplicate callback failed: %v", err)
	}
	stored, err = store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if len(stored.Artifacts) != 2 {
		t.Errorf("duplicate callback added artifacts: got %d", len(stored.Artifacts))
	}
	if len(files.mp3s) != 2 {
		t.Errorf("duplicate callback stored files again: got %d", len(files.mp3s))
	}
}

func TestHandleSongCallbackFailure(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{taskID: "task-1"}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{title: "T"}, &fakeFiles{})

	job, err := g.SubmitSong(context.Background(), &SongRequest{Owner: "alice", SourceText: "Psalm 23"})
	if err != nil {
		t.Fatalf("couldn't submit song: %v", err)
	}

	payload := &suno.CallbackPayload{Code: 500, Msg: "generation failed upstream"}
	payload.Data.TaskID = "task-1"
	if err := g.HandleSongCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}
	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Failed {
		t.Errorf("want status %s, got %s", storage.Failed, stored.Status)
	}
	if stored.Error != "generation failed upstream" {
		t.Errorf("unexpected error message %q", stored.Error)
	}
}

func TestHandleSongCallbackTerminalJob(t *testing.T) {
	store := newTestStore(t)
	files := &fakeFiles{}
	g := newTestGenerator(t, store, &fakeMusic{}, &fakeVideo{}, &fakeLLM{}, files)
	srv := mediaServer(t)

	// The job already timed out, then the provider delivers a success
	job := &storage.Job{
		ID:         "late-1",
		Kind:       storage.SongKind,
		SourceText: "Psalm 23",
		Status:     storage.Failed,
		ExternalID: "task-1",
		Error:      "task timed out",
	}
	if err := store.SetJob(context.Background(), job); err != nil {
		t.Fatalf("couldn't set job: %v", err)
	}

	payload := &suno.CallbackPayload{Code: 200}
	payload.Data.TaskID = "task-1"
	payload.Data.Data = []suno.Track{
		{ID: "clip-1", AudioURL: srv.URL + "/1.mp3", Title: "Take 1", Duration: 90},
	}
	if err := g.HandleSongCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}

	stored, err := store.GetJob(context.Background(), "late-1")
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Failed {
		t.Errorf("late callback changed status to %s", stored.Status)
	}
	if len(stored.Artifacts) != 0 {
		t.Errorf("late callback added %d artifacts", len(stored.Artifacts))
	}
	if len(files.mp3s) != 0 {
		t.Errorf("late callback stored %d files", len(files.mp3s))
	}
}

func TestHandleSongCallbackUnknownTask(t *testing.T) {
	store := newTestStore(t)
	g := newTestGenerator(t, store, &fakeMusic{}, &fakeVideo{}, &fakeLLM{}, &fakeFiles{})

	payload := &suno.CallbackPayload{Code: 200}
	payload.Data.TaskID = "unknown"
	err := g.HandleSongCallback(context.Background(), payload)
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Errorf("want NotFoundError, got %v", err)
	}
}

func TestHandleSongCallbackMissingTaskID(t *testing.T) {
	store := newTestStore(t)
	g := newTestGenerator(t, store, &fakeMusic{}, &fakeVideo{}, &fakeLLM{}, &fakeFiles{})

	err := g.HandleSongCallback(context.Background(), &suno.CallbackPayload{Code: 200})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("want ValidationError, got %v", err)
	}
}

func TestHandleVideoCallback(t *testing.T) {
	store := newTestStore(t)
	video := &fakeVideo{videoID: "vid-1"}
	files := &fakeFiles{}
	llm := &fakeLLM{title: "T", script: testScript}
	g := newTestGenerator(t, store, &fakeMusic{}, video, llm, files)
	srv := mediaServer(t)

	job, err := g.SubmitVideo(context.Background(), &VideoRequest{Owner: "alice", SourceText: "Genesis 1:3"})
	if err != nil {
		t.Fatalf("couldn't submit video: %v", err)
	}

	payload := &heygen.CallbackPayload{EventType: heygen.EventVideoCompleted}
	payload.EventData.VideoID = "vid-1"
	payload.EventData.VideoURL = srv.URL + "/vid.mp4"
	if err := g.HandleVideoCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}

	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Completed {
		t.Errorf("want status %s, got %s", storage.Completed, stored.Status)
	}
	if len(stored.Artifacts) != 1 {
		t.Fatalf("want 1 artifact, got %d", len(stored.Artifacts))
	}
	if len(files.mp4s) != 1 {
		t.Errorf("want 1 stored file, got %d", len(files.mp4s))
	}
}

func TestHandleVideoCallbackFailure(t *testing.T) {
	store := newTestStore(t)
	video := &fakeVideo{videoID: "vid-1"}
	llm := &fakeLLM{title: "T", script: testScript}
	g := newTestGenerator(t, store, &fakeMusic{}, video, llm, &fakeFiles{})

	job, err := g.SubmitVideo(context.Background(), &VideoRequest{Owner: "alice", SourceText: "Genesis 1:3"})
	if err != nil {
		t.Fatalf("couldn't submit video: %v", err)
	}

	payload := &heygen.CallbackPayload{EventType: heygen.EventVideoFailed}
	payload.EventData.VideoID = "vid-1"
	payload.EventData.Msg = "render error"
	if err := g.HandleVideoCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}
	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Failed || stored.Error != "render error" {
		t.Errorf("job not failed: %+v", stored)
	}
}

func TestHandleVideoCallbackTerminalJob(t *testing.T) {
	store := newTestStore(t)
	files := &fakeFiles{}
	g := newTestGenerator(t, store, &fakeMusic{}, &fakeVideo{}, &fakeLLM{}, files)
	srv := mediaServer(t)

	job := &storage.Job{
		ID:         "late-2",
		Kind:       storage.VideoKind,
		Status:     storage.Failed,
		ExternalID: "vid-1",
		Error:      "render error",
	}
	if err := store.SetJob(context.Background(), job); err != nil {
		t.Fatalf("couldn't set job: %v", err)
	}

	payload := &heygen.CallbackPayload{EventType: heygen.EventVideoCompleted}
	payload.EventData.VideoID = "vid-1"
	payload.EventData.VideoURL = srv.URL + "/vid.mp4"
	if err := g.HandleVideoCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}

	stored, err := store.GetJob(context.Background(), "late-2")
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Failed || stored.Error != "render error" {
		t.Errorf("late callback changed job: %+v", stored)
	}
	if len(stored.Artifacts) != 0 || len(files.mp4s) != 0 {
		t.Errorf("late callback stored media: %d artifacts, %d files", len(stored.Artifacts), len(files.mp4s))
	}
}

func TestHandleVideoCallbackDownloadFailure(t *testing.T) {
	store := newTestStore(t)
	video := &fakeVideo{videoID: "vid-1"}
	llm := &fakeLLM{title: "T", script: testScript}
	g := newTestGenerator(t, store, &fakeMusic{}, video, llm, &fakeFiles{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	job, err := g.SubmitVideo(context.Background(), &VideoRequest{Owner: "alice", SourceText: "Genesis 1:3"})
	if err != nil {
		t.Fatalf("couldn't submit video: %v", err)
	}

	payload := &heygen.CallbackPayload{EventType: heygen.EventVideoCompleted}
	payload.EventData.VideoID = "vid-1"
	payload.EventData.VideoURL = srv.URL + "/vid.mp4"
	if err := g.HandleVideoCallback(context.Background(), payload); err != nil {
		t.Fatalf("couldn't handle callback: %v", err)
	}

	stored, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Failed {
		t.Errorf("want status %s, got %s", storage.Failed, stored.Status)
	}
	if !strings.Contains(stored.Error, "couldn't store video") {
		t.Errorf("unexpected error message %q", stored.Error)
	}
	if len(stored.Artifacts) != 0 {
		t.Errorf("want no artifacts, got %d", len(stored.Artifacts))
	}
}

func TestReconcileQueued(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{taskID: "task-9"}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{title: "T"}, &fakeFiles{})

	// A job that never reached the provider
	job := &storage.Job{
		ID:         "stuck-1",
		Kind:       storage.SongKind,
		Owner:      "alice",
		SourceText: "Psalm 23",
		Title:      "Still Waters",
		Lyrics:     "...",
		Status:     storage.Queued,
	}
	if err := store.SetJob(context.Background(), job); err != nil {
		t.Fatalf("couldn't set job: %v", err)
	}

	if err := g.Reconcile(context.Background(), 5); err != nil {
		t.Fatalf("couldn't reconcile: %v", err)
	}
	stored, err := store.GetJob(context.Background(), "stuck-1")
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Processing || stored.ExternalID != "task-9" {
		t.Errorf("job not resubmitted: %+v", stored)
	}

	// A completed sweep leaves a timestamp behind
	setting, err := store.GetSetting(context.Background(), lastSweepSetting)
	if err != nil {
		t.Fatalf("couldn't get sweep setting: %v", err)
	}
	if setting.Value == "" {
		t.Error("want a sweep timestamp, got empty value")
	}
}

func TestReconcileQueuedSubmitFailure(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{taskID: "task-x", failTitle: "q-2"}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{title: "T"}, &fakeFiles{})

	for _, id := range []string{"q-1", "q-2", "q-3"} {
		job := &storage.Job{
			ID:         id,
			Kind:       storage.SongKind,
			SourceText: "Psalm 23",
			Title:      id,
			Status:     storage.Queued,
		}
		if err := store.SetJob(context.Background(), job); err != nil {
			t.Fatalf("couldn't set job: %v", err)
		}
	}

	// One rejected submission doesn't stop the sweep or touch the
	// neighboring jobs
	if err := g.Reconcile(context.Background(), 5); err != nil {
		t.Fatalf("couldn't reconcile: %v", err)
	}
	wants := map[string]string{
		"q-1": storage.Processing,
		"q-2": storage.Failed,
		"q-3": storage.Processing,
	}
	for id, want := range wants {
		stored, err := store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("couldn't get job: %v", err)
		}
		if stored.Status != want {
			t.Errorf("job %s: want status %s, got %s", id, want, stored.Status)
		}
	}
}

func TestReconcileProcessingSong(t *testing.T) {
	store := newTestStore(t)
	srv := mediaServer(t)
	music := &fakeMusic{
		info: &suno.TaskInfo{
			TaskID: "task-1",
			Status: suno.StatusSuccess,
			Tracks: []suno.Track{
				{ID: "clip-1", AudioURL: srv.URL + "/1.mp3", Title: "Take 1", Duration: 90},
			},
		},
	}
	files := &fakeFiles{}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{}, files)

	job := &storage.Job{
		ID:         "p-1",
		Kind:       storage.SongKind,
		SourceText: "Psalm 23",
		Status:     storage.Processing,
		ExternalID: "task-1",
	}
	if err := store.SetJob(context.Background(), job); err != nil {
		t.Fatalf("couldn't set job: %v", err)
	}

	if err := g.Reconcile(context.Background(), 5); err != nil {
		t.Fatalf("couldn't reconcile: %v", err)
	}
	stored, err := store.GetJob(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Completed {
		t.Errorf("want status %s, got %s", storage.Completed, stored.Status)
	}
	if len(stored.Artifacts) != 1 {
		t.Errorf("want 1 artifact, got %d", len(stored.Artifacts))
	}
}

func TestReconcileProcessingSongStillRunning(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{
		info: &suno.TaskInfo{TaskID: "task-1", Status: suno.StatusText},
	}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{}, &fakeFiles{})

	job := &storage.Job{
		ID:         "p-1",
		Kind:       storage.SongKind,
		Status:     storage.Processing,
		ExternalID: "task-1",
	}
	if err := store.SetJob(context.Background(), job); err != nil {
		t.Fatalf("couldn't set job: %v", err)
	}

	if err := g.Reconcile(context.Background(), 5); err != nil {
		t.Fatalf("couldn't reconcile: %v", err)
	}
	stored, err := store.GetJob(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Processing {
		t.Errorf("want status %s, got %s", storage.Processing, stored.Status)
	}
}

func TestReconcileProcessingVideo(t *testing.T) {
	store := newTestStore(t)
	srv := mediaServer(t)
	video := &fakeVideo{
		status: &heygen.VideoStatus{
			Status:   heygen.StatusCompleted,
			VideoURL: srv.URL + "/vid.mp4",
		},
	}
	g := newTestGenerator(t, store, &fakeMusic{}, video, &fakeLLM{}, &fakeFiles{})

	job := &storage.Job{
		ID:         "p-2",
		Kind:       storage.VideoKind,
		Title:      "The First Light",
		Status:     storage.Processing,
		ExternalID: "vid-1",
	}
	if err := store.SetJob(context.Background(), job); err != nil {
		t.Fatalf("couldn't set job: %v", err)
	}

	if err := g.Reconcile(context.Background(), 5); err != nil {
		t.Fatalf("couldn't reconcile: %v", err)
	}
	stored, err := store.GetJob(context.Background(), "p-2")
	if err != nil {
		t.Fatalf("couldn't get job: %v", err)
	}
	if stored.Status != storage.Completed {
		t.Errorf("want status %s, got %s", storage.Completed, stored.Status)
	}
	if len(stored.Artifacts) != 1 {
		t.Errorf("want 1 artifact, got %d", len(stored.Artifacts))
	}
}

func TestReconcileBatchLimit(t *testing.T) {
	store := newTestStore(t)
	music := &fakeMusic{taskID: "task-x"}
	g := newTestGenerator(t, store, music, &fakeVideo{}, &fakeLLM{title: "T"}, &fakeFiles{})

	for i := 0; i < 7; i++ {
		job := &storage.Job{
			ID:         fmt.Sprintf("q-%d", i),
			Kind:       storage.SongKind,
			SourceText: "Psalm 23",
			Status:     storage.Queued,
		}
		if err := store.SetJob(context.Background(), job); err != nil {
			t.Fatalf("couldn't set job: %v", err)
		}
	}

	if err := g.Reconcile(context.Background(), 5); err != nil {
		t.Fatalf("couldn't reconcile: %v", err)
	}
	queued, err := store.ListJobs(context.Background(), 1, 20, "",
		storage.Where("status = ?", storage.Queued))
	if err != nil {
		t.Fatalf("couldn't list jobs: %v", err)
	}
	if len(queued) != 2 {
		t.Errorf("want 2 jobs left in queue, got %d", len(queued))
	}
}

func TestMinutesSecs(t *testing.T) {
	tests := []struct {
		in   Minutes
		want int
	}{
		{in: 0, want: 60},
		{in: 1, want: 60},
		{in: 2, want: 120},
		{in: 10, want: 180},
		{in: 0.5, want: 30},
	}
	for _, tt := range tests {
		if got := tt.in.Secs(); got != tt.want {
			t.Errorf("Minutes(%v).Secs() = %d, want %d", float64(tt.in), got, tt.want)
		}
	}
}
