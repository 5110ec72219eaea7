// Package generation is the core pipeline: it accepts song and video
// requests, submits them to external providers, persists job state and
// ingests provider results delivered by webhook or poll.
package generation

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gospelux/gospelux/pkg/heygen"
	"github.com/gospelux/gospelux/pkg/storage"
	"github.com/gospelux/gospelux/pkg/suno"
)

// MusicProvider is the asynchronous music generation API.
type MusicProvider interface {
	Generate(ctx context.Context, req *suno.GenerateRequest) (string, error)
	RecordInfo(ctx context.Context, taskID string) (*suno.TaskInfo, error)
}

// VideoProvider is the asynchronous avatar video generation API.
type VideoProvider interface {
	CreateVideo(ctx context.Context, scenes []heygen.SceneInput, title string) (string, error)
	GetVideoStatus(ctx context.Context, videoID string) (*heygen.VideoStatus, error)
	Voices(ctx context.Context) ([]heygen.Voice, error)
	Avatars(ctx context.Context) ([]heygen.Avatar, error)
}

// LLM produces titles, lyrics and scripts.
type LLM interface {
	ChatCompletion(ctx context.Context, msg string) (string, error)
}

// FileStore persists downloaded media.
type FileStore interface {
	SetMP3(ctx context.Context, path, id string) error
	SetMP4(ctx context.Context, path, id string) error
}

type Generator struct {
	store  *storage.Store
	music  MusicProvider
	video  VideoProvider
	llm    LLM
	files  FileStore
	client *http.Client
	debug  bool
}

type Config struct {
	Store *storage.Store
	Music MusicProvider
	Video VideoProvider
	LLM   LLM
	Files FileStore
	Debug bool
}

func New(cfg *Config) *Generator {
	return &Generator{
		store: cfg.Store,
		music: cfg.Music,
		video: cfg.Video,
		llm:   cfg.LLM,
		files: cfg.Files,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		debug: cfg.Debug,
	}
}

func newID() string {
	return ulid.Make().String()
}

// download fetches a provider artifact URL into a temp file. The caller
// removes the file when done. Artifact URLs expire, so a bounded
// timeout keeps a dead link from stalling the pipeline.
func (g *Generator) download(ctx context.Context, u, ext string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("generation: couldn't create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation: couldn't download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation: download %s returned %d", u, resp.StatusCode)
	}
	f, err := os.CreateTemp("", "gospelux-*"+ext)
	if err != nil {
		return "", fmt.Errorf("generation: couldn't create temp file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("generation: couldn't write %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

func (g *Generator) log(format string, args ...interface{}) {
	if g.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}
