package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gospelux/gospelux/pkg/filestore"
	"github.com/gospelux/gospelux/pkg/generation"
	"github.com/gospelux/gospelux/pkg/heygen"
	"github.com/gospelux/gospelux/pkg/openai"
	"github.com/gospelux/gospelux/pkg/storage"
	"github.com/gospelux/gospelux/pkg/suno"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string
	Proxy  string

	PublicURL string
	Interval  time.Duration
	Batch     int
	Once      bool

	SunoKey     string
	SunoModel   string
	HeygenKey   string
	OpenAIKey   string
	OpenAIModel string
}

// Run sweeps stuck jobs on a fixed interval: queued jobs are resubmitted
// and processing jobs whose callback never arrived are polled.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("reconcile: process started")
	defer log.Println("reconcile: process ended")

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("reconcile: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("reconcile: couldn't start orm store: %w", err)
	}

	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Proxy, cfg.Debug, store)
	if err != nil {
		return fmt.Errorf("reconcile: couldn't create file storage: %w", err)
	}

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	music := suno.New(&suno.Config{
		Key:         cfg.SunoKey,
		Model:       cfg.SunoModel,
		CallbackURL: publicURL + "/api/callbacks/song",
		Debug:       cfg.Debug,
	})
	video := heygen.New(&heygen.Config{
		Key:         cfg.HeygenKey,
		CallbackURL: publicURL + "/api/callbacks/video",
		Debug:       cfg.Debug,
	})
	llm := openai.New(&openai.Config{
		Token: cfg.OpenAIKey,
		Model: cfg.OpenAIModel,
		Debug: cfg.Debug,
	})

	generator := generation.New(&generation.Config{
		Store: store,
		Music: music,
		Video: video,
		LLM:   llm,
		Files: fs,
		Debug: cfg.Debug,
	})

	interval := cfg.Interval
	if interval <= 0 {
		interval = 1 * time.Minute
	}

	if cfg.Once {
		return generator.Reconcile(ctx, cfg.Batch)
	}

	maxConsecutiveErrors := 5
	consecutiveErrors := 0
	for {
		if err := generator.Reconcile(ctx, cfg.Batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			consecutiveErrors++
			log.Println("reconcile: sweep failed:", err)
			if consecutiveErrors >= maxConsecutiveErrors {
				return fmt.Errorf("reconcile: too many consecutive errors: %w", err)
			}
		} else {
			consecutiveErrors = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
