package gospelux

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gospelux/gospelux/pkg/suno"
)

type Config struct {
	Proxy string
	Wait  time.Duration
	Debug bool
	Key   string
	Model string
}

// GenerateSong generates a song from a prompt and downloads the
// resulting tracks, polling the provider until the task finishes. It is
// a one-shot helper that skips the job store entirely.
func GenerateSong(ctx context.Context, cfg *Config, prompt, style, title string, instrumental bool, output string) error {
	httpClient := &http.Client{
		Timeout: 2 * time.Minute,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	client := suno.New(&suno.Config{
		Key:    cfg.Key,
		Model:  cfg.Model,
		Debug:  cfg.Debug,
		Client: httpClient,
	})
	taskID, err := client.Generate(ctx, &suno.GenerateRequest{
		Prompt:       prompt,
		Style:        style,
		Title:        title,
		CustomMode:   style != "" || title != "",
		Instrumental: instrumental,
	})
	if err != nil {
		return fmt.Errorf("couldn't generate song: %w", err)
	}
	log.Println("task:", taskID)

	wait := cfg.Wait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	var info *suno.TaskInfo
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		info, err = client.RecordInfo(ctx, taskID)
		if err != nil {
			return fmt.Errorf("couldn't get task info: %w", err)
		}
		if info.Done() {
			break
		}
		log.Println("status:", info.Status)
	}
	if !info.Succeeded() {
		return fmt.Errorf("task ended with status %s", info.Status)
	}

	for _, track := range info.Tracks {
		log.Println("id:", track.ID)
		log.Println("title:", track.Title)
		log.Println("url:", track.AudioURL)
		if output == "" {
			continue
		}
		out := output
		if fi, err := os.Stat(output); err == nil && fi.IsDir() {
			out = filepath.Join(output, track.ID+".mp3")
		}
		if err := download(ctx, httpClient, track.AudioURL, out); err != nil {
			return err
		}
		log.Println("saved:", out)
	}
	return nil
}

func download(ctx context.Context, client *http.Client, url, output string) error {
	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("couldn't create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("couldn't download track: %w", err)
	}
	defer resp.Body.Close()

	// Write track to output
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("couldn't create output file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("couldn't write to output file: %w", err)
	}
	return nil
}
