package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gospelux/gospelux/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Output string
	Kind   string
	Status string
	Owner  string
	Limit  int
}

type row struct {
	ID           string  `json:"id" csv:"id"`
	Kind         string  `json:"kind" csv:"kind"`
	Owner        string  `json:"owner" csv:"owner"`
	Title        string  `json:"title" csv:"title"`
	Genre        string  `json:"genre" csv:"genre"`
	Mood         string  `json:"mood" csv:"mood"`
	Style        string  `json:"style" csv:"style"`
	DurationSecs int     `json:"duration_secs" csv:"duration_secs"`
	Status       string  `json:"status" csv:"status"`
	ExternalID   string  `json:"external_id" csv:"external_id"`
	Error        string  `json:"error" csv:"error"`
	CreatedAt    string  `json:"created_at" csv:"created_at"`
	Artifacts    int     `json:"artifacts" csv:"artifacts"`
	File         string  `json:"file" csv:"file"`
	URL          string  `json:"url" csv:"url"`
	Duration     float32 `json:"duration" csv:"duration"`
}

// Run exports jobs and their artifacts to a csv or json file.
func Run(ctx context.Context, cfg *Config) error {
	var count int
	log.Println("export: started")
	defer func() {
		log.Printf("export: ended (%d)\n", count)
	}()

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("export: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("export: couldn't start orm store: %w", err)
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = 10000
	}
	filters := []storage.Filter{}
	if cfg.Kind != "" {
		filters = append(filters, storage.Where("kind = ?", cfg.Kind))
	}
	if cfg.Status != "" {
		filters = append(filters, storage.Where("status = ?", cfg.Status))
	}
	if cfg.Owner != "" {
		filters = append(filters, storage.Where("owner = ?", cfg.Owner))
	}
	jobs, err := store.ListJobs(ctx, 1, limit, "created_at asc", filters...)
	if err != nil {
		return fmt.Errorf("export: couldn't list jobs: %w", err)
	}

	var rows []*row
	for _, j := range jobs {
		r := &row{
			ID:           j.ID,
			Kind:         j.Kind,
			Owner:        j.Owner,
			Title:        j.Title,
			Genre:        j.Genre,
			Mood:         j.Mood,
			Style:        j.Style,
			DurationSecs: j.DurationSecs,
			Status:       j.Status,
			ExternalID:   j.ExternalID,
			Error:        j.Error,
			CreatedAt:    j.CreatedAt.UTC().Format(time.RFC3339),
			Artifacts:    len(j.Artifacts),
		}
		if len(j.Artifacts) > 0 {
			a := j.Artifacts[0]
			r.File = a.File
			r.URL = a.URL
			r.Duration = a.Duration
		}
		rows = append(rows, r)
		count++
	}

	var b []byte
	ext := filepath.Ext(cfg.Output)
	switch ext {
	case ".csv":
		b, err = gocsv.MarshalBytes(rows)
		if err != nil {
			return fmt.Errorf("export: couldn't marshal jobs: %w", err)
		}
	case ".json":
		b, err = json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("export: couldn't marshal jobs: %w", err)
		}
	default:
		return fmt.Errorf("export: unsupported output format: %s", ext)
	}
	if err := os.WriteFile(cfg.Output, b, 0644); err != nil {
		return fmt.Errorf("export: couldn't write output file: %w", err)
	}
	return nil
}
