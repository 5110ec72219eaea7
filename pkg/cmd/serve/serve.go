package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gospelux/gospelux/pkg/bible"
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

	Addr        string
	PublicURL   string
	Credentials map[string]string

	SunoKey     string
	SunoModel   string
	HeygenKey   string
	OpenAIKey   string
	OpenAIModel string
	BibleKey    string
	BibleID     string
}

// Serve starts the generation API service.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("serve: server started")
	defer log.Println("serve: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("serve: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("serve: couldn't start orm store: %w", err)
	}

	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Proxy, cfg.Debug, store)
	if err != nil {
		return fmt.Errorf("serve: couldn't create file storage: %w", err)
	}

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	if err := store.SetSetting(ctx, &storage.Setting{ID: "public_url", Value: publicURL}); err != nil {
		return fmt.Errorf("serve: couldn't store public url: %w", err)
	}
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
	var passages *bible.Client
	if cfg.BibleKey != "" {
		passages = bible.New(&bible.Config{
			Key:     cfg.BibleKey,
			BibleID: cfg.BibleID,
			Debug:   cfg.Debug,
		})
	}

	generator := generation.New(&generation.Config{
		Store: store,
		Music: music,
		Video: video,
		LLM:   llm,
		Files: fs,
		Debug: cfg.Debug,
	})

	// Create router
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(60 * time.Second))
	if cfg.Debug {
		mux.Use(middleware.Logger)
	}

	// Provider callbacks can't authenticate, everything else requires
	// basic auth when credentials are configured
	r := mux.Group(func(r chi.Router) {
		if len(cfg.Credentials) > 0 {
			r.Use(middleware.BasicAuth("private", cfg.Credentials))
		}
	})

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("serve: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("serve: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v\n", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	r.Post("/api/songs/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generation.SongRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
			return
		}
		req.Owner = owner(r)
		req.SourceText = resolveVerse(r.Context(), passages, req.SourceText)
		job, err := generator.SubmitSong(r.Context(), &req)
		if err != nil && job == nil {
			writeError(w, err)
			return
		}
		writeJob(w, job)
	})

	r.Post("/api/videos/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generation.VideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
			return
		}
		req.Owner = owner(r)
		req.SourceText = resolveVerse(r.Context(), passages, req.SourceText)
		job, err := generator.SubmitVideo(r.Context(), &req)
		if err != nil && job == nil {
			writeError(w, err)
			return
		}
		writeJob(w, job)
	})

	r.Get("/api/jobs/status", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("job_id")
		if id == "" {
			http.Error(w, "job_id is required", http.StatusBadRequest)
			return
		}
		job, err := store.GetJob(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "job not found", http.StatusNotFound)
				return
			}
			writeError(w, err)
			return
		}
		writeJob(w, job)
	})

	r.Get("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			page = 1
		}
		size, err := strconv.Atoi(r.URL.Query().Get("size"))
		if err != nil {
			size = 100
		}
		filters := []storage.Filter{}
		if o := owner(r); o != "" {
			filters = append(filters, storage.Where("owner = ?", o))
		}
		for _, q := range []string{"kind", "status"} {
			if v := r.URL.Query().Get(q); v != "" {
				filters = append(filters, storage.Where(fmt.Sprintf("%s = ?", q), v))
			}
		}
		jobs, err := store.ListJobs(r.Context(), page, size, "created_at desc", filters...)
		if err != nil {
			log.Println("couldn't list jobs:", err)
			http.Error(w, fmt.Sprintf("couldn't list jobs: %v", err), http.StatusInternalServerError)
			return
		}
		resp := []*Job{}
		for _, j := range jobs {
			resp = append(resp, toJob(j))
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Println("couldn't encode jobs:", err)
		}
	})

	// Callbacks are always acknowledged unless the payload is unusable,
	// otherwise the provider keeps redelivering
	mux.Post("/api/callbacks/song", func(w http.ResponseWriter, r *http.Request) {
		var payload suno.CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode callback: %v", err), http.StatusBadRequest)
			return
		}
		handleCallback(w, generator.HandleSongCallback(r.Context(), &payload))
	})

	mux.Post("/api/callbacks/video", func(w http.ResponseWriter, r *http.Request) {
		var payload heygen.CallbackPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode callback: %v", err), http.StatusBadRequest)
			return
		}
		handleCallback(w, generator.HandleVideoCallback(r.Context(), &payload))
	})

	<-ctx.Done()
	return nil
}

func owner(r *http.Request) string {
	user, _, _ := r.BasicAuth()
	if user == "" {
		return "anonymous"
	}
	return user
}

var referenceRegexp = regexp.MustCompile(`^[1-3]?\s?[A-Za-z ]+\d+(:\d+(-\d+)?)?$`)

// resolveVerse expands a passage reference like "John 3:16" to its text
// when a bible client is configured. Free-form text is passed through,
// and lookup failures fall back to the raw input.
func resolveVerse(ctx context.Context, passages *bible.Client, verse string) string {
	verse = strings.TrimSpace(verse)
	if passages == nil || !referenceRegexp.MatchString(verse) {
		return verse
	}
	text, err := passages.PassageText(ctx, verse)
	if err != nil {
		log.Println("couldn't resolve passage:", err)
		return verse
	}
	return fmt.Sprintf("%s (%s)", text, verse)
}

func handleCallback(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
	case isValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case isNotFound(err):
		// Acknowledge stale deliveries
		log.Println("callback for unknown job:", err)
	default:
		// Acknowledge anyway: an error status makes the provider
		// redeliver, and the sweep picks up whatever was lost here
		log.Println("couldn't handle callback:", err)
	}
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case isValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case isNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Println("request failed:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func isValidation(err error) bool {
	var verr *generation.ValidationError
	return errors.As(err, &verr)
}

func isNotFound(err error) bool {
	var nerr *generation.NotFoundError
	return errors.As(err, &nerr)
}

func writeJob(w http.ResponseWriter, job *storage.Job) {
	if err := json.NewEncoder(w).Encode(toJob(job)); err != nil {
		log.Println("couldn't encode job:", err)
	}
}

func toJob(j *storage.Job) *Job {
	resp := &Job{
		ID:           j.ID,
		Kind:         j.Kind,
		Title:        j.Title,
		Genre:        j.Genre,
		Mood:         j.Mood,
		Style:        j.Style,
		DurationSecs: j.DurationSecs,
		Status:       j.Status,
		ExternalID:   j.ExternalID,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
	}
	for _, a := range j.Artifacts {
		resp.ResultURLs = append(resp.ResultURLs, a.URL)
		resp.Artifacts = append(resp.Artifacts, &Artifact{
			ID:       a.ID,
			URL:      a.URL,
			File:     a.File,
			Title:    a.Title,
			Duration: a.Duration,
		})
	}
	return resp
}

type Job struct {
	ID           string      `json:"job_id"`
	Kind         string      `json:"kind"`
	Title        string      `json:"title"`
	Genre        string      `json:"genre,omitempty"`
	Mood         string      `json:"mood,omitempty"`
	Style        string      `json:"video_style,omitempty"`
	DurationSecs int         `json:"duration_secs,omitempty"`
	Status       string      `json:"status"`
	ExternalID   string      `json:"external_job_id,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ResultURLs   []string    `json:"result_urls,omitempty"`
	Artifacts    []*Artifact `json:"artifacts,omitempty"`
}

type Artifact struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	File     string  `json:"file"`
	Title    string  `json:"title"`
	Duration float32 `json:"duration"`
}
