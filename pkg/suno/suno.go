package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultBase = "https://api.sunoapi.org/api/v1"

// Client talks to the suno music generation API. Generation is
// asynchronous: Generate returns a provider task id and the result
// arrives later via a webhook callback or a RecordInfo poll.
type Client struct {
	client      *http.Client
	base        string
	key         string
	model       string
	callbackURL string
	debug       bool
}

type Config struct {
	Key         string
	Model       string
	CallbackURL string
	Base        string
	Debug       bool
	Client      *http.Client
}

func New(cfg *Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	base := cfg.Base
	if base == "" {
		base = defaultBase
	}
	model := cfg.Model
	if model == "" {
		model = "V3_5"
	}
	return &Client{
		client:      client,
		base:        base,
		key:         cfg.Key,
		model:       model,
		callbackURL: cfg.CallbackURL,
		debug:       cfg.Debug,
	}
}

type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallBackURL  string `json:"callBackUrl,omitempty"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

// Track is a single generated audio clip as reported by the provider,
// both in callbacks and in record-info polls.
type Track struct {
	ID       string  `json:"id"`
	AudioURL string  `json:"audio_url"`
	Title    string  `json:"title"`
	Duration float32 `json:"duration"`
}

// CallbackPayload is the webhook body delivered when a generation task
// finishes. Code 200 means success, anything else is a failure.
type CallbackPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		CallbackType string  `json:"callbackType"`
		TaskID       string  `json:"task_id"`
		Data         []Track `json:"data"`
	} `json:"data"`
}

// Task statuses reported by record-info.
const (
	StatusPending   = "PENDING"
	StatusText      = "TEXT_SUCCESS"
	StatusFirst     = "FIRST_SUCCESS"
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "CREATE_TASK_FAILED"
	StatusGenFailed = "GENERATE_AUDIO_FAILED"
	StatusSensitive = "SENSITIVE_WORD_ERROR"
)

type TaskInfo struct {
	TaskID string
	Status string
	Tracks []Track
}

// Done reports whether the task reached a terminal state.
func (t *TaskInfo) Done() bool {
	switch t.Status {
	case StatusSuccess, StatusFailed, StatusGenFailed, StatusSensitive:
		return true
	}
	return false
}

func (t *TaskInfo) Succeeded() bool {
	return t.Status == StatusSuccess
}

// Generate submits a generation task and returns the provider task id.
// It never retries: submission is not idempotent.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.model
	}
	if r.CallBackURL == "" {
		r.CallBackURL = c.callbackURL
	}
	var data generateData
	if err := c.do(ctx, "POST", "generate", &r, &data, false); err != nil {
		return "", fmt.Errorf("suno: couldn't generate song: %w", err)
	}
	if data.TaskID == "" {
		return "", errors.New("suno: empty task id")
	}
	return data.TaskID, nil
}

type recordInfoData struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Response struct {
		SunoData []Track `json:"sunoData"`
	} `json:"response"`
}

// RecordInfo polls the status of a generation task. Reads are idempotent
// so a single retry is allowed.
func (c *Client) RecordInfo(ctx context.Context, taskID string) (*TaskInfo, error) {
	var data recordInfoData
	path := fmt.Sprintf("generate/record-info?taskId=%s", taskID)
	if err := c.do(ctx, "GET", path, nil, &data, true); err != nil {
		return nil, fmt.Errorf("suno: couldn't get record info for %s: %w", taskID, err)
	}
	return &TaskInfo{
		TaskID: data.TaskID,
		Status: data.Status,
		Tracks: data.Response.SunoData,
	}, nil
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

// StatusCode extracts the HTTP or envelope status code carried by an
// error returned from this client, or 0 when there is none.
func StatusCode(err error) int {
	var code errStatusCode
	if errors.As(err, &code) {
		return int(code)
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, retry bool) error {
	maxAttempts := 1
	if retry {
		maxAttempts = 2
	}
	attempts := 0
	var err error
	for {
		err = c.doAttempt(ctx, method, path, in, out)
		if err == nil {
			return nil
		}
		attempts++
		if attempts >= maxAttempts {
			return err
		}
		// Only network timeouts are retried, and only for reads
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return err
		}
		c.log("suno: retrying %s %s: %v", method, path, err)
	}
}

func (c *Client) doAttempt(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("suno: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	u := fmt.Sprintf("%s/%s", c.base, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("suno: couldn't create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.key))
	req.Header.Set("Content-Type", "application/json")

	c.log("suno: do %s %s", method, path)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("suno: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("suno: couldn't read response body: %w", err)
	}
	c.log("suno: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("suno: %s %s returned (%s): %w", method, u, errMessage, errStatusCode(resp.StatusCode))
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("suno: couldn't unmarshal response envelope: %w", err)
	}
	if env.Code != 200 {
		return fmt.Errorf("suno: %s %s returned (%s): %w", method, u, env.Msg, errStatusCode(env.Code))
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("suno: couldn't unmarshal response body (%T): %w", out, err)
		}
	}
	return nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format = strings.TrimSuffix(format, "\n") + "\n"
		log.Printf(format, args...)
	}
}
