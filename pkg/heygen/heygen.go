package heygen

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
	"sync"
	"time"
)

const defaultBase = "https://api.heygen.com"

// Client talks to the heygen avatar video API. Video creation is
// asynchronous: CreateVideo returns a provider video id and completion
// is reported via webhook or a VideoStatus poll.
type Client struct {
	client      *http.Client
	base        string
	key         string
	callbackURL string
	debug       bool

	// Voice and avatar catalogs change rarely, cache them for a while
	// instead of hitting the provider on every submission.
	lck             sync.Mutex
	voices          []Voice
	avatars         []Avatar
	voicesFetched   time.Time
	avatarsFetched  time.Time
	catalogLifetime time.Duration
}

type Config struct {
	Key         string
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
	return &Client{
		client:          client,
		base:            base,
		key:             cfg.Key,
		callbackURL:     cfg.CallbackURL,
		debug:           cfg.Debug,
		catalogLifetime: 1 * time.Hour,
	}
}

type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
	Gender  string `json:"gender"`
}

type Avatar struct {
	AvatarID string `json:"avatar_id"`
	Name     string `json:"avatar_name"`
	Gender   string `json:"gender"`
}

// SceneInput is one segment of a multi-scene video: an avatar speaking
// a text with an assigned voice, over an optional background color.
type SceneInput struct {
	AvatarID   string
	VoiceID    string
	Text       string
	Background string
}

type character struct {
	Type     string `json:"type"`
	AvatarID string `json:"avatar_id"`
}

type voiceInput struct {
	Type      string `json:"type"`
	VoiceID   string `json:"voice_id"`
	InputText string `json:"input_text"`
}

type background struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type videoInput struct {
	Character  character   `json:"character"`
	Voice      voiceInput  `json:"voice"`
	Background *background `json:"background,omitempty"`
}

type createVideoRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Title       string       `json:"title,omitempty"`
	CallbackURL string       `json:"callback_url,omitempty"`
	Dimension   *dimension   `json:"dimension,omitempty"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type createVideoData struct {
	VideoID string `json:"video_id"`
}

// CreateVideo submits a multi-scene video generation and returns the
// provider video id. Submission is never retried.
func (c *Client) CreateVideo(ctx context.Context, scenes []SceneInput, title string) (string, error) {
	if len(scenes) == 0 {
		return "", errors.New("heygen: no scenes")
	}
	var inputs []videoInput
	for _, s := range scenes {
		in := videoInput{
			Character: character{
				Type:     "avatar",
				AvatarID: s.AvatarID,
			},
			Voice: voiceInput{
				Type:      "text",
				VoiceID:   s.VoiceID,
				InputText: s.Text,
			},
		}
		if s.Background != "" {
			in.Background = &background{
				Type:  "color",
				Value: s.Background,
			}
		}
		inputs = append(inputs, in)
	}
	req := &createVideoRequest{
		VideoInputs: inputs,
		Title:       title,
		CallbackURL: c.callbackURL,
		Dimension:   &dimension{Width: 1280, Height: 720},
	}
	var data createVideoData
	if err := c.do(ctx, "POST", "v2/video/generate", req, &data, false); err != nil {
		return "", fmt.Errorf("heygen: couldn't create video: %w", err)
	}
	if data.VideoID == "" {
		return "", errors.New("heygen: empty video id")
	}
	return data.VideoID, nil
}

// Video statuses reported by video_status.get.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type VideoStatus struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetVideoStatus polls the state of a video generation. Reads are
// idempotent so a single retry is allowed.
func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (*VideoStatus, error) {
	var data VideoStatus
	path := fmt.Sprintf("v1/video_status.get?video_id=%s", videoID)
	if err := c.do(ctx, "GET", path, nil, &data, true); err != nil {
		return nil, fmt.Errorf("heygen: couldn't get status of video %s: %w", videoID, err)
	}
	return &data, nil
}

// CallbackPayload is the webhook body delivered when a video finishes.
// Success events carry the result url as either "video_url" or "url"
// depending on the event family.
type CallbackPayload struct {
	EventType string `json:"event_type"`
	EventData struct {
		VideoID  string `json:"video_id"`
		VideoURL string `json:"video_url"`
		URL      string `json:"url"`
		Msg      string `json:"msg"`
	} `json:"event_data"`
}

// ResultURL returns the video url of a success event.
func (p *CallbackPayload) ResultURL() string {
	if p.EventData.VideoURL != "" {
		return p.EventData.VideoURL
	}
	return p.EventData.URL
}

// Webhook event types.
const (
	EventVideoCompleted     = "video.completed"
	EventVideoFailed        = "video.failed"
	EventAvatarVideoSuccess = "avatar_video.success"
	EventAvatarVideoFail    = "avatar_video.fail"
)

type voicesData struct {
	Voices []Voice `json:"voices"`
}

func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	c.lck.Lock()
	defer c.lck.Unlock()
	if c.voices != nil && time.Since(c.voicesFetched) < c.catalogLifetime {
		return c.voices, nil
	}
	var data voicesData
	if err := c.do(ctx, "GET", "v2/voices", nil, &data, true); err != nil {
		return nil, fmt.Errorf("heygen: couldn't list voices: %w", err)
	}
	c.voices = data.Voices
	c.voicesFetched = time.Now()
	return c.voices, nil
}

type avatarsData struct {
	Avatars []Avatar `json:"avatars"`
}

func (c *Client) Avatars(ctx context.Context) ([]Avatar, error) {
	c.lck.Lock()
	defer c.lck.Unlock()
	if c.avatars != nil && time.Since(c.avatarsFetched) < c.catalogLifetime {
		return c.avatars, nil
	}
	var data avatarsData
	if err := c.do(ctx, "GET", "v2/avatars", nil, &data, true); err != nil {
		return nil, fmt.Errorf("heygen: couldn't list avatars: %w", err)
	}
	c.avatars = data.Avatars
	c.avatarsFetched = time.Now()
	return c.avatars, nil
}

type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

// StatusCode extracts the HTTP status code carried by an error returned
// from this client, or 0 when there is none.
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
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			return err
		}
		c.log("heygen: retrying %s %s: %v", method, path, err)
	}
}

func (c *Client) doAttempt(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("heygen: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	u := fmt.Sprintf("%s/%s", c.base, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("heygen: couldn't create request: %w", err)
	}
	req.Header.Set("x-api-key", c.key)
	req.Header.Set("Content-Type", "application/json")

	c.log("heygen: do %s %s", method, path)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("heygen: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("heygen: couldn't read response body: %w", err)
	}
	c.log("heygen: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("heygen: %s %s returned (%s): %w", method, u, errMessage, errStatusCode(resp.StatusCode))
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("heygen: couldn't unmarshal response envelope: %w", err)
	}
	if env.Error != nil && env.Error.Message != "" {
		return fmt.Errorf("heygen: %s %s returned (%s): %w", method, u, env.Error.Message, errStatusCode(resp.StatusCode))
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("heygen: couldn't unmarshal response body (%T): %w", out, err)
		}
	}
	return nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}
