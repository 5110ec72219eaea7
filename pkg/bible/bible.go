// Package bible resolves passage references like "John 3:16" to their
// text using the api.bible service.
package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBase = "https://api.scripture.api.bible/v1"

// Default is the World English Bible, a public domain translation.
const defaultBibleID = "9879dbb7cfe39e4d-01"

type Client struct {
	client  *http.Client
	base    string
	key     string
	bibleID string
	debug   bool
}

type Config struct {
	Key     string
	BibleID string
	Base    string
	Debug   bool
	Client  *http.Client
}

func New(cfg *Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	base := cfg.Base
	if base == "" {
		base = defaultBase
	}
	bibleID := cfg.BibleID
	if bibleID == "" {
		bibleID = defaultBibleID
	}
	return &Client{
		client:  client,
		base:    base,
		key:     cfg.Key,
		bibleID: bibleID,
		debug:   cfg.Debug,
	}
}

type searchResponse struct {
	Data struct {
		Passages []struct {
			Reference string `json:"reference"`
			Content   string `json:"content"`
		} `json:"passages"`
	} `json:"data"`
}

// PassageText looks up a passage by human readable reference and
// returns its plain text.
func (c *Client) PassageText(ctx context.Context, reference string) (string, error) {
	q := url.Values{}
	q.Set("query", reference)
	q.Set("content-type", "text")
	u := fmt.Sprintf("%s/bibles/%s/search?%s", c.base, c.bibleID, q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("bible: couldn't create request: %w", err)
	}
	req.Header.Set("api-key", c.key)

	c.log("bible: search %s", reference)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("bible: couldn't search %s: %w", reference, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("bible: couldn't read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		errMessage := string(body)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return "", fmt.Errorf("bible: search %s returned %d (%s)", reference, resp.StatusCode, errMessage)
	}
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("bible: couldn't unmarshal response body: %w", err)
	}
	if len(sr.Data.Passages) == 0 {
		return "", fmt.Errorf("bible: passage %s not found", reference)
	}
	text := strings.TrimSpace(sr.Data.Passages[0].Content)
	if text == "" {
		return "", fmt.Errorf("bible: passage %s has no content", reference)
	}
	return text, nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}
