package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatCompletionDefaultModel(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("couldn't decode request: %v", err)
		}
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "hello"}}]}`))
	}))
	defer srv.Close()

	c := New(&Config{Token: "key", Host: srv.URL})
	out, err := c.ChatCompletion(context.Background(), "hi")
	if err != nil {
		t.Fatalf("couldn't complete chat: %v", err)
	}
	if out != "hello" {
		t.Errorf("want hello, got %q", out)
	}
	if gotModel != defaultModel {
		t.Errorf("want model %q, got %q", defaultModel, gotModel)
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := New(&Config{Token: "key", Host: srv.URL})
	if _, err := c.ChatCompletion(context.Background(), "hi"); err == nil {
		t.Fatal("want error for empty choices, got nil")
	}
}
