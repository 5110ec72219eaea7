package bible

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPassageText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("unexpected api key %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "John 3:16" {
			t.Errorf("unexpected query %q", got)
		}
		w.Write([]byte(`{"data": {"passages": [
			{"reference": "John 3:16", "content": "  For God so loved the world\n"}
		]}}`))
	}))
	defer srv.Close()

	client := New(&Config{Key: "secret", Base: srv.URL})
	text, err := client.PassageText(context.Background(), "John 3:16")
	if err != nil {
		t.Fatalf("couldn't get passage: %v", err)
	}
	if text != "For God so loved the world" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestPassageTextNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"passages": []}}`))
	}))
	defer srv.Close()

	client := New(&Config{Key: "secret", Base: srv.URL})
	if _, err := client.PassageText(context.Background(), "Nowhere 1:1"); err == nil {
		t.Fatal("want error, got nil")
	}
}

func TestPassageTextHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(&Config{Key: "bad", Base: srv.URL})
	if _, err := client.PassageText(context.Background(), "John 3:16"); err == nil {
		t.Fatal("want error, got nil")
	}
}
