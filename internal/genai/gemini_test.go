package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func candidateJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(b)
}

func TestGenerateContent(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(candidateJSON("hello back")))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gemini-2.0-flash", srv.URL)
	text, err := c.GenerateContent(context.Background(), "hello")
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "hello back" {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestGenerateContentRetriesRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(candidateJSON("ok")))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "", srv.URL)
	text, err := c.GenerateContent(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGenerateContentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "", srv.URL)
	if _, err := c.GenerateContent(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on 500")
	} else if !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestGenerateContentEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "", srv.URL)
	if _, err := c.GenerateContent(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on empty candidates")
	}
}
