package landmark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiReply(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGeminiExtract(t *testing.T) {
	var gotBody request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(geminiReply("```json\n[{\"name\":\"Forest of Whispers\",\"type\":\"forest\",\"x\":20,\"y\":-40}]\n```")))
	}))
	defer srv.Close()

	g := NewGeminiWithURL("test-key", "", srv.URL)
	got, err := g.Extract(context.Background(), "a forest of whispers in the north")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Forest of Whispers" {
		t.Errorf("unexpected landmarks: %+v", got)
	}

	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "a forest of whispers in the north" {
		t.Errorf("transcript not embedded in request: %+v", gotBody.Contents)
	}
	if gotBody.SystemInstruct == nil {
		t.Error("missing system instruction")
	}
}

func TestGeminiExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGeminiWithURL("test-key", "", srv.URL)
	if _, err := g.Extract(context.Background(), "some narration"); err == nil {
		t.Error("expected error on 503")
	}
}

func TestGeminiExtractSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGeminiWithURL("test-key", "", srv.URL)
	g.Extract(context.Background(), "some narration")
	if calls != 1 {
		t.Errorf("made %d calls, want exactly 1", calls)
	}
}

func TestGeminiExtractEmptyTranscript(t *testing.T) {
	g := NewGemini("test-key", "")
	if _, err := g.Extract(context.Background(), "  "); err == nil {
		t.Error("expected error for empty transcript")
	}
}

func TestGeminiExtractEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGeminiWithURL("test-key", "", srv.URL)
	if _, err := g.Extract(context.Background(), "some narration"); err == nil {
		t.Error("expected error for empty candidates")
	}
}
