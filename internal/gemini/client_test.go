package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func newFakeGemini(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") == "" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":embedContent"):
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode embed request: %v", err)
			}
			if len(req.Content.Parts) != 1 || req.Content.Parts[0].Text == "" {
				t.Errorf("unexpected embed content: %+v", req.Content)
			}
			w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode generate request: %v", err)
			}
			if req.SystemInstruction == nil {
				t.Errorf("expected system instruction")
			}
			if req.GenerationConfig.MaxOutputTokens != 512 {
				t.Errorf("expected 512 token cap, got %d", req.GenerationConfig.MaxOutputTokens)
			}
			w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"ok\":"},{"text":"true}"}]}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestEmbedText(t *testing.T) {
	srv := newFakeGemini(t)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	vec, err := c.EmbedText(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedTextTruncatesOnRuneBoundary(t *testing.T) {
	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode embed request: %v", err)
		}
		sent = req.Content.Parts[0].Text
		w.Write([]byte(`{"embedding":{"values":[0.1]}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	// Three-byte runes put the byte cap mid-rune.
	if _, err := c.EmbedText(context.Background(), strings.Repeat("日", 700)); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(sent) == 0 || len(sent) > MaxEmbedChars {
		t.Fatalf("unexpected truncated length %d", len(sent))
	}
	if !utf8.ValidString(sent) {
		t.Fatalf("truncation split a rune")
	}
}

func TestEmbedTextRejectsEmpty(t *testing.T) {
	c := NewClient(Config{APIKey: "key"})
	if _, err := c.EmbedText(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestGenerateJoinsParts(t *testing.T) {
	srv := newFakeGemini(t)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	out, err := c.Generate(context.Background(), "be helpful", "hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGenerateGuardsEmbeddingModel(t *testing.T) {
	c := NewClient(Config{APIKey: "key", TextModel: "text-embedding-004"})
	if _, err := c.Generate(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected embeddings-model guard to trip")
	}
}

func TestClientWithoutKeyFails(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.EmbedText(context.Background(), "text"); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestSplitText(t *testing.T) {
	text := strings.Repeat("line one\n", 400) // ~3600 chars
	pieces := SplitText(text, MaxEmbedChars)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	for _, p := range pieces {
		if len(p) > MaxEmbedChars {
			t.Fatalf("piece exceeds cap: %d", len(p))
		}
	}

	if got := SplitText("short", 100); len(got) != 1 || got[0] != "short" {
		t.Fatalf("unexpected short split %v", got)
	}
	if got := SplitText("   ", 100); len(got) != 0 {
		t.Fatalf("expected no pieces for blank text, got %v", got)
	}
}
