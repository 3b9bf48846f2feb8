// Package gemini provides a typed HTTP client for the Gemini REST API.
// The backend uses it for text embeddings and mentor-hint generation.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxEmbedChars bounds a single embedContent input.
const MaxEmbedChars = 2000

// Client wraps the Gemini generative-language API.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	textModel  string
	httpClient *http.Client
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	TextModel  string
	Timeout    time.Duration
}

// NewClient creates a Gemini client from cfg.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	textModel := cfg.TextModel
	if textModel == "" {
		textModel = "gemini-1.5-flash"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		embedModel: embedModel,
		textModel:  textModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool { return c.apiKey != "" }

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// EmbedText embeds a single text. Inputs longer than MaxEmbedChars are
// truncated; empty inputs are rejected.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("attempted to embed empty text")
	}
	if len(text) > MaxEmbedChars {
		cut := MaxEmbedChars
		// Back up so the cut never splits a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	reqBody := embedRequest{
		Model:   "models/" + c.embedModel,
		Content: content{Parts: []part{{Text: text}}},
	}
	var resp embedResponse
	if err := c.postJSON(ctx, fmt.Sprintf("/models/%s:embedContent", c.embedModel), reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned an empty embedding")
	}
	return resp.Embedding.Values, nil
}

// Generate runs a single-turn text generation with a system instruction.
// Output is capped at 512 tokens, matching the mentor-hint budget.
func (c *Client) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if strings.Contains(c.textModel, "embedding") {
		return "", fmt.Errorf("model %q looks like an embeddings model; set a text model such as gemini-1.5-flash", c.textModel)
	}

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: userMessage}}}},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	reqBody.GenerationConfig.MaxOutputTokens = 512

	var resp generateResponse
	if err := c.postJSON(ctx, fmt.Sprintf("/models/%s:generateContent", c.textModel), reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gemini %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SplitText splits text into pieces no longer than max characters, breaking
// on the last newline before the limit when one exists.
func SplitText(text string, max int) []string {
	var chunks []string
	for len(text) > max {
		splitAt := strings.LastIndex(text[:max], "\n")
		if splitAt <= 0 {
			splitAt = max
		}
		if piece := strings.TrimSpace(text[:splitAt]); piece != "" {
			chunks = append(chunks, piece)
		}
		text = text[splitAt:]
	}
	if tail := strings.TrimSpace(text); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}
