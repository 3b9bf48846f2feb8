// Package github provides the authenticated HTTP client for the GitHub
// GraphQL API, REST API, and raw file host.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// APIError reports a non-2xx response from GitHub.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github responded %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client. Zero-value URLs fall back to the public hosts.
type Config struct {
	GraphQLURL string
	APIURL     string
	RawURL     string
	Token      string
	Timeout    time.Duration
}

// Client talks to GitHub. It is safe for concurrent use.
type Client struct {
	graphqlURL string
	apiURL     string
	rawURL     string
	token      string
	httpClient *http.Client
}

// NewClient creates a GitHub client from cfg.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	graphqlURL := cfg.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = "https://api.github.com/graphql"
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	rawURL := cfg.RawURL
	if rawURL == "" {
		rawURL = "https://raw.githubusercontent.com"
	}
	return &Client{
		graphqlURL: graphqlURL,
		apiURL:     strings.TrimRight(apiURL, "/"),
		rawURL:     strings.TrimRight(rawURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HasToken reports whether the client carries a bearer token.
func (c *Client) HasToken() bool { return c.token != "" }

// GraphQL posts a query with variables and returns the parsed response body.
// GraphQL-level errors are surfaced as Go errors.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	if c.token == "" {
		return gjson.Result{}, fmt.Errorf("GITHUB_TOKEN not set")
	}

	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal graphql payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	body, err := c.do(req)
	if err != nil {
		return gjson.Result{}, err
	}

	parsed := gjson.ParseBytes(body)
	if errs := parsed.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("graphql error: %s", errs.Array()[0].Get("message").String())
	}
	return parsed, nil
}

// Get performs a REST GET against the API host and returns the parsed body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	endpoint := c.apiURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	body, err := c.do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(body), nil
}

// RawFile fetches file content pinned to a commit from the raw host.
func (c *Client) RawFile(ctx context.Context, owner, repo, sha, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawURL, owner, repo, sha, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read github response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512] + "...(truncated)"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}
