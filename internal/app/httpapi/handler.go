package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/firstfix/starterkit/internal/app"
	"github.com/firstfix/starterkit/internal/app/metrics"
	repopacksvc "github.com/firstfix/starterkit/internal/app/services/repopack"
	"github.com/firstfix/starterkit/internal/github"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app          *app.Application
	routeTimeout time.Duration
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, routeTimeout time.Duration) http.Handler {
	h := &handler{app: application, routeTimeout: routeTimeout}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.search).Methods(http.MethodGet)
	api.HandleFunc("/starter_kit", h.starterKit).Methods(http.MethodGet)
	api.HandleFunc("/hints", h.hints).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"has_token": h.app.GitHub.HasToken(),
	})
}

// search returns beginner-friendly issue cards for the given skills.
func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("skills")
	var skills []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}

	first := 20
	if v := r.URL.Query().Get("first"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, errors.New("first must be between 1 and 100"))
			return
		}
		first = n
	}

	cards, err := h.app.Search.Search(r.Context(), skills, first)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cards})
}

type chunkPayload struct {
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Kind      string  `json:"kind"`
	Symbol    string  `json:"symbol"`
	Preview   string  `json:"preview"`
	Score     float64 `json:"score"`
}

type starterKitPayload struct {
	RepoKey   string         `json:"repo_key"`
	SHA       string         `json:"sha"`
	Issue     any            `json:"issue"`
	RunHints  []string       `json:"run_hints"`
	TopChunks []chunkPayload `json:"top_chunks"`
}

// starterKit returns the context bundle for an issue: repo@sha, run hints,
// and the chunks most relevant to the issue text.
func (h *handler) starterKit(w http.ResponseWriter, r *http.Request) {
	owner, name, number, err := issueParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if h.routeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.routeTimeout)
		defer cancel()
	}

	pack, _, err := h.app.Packs.BuildPack(ctx, owner, name, number)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	matches, err := h.app.Retrieval.TopChunks(ctx, pack, 25)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	chunks := make([]chunkPayload, 0, len(matches))
	for _, m := range matches {
		preview := m.Preview
		if len(preview) > 500 {
			preview = preview[:500]
		}
		chunks = append(chunks, chunkPayload{
			Path:      m.Path,
			StartLine: m.StartLine,
			EndLine:   m.EndLine,
			Kind:      m.Kind,
			Symbol:    m.Symbol,
			Preview:   preview,
			Score:     m.Score,
		})
	}

	writeJSON(w, http.StatusOK, starterKitPayload{
		RepoKey:   pack.RepoKey,
		SHA:       pack.SHA,
		Issue:     pack.Issue,
		RunHints:  repopacksvc.RunHints(pack),
		TopChunks: chunks,
	})
}

// hints returns mentor guidance for an issue.
func (h *handler) hints(w http.ResponseWriter, r *http.Request) {
	owner, name, number, err := issueParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if h.routeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.routeTimeout)
		defer cancel()
	}

	bundle, err := h.app.Hints.Hints(ctx, owner, name, number)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func issueParams(r *http.Request) (owner, name string, number int, err error) {
	q := r.URL.Query()
	owner = strings.TrimSpace(q.Get("owner"))
	name = strings.TrimSpace(q.Get("repo"))
	raw := strings.TrimSpace(q.Get("number"))
	if owner == "" || name == "" || raw == "" {
		return "", "", 0, errors.New("owner, repo, number are required")
	}
	number, convErr := strconv.Atoi(raw)
	if convErr != nil || number <= 0 {
		return "", "", 0, errors.New("number must be a positive integer")
	}
	return owner, name, number, nil
}

// writeServiceError maps service failures onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *github.APIError
	switch {
	case errors.Is(err, repopacksvc.ErrIssueNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
