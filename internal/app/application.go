package app

import (
	"context"
	"fmt"

	"github.com/firstfix/starterkit/internal/app/services/hints"
	repopacksvc "github.com/firstfix/starterkit/internal/app/services/repopack"
	"github.com/firstfix/starterkit/internal/app/services/retrieval"
	searchsvc "github.com/firstfix/starterkit/internal/app/services/search"
	"github.com/firstfix/starterkit/internal/app/storage"
	"github.com/firstfix/starterkit/internal/app/storage/memory"
	"github.com/firstfix/starterkit/internal/app/system"
	"github.com/firstfix/starterkit/internal/config"
	"github.com/firstfix/starterkit/internal/gemini"
	"github.com/firstfix/starterkit/internal/github"
	"github.com/firstfix/starterkit/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Packs   storage.PackStore
	Vectors storage.VectorStore
	Hints   storage.HintStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	GitHub    *github.Client
	Gemini    *gemini.Client
	Search    *searchsvc.Service
	Packs     *repopacksvc.Service
	Retrieval *retrieval.Service
	Hints     *hints.Service
}

// New builds a fully initialised application with the provided stores.
func New(cfg config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Packs == nil {
		stores.Packs = mem
	}
	if stores.Vectors == nil {
		stores.Vectors = mem
	}
	if stores.Hints == nil {
		stores.Hints = mem
	}

	ghClient := github.NewClient(github.Config{
		GraphQLURL: cfg.GitHubGraphQLURL,
		APIURL:     cfg.GitHubAPIURL,
		RawURL:     cfg.GitHubRawURL,
		Token:      cfg.GitHubToken,
	})
	if !ghClient.HasToken() {
		log.Warn("GITHUB_TOKEN not set; GitHub calls will fail")
	}

	gemClient := gemini.NewClient(gemini.Config{
		BaseURL:    cfg.GeminiBaseURL,
		APIKey:     cfg.GeminiAPIKey,
		EmbedModel: cfg.EmbedModel,
		TextModel:  cfg.LLMModel,
	})
	if !gemClient.HasKey() {
		log.Warn("GEMINI_API_KEY not set; retrieval and hints will fail")
	}

	retrievalService := retrieval.New(stores.Vectors, gemClient, cfg.CollectionPrefix, cfg.RetrievalTimeout, log)
	searchService := searchsvc.New(ghClient, log)
	packService := repopacksvc.New(ghClient, stores.Packs, retrievalService, cfg.RepoCacheMax, log)
	hintService := hints.New(packService, retrievalService, gemClient, stores.Hints, cfg.HintsCacheTTL, cfg.LLMTimeout, log)

	manager := system.NewManager()
	janitor := hints.NewJanitor(stores.Hints, log)
	if err := manager.Register(janitor); err != nil {
		return nil, fmt.Errorf("register %s: %w", janitor.Name(), err)
	}

	return &Application{
		manager:   manager,
		log:       log,
		GitHub:    ghClient,
		Gemini:    gemClient,
		Search:    searchService,
		Packs:     packService,
		Retrieval: retrievalService,
		Hints:     hintService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
