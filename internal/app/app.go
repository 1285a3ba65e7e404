package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivecmu/filehub/internal/config"
	"github.com/hivecmu/filehub/internal/core"
	db "github.com/hivecmu/filehub/internal/core/database"
	"github.com/hivecmu/filehub/internal/core/extraction"
	"github.com/hivecmu/filehub/internal/core/indexing"
	"github.com/hivecmu/filehub/internal/core/llm"
	objectclient "github.com/hivecmu/filehub/internal/core/object-client"
	"github.com/hivecmu/filehub/internal/core/search"
	"github.com/hivecmu/filehub/internal/core/tagging"
	"github.com/hivecmu/filehub/internal/services"
)

// App wires every component with its collaborators passed in explicitly;
// there are no process-wide singletons.
type App struct {
	Store        core.CatalogStore
	ObjectClient core.ObjectClient
	Orchestrator *services.Orchestrator
	Search       *search.Engine
	Server       *Server

	embedder *llm.GeminiEmbedder
	log      *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var store core.CatalogStore
	switch cfg.StoreDriver {
	case "memory":
		store = db.NewMemoryCatalog()
		log.Warn("using in-memory catalog store; data will not survive restarts")
	case "postgres":
		client, err := db.NewCatalogClient(appCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("catalog store: %w", err)
		}
		store = client
		log.Info("catalog store initialized and bootstrapped")
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	// The blob store is optional; without credentials uploads are cataloged
	// but carry no URL.
	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("object client: %w", err)
		}
		objClient = s3Client
	} else {
		log.Warn("no AWS credentials; blob uploads disabled")
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	var tagger core.Tagger
	switch cfg.TaggerMode {
	case "model":
		gt, err := llm.NewGeminiTagger(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("model tagger: %w", err)
		}
		tagger = gt
	default:
		tagger = tagging.NewLocalTagger()
	}

	extractor := extraction.NewExtractor(extraction.DefaultMaxChars, false, log)
	indexer := indexing.NewIndexer(store, embedder, log)
	searchEngine := search.NewEngine(store, embedder, log)
	orch := services.NewOrchestrator(store, extractor, tagger, indexer, cfg.BulkWorkers, log)

	server := NewServer(cfg, store, objClient, orch, searchEngine, log)

	return &App{
		Store:        store,
		ObjectClient: objClient,
		Orchestrator: orch,
		Search:       searchEngine,
		Server:       server,
		embedder:     embedder,
		log:          log,
	}, nil
}

func (a *App) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
