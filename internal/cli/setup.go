package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulyokota/feedforward/internal/cache"
	"github.com/paulyokota/feedforward/internal/gate"
	"github.com/paulyokota/feedforward/internal/llm"
	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/notify"
	"github.com/paulyokota/feedforward/internal/orphan"
	"github.com/paulyokota/feedforward/internal/pipeline"
	"github.com/paulyokota/feedforward/internal/score"
	"github.com/paulyokota/feedforward/internal/signature"
	"github.com/paulyokota/feedforward/internal/ticket"
	"github.com/paulyokota/feedforward/internal/validate"
	"github.com/paulyokota/feedforward/internal/worker"
)

// buildOrchestrator assembles the full pipeline from configuration. The
// returned cleanup closes the ticket database.
func buildOrchestrator(cfg *model.Config) (*pipeline.Orchestrator, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.Store.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create state directory: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	scorer := score.NewScorer(embedder)
	validator := validate.NewEvidenceValidator()
	g := gate.New(cfg.Grouping.MinGroupSize, cfg.Grouping.ConfidenceThreshold, validator, scorer)

	registry, err := signature.NewRegistry(filepath.Join(cfg.Store.Dir, "equivalences.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("open signature registry: %w", err)
	}
	accumulator, err := orphan.NewAccumulator(filepath.Join(cfg.Store.Dir, "orphans.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("open orphan pools: %w", err)
	}

	store, err := ticket.OpenSQLite(cfg.Store.TicketDB)
	if err != nil {
		return nil, nil, err
	}

	var notifier notify.Notifier
	if cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "" {
		notifier = notify.NewSlackNotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	}

	orchestrator := pipeline.New(cfg, scorer, g, registry, accumulator, store, notifier)
	cleanup := func() { _ = store.Close() }
	return orchestrator, cleanup, nil
}

// buildEmbedder creates the (cached, rate-limited) embedding provider,
// or nil when none is configured. Runs without an embedder still work;
// similarity signals degrade to their neutral midpoint.
func buildEmbedder(cfg *model.Config) (score.Embedder, error) {
	inner, err := llm.NewEmbedder(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, nil
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}
	limiter := worker.NewLimiter(cfg.Concurrency.EmbedRPS, cfg.Concurrency.EmbedBurst)

	return llm.NewCachedEmbedder(inner, c, limiter, cfg.LLM.EmbeddingModel), nil
}

// resolveAPIKey fills in the provider API key from the environment when
// the config does not carry one.
func resolveAPIKey(cfg *model.Config) error {
	if cfg.LLM.Provider == "" || cfg.LLM.APIKey != "" {
		return nil
	}

	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %s", cfg.LLM.Provider)
	}
	return nil
}
