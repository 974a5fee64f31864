package recengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freshcart/cartsense-go/pkg/analysis"
	"github.com/freshcart/cartsense-go/pkg/catalog"
	"github.com/freshcart/cartsense-go/pkg/llm"
	ollamaLLM "github.com/freshcart/cartsense-go/pkg/llm/ollama"
	openaiLLM "github.com/freshcart/cartsense-go/pkg/llm/openai"
	"github.com/freshcart/cartsense-go/pkg/rules"
	"github.com/freshcart/cartsense-go/pkg/tracking"
	mysqlStore "github.com/freshcart/cartsense-go/pkg/tracking/mysql"
	postgresStore "github.com/freshcart/cartsense-go/pkg/tracking/postgres"
	sqliteStore "github.com/freshcart/cartsense-go/pkg/tracking/sqlite"
)

// Engine is the recommendation engine client.
//
// Each Recommend call is computed independently from the data fetched for
// that single request; the only shared state is the read-only rule table
// and the read-mostly catalog, both safe for concurrent reads. The engine
// is safe for use from multiple goroutines.
//
// Example usage:
//
//	config, _ := recengine.LoadConfigFromEnv()
//	engine, _ := recengine.NewEngine(config)
//	defer engine.Close()
//
//	resp, err := engine.Recommend(ctx, "user_001")
type Engine struct {
	// config contains the engine configuration.
	config *Config

	// store is the interaction event store.
	store tracking.Store

	// provider is the generation service (nil when not configured).
	provider llm.Provider

	// catalog is the product catalog.
	catalog *catalog.Catalog

	// ruleTable is the static association-rule table.
	ruleTable *rules.Table

	// analyzer aggregates interaction records into purchase patterns.
	analyzer *analysis.Analyzer

	// miner proposes complementary products from association rules.
	miner *analysis.Miner

	// composer drives the generation service (works unconfigured too;
	// Configured() reports which).
	composer *analysis.Composer

	// assembler enforces the final list invariants.
	assembler *Assembler
}

// NewEngine creates a new recommendation engine.
//
// Collaborators not injected via options are built from the configuration:
// the event store from Store.Provider, the generation provider from the LLM
// settings (left nil when no API key is configured), and the built-in
// catalog and rule table.
//
// Parameters:
//   - cfg: Configuration containing store, generation, and tuning settings
//   - opts: Optional collaborator injections (WithStore, WithProvider, ...)
//
// Returns a new Engine instance, or an error if initialization fails.
func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, NewEngineError("NewEngine", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := applyEngineOptions(opts)

	store := options.store
	if store == nil {
		var err error
		store, err = initStore(cfg.Store)
		if err != nil {
			return nil, NewEngineError("NewEngine", err)
		}
	}

	provider := options.provider
	if provider == nil && cfg.LLM.Configured() {
		var err error
		provider, err = initProvider(cfg.LLM)
		if err != nil {
			return nil, NewEngineError("NewEngine", err)
		}
	}

	cat := options.catalog
	if cat == nil {
		cat = catalog.Default()
	}
	if cat.Len() == 0 {
		return nil, NewEngineError("NewEngine", ErrCatalogEmpty)
	}

	table := options.rules
	if table == nil {
		table = rules.Default()
	}

	weighter := analysis.NewWeighter(cfg.Tuning.HalfLifeDays)
	weights := analysis.ScoreWeights{
		Frequency:   cfg.Tuning.FrequencyWeight,
		Recency:     cfg.Tuning.RecencyWeight,
		Quantity:    cfg.Tuning.QuantityWeight,
		QuantityCap: cfg.Tuning.QuantityCap,
	}

	return &Engine{
		config:    cfg,
		store:     store,
		provider:  provider,
		catalog:   cat,
		ruleTable: table,
		analyzer:  analysis.NewAnalyzer(weighter, weights),
		miner:     analysis.NewMiner(table),
		composer:  analysis.NewComposer(provider, cfg.Tuning.GenerationTimeout),
		assembler: NewAssembler(cat, cfg.Tuning.ListSize),
	}, nil
}

// initProvider builds the generation backend from configuration.
func initProvider(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		return ollamaLLM.NewClient(&ollamaLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// initStore builds the event store backend from configuration.
func initStore(cfg StoreConfig) (tracking.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{DBPath: cfg.SQLite.Path})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			DBName:   cfg.MySQL.DBName,
		})
	default:
		return nil, fmt.Errorf("%w: unknown store provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// Store returns the underlying event store, for the tracking boundary.
func (e *Engine) Store() tracking.Store {
	return e.store
}

// Catalog returns the product catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Close closes the engine and releases resources.
func (e *Engine) Close() error {
	var firstErr error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			firstErr = err
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return NewEngineError("Close", firstErr)
}

// Recommend produces the ranked recommendation list for a user.
//
// An empty userID (anonymous caller) or a user without purchase history
// yields the popularity-based cold-start list. Otherwise the purchase
// history is analyzed, association rules are mined, and the result is
// composed either through the generation service (when configured) or by
// the deterministic heuristic.
//
// Failure behavior:
//   - Event store read failures are fatal and wrap ErrStoreUnavailable.
//   - Generation rate limiting and quota exhaustion are surfaced as
//     ErrRateLimited / ErrQuotaExhausted without fallback substitution,
//     so the caller can decide whether to retry.
//   - Any other generation failure (timeout, transport, malformed
//     response) degrades to the deterministic result, tagged
//     SourceFallback.
//
// The history and popularity fetches are issued concurrently. The engine
// performs no writes; cancelling ctx abandons any in-flight generation
// call without side effects.
func (e *Engine) Recommend(ctx context.Context, userID string, opts ...RecommendOption) (*Response, error) {
	options := applyRecommendOptions(RecommendOptions{
		ListSize:     e.config.Tuning.ListSize,
		HistoryLimit: 100,
	}, opts)

	purchases, popular, err := e.fetchSignals(ctx, userID, options.HistoryLimit)
	if err != nil {
		return nil, NewEngineError("Recommend", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	if len(purchases) == 0 {
		return e.coldStart(popular, options.ListSize), nil
	}

	now := time.Now()
	summary := e.analyzer.Analyze(purchases, now)

	if options.IncludeSecondary {
		if err := e.foldSecondary(ctx, userID, summary, options.HistoryLimit, now); err != nil {
			return nil, NewEngineError("Recommend", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
		}
	}

	replenishment := summary.TopProducts(e.config.Tuning.ReplenishmentTopN)
	suggestions := e.miner.Complementary(summary.PurchasedIDs())
	topCategories := summary.TopCategories(e.config.Tuning.TopCategoryCount)

	info := &Analysis{
		TotalInteractions: summary.TotalInteractions,
		TopCategories:     topCategories,
	}
	assembler := e.assemblerFor(options.ListSize)

	if !e.composer.Configured() {
		return &Response{
			Recommendations: assembler.Assemble(e.deterministicCandidates(replenishment, suggestions, summary), replenishment),
			Source:          SourcePersonalized,
			Analysis:        info,
		}, nil
	}

	generated, err := e.composer.Generate(ctx, &analysis.Brief{
		Replenishment: replenishment,
		Complementary: suggestions,
		TopCategories: topCategories,
		Catalog:       e.catalog,
		ListSize:      options.ListSize,
	})
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) || errors.Is(err, llm.ErrQuotaExhausted) {
			return nil, NewEngineError("Recommend", err)
		}
		// Malformed response, timeout, or transport failure: degrade to
		// the deterministic heuristic rather than failing the request.
		return &Response{
			Recommendations: assembler.Assemble(e.deterministicCandidates(replenishment, suggestions, summary), replenishment),
			Source:          SourceFallback,
			Analysis:        info,
		}, nil
	}

	candidates := make([]Candidate, 0, len(generated))
	for _, g := range generated {
		candidates = append(candidates, Candidate{
			ProductID:  g.ProductID,
			Confidence: g.ConfidenceScore,
			Reasoning:  g.Reasoning,
			Type:       RecommendationType(g.RecommendationType),
		})
	}

	return &Response{
		Recommendations: assembler.Assemble(candidates, replenishment),
		Source:          SourcePersonalized,
		Analysis:        info,
	}, nil
}

// fetchSignals fetches the purchase history and the popularity snapshot.
// The two reads are independent and issued concurrently.
func (e *Engine) fetchSignals(ctx context.Context, userID string, historyLimit int) ([]*tracking.Record, []*tracking.PopularityEntry, error) {
	var (
		wg        sync.WaitGroup
		purchases []*tracking.Record
		popular   []*tracking.PopularityEntry
		purchErr  error
		popErr    error
	)

	if userID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			purchases, purchErr = e.store.FetchPurchases(ctx, userID, historyLimit)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		popular, popErr = e.store.FetchTopPopular(ctx, 10)
	}()

	wg.Wait()

	if purchErr != nil {
		return nil, nil, purchErr
	}
	if popErr != nil {
		return nil, nil, popErr
	}
	return purchases, popular, nil
}

// foldSecondary fetches view and cart-add history and folds it into the
// summary with the configured low multipliers.
func (e *Engine) foldSecondary(ctx context.Context, userID string, summary *analysis.Summary, limit int, now time.Time) error {
	views, err := e.store.FetchRecentViews(ctx, userID, limit)
	if err != nil {
		return err
	}
	cartAdds, err := e.store.FetchCartAdds(ctx, userID, limit)
	if err != nil {
		return err
	}
	e.analyzer.FoldSecondary(summary, views, e.config.Tuning.ViewWeight, now)
	e.analyzer.FoldSecondary(summary, cartAdds, e.config.Tuning.CartWeight, now)
	return nil
}

// assemblerFor returns the engine assembler, or a request-scoped one when
// the caller overrides the list size.
func (e *Engine) assemblerFor(listSize int) *Assembler {
	if listSize == e.config.Tuning.ListSize {
		return e.assembler
	}
	return NewAssembler(e.catalog, listSize)
}

// deterministicCandidates builds the heuristic candidate list used when the
// generation service is unconfigured or failed: replenishment candidates
// first, then association suggestions, each with a templated reasoning
// referencing the contributing statistic.
func (e *Engine) deterministicCandidates(replenishment []analysis.Candidate, suggestions []analysis.Suggestion, summary *analysis.Summary) []Candidate {
	candidates := make([]Candidate, 0, len(replenishment)+len(suggestions))

	for _, rep := range replenishment {
		confidence := 0.7 + rep.Score*0.1
		if confidence > 0.95 {
			confidence = 0.95
		}
		candidates = append(candidates, Candidate{
			ProductID:  rep.ProductID,
			Confidence: confidence,
			Reasoning:  fmt.Sprintf("You've ordered this %d time%s - time to restock?", rep.Count, plural(rep.Count)),
			Type:       TypeReplenishment,
		})
	}

	for _, sugg := range suggestions {
		anchorName := "items you buy often"
		if anchor := e.catalog.Find(sugg.AnchorID); anchor != nil {
			anchorName = anchor.Name
		} else if stat, ok := summary.Stats[sugg.AnchorID]; ok && stat.Name != "" {
			anchorName = stat.Name
		}
		candidates = append(candidates, Candidate{
			ProductID:  sugg.ProductID,
			Confidence: sugg.Confidence,
			Reasoning:  fmt.Sprintf("Often bought with %s which you purchase regularly", anchorName),
			Type:       TypeAssociation,
		})
	}

	return candidates
}
