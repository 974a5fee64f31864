package recengine

import (
	"github.com/freshcart/cartsense-go/pkg/catalog"
	"github.com/freshcart/cartsense-go/pkg/llm"
	"github.com/freshcart/cartsense-go/pkg/rules"
	"github.com/freshcart/cartsense-go/pkg/tracking"
)

// EngineOption is a function type for configuring engine construction.
//
// Options inject collaborators; anything not injected is built from the
// configuration (store, generation provider) or defaults (catalog, rules).
type EngineOption func(*engineOptions)

type engineOptions struct {
	store    tracking.Store
	provider llm.Provider
	catalog  *catalog.Catalog
	rules    *rules.Table
}

// WithStore injects an event store, overriding the configured backend.
//
// Example:
//
//	engine, _ := recengine.NewEngine(cfg, recengine.WithStore(memStore))
func WithStore(store tracking.Store) EngineOption {
	return func(opts *engineOptions) {
		opts.store = store
	}
}

// WithProvider injects a generation provider, overriding the configured one.
//
// Passing nil has no effect; to run without a generation service, leave the
// LLM API key empty in the configuration.
func WithProvider(provider llm.Provider) EngineOption {
	return func(opts *engineOptions) {
		opts.provider = provider
	}
}

// WithCatalog injects a product catalog, overriding the built-in default.
func WithCatalog(c *catalog.Catalog) EngineOption {
	return func(opts *engineOptions) {
		opts.catalog = c
	}
}

// WithRules injects an association-rule table, overriding the built-in default.
func WithRules(t *rules.Table) EngineOption {
	return func(opts *engineOptions) {
		opts.rules = t
	}
}

func applyEngineOptions(opts []EngineOption) *engineOptions {
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// RecommendOptions contains configuration options for Recommend operations.
type RecommendOptions struct {
	// ListSize overrides the configured target list size K.
	ListSize int

	// HistoryLimit is the maximum number of purchase records fetched.
	HistoryLimit int

	// IncludeSecondary folds view and cart-add signals into the recency
	// score with the configured low multipliers.
	IncludeSecondary bool
}

// RecommendOption is a function type for configuring Recommend operations.
type RecommendOption func(*RecommendOptions)

// WithListSize overrides the target list size for one request.
//
// Example:
//
//	resp, _ := engine.Recommend(ctx, "user_001", recengine.WithListSize(10))
func WithListSize(n int) RecommendOption {
	return func(opts *RecommendOptions) {
		opts.ListSize = n
	}
}

// WithHistoryLimit sets the maximum number of purchase records analyzed.
func WithHistoryLimit(limit int) RecommendOption {
	return func(opts *RecommendOptions) {
		opts.HistoryLimit = limit
	}
}

// WithSecondarySignals enables folding views and cart adds into the recency
// score. Purchases stay strictly dominant; secondary signals act as a
// tie-break at most.
func WithSecondarySignals(include bool) RecommendOption {
	return func(opts *RecommendOptions) {
		opts.IncludeSecondary = include
	}
}

// applyRecommendOptions applies Recommend options over the engine defaults.
func applyRecommendOptions(defaults RecommendOptions, opts []RecommendOption) *RecommendOptions {
	options := defaults
	for _, opt := range opts {
		opt(&options)
	}
	return &options
}
