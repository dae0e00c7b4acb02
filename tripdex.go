// Package tripdex embeds the hybrid travel-document retrieval engine in a
// Go program: taxonomy-driven field extraction, a BM25 index and a vector
// index behind one facade, and reciprocal rank fusion at query time.
package tripdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/extract"
	"github.com/voyago/tripdex/internal/index"
	"github.com/voyago/tripdex/internal/index/lexical"
	"github.com/voyago/tripdex/internal/index/vector"
	"github.com/voyago/tripdex/internal/indexer"
	openaiProvider "github.com/voyago/tripdex/internal/provider/openai"
	"github.com/voyago/tripdex/internal/rewrite"
	"github.com/voyago/tripdex/internal/search"
	"github.com/voyago/tripdex/internal/taxonomy"
)

// Re-exported domain types so callers do not import internal packages.
type (
	// Document is a raw document handed to Upsert.
	Document = indexer.RawDocument
	// Result is one fused search hit.
	Result = domain.FusedResult
	// Response is a completed search with its applied filter and flags.
	Response = search.Response
	// Mode selects the retrieval paths a search uses.
	Mode = domain.Mode
	// State is a document's position in the indexing pipeline.
	State = domain.DocState
)

const (
	ModeLexical = domain.ModeLexical
	ModeVector  = domain.ModeVector
	ModeHybrid  = domain.ModeHybrid
)

// Completer is the completion provider contract (see domain.Completer).
type Completer = domain.Completer

// Embedder is the embedding provider contract (see domain.Embedder).
type Embedder = domain.Embedder

const defaultDimensions = 1536

type clientConfig struct {
	taxonomyPath   string
	taxonomyYAML   []byte
	completer      domain.Completer
	embedder       domain.Embedder
	dimensions     int
	fuzzyThreshold float64
	rrfK           int
	workers        int
	logger         *zap.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithTaxonomyFile loads the activity taxonomy from a YAML file.
func WithTaxonomyFile(path string) Option {
	return func(c *clientConfig) { c.taxonomyPath = path }
}

// WithTaxonomyYAML loads the activity taxonomy from YAML bytes.
func WithTaxonomyYAML(data []byte) Option {
	return func(c *clientConfig) { c.taxonomyYAML = data }
}

// WithOpenAI builds the completion and embedding providers on an
// OpenAI-compatible API.
func WithOpenAI(apiKey, completionModel, embeddingModel string, dimensions int) Option {
	return func(c *clientConfig) {
		provCfg := &openaiProvider.Config{
			APIKey:          apiKey,
			CompletionModel: completionModel,
			EmbeddingModel:  embeddingModel,
			Dimensions:      dimensions,
		}
		c.completer = openaiProvider.NewCompleter(provCfg)
		c.embedder = openaiProvider.NewEmbedder(provCfg)
		c.dimensions = dimensions
	}
}

// WithCompleter injects a custom completion provider.
func WithCompleter(completer domain.Completer) Option {
	return func(c *clientConfig) { c.completer = completer }
}

// WithEmbedder injects a custom embedding provider.
func WithEmbedder(embedder domain.Embedder) Option {
	return func(c *clientConfig) { c.embedder = embedder }
}

// WithDimensions sets the vector index dimension.
func WithDimensions(d int) Option {
	return func(c *clientConfig) { c.dimensions = d }
}

// WithFuzzyThreshold sets the activity matcher's similarity threshold.
func WithFuzzyThreshold(t float64) Option {
	return func(c *clientConfig) { c.fuzzyThreshold = t }
}

// WithRRFK sets the reciprocal rank fusion constant.
func WithRRFK(k int) Option {
	return func(c *clientConfig) { c.rrfK = k }
}

// WithWorkers sets the batch ingestion pool size.
func WithWorkers(n int) Option {
	return func(c *clientConfig) { c.workers = n }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// Client is the tripdex SDK entry point.
type Client struct {
	dual      *index.Dual
	pipeline  *indexer.Pipeline
	searchSvc *search.Service
}

// New creates a tripdex Client with in-process indexes.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		dimensions: defaultDimensions,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.completer == nil || cfg.embedder == nil {
		return nil, errors.New("tripdex: providers required (use WithOpenAI or WithCompleter/WithEmbedder)")
	}

	tax, err := loadTaxonomy(cfg)
	if err != nil {
		return nil, err
	}
	matcher := taxonomy.NewMatcher(tax, cfg.fuzzyThreshold)

	dual := index.NewDual(lexical.New(), vector.New(cfg.dimensions))

	extractor := extract.New(cfg.completer, tax, matcher, extract.Options{Logger: cfg.logger})
	pipelineOpts := []indexer.Option{indexer.WithLogger(cfg.logger)}
	if cfg.workers > 0 {
		pipelineOpts = append(pipelineOpts, indexer.WithWorkers(cfg.workers))
	}
	pipeline, err := indexer.New(dual, extractor, cfg.embedder, pipelineOpts...)
	if err != nil {
		return nil, fmt.Errorf("tripdex: create pipeline: %w", err)
	}

	rewriter := rewrite.New(cfg.completer, matcher, 2*time.Second, cfg.logger)
	searchSvc := search.New(rewriter, dual, dual, cfg.embedder, search.Config{
		RRFK:   cfg.rrfK,
		Logger: cfg.logger,
	})

	return &Client{dual: dual, pipeline: pipeline, searchSvc: searchSvc}, nil
}

func loadTaxonomy(cfg *clientConfig) (*taxonomy.Taxonomy, error) {
	switch {
	case cfg.taxonomyYAML != nil:
		tax, err := taxonomy.Parse(cfg.taxonomyYAML)
		if err != nil {
			return nil, fmt.Errorf("tripdex: %w", err)
		}
		return tax, nil
	case cfg.taxonomyPath != "":
		tax, err := taxonomy.Load(cfg.taxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("tripdex: %w", err)
		}
		return tax, nil
	default:
		return nil, errors.New("tripdex: taxonomy required (use WithTaxonomyFile or WithTaxonomyYAML)")
	}
}

// Upsert ingests one document and returns its final pipeline state.
func (c *Client) Upsert(ctx context.Context, doc Document) (State, error) {
	return c.pipeline.Upsert(ctx, doc)
}

// UpsertBatch ingests documents concurrently and returns per-document states.
func (c *Client) UpsertBatch(ctx context.Context, docs []Document) map[string]State {
	return c.pipeline.UpsertBatch(ctx, docs)
}

// Delete removes a document from both indexes. It reports whether the
// document existed.
func (c *Client) Delete(id string) bool {
	return c.pipeline.Delete(id)
}

// Search runs a query. limit <= 0 selects the default.
func (c *Client) Search(ctx context.Context, query string, mode Mode, limit int) (*Response, error) {
	return c.searchSvc.Search(ctx, query, mode, limit)
}

// Len returns the number of indexed documents.
func (c *Client) Len() int {
	return c.dual.Len()
}

// Verify checks that both indexes hold the same document set.
func (c *Client) Verify() error {
	return c.dual.Verify()
}

// Close releases the ingestion worker pool.
func (c *Client) Close() {
	c.pipeline.Release()
}
