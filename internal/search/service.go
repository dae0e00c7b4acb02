package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/metrics"
)

// Config holds the service's tuning knobs.
type Config struct {
	RRFK             int
	SubSearchTimeout time.Duration
	DefaultLimit     int
	MaxLimit         int
	Logger           *zap.Logger
}

// Service answers search requests by rewriting the query, running the
// requested sub-searches in parallel, and fusing the ranked lists.
type Service struct {
	rewriter Rewriter
	lex      LexicalSearcher
	vec      VectorSearcher
	embedder domain.Embedder

	rrfK         int
	subTimeout   time.Duration
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

// Response is a completed search.
type Response struct {
	Results []domain.FusedResult
	// Filter is the structured filter applied to both sub-searches.
	Filter domain.StructuredFilter
	// RewriteDegraded reports that query rewriting failed and the search
	// ran unfiltered.
	RewriteDegraded bool
	// Partial reports that exactly one hybrid sub-search failed and the
	// results come from the surviving one.
	Partial      bool
	LexicalCount int
	VectorCount  int
}

// New creates a search Service.
func New(rewriter Rewriter, lex LexicalSearcher, vec VectorSearcher, embedder domain.Embedder, cfg Config) *Service {
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	if cfg.SubSearchTimeout <= 0 {
		cfg.SubSearchTimeout = 500 * time.Millisecond
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		rewriter:     rewriter,
		lex:          lex,
		vec:          vec,
		embedder:     embedder,
		rrfK:         cfg.RRFK,
		subTimeout:   cfg.SubSearchTimeout,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		logger:       cfg.Logger,
	}
}

// Search runs a query in the given mode. limit <= 0 selects the default.
// In hybrid mode a single sub-search failure degrades to partial results;
// only the loss of every path is an error.
func (s *Service) Search(ctx context.Context, query string, mode domain.Mode, limit int) (*Response, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	filter, degraded := s.rewriter.Rewrite(ctx, query)

	resp := &Response{Filter: filter, RewriteDegraded: degraded}

	var (
		lexEntries []domain.RankedEntry
		vecEntries []domain.RankedEntry
		lexErr     error
		vecErr     error
	)

	// Sub-searches run concurrently with independent deadlines. Errors are
	// collected, not returned, so one failing path never cancels the other;
	// caller cancellation still propagates to in-flight provider calls.
	g, gctx := errgroup.WithContext(ctx)
	if mode == domain.ModeLexical || mode == domain.ModeHybrid {
		g.Go(func() error {
			lexEntries, lexErr = s.searchLexical(gctx, query, filter, limit)
			return nil
		})
	}
	if mode == domain.ModeVector || mode == domain.ModeHybrid {
		g.Go(func() error {
			vecEntries, vecErr = s.searchVector(gctx, query, filter, limit)
			return nil
		})
	}
	g.Wait()

	resp.LexicalCount = len(lexEntries)
	resp.VectorCount = len(vecEntries)

	switch mode {
	case domain.ModeLexical:
		if lexErr != nil {
			metrics.SearchTotal.WithLabelValues(string(mode), "error").Inc()
			return nil, fmt.Errorf("%w: lexical: %w", domain.ErrTotalRetrievalFailure, lexErr)
		}
		resp.Results = Fuse([][]domain.RankedEntry{lexEntries}, s.rrfK, limit)
	case domain.ModeVector:
		if vecErr != nil {
			metrics.SearchTotal.WithLabelValues(string(mode), "error").Inc()
			return nil, fmt.Errorf("%w: vector: %w", domain.ErrTotalRetrievalFailure, vecErr)
		}
		resp.Results = Fuse([][]domain.RankedEntry{vecEntries}, s.rrfK, limit)
	case domain.ModeHybrid:
		if lexErr != nil && vecErr != nil {
			metrics.SearchTotal.WithLabelValues(string(mode), "error").Inc()
			return nil, fmt.Errorf("%w: lexical: %v; vector: %v",
				domain.ErrTotalRetrievalFailure, lexErr, vecErr)
		}
		var lists [][]domain.RankedEntry
		if lexErr == nil {
			lists = append(lists, lexEntries)
		} else {
			s.logger.Warn("lexical sub-search failed, serving vector-only results",
				zap.String("query", query), zap.Error(lexErr))
		}
		if vecErr == nil {
			lists = append(lists, vecEntries)
		} else {
			s.logger.Warn("vector sub-search failed, serving lexical-only results",
				zap.String("query", query), zap.Error(vecErr))
		}
		resp.Partial = lexErr != nil || vecErr != nil
		resp.Results = Fuse(lists, s.rrfK, limit)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMode, mode)
	}

	outcome := "success"
	if resp.Partial {
		outcome = "partial"
	}
	metrics.SearchTotal.WithLabelValues(string(mode), outcome).Inc()

	s.logger.Debug("search completed",
		zap.String("query", query),
		zap.String("mode", string(mode)),
		zap.Int("lexical_hits", resp.LexicalCount),
		zap.Int("vector_hits", resp.VectorCount),
		zap.Int("fused", len(resp.Results)),
		zap.Bool("partial", resp.Partial),
	)
	return resp, nil
}

func (s *Service) searchLexical(ctx context.Context, query string, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.subTimeout)
	defer cancel()

	type result struct {
		entries []domain.RankedEntry
		err     error
	}
	done := make(chan result, 1)
	go func() {
		entries, err := s.lex.SearchLexical(query, filter, limit)
		done <- result{entries, err}
	}()

	select {
	case r := <-done:
		return r.entries, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("lexical search: %w", ctx.Err())
	}
}

func (s *Service) searchVector(ctx context.Context, query string, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.subTimeout)
	defer cancel()

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.vec.SearchVector(embedding, filter, limit)
}
