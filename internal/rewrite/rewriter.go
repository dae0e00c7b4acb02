// Package rewrite converts natural-language queries into structured filters
// using the completion provider, with taxonomy canonicalization on top.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/llmjson"
	"github.com/voyago/tripdex/internal/metrics"
	"github.com/voyago/tripdex/internal/taxonomy"
)

const rewritePromptTemplate = `Convert the following user query about travel into a structured filter query.

Extract:
1. City/destination name (if mentioned)
2. Country (if mentioned)
3. Activities/services requested (e.g., snorkeling, wine tasting, city tours)
4. Activity categories (e.g., "outdoor activities", "wellness", "adventure", "cultural", "culinary")

If the query mentions a category like "outdoor activities" or "wellness", keep the category phrase in the activities array; it will be expanded downstream.

User query: %q

Return ONLY a JSON object with this exact structure:
{"city": "city_name_or_null", "country": "country_name_or_null", "activities": ["activity1", "activity2"]}

If a field is not mentioned, use null. Activities should be normalized (lowercase, singular forms preferred).`

// rewriteResponse mirrors the JSON shape requested from the provider.
type rewriteResponse struct {
	City       *string  `json:"city"`
	Country    *string  `json:"country"`
	Activities []string `json:"activities"`
}

// Rewriter extracts structured filters from free-text queries.
type Rewriter struct {
	completer domain.Completer
	matcher   *taxonomy.Matcher
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Rewriter. timeout bounds each provider call including the
// single retry.
func New(completer domain.Completer, matcher *taxonomy.Matcher, timeout time.Duration, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{completer: completer, matcher: matcher, timeout: timeout, logger: logger}
}

// Rewrite returns the structured filter for the query. Rewriting never fails:
// when the provider is unavailable or the response stays malformed after one
// retry, it returns an empty filter and degraded=true so the caller can fall
// back to unfiltered search.
func (r *Rewriter) Rewrite(ctx context.Context, query string) (domain.StructuredFilter, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var parsed rewriteResponse
	attempt := func() error {
		raw, err := r.completer.Complete(ctx, fmt.Sprintf(rewritePromptTemplate, query))
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(llmjson.Clean(raw)), &parsed); err != nil {
			return fmt.Errorf("decode rewrite response: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		r.logger.Warn("query rewrite degraded to unfiltered search",
			zap.String("query", query), zap.Error(err))
		metrics.RewriteTotal.WithLabelValues("degraded").Inc()
		return domain.StructuredFilter{}, true
	}

	filter := domain.StructuredFilter{
		City:       cleanField(parsed.City),
		Country:    cleanField(parsed.Country),
		Activities: r.canonicalize(parsed.Activities),
	}
	metrics.RewriteTotal.WithLabelValues("success").Inc()
	r.logger.Debug("rewrote query",
		zap.String("query", query),
		zap.String("city", filter.City),
		zap.String("country", filter.Country),
		zap.Strings("activities", filter.Activities),
	)
	return filter, false
}

// canonicalize maps the provider's free-form activity terms onto taxonomy
// ids, expanding categories and dropping anything unmatched.
func (r *Rewriter) canonicalize(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	return r.matcher.Match(strings.Join(terms, ", "))
}

// cleanField trims a nullable string field; providers sometimes return the
// literal string "null" instead of JSON null.
func cleanField(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}
