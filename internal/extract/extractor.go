// Package extract derives structured fields from raw document text at
// indexing time. The LLM path is guarded by a circuit breaker; when it is
// unavailable the extractor falls back to taxonomy scanning so indexing
// never blocks on the provider.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/llmjson"
	"github.com/voyago/tripdex/internal/metrics"
	"github.com/voyago/tripdex/internal/taxonomy"
)

const extractPromptTemplate = `Extract structured travel information from the following document.

Title: %s

Description:
%s

Return ONLY a JSON object with this exact structure:
{"city": "city_name_or_null", "country": "country_name_or_null", "activities": ["activity1", "activity2"], "price_tier": "budget_or_moderate_or_luxury_or_null"}

Each activity should be a concise, normalized term (e.g., "snorkeling", "wine tasting", "city tours").
If a field is not mentioned, use null.`

// extractResponse mirrors the JSON shape requested from the provider.
type extractResponse struct {
	City       *string  `json:"city"`
	Country    *string  `json:"country"`
	Activities []string `json:"activities"`
	PriceTier  *string  `json:"price_tier"`
}

// Options configures the extractor's resilience policy.
type Options struct {
	// Timeout bounds a single extraction including retries.
	Timeout time.Duration
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit. BreakerCooldown is how long it stays open.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	Logger           *zap.Logger
}

// Extractor turns raw title/body text into structured fields.
type Extractor struct {
	completer domain.Completer
	tax       *taxonomy.Taxonomy
	matcher   *taxonomy.Matcher
	breaker   *gobreaker.CircuitBreaker
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an Extractor.
func New(completer domain.Completer, tax *taxonomy.Taxonomy, matcher *taxonomy.Matcher, opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := opts.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "extractor",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("extraction circuit state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Extractor{
		completer: completer,
		tax:       tax,
		matcher:   matcher,
		breaker:   breaker,
		timeout:   timeout,
		logger:    logger,
	}
}

// Extract never fails: when the LLM path is unavailable or returns garbage
// it falls back to scanning the text for taxonomy terms and marks the
// result partial.
func (e *Extractor) Extract(ctx context.Context, title, body string) domain.StructuredFields {
	fields, err := e.extractLLM(ctx, title, body)
	if err != nil {
		e.logger.Warn("llm extraction unavailable, using taxonomy scan",
			zap.String("title", title), zap.Error(err))
		metrics.ExtractTotal.WithLabelValues("heuristic").Inc()
		return e.extractHeuristic(title, body)
	}
	metrics.ExtractTotal.WithLabelValues("llm").Inc()
	return fields
}

func (e *Extractor) extractLLM(ctx context.Context, title, body string) (domain.StructuredFields, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var parsed extractResponse
	attempt := func() error {
		_, err := e.breaker.Execute(func() (any, error) {
			raw, err := e.completer.Complete(ctx, fmt.Sprintf(extractPromptTemplate, title, body))
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(llmjson.Clean(raw)), &parsed); err != nil {
				return nil, fmt.Errorf("decode extraction response: %w", err)
			}
			return nil, nil
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return domain.StructuredFields{}, err
	}

	fields := domain.StructuredFields{
		City:       cleanField(parsed.City),
		Country:    cleanField(parsed.Country),
		Activities: e.matcher.Match(strings.Join(parsed.Activities, ", ")),
	}
	if tier := cleanField(parsed.PriceTier); tier != "" {
		if parsedTier, err := domain.ParsePriceTier(tier); err == nil {
			fields.PriceTier = parsedTier
		}
	}
	return fields, nil
}

// extractHeuristic scans the normalized text for taxonomy synonyms. City,
// country and price tier stay empty, hence the partial flag.
func (e *Extractor) extractHeuristic(title, body string) domain.StructuredFields {
	text := " " + taxonomy.Normalize(title+" "+body) + " "

	seen := make(map[string]struct{})
	for _, key := range e.tax.SynonymKeys() {
		if strings.Contains(text, " "+key+" ") {
			if id, ok := e.tax.Canonical(key); ok {
				seen[id] = struct{}{}
			}
		}
	}

	activities := make([]string, 0, len(seen))
	for id := range seen {
		activities = append(activities, id)
	}
	sort.Strings(activities)

	return domain.StructuredFields{Activities: activities, Partial: true}
}

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
