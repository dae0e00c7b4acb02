// Package indexer runs the document ingestion pipeline: validate, extract
// structured fields, embed, and write to both indexes.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/index"
	"github.com/voyago/tripdex/internal/metrics"
)

const (
	defaultWorkers       = 5
	defaultWriteAttempts = 3
)

// FieldExtractor derives structured fields from raw text. Implementations
// must not fail; degraded extraction is signalled via the Partial flag.
type FieldExtractor interface {
	Extract(ctx context.Context, title, body string) domain.StructuredFields
}

// RawDocument is an ingestion request before extraction and embedding.
type RawDocument struct {
	ID    string `json:"doc_id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Pipeline ingests documents into the dual index. Concurrent upserts of
// distinct documents proceed in parallel; upserts of the same document are
// serialized per id.
type Pipeline struct {
	dual      *index.Dual
	extractor FieldExtractor
	embedder  domain.Embedder

	pool *ants.Pool

	mu     sync.Mutex
	locks  map[string]*docLock
	states map[string]domain.DocState

	writeAttempts int
	logger        *zap.Logger
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	workers       int
	writeAttempts int
	logger        *zap.Logger
}

// WithWorkers sets the batch worker pool size.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithWriteAttempts sets how many times an index write is attempted before
// the document is marked failed.
func WithWriteAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.writeAttempts = n
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Pipeline.
func New(dual *index.Dual, extractor FieldExtractor, embedder domain.Embedder, opts ...Option) (*Pipeline, error) {
	o := options{
		workers:       defaultWorkers,
		writeAttempts: defaultWriteAttempts,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := ants.NewPool(o.workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Pipeline{
		dual:          dual,
		extractor:     extractor,
		embedder:      embedder,
		pool:          pool,
		locks:         make(map[string]*docLock),
		states:        make(map[string]domain.DocState),
		writeAttempts: o.writeAttempts,
		logger:        o.logger,
	}, nil
}

// Upsert ingests a single document synchronously and returns its final state.
func (p *Pipeline) Upsert(ctx context.Context, raw RawDocument) (domain.DocState, error) {
	return p.process(ctx, raw)
}

// UpsertBatch ingests documents concurrently on the worker pool and returns
// the per-document final states keyed by id. Individual failures do not
// abort the batch.
func (p *Pipeline) UpsertBatch(ctx context.Context, docs []RawDocument) map[string]domain.DocState {
	var wg sync.WaitGroup
	for _, raw := range docs {
		raw := raw
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			p.process(ctx, raw)
		}); err != nil {
			wg.Done()
			p.setState(raw.ID, domain.StateFailed)
			p.logger.Error("submit to worker pool failed",
				zap.String("doc_id", raw.ID), zap.Error(err))
		}
	}
	wg.Wait()

	results := make(map[string]domain.DocState, len(docs))
	for _, raw := range docs {
		results[raw.ID] = p.State(raw.ID)
	}
	return results
}

// Delete removes a document from both indexes. It reports whether the
// document existed.
func (p *Pipeline) Delete(id string) bool {
	lock := p.lockDoc(id)
	defer p.unlockDoc(id, lock)

	existed := p.dual.Delete(id)
	p.mu.Lock()
	delete(p.states, id)
	p.mu.Unlock()
	return existed
}

// State returns the last observed pipeline state for a document id.
func (p *Pipeline) State(id string) domain.DocState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[id]; ok {
		return s
	}
	return domain.StatePending
}

// Release shuts down the worker pool. In-flight tasks complete first.
func (p *Pipeline) Release() {
	p.pool.Release()
}

func (p *Pipeline) process(ctx context.Context, raw RawDocument) (domain.DocState, error) {
	lock := p.lockDoc(raw.ID)
	defer p.unlockDoc(raw.ID, lock)

	if err := validate(raw); err != nil {
		p.finish(raw.ID, domain.StateSkipped)
		p.logger.Warn("skipping malformed document",
			zap.String("doc_id", raw.ID), zap.Error(err))
		return domain.StateSkipped, err
	}
	p.setState(raw.ID, domain.StateExtracted)

	doc := domain.Document{
		ID:     raw.ID,
		Title:  raw.Title,
		Body:   raw.Body,
		Fields: p.extractor.Extract(ctx, raw.Title, raw.Body),
	}

	if err := p.write(ctx, &doc); err != nil {
		p.finish(raw.ID, domain.StateFailed)
		p.logger.Error("indexing document failed",
			zap.String("doc_id", raw.ID), zap.Error(err))
		return domain.StateFailed, err
	}

	p.finish(raw.ID, domain.StateIndexed)
	p.logger.Info("indexed document",
		zap.String("doc_id", raw.ID),
		zap.Strings("activities", doc.Fields.Activities),
		zap.Bool("partial_fields", doc.Fields.Partial),
	)
	return domain.StateIndexed, nil
}

// write embeds the document and upserts it into both indexes, retrying the
// whole step with exponential backoff.
func (p *Pipeline) write(ctx context.Context, doc *domain.Document) error {
	attempt := func() error {
		embedding, err := p.embedder.Embed(ctx, doc.EmbeddingText())
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		doc.Embedding = embedding

		if err := p.dual.Upsert(*doc); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailure, err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	retries := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(p.writeAttempts-1)), ctx)
	return backoff.Retry(attempt, retries)
}

func validate(raw RawDocument) error {
	if raw.ID == "" {
		return fmt.Errorf("%w: empty doc_id", domain.ErrMalformedDocument)
	}
	if raw.Title == "" && raw.Body == "" {
		return fmt.Errorf("%w: document %q has no text", domain.ErrMalformedDocument, raw.ID)
	}
	return nil
}

// docLock serializes work on one document id. Entries are reference counted
// so the lock table holds only in-flight ids and never grows with churn.
type docLock struct {
	mu   sync.Mutex
	refs int
}

func (p *Pipeline) lockDoc(id string) *docLock {
	p.mu.Lock()
	lock, ok := p.locks[id]
	if !ok {
		lock = &docLock{}
		p.locks[id] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (p *Pipeline) unlockDoc(id string, lock *docLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	lock.refs--
	// Pruning at zero is safe: refs counts holders and waiters alike, so
	// nobody can still be blocked on the removed entry.
	if lock.refs == 0 {
		delete(p.locks, id)
	}
	p.mu.Unlock()
}

func (p *Pipeline) setState(id string, s domain.DocState) {
	p.mu.Lock()
	p.states[id] = s
	p.mu.Unlock()
}

func (p *Pipeline) finish(id string, s domain.DocState) {
	p.setState(id, s)
	metrics.IndexedDocsTotal.WithLabelValues(string(s)).Inc()
}
