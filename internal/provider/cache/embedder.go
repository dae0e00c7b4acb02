// Package cache provides a caching decorator for embedding providers.
// Embeddings are deterministic per model, so repeated indexing runs and
// repeated queries can skip the API round-trip entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/metrics"
)

// ErrKeyNotFound is returned by KV implementations on cache miss.
var ErrKeyNotFound = errors.New("key not found")

// KV is a minimal byte-oriented key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Embedder wraps an inner embedder with a KV cache keyed by the hash of
// model and text. Cache failures degrade to the inner embedder, never to
// the caller.
type Embedder struct {
	inner  domain.Embedder
	kv     KV
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// NewEmbedder creates a caching embedder. The model name participates in
// the cache key so switching models never serves stale vectors.
func NewEmbedder(inner domain.Embedder, kv KV, model string, ttl time.Duration, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{inner: inner, kv: kv, model: model, ttl: ttl, logger: logger}
}

// Embed returns the cached vector when present, otherwise delegates to the
// inner embedder and stores the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(e.model, text)

	if data, err := e.kv.Get(ctx, key); err == nil {
		if vec, decErr := decodeVector(data); decErr == nil {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return vec, nil
		}
		e.logger.Warn("corrupt cached embedding, re-embedding", zap.String("key", key))
	} else if !errors.Is(err, ErrKeyNotFound) {
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.kv.Set(ctx, key, encodeVector(vec), e.ttl); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding payload length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
