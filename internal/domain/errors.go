package domain

import "errors"

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrMalformedDocument signals raw input that cannot be indexed.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrProviderUnavailable signals an unreachable or rate-limited completion/embedding provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrTotalRetrievalFailure signals that every retrieval path failed.
	ErrTotalRetrievalFailure = errors.New("all retrieval paths failed")
	// ErrIndexWriteFailure signals an exhausted index write.
	ErrIndexWriteFailure = errors.New("index write failure")
	// ErrEmbeddingDimMismatch signals a vector dimension mismatch.
	ErrEmbeddingDimMismatch = errors.New("embedding dimension mismatch")
	// ErrIndexInconsistent signals diverged lexical and vector index contents.
	ErrIndexInconsistent = errors.New("index contents inconsistent")
	// ErrInvalidTaxonomy signals a malformed taxonomy file.
	ErrInvalidTaxonomy = errors.New("invalid taxonomy")
	// ErrUnsupportedMode signals an unknown search mode.
	ErrUnsupportedMode = errors.New("unsupported search mode")
)
