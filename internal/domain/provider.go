package domain

import "context"

// Completer is the injectable text-completion boundary. Timeout and retry
// policy belong to the caller, not to implementations.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder vectorizes text into a fixed-dimension embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
