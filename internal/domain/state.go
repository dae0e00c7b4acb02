package domain

// DocState is a document's position in the indexing pipeline.
type DocState string

const (
	StatePending   DocState = "pending"
	StateExtracted DocState = "extracted"
	StateIndexed   DocState = "indexed"
	StateFailed    DocState = "failed"
	StateSkipped   DocState = "skipped"
)
