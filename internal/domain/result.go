package domain

// Source identifies the retrieval path that produced a ranked entry.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
)

// RankedEntry is one hit in a single retrieval path's ordered result list.
type RankedEntry struct {
	DocID    string
	Source   Source
	Rank     int // 1-based position in the source list
	RawScore float64
}

// FusedResult is one hit in the fused result list.
type FusedResult struct {
	DocID      string
	FusedScore float64
	Sources    []Source // contributing paths, in input-list order
}
