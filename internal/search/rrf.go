package search

import (
	"sort"

	"github.com/voyago/tripdex/internal/domain"
)

// DefaultRRFK is the standard reciprocal rank fusion constant.
const DefaultRRFK = 60

// Fuse merges ranked lists with reciprocal rank fusion: each document
// accumulates 1/(k+rank) per list it appears in. Ties break on contributing
// source count, then ascending doc id, so the output is deterministic for a
// given input regardless of list order within a rank.
func Fuse(lists [][]domain.RankedEntry, k, limit int) []domain.FusedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	type acc struct {
		score   float64
		sources []domain.Source
	}
	scores := make(map[string]*acc)

	for _, list := range lists {
		for _, entry := range list {
			a, ok := scores[entry.DocID]
			if !ok {
				a = &acc{}
				scores[entry.DocID] = a
			}
			a.score += 1.0 / float64(k+entry.Rank)
			a.sources = append(a.sources, entry.Source)
		}
	}

	fused := make([]domain.FusedResult, 0, len(scores))
	for id, a := range scores {
		fused = append(fused, domain.FusedResult{
			DocID:      id,
			FusedScore: a.score,
			Sources:    a.sources,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		if len(fused[i].Sources) != len(fused[j].Sources) {
			return len(fused[i].Sources) > len(fused[j].Sources)
		}
		return fused[i].DocID < fused[j].DocID
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}
