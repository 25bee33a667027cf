package serialize

import "github.com/garrettyarmo/forge-sub000/internal/subgraph"

// DetailLevel is the closed variant controlling how much of a node's
// information is rendered (spec.md §4.8).
type DetailLevel string

const (
	DetailFull    DetailLevel = "Full"
	DetailSummary DetailLevel = "Summary"
	DetailMinimal DetailLevel = "Minimal"
)

// detailFor maps a relevance score to a detail level by the thresholds in
// spec.md §4.8: > 0.7 Full, > 0.4 Summary, else Minimal.
func detailFor(score float64) DetailLevel {
	switch {
	case score > 0.7:
		return DetailFull
	case score > 0.4:
		return DetailSummary
	default:
		return DetailMinimal
	}
}

// EvidenceCap bounds how many evidence strings render per relationship row
// before collapsing the remainder into "+N more" (spec.md §4.8).
const EvidenceCap = 3

func truncateEvidence(ev []string) (shown []string, more int) {
	if len(ev) <= EvidenceCap {
		return ev, 0
	}
	return ev[:EvidenceCap], len(ev) - EvidenceCap
}

// sortedByScore is a convenience alias documenting that callers must pass
// subgraph.Result.Nodes already in the extractor's canonical order
// (score descending, ties broken by NodeId) — serializers never re-sort.
type sortedByScore = []subgraph.ScoredNode
