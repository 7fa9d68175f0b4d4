// Package query classifies a free-text question into a search strategy and
// its extracted parameters, at the boundary between a caller and the store.
package query

// Strategy names a search routing decision.
type Strategy string

const (
	StrategyBlame          Strategy = "blame"
	StrategyPickaxe        Strategy = "pickaxe"
	StrategyTemporalVector Strategy = "temporal_vector"
	StrategyStructuredGit  Strategy = "structured_git"
	StrategyVector         Strategy = "vector"
)

// Classification is the pure result of classifying one query string.
type Classification struct {
	Strategy        Strategy
	ExtractedParams map[string]any
}
