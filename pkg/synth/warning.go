// Package synth turns profiles and signals into human-readable warnings
// with provenance back to the records that produced them.
package synth

// Category buckets a warning by what triggered it.
type Category string

const (
	CategoryStability Category = "stability"
	CategoryOwnership Category = "ownership"
	CategoryPattern   Category = "pattern"
	CategoryRisk      Category = "risk"
)

// Severity mirrors signals.Severity's values as this package's own type;
// pattern warnings convert a signal's severity into it.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityCaution Severity = "caution"
	SeverityWarning Severity = "warning"
)

// Warning is one synthesized, human-readable observation.
type Warning struct {
	Category  Category
	Severity  Severity
	Message   string
	SignalIDs []string
}
