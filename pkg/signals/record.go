// Package signals mines history chunks for named patterns — reverts, fix
// chains, churn hotspots, breaking changes, adoption cycles — via pure
// functions that never mutate their input and never touch the store.
package signals

import "time"

// Type names a detected pattern.
type Type string

const (
	TypeRevertPair     Type = "revert_pair"
	TypeFixChain       Type = "fix_chain"
	TypeChurnHotspot   Type = "churn_hotspot"
	TypeBreakingChange Type = "breaking_change"
	TypeAdoptionCycle  Type = "adoption_cycle"
)

// Severity grades how urgently a signal should be surfaced.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityCaution Severity = "caution"
	SeverityWarning Severity = "warning"
)

// TemporalScope bounds the time window a signal's contributing commits span.
type TemporalScope struct {
	Start time.Time
	End   time.Time
}

// Record is a detected pattern with provenance back to contributing commits.
type Record struct {
	ID               string
	Type             Type
	Summary          string
	Severity         Severity
	Confidence       float64
	DirectoryScope   string
	TemporalScope    TemporalScope
	ContributingSHAs []string
	Metadata         map[string]any
	CreatedAt        time.Time
}
