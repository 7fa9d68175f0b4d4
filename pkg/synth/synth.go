package synth

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/profile"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/signals"
)

const (
	stabilityThreshold     = 50.0
	stabilityMinChanges    = 10
	stabilityRefactorBoost = 60.0
	ownershipThreshold     = 70.0
	riskThreshold          = 70.0
)

// Synthesize produces warnings in four categories from a set of profiles
// and the signals that were detected alongside them. changeType, when
// non-empty, is the type of change under review (e.g. "refactor") and
// tightens the stability threshold for that review.
func Synthesize(profiles []profile.FileProfile, sigs []signals.Record, changeType string) []Warning {
	warnings := make([]Warning, 0)

	warnings = append(warnings, stabilityWarnings(profiles, changeType)...)
	warnings = append(warnings, ownershipWarnings(profiles)...)
	warnings = append(warnings, patternWarnings(sigs)...)
	warnings = append(warnings, riskWarnings(profiles)...)

	return warnings
}

func stabilityWarnings(profiles []profile.FileProfile, changeType string) []Warning {
	out := make([]Warning, 0)

	for _, p := range profiles {
		if p.TotalChanges < stabilityMinChanges {
			continue
		}

		threshold := stabilityThreshold
		if changeType == "refactor" {
			threshold = stabilityRefactorBoost
		}

		if p.StabilityScore >= threshold {
			continue
		}

		out = append(out, Warning{
			Category:  CategoryStability,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("%s has a low stability score (%.0f/100) across %s commits", p.Path, p.StabilityScore, humanize.Comma(int64(p.TotalChanges))),
			SignalIDs: p.ActiveSignalIDs,
		})
	}

	return out
}

func ownershipWarnings(profiles []profile.FileProfile) []Warning {
	out := make([]Warning, 0)

	for _, p := range profiles {
		if p.PrimaryOwner == nil || p.PrimaryOwner.Percentage < ownershipThreshold {
			continue
		}

		out = append(out, Warning{
			Category: CategoryOwnership,
			Severity: SeverityCaution,
			Message: fmt.Sprintf("%s is %.0f%% owned by %s; last touched %s",
				p.Path, p.PrimaryOwner.Percentage, p.PrimaryOwner.Author, humanize.Time(p.PrimaryOwner.LastChange)),
			SignalIDs: p.ActiveSignalIDs,
		})
	}

	return out
}

func patternWarnings(sigs []signals.Record) []Warning {
	out := make([]Warning, 0, len(sigs))

	for _, s := range sigs {
		out = append(out, Warning{
			Category:  CategoryPattern,
			Severity:  Severity(s.Severity),
			Message:   patternMessage(s),
			SignalIDs: []string{s.ID},
		})
	}

	return out
}

func patternMessage(s signals.Record) string {
	switch s.Type {
	case signals.TypeRevertPair:
		if days, ok := s.Metadata["time_to_revert_days"]; ok {
			return fmt.Sprintf("%s (reverted after %v days)", s.Summary, days)
		}

		return s.Summary
	default:
		return s.Summary
	}
}

func riskWarnings(profiles []profile.FileProfile) []Warning {
	out := make([]Warning, 0)

	for _, p := range profiles {
		if p.RiskScore < riskThreshold {
			continue
		}

		out = append(out, Warning{
			Category:  CategoryRisk,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("%s carries a high risk score (%.0f/100)", p.Path, p.RiskScore),
			SignalIDs: p.ActiveSignalIDs,
		})
	}

	return out
}
