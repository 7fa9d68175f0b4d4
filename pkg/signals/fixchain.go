package signals

import (
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

// DefaultFixChainWindowDays is the default window within which fix commits
// following a feature commit are grouped into a fix_chain.
const DefaultFixChainWindowDays = 14

const fixChainMinCount = 2

// DetectFixChains groups fix: commits that follow a preceding feat: commit
// touching overlapping files within windowDays. Requires commit_type to be
// fix/feat since fix_chain is one of the detectors for which commit_type is
// semantically required.
func DetectFixChains(chunks []history.Chunk, windowDays int) []Record {
	if windowDays <= 0 {
		windowDays = DefaultFixChainWindowDays
	}

	summaries := commitSummaries(chunks)

	feats := filterByType(summaries, "feat")
	fixes := filterByType(summaries, "fix")

	sort.Slice(feats, func(i, j int) bool { return feats[i].Date.Before(feats[j].Date) })
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].Date.Before(fixes[j].Date) })

	records := make([]Record, 0)

	for _, feat := range feats {
		matched := matchingFixes(feat, fixes, windowDays)
		if len(matched) < fixChainMinCount {
			continue
		}

		records = append(records, buildFixChainRecord(feat, matched))
	}

	return records
}

func matchingFixes(feat history.Chunk, fixes []history.Chunk, windowDays int) []history.Chunk {
	featFiles := toSet(feat.FilesChanged)

	var matched []history.Chunk

	for _, fix := range fixes {
		if fix.Date.Before(feat.Date) {
			continue
		}

		if fix.Date.Sub(feat.Date).Hours() > float64(windowDays)*hoursPerDay {
			continue
		}

		if !overlaps(featFiles, fix.FilesChanged) {
			continue
		}

		matched = append(matched, fix)
	}

	return matched
}

func buildFixChainRecord(feat history.Chunk, fixes []history.Chunk) Record {
	shas := make([]string, 0, len(fixes)+1)
	shas = append(shas, feat.SHA)

	allFiles := append([]string(nil), feat.FilesChanged...)

	for _, fx := range fixes {
		shas = append(shas, fx.SHA)
		allFiles = append(allFiles, fx.FilesChanged...)
	}

	daySpan := int(fixes[len(fixes)-1].Date.Sub(fixes[0].Date).Hours() / hoursPerDay)

	return Record{
		ID:               ID(TypeFixChain, shas),
		Type:             TypeFixChain,
		Summary:          fmt.Sprintf("%d fix commits followed feature %q", len(fixes), feat.Subject),
		Severity:         SeverityCaution,
		Confidence:       1.0,
		DirectoryScope:   commonPathPrefix(allFiles),
		ContributingSHAs: shas,
		Metadata: map[string]any{
			"feature_sha":     feat.SHA,
			"feature_subject": feat.Subject,
			"fix_count":       len(fixes),
			"day_span":        daySpan,
		},
	}
}

func filterByType(chunks []history.Chunk, commitType string) []history.Chunk {
	out := make([]history.Chunk, 0, len(chunks))

	for _, c := range chunks {
		if c.CommitType == commitType {
			out = append(out, c)
		}
	}

	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}

	return set
}

func overlaps(set map[string]bool, items []string) bool {
	for _, i := range items {
		if set[i] {
			return true
		}
	}

	return false
}
