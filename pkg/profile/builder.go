package profile

import (
	"sort"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/identity"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/signals"
)

const (
	fixAfterFeatureWindowDays = 14
	soleOwnerPercentage       = 90.0
	soleOwnerStaleDays        = 180
	soleOwnerPenalty          = 15.0

	frequencyDailyDays   = 2
	frequencyWeeklyDays  = 10
	frequencyMonthlyDays = 45

	revertCountWeight  = 3
	fixAfterWeight     = 2
	stabilityFloor     = 10
	maxChurnPenaltyCap = 90
)

// Build aggregates history chunks and detected signals into one FileProfile
// per file observed in any file_diff chunk. now anchors "sole owner gone
// stale" scoring so the result is deterministic given fixed inputs.
func Build(chunks []history.Chunk, sigs []signals.Record, now time.Time) []FileProfile {
	byPath := groupFileDiffs(chunks)

	revertedSHAs := revertedSHAsFromSignals(sigs)
	feats, fixes := splitFeatFix(chunks)
	resolver := identity.NewResolver()

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	profiles := make([]FileProfile, 0, len(paths))

	for _, path := range paths {
		profiles = append(profiles, buildOne(path, byPath[path], revertedSHAs, feats, fixes, sigs, now, resolver))
	}

	return profiles
}

func buildOne(
	path string, diffs []history.Chunk, revertedSHAs map[string]bool,
	feats, fixes []history.Chunk, sigs []signals.Record, now time.Time, resolver *identity.Resolver,
) FileProfile {
	shas := distinctSHAs(diffs)
	totalChanges := len(shas)

	commitsByAuthor := make(map[string]int)

	var lastModified time.Time

	dates := make([]time.Time, 0, len(diffs))

	for _, d := range diffs {
		key := resolver.Canonicalize(d.Author, d.Email)
		commitsByAuthor[key]++

		if d.Date.After(lastModified) {
			lastModified = d.Date
		}

		dates = append(dates, d.Date)
	}

	owner := primaryOwner(commitsByAuthor, totalChanges, diffs, resolver)
	revertCount := countReverts(diffs, revertedSHAs)
	fixAfterFeature := countFixAfterFeature(path, feats, fixes)
	frequency := changeFrequency(dates)
	churnPenalty := churnPenaltyFor(frequency)

	stability := stabilityScore(revertCount, fixAfterFeature, churnPenalty)
	risk := riskScore(stability, owner, now)

	return FileProfile{
		Path:                 path,
		PrimaryOwner:         owner,
		ContributorCount:     len(commitsByAuthor),
		StabilityScore:       stability,
		TotalChanges:         totalChanges,
		RevertCount:          revertCount,
		FixAfterFeatureCount: fixAfterFeature,
		ChangeFrequency:      frequency,
		RiskScore:            risk,
		LastModified:         lastModified,
		ActiveSignalIDs:      activeSignalIDs(path, sigs),
	}
}

func groupFileDiffs(chunks []history.Chunk) map[string][]history.Chunk {
	out := make(map[string][]history.Chunk)

	for _, c := range chunks {
		if c.ChunkType != history.ChunkFileDiff || len(c.FilesChanged) == 0 {
			continue
		}

		path := c.FilesChanged[0]
		out[path] = append(out[path], c)
	}

	return out
}

func distinctSHAs(diffs []history.Chunk) []string {
	set := make(map[string]bool, len(diffs))
	for _, d := range diffs {
		set[d.SHA] = true
	}

	out := make([]string, 0, len(set))
	for sha := range set {
		out = append(out, sha)
	}

	return out
}

func primaryOwner(commitsByAuthor map[string]int, totalChanges int, diffs []history.Chunk, resolver *identity.Resolver) *Owner {
	if totalChanges == 0 {
		return nil
	}

	var topKey string

	topCount := 0

	for key, count := range commitsByAuthor {
		if count > topCount || (count == topCount && key < topKey) {
			topKey, topCount = key, count
		}
	}

	percentage := 100 * float64(topCount) / float64(totalChanges)
	if percentage < 50 {
		return nil
	}

	var lastChange time.Time

	for _, d := range diffs {
		if resolver.Canonicalize(d.Author, d.Email) == topKey && d.Date.After(lastChange) {
			lastChange = d.Date
		}
	}

	return &Owner{
		Author:     resolver.DisplayName(topKey),
		Percentage: percentage,
		Commits:    topCount,
		LastChange: lastChange,
	}
}

// revertedSHAsFromSignals collects every sha contributing to a revert_pair
// signal, so a commit touching a file can be counted as a revert even when
// its own commit_type isn't "revert" (e.g. the reverted original).
func revertedSHAsFromSignals(sigs []signals.Record) map[string]bool {
	out := make(map[string]bool)

	for _, s := range sigs {
		if s.Type != signals.TypeRevertPair {
			continue
		}

		for _, sha := range s.ContributingSHAs {
			out[sha] = true
		}
	}

	return out
}

// countReverts counts distinct commits touching the file whose commit_type
// is "revert", or that are members of a revert_pair signal.
func countReverts(diffs []history.Chunk, revertedSHAs map[string]bool) int {
	count := 0

	for _, d := range diffs {
		if d.CommitType == "revert" || revertedSHAs[d.SHA] {
			count++
		}
	}

	return count
}

func isPrefixScope(scope, path string) bool {
	if scope == "." || scope == "" {
		return true
	}

	return strings.HasPrefix(path, scope+"/") || path == scope
}

func splitFeatFix(chunks []history.Chunk) (feats, fixes []history.Chunk) {
	for _, c := range chunks {
		if c.ChunkType != history.ChunkFileDiff {
			continue
		}

		switch c.CommitType {
		case "feat":
			feats = append(feats, c)
		case "fix":
			fixes = append(fixes, c)
		}
	}

	return feats, fixes
}

func countFixAfterFeature(path string, feats, fixes []history.Chunk) int {
	count := 0

	for _, fix := range fixes {
		if len(fix.FilesChanged) == 0 || fix.FilesChanged[0] != path {
			continue
		}

		for _, feat := range feats {
			if len(feat.FilesChanged) == 0 || feat.FilesChanged[0] != path {
				continue
			}

			if fix.Date.Before(feat.Date) {
				continue
			}

			if fix.Date.Sub(feat.Date).Hours() <= fixAfterFeatureWindowDays*24 {
				count++
				break
			}
		}
	}

	return count
}

func changeFrequency(dates []time.Time) ChangeFrequency {
	if len(dates) < 2 {
		return FrequencyRare
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	total := dates[len(dates)-1].Sub(dates[0]).Hours() / 24
	avgInterval := total / float64(len(dates)-1)

	switch {
	case avgInterval <= frequencyDailyDays:
		return FrequencyDaily
	case avgInterval <= frequencyWeeklyDays:
		return FrequencyWeekly
	case avgInterval <= frequencyMonthlyDays:
		return FrequencyMonthly
	default:
		return FrequencyRare
	}
}

func churnPenaltyFor(freq ChangeFrequency) float64 {
	switch freq {
	case FrequencyDaily:
		return maxChurnPenaltyCap
	case FrequencyWeekly:
		return 40
	case FrequencyMonthly:
		return 15
	default:
		return 0
	}
}

func stabilityScore(revertCount, fixAfterFeature int, churnPenalty float64) float64 {
	penalty := revertCountWeight*float64(revertCount) + fixAfterWeight*float64(fixAfterFeature) + churnPenalty
	if penalty > maxChurnPenaltyCap {
		penalty = maxChurnPenaltyCap
	}

	score := 100 - penalty
	if score < stabilityFloor {
		score = stabilityFloor
	}

	return score
}

func riskScore(stability float64, owner *Owner, now time.Time) float64 {
	penalty := 0.0

	if owner != nil && owner.Percentage >= soleOwnerPercentage {
		if now.Sub(owner.LastChange).Hours()/24 > soleOwnerStaleDays {
			penalty = soleOwnerPenalty
		}
	}

	score := 100 - stability + penalty

	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func activeSignalIDs(path string, sigs []signals.Record) []string {
	ids := make([]string, 0)

	for _, s := range sigs {
		if isPrefixScope(s.DirectoryScope, path) {
			ids = append(ids, s.ID)
		}
	}

	return ids
}
