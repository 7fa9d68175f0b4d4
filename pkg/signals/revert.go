package signals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

var (
	revertCommitShaPattern = regexp.MustCompile(`(?i)reverts?\s+commit\s+([0-9a-f]{7,40})`)
	revertSubjectQuote     = regexp.MustCompile(`(?i)^revert\s+"(.+)"\s*$`)
)

const (
	revertConfidenceFound   = 0.9
	revertConfidenceGuessed = 0.6
	hoursPerDay             = 24
)

// DetectRevertPairs finds revert/original commit pairs among commit_summary
// chunks. Pure function: given the same input set in any order, the emitted
// ids are identical.
func DetectRevertPairs(chunks []history.Chunk) []Record {
	summaries := commitSummaries(chunks)

	bySubject := make(map[string]history.Chunk, len(summaries))
	bySHA := make(map[string]history.Chunk, len(summaries))

	for _, c := range summaries {
		bySubject[strings.ToLower(strings.TrimSpace(c.Subject))] = c
		bySHA[c.SHA] = c
	}

	records := make([]Record, 0)

	for _, revert := range summaries {
		if !strings.Contains(strings.ToLower(revert.Subject), "revert") {
			continue
		}

		original, found := findOriginal(revert, bySHA, bySubject)
		records = append(records, buildRevertRecord(revert, original, found))
	}

	return records
}

func findOriginal(revert history.Chunk, bySHA, bySubject map[string]history.Chunk) (history.Chunk, bool) {
	haystack := strings.ToLower(revert.Subject + " " + revert.Body)
	if m := revertCommitShaPattern.FindStringSubmatch(haystack); m != nil {
		sha := m[1]

		if c, ok := bySHA[sha]; ok {
			return c, true
		}

		for candidateSHA, c := range bySHA {
			if strings.HasPrefix(candidateSHA, sha) || strings.HasPrefix(sha, candidateSHA[:min(7, len(candidateSHA))]) {
				return c, true
			}
		}
	}

	if m := revertSubjectQuote.FindStringSubmatch(strings.TrimSpace(revert.Subject)); m != nil {
		quoted := strings.ToLower(strings.TrimSpace(m[1]))
		if c, ok := bySubject[quoted]; ok && c.SHA != revert.SHA {
			return c, true
		}
	}

	return history.Chunk{}, false
}

func buildRevertRecord(revert, original history.Chunk, found bool) Record {
	confidence := revertConfidenceGuessed
	shas := []string{revert.SHA}
	scope := "."
	decisionClass := revert.DecisionClass
	metadata := map[string]any{}

	if found {
		confidence = revertConfidenceFound
		shas = []string{original.SHA, revert.SHA}
		scope = commonPathPrefix(original.FilesChanged)
		decisionClass = dominantDecisionClass(original.DecisionClass, revert.DecisionClass)

		if !original.Date.IsZero() && !revert.Date.IsZero() {
			days := int(revert.Date.Sub(original.Date).Hours() / hoursPerDay)
			metadata["time_to_revert_days"] = days
			metadata["original_sha"] = original.SHA
		}
	}

	summary := fmt.Sprintf("%s was reverted", revert.Subject)
	if found {
		summary = fmt.Sprintf("%q was reverted by %s", original.Subject, revert.SHA)
	}

	metadata["dominant_decision_class"] = string(decisionClass)

	return Record{
		ID:               ID(TypeRevertPair, shas),
		Type:             TypeRevertPair,
		Summary:          summary,
		Severity:         SeverityCaution,
		Confidence:       confidence,
		DirectoryScope:   scope,
		ContributingSHAs: shas,
		Metadata:         metadata,
	}
}

// dominantDecisionClass returns the class both commits share; when they
// differ it returns the first (original commit's) class, unless that one is
// unknown, in which case it returns the second.
func dominantDecisionClass(a, b history.DecisionClass) history.DecisionClass {
	if a == b {
		return a
	}

	if a == history.DecisionClassUnknown {
		return b
	}

	return a
}

func commitSummaries(chunks []history.Chunk) []history.Chunk {
	out := make([]history.Chunk, 0, len(chunks))

	for _, c := range chunks {
		if c.ChunkType == history.ChunkCommitSummary {
			out = append(out, c)
		}
	}

	return out
}

