package signals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

var breakingSubjectMarker = regexp.MustCompile(`!:\s`)

const breakingChangeBodyToken = "BREAKING CHANGE:"

// DetectBreakingChanges flags commit_summary chunks whose subject carries
// the conventional-commit "!:" marker or whose body contains the
// "BREAKING CHANGE:" token. Always severity warning.
func DetectBreakingChanges(chunks []history.Chunk) []Record {
	records := make([]Record, 0)

	for _, c := range commitSummaries(chunks) {
		reason, ok := breakingReason(c)
		if !ok {
			continue
		}

		records = append(records, Record{
			ID:               ID(TypeBreakingChange, []string{c.SHA}),
			Type:             TypeBreakingChange,
			Summary:          fmt.Sprintf("%s is a breaking change (%s)", c.Subject, reason),
			Severity:         SeverityWarning,
			Confidence:       1.0,
			DirectoryScope:   commonPathPrefix(c.FilesChanged),
			TemporalScope:    TemporalScope{Start: c.Date, End: c.Date},
			ContributingSHAs: []string{c.SHA},
			Metadata: map[string]any{
				"reason": reason,
			},
		})
	}

	return records
}

func breakingReason(c history.Chunk) (string, bool) {
	if breakingSubjectMarker.MatchString(c.Subject) {
		return "subject marker", true
	}

	if strings.Contains(c.Body, breakingChangeBodyToken) {
		return "body token", true
	}

	return "", false
}
