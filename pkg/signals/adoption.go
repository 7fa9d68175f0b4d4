package signals

import (
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

const adoptionMinCycles = 2

type fileEvent int

const (
	eventOther fileEvent = iota
	eventIntroduced
	eventRemoved
)

// DetectAdoptionCycles flags files that are introduced (added with no
// accompanying deletions) and later removed (deleted with no accompanying
// additions) at least adoptionMinCycles times across distinct commits — a
// proxy for a dependency or symbol repeatedly adopted then dropped, since
// file_diff chunks carry no explicit added/removed status.
func DetectAdoptionCycles(chunks []history.Chunk) []Record {
	perFile := fileDiffsByPath(chunks)

	paths := make([]string, 0, len(perFile))
	for p := range perFile {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	records := make([]Record, 0)

	for _, path := range paths {
		diffs := perFile[path]
		sort.Slice(diffs, func(i, j int) bool { return diffs[i].Date.Before(diffs[j].Date) })

		cycles, shas := countAdoptionCycles(diffs)
		if cycles < adoptionMinCycles {
			continue
		}

		records = append(records, Record{
			ID:               ID(TypeAdoptionCycle, shas),
			Type:             TypeAdoptionCycle,
			Summary:          fmt.Sprintf("%s was introduced and removed %d times", path, cycles),
			Severity:         SeverityCaution,
			Confidence:       0.5,
			DirectoryScope:   commonPathPrefix([]string{path}),
			ContributingSHAs: shas,
			Metadata: map[string]any{
				"path":        path,
				"cycle_count": cycles,
			},
		})
	}

	return records
}

// countAdoptionCycles walks chronological file_diff events for one path and
// counts introduce→remove transitions, returning the shas that form them.
func countAdoptionCycles(diffs []history.Chunk) (int, []string) {
	cycles := 0
	shas := make([]string, 0)

	var pendingIntroduce *history.Chunk

	for i := range diffs {
		switch classifyEvent(diffs[i]) {
		case eventIntroduced:
			introduced := diffs[i]
			pendingIntroduce = &introduced
		case eventRemoved:
			if pendingIntroduce != nil {
				cycles++
				shas = append(shas, pendingIntroduce.SHA, diffs[i].SHA)
				pendingIntroduce = nil
			}
		case eventOther:
		}
	}

	return cycles, shas
}

func classifyEvent(c history.Chunk) fileEvent {
	switch {
	case c.Additions > 0 && c.Deletions == 0:
		return eventIntroduced
	case c.Deletions > 0 && c.Additions == 0:
		return eventRemoved
	default:
		return eventOther
	}
}
