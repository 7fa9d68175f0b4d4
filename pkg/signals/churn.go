package signals

import (
	"fmt"
	"math"
	"sort"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
)

const (
	churnSigmaThreshold = 2.0
	churnMinCount       = 10
	churnTrendFraction  = 0.6
)

// DetectChurnHotspots counts file_diff chunks per file, computes the mean
// and population stdev of those counts across all touched files, and emits
// a churn_hotspot for every file at least churnSigmaThreshold standard
// deviations above the mean with at least churnMinCount changes.
func DetectChurnHotspots(chunks []history.Chunk) []Record {
	perFile := fileDiffsByPath(chunks)
	if len(perFile) == 0 {
		return nil
	}

	counts := make([]float64, 0, len(perFile))
	for _, diffs := range perFile {
		counts = append(counts, float64(len(diffs)))
	}

	mean, stdev := meanStdev(counts)

	paths := make([]string, 0, len(perFile))
	for p := range perFile {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	records := make([]Record, 0)

	for _, path := range paths {
		diffs := perFile[path]
		count := len(diffs)

		if count < churnMinCount {
			continue
		}

		sigma := 0.0
		if stdev > 0 {
			sigma = (float64(count) - mean) / stdev
		}

		if sigma < churnSigmaThreshold {
			continue
		}

		records = append(records, buildChurnRecord(path, diffs, count, sigma))
	}

	return records
}

func buildChurnRecord(path string, diffs []history.Chunk, count int, sigma float64) Record {
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Date.Before(diffs[j].Date) })

	shas := make([]string, 0, len(diffs))
	for _, d := range diffs {
		shas = append(shas, d.SHA)
	}

	trend := "stable"
	if isIncreasing(diffs) {
		trend = "increasing"
	}

	var start, end history.Chunk
	if len(diffs) > 0 {
		start, end = diffs[0], diffs[len(diffs)-1]
	}

	return Record{
		ID:               ID(TypeChurnHotspot, shas),
		Type:             TypeChurnHotspot,
		Summary:          fmt.Sprintf("%s changed %d times (%.1fσ above mean)", path, count, sigma),
		Severity:         SeverityWarning,
		Confidence:       1.0,
		DirectoryScope:   commonPathPrefix([]string{path}),
		TemporalScope:    TemporalScope{Start: start.Date, End: end.Date},
		ContributingSHAs: shas,
		Metadata: map[string]any{
			"path":  path,
			"count": count,
			"sigma": sigma,
			"trend": trend,
		},
	}
}

// isIncreasing reports whether more than churnTrendFraction of diffs land
// after the midpoint of the file's elapsed change history. diffs must
// already be sorted chronologically. Splitting by elapsed time, rather than
// by list index, is what lets a genuinely back-loaded history (many commits
// bunched near the end of a long-lived file) register as increasing even
// when most of the file's changes happened early on.
func isIncreasing(diffs []history.Chunk) bool {
	if len(diffs) == 0 {
		return false
	}

	start := diffs[0].Date
	end := diffs[len(diffs)-1].Date

	if !end.After(start) {
		return false
	}

	midpoint := start.Add(end.Sub(start) / 2)

	afterMid := 0

	for _, d := range diffs {
		if d.Date.After(midpoint) {
			afterMid++
		}
	}

	return float64(afterMid)/float64(len(diffs)) > churnTrendFraction
}

func fileDiffsByPath(chunks []history.Chunk) map[string][]history.Chunk {
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

func meanStdev(values []float64) (mean, stdev float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	mean = sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}

	stdev = math.Sqrt(sqDiff / float64(len(values)))

	return mean, stdev
}
