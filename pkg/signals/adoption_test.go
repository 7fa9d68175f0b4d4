package signals_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/history"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/signals"
)

func diffWithStats(sha, path string, date time.Time, additions, deletions int) history.Chunk {
	c := fileDiff(sha, path, date)
	c.Additions = additions
	c.Deletions = deletions

	return c
}

func TestDetectAdoptionCycles_FlagsRepeatedIntroduceRemove(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	chunks := []history.Chunk{
		diffWithStats("c1", "vendor/lib/dep.go", base, 40, 0),
		diffWithStats("c2", "vendor/lib/dep.go", base.AddDate(0, 0, 10), 0, 40),
		diffWithStats("c3", "vendor/lib/dep.go", base.AddDate(0, 1, 0), 35, 0),
		diffWithStats("c4", "vendor/lib/dep.go", base.AddDate(0, 1, 10), 0, 35),
	}

	records := signals.DetectAdoptionCycles(chunks)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Metadata["cycle_count"])
}

func TestDetectAdoptionCycles_SingleCycleNotFlagged(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	chunks := []history.Chunk{
		diffWithStats("c1", "pkg/a/a.go", base, 40, 0),
		diffWithStats("c2", "pkg/a/a.go", base.AddDate(0, 0, 10), 0, 40),
	}

	assert.Empty(t, signals.DetectAdoptionCycles(chunks))
}
