package signals

import "github.com/Sumatoshi-tech/cortex-recall/pkg/history"

// Detect runs every detector over chunks and returns their combined
// records. Each detector is independent and pure; a malformed or
// sparse commit set simply yields fewer records, never an error.
func Detect(chunks []history.Chunk) []Record {
	var records []Record

	records = append(records, DetectRevertPairs(chunks)...)
	records = append(records, DetectFixChains(chunks, DefaultFixChainWindowDays)...)
	records = append(records, DetectChurnHotspots(chunks)...)
	records = append(records, DetectBreakingChanges(chunks)...)
	records = append(records, DetectAdoptionCycles(chunks)...)

	return records
}
