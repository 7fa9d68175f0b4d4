package query

import (
	"regexp"
	"strconv"
	"time"
)

const recentWindowDays = 30

var (
	blamePattern = regexp.MustCompile(`(?i)^who\s+wrote\s+(\S+)(?:\s+line\s+(\d+))?\s*$`)

	pickaxeWhenPattern  = regexp.MustCompile(`(?i)^when\s+was\s+(.+?)\s+(introduced|added|removed)\s*\??$`)
	pickaxeFirstPattern = regexp.MustCompile(`(?i)^first\s+introduced\s+(.+?)\s*$`)

	lastNPattern  = regexp.MustCompile(`(?i)^last\s+(\d+)\s+(day|week|month)s?\b`)
	recentlyWord  = regexp.MustCompile(`(?i)\brecently\b`)
	inYearPattern = regexp.MustCompile(`(?i)\bin\s+(\d{4})\b`)

	whatChangedPattern = regexp.MustCompile(`(?i)^what\s+changed\s+in\s+(\S+)\s*\??$`)
	commitsByPattern   = regexp.MustCompile(`(?i)^commits?\s+by\s+(.+?)\s*$`)
)

const hoursPerDay = 24

// Classify routes a free-text query to a search strategy and its extracted
// parameters. now anchors relative-time expressions ("recently", "last N
// days") so the result is a pure function of (text, now).
func Classify(text string, now time.Time) Classification {
	if m := blamePattern.FindStringSubmatch(text); m != nil {
		params := map[string]any{"file": m[1]}
		if m[2] != "" {
			if line, err := strconv.Atoi(m[2]); err == nil {
				params["line"] = line
			}
		}

		return Classification{Strategy: StrategyBlame, ExtractedParams: params}
	}

	if m := pickaxeWhenPattern.FindStringSubmatch(text); m != nil {
		return Classification{Strategy: StrategyPickaxe, ExtractedParams: map[string]any{"searchString": m[1]}}
	}

	if m := pickaxeFirstPattern.FindStringSubmatch(text); m != nil {
		return Classification{Strategy: StrategyPickaxe, ExtractedParams: map[string]any{"searchString": m[1]}}
	}

	if c, ok := classifyTemporal(text, now); ok {
		return c
	}

	if m := whatChangedPattern.FindStringSubmatch(text); m != nil {
		return Classification{Strategy: StrategyStructuredGit, ExtractedParams: map[string]any{"file": m[1]}}
	}

	if m := commitsByPattern.FindStringSubmatch(text); m != nil {
		return Classification{Strategy: StrategyStructuredGit, ExtractedParams: map[string]any{"author": m[1]}}
	}

	return Classification{Strategy: StrategyVector, ExtractedParams: map[string]any{}}
}

func classifyTemporal(text string, now time.Time) (Classification, bool) {
	if m := lastNPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Classification{}, false
		}

		days := n
		switch m[2] {
		case "week":
			days = n * 7
		case "month":
			days = n * 30
		}

		after := now.Add(-time.Duration(days) * hoursPerDay * time.Hour)

		return Classification{
			Strategy:        StrategyTemporalVector,
			ExtractedParams: map[string]any{"after": after.Format("2006-01-02")},
		}, true
	}

	if recentlyWord.MatchString(text) {
		after := now.Add(-recentWindowDays * hoursPerDay * time.Hour)

		return Classification{
			Strategy:        StrategyTemporalVector,
			ExtractedParams: map[string]any{"after": after.Format("2006-01-02")},
		}, true
	}

	if m := inYearPattern.FindStringSubmatch(text); m != nil {
		after := m[1] + "-01-01"

		return Classification{
			Strategy:        StrategyTemporalVector,
			ExtractedParams: map[string]any{"after": after},
		}, true
	}

	return Classification{}, false
}
