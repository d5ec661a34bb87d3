package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// EngagementMetrics holds the engagement counters scraped from a single
// timeline item. Counters that could not be parsed are zero.
type EngagementMetrics struct {
	LikeCount   int `json:"likeCount"`
	RepostCount int `json:"repostCount"`
	ReplyCount  int `json:"replyCount"`
	ViewCount   int `json:"viewCount"`
}

// countPattern matches a compact count as rendered by the timeline UI:
// grouped digits, an optional decimal, and an optional magnitude suffix
// (K/M plus the CJK 万 and 億 markers).
var countPattern = regexp.MustCompile(`\d+(?:,\d+)*(?:\.\d+)?(?:[KkMm万億])?`)

// ParseCount converts a metric label into an integer count. The visible text
// is preferred; when it is empty the first count-shaped substring of the
// accessible label is used instead (e.g. "1.5万件のいいね" -> "1.5万").
// Unparseable input degrades to 0, never an error.
func ParseCount(rawText, ariaLabel string) int {
	raw := strings.TrimSpace(rawText)
	if raw == "" && ariaLabel != "" {
		raw = countPattern.FindString(ariaLabel)
	}
	if raw == "" {
		return 0
	}

	multiplier := 1.0
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "K") {
		multiplier = 1_000
	}
	if strings.Contains(upper, "M") {
		multiplier = 1_000_000
	}
	if strings.Contains(raw, "万") {
		multiplier = 10_000
	}
	if strings.Contains(raw, "億") {
		multiplier = 100_000_000
	}

	cleaned := strings.NewReplacer(
		",", "",
		"K", "", "k", "",
		"M", "", "m", "",
		"万", "", "億", "",
	).Replace(raw)

	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return int(math.Floor(num * multiplier))
}
