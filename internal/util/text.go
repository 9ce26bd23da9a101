package util

import (
	"regexp"
	"strconv"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// IsBlankCell treats empty cells and the textual NaN marker as blank.
func IsBlankCell(cell string) bool {
	s := strings.TrimSpace(cell)
	return s == "" || strings.EqualFold(s, "nan")
}

// LimitJoin joins at most limit items and notes the total when truncated.
func LimitJoin(items []string, limit int) string {
	if len(items) == 0 {
		return ""
	}
	if limit <= 0 || len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + " ... 共" + strconv.Itoa(len(items)) + "项"
}
