package util

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	reThousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	placeholderCells = map[string]struct{}{"-": {}, "--": {}, "—": {}, "…": {}, "/": {}, "nan": {}, "null": {}}
)

// ParseIndexValue cleans a report cell holding an index value. It returns the
// cleaned text and true when the cell is numeric; blank and placeholder cells
// return false.
func ParseIndexValue(cell string) (string, bool) {
	s := width.Narrow.String(cell)
	s = strings.Join(strings.Fields(s), "")
	if IsBlankCell(s) {
		return "", false
	}
	if _, ok := placeholderCells[strings.ToLower(s)]; ok {
		return "", false
	}
	s = normalizeNumericToken(s)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "", false
	}
	return s, true
}

// IsNumeric reports whether a stored dataset cell parses as a number.
func IsNumeric(value string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return err == nil
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reThousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
