package cities

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"cityprice/internal/util"
)

const citySuffix = "市"

// Normalize reduces a report label to the bare city stem: full-width forms are
// folded, every whitespace rune (including U+3000) is removed and one trailing
// 市 is stripped. Blank and NaN cells normalize to "".
func Normalize(raw string) string {
	if util.IsBlankCell(raw) {
		return ""
	}
	s := width.Fold.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u200b' || r == '\ufeff' {
			return -1
		}
		return r
	}, s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return strings.TrimSuffix(s, citySuffix)
}

// Standardize renders a label in the dataset's canonical display form.
func Standardize(raw string) string {
	stem := Normalize(raw)
	if stem == "" {
		return ""
	}
	return stem + citySuffix
}
