package dataset

import "strings"

type RowDiff struct {
	Index int
	Left  []string
	Right []string
}

type DiffResult struct {
	LeftShape  [2]int
	RightShape [2]int
	Identical  bool
	// Rows are the positions (0-based, header excluded) where the tables differ.
	Rows    []int
	Samples []RowDiff
}

// Diff compares two tables cell by cell at matching positions. Rows present
// in only one table count as differing.
func Diff(a, b Table, maxSamples int) DiffResult {
	res := DiffResult{
		LeftShape:  [2]int{len(a.Rows), len(a.Header)},
		RightShape: [2]int{len(b.Rows), len(b.Header)},
	}
	headerSame := equalRow(a.Header, b.Header)

	n := len(a.Rows)
	if len(b.Rows) > n {
		n = len(b.Rows)
	}
	for i := 0; i < n; i++ {
		left, right := rowAt(a, i), rowAt(b, i)
		if i < len(a.Rows) && i < len(b.Rows) && equalRow(left, right) {
			continue
		}
		res.Rows = append(res.Rows, i)
		if len(res.Samples) < maxSamples {
			res.Samples = append(res.Samples, RowDiff{Index: i, Left: left, Right: right})
		}
	}
	res.Identical = headerSame && len(res.Rows) == 0
	return res
}

func rowAt(t Table, i int) []string {
	if i < len(t.Rows) {
		return t.Rows[i]
	}
	return nil
}

func equalRow(a, b []string) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if cellAt(a, i) != cellAt(b, i) {
			return false
		}
	}
	return true
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
