package pipeline

import (
	"log/slog"

	"cityprice/internal/report"
)

type DetectResult struct {
	Layout   Layout
	Hint     Layout
	Observed Layout
	Columns  int
	Reason   string
}

// Mismatch reports whether the column count disagreed with the hint or forced
// a layout other than the hinted one.
func (d DetectResult) Mismatch() bool { return d.Layout != d.Hint || d.Hint != d.Observed }

// Detector chooses a table layout. The period hint (January is reduced) is
// authoritative; the column count only confirms it, except that a table too
// narrow to hold the standard columns is always read as reduced.
type Detector struct {
	logger *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

func HintLayout(isJanuary bool) Layout {
	if isJanuary {
		return LayoutReduced
	}
	return LayoutStandard
}

func (d *Detector) DetectLayout(table report.RawTable, startRow int, family Family, isJanuary bool) DetectResult {
	res := DetectLayout(table, startRow, family, isJanuary)
	if res.Mismatch() {
		d.logger.Warn("table layout disagrees with period hint",
			"family", family, "hint", res.Hint, "observed", res.Observed,
			"columns", res.Columns, "using", res.Layout, "reason", res.Reason)
	}
	return res
}

func DetectLayout(table report.RawTable, startRow int, family Family, isJanuary bool) DetectResult {
	hint := HintLayout(isJanuary)
	res := DetectResult{Layout: hint, Hint: hint, Observed: hint, Reason: "hint"}

	if startRow < 0 || startRow >= table.NumRows() || table.NumCols() == 0 {
		res.Reason = "table too small, using hint"
		return res
	}

	cols := len(table.Rows[startRow])
	res.Columns = cols
	res.Observed = observedLayout(cols, family, isJanuary)

	if hint == LayoutStandard && cols < schemas[family][LayoutStandard].minStandardCols {
		res.Layout = LayoutReduced
		res.Reason = "too few columns for standard layout"
		return res
	}
	if res.Mismatch() {
		res.Reason = "column count disagrees, using hint"
	}
	return res
}

func observedLayout(cols int, family Family, isJanuary bool) Layout {
	switch family {
	case FamilySize:
		if cols >= 10 {
			return LayoutStandard
		}
	default:
		if cols > 6 || (!isJanuary && cols > 4) {
			return LayoutStandard
		}
	}
	return LayoutReduced
}
