package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cityprice/internal/util"
)

// TableCount is the number of tables a monthly report carries, in family order.
const TableCount = 6

var ErrTooFewTables = errors.New("report has fewer tables than expected")

// RawTable is a rectangular grid of cell text. Spanned cells are repeated
// into every position they cover and short rows are padded with "".
type RawTable struct {
	Rows [][]string
}

func (t RawTable) NumRows() int { return len(t.Rows) }

func (t RawTable) NumCols() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Cell returns the text at (row, col) or "" when out of range.
func (t RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Tables is the ordered set of tables found in one report page.
type Tables struct {
	Title  string
	Tables []RawTable
}

// Families is the six report tables in their fixed order.
type Families struct {
	CommodityMain  RawTable
	SecondHandMain RawTable
	CommoditySize  [2]RawTable
	SecondHandSize [2]RawTable
}

func (t Tables) Select() (Families, error) {
	if len(t.Tables) < TableCount {
		return Families{}, fmt.Errorf("%w: want %d, got %d", ErrTooFewTables, TableCount, len(t.Tables))
	}
	return Families{
		CommodityMain:  t.Tables[0],
		SecondHandMain: t.Tables[1],
		CommoditySize:  [2]RawTable{t.Tables[2], t.Tables[3]},
		SecondHandSize: [2]RawTable{t.Tables[4], t.Tables[5]},
	}, nil
}

// ParseTables extracts every <table> of an HTML page into a RawTable.
func ParseTables(html string) (Tables, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Tables{}, fmt.Errorf("parse report html: %w", err)
	}

	out := Tables{Title: util.NormalizeSpaces(doc.Find("title").First().Text())}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		// Nested layout tables are flattened by their parent; skip tables
		// that themselves contain tables.
		if table.Find("table").Length() > 0 {
			return
		}
		grid := buildGrid(table)
		if len(grid.Rows) == 0 {
			return
		}
		out.Tables = append(out.Tables, grid)
	})
	return out, nil
}

type pendingSpan struct {
	text      string
	remaining int
}

func buildGrid(table *goquery.Selection) RawTable {
	var rows [][]string
	carry := map[int]*pendingSpan{}

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := []string{}
		col := 0
		fill := func() {
			for {
				span, ok := carry[col]
				if !ok || span.remaining == 0 {
					return
				}
				row = append(row, span.text)
				span.remaining--
				if span.remaining == 0 {
					delete(carry, col)
				}
				col++
			}
		}

		tr.ChildrenFiltered("td,th").Each(func(_ int, cell *goquery.Selection) {
			fill()
			text := util.NormalizeSpaces(cell.Text())
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			for i := 0; i < colspan; i++ {
				row = append(row, text)
				if rowspan > 1 {
					carry[col] = &pendingSpan{text: text, remaining: rowspan - 1}
				}
				col++
			}
		})
		fill()
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}
	return RawTable{Rows: rows}
}

func spanAttr(cell *goquery.Selection, name string) int {
	raw, ok := cell.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	if n > 64 {
		return 64
	}
	return n
}
