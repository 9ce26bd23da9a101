package pipeline

import (
	"cityprice/internal"
	"cityprice/internal/cities"
	"cityprice/internal/report"
	"cityprice/internal/util"
)

// CityValues holds one city's cells of one table, by size group and basis.
type CityValues map[Group]map[internal.Basis]string

func (v CityValues) Get(g Group, b internal.Basis) string {
	if v == nil || v[g] == nil {
		return ""
	}
	return v[g][b]
}

func (v CityValues) set(g Group, b internal.Basis, value string) {
	if v[g] == nil {
		v[g] = map[internal.Basis]string{}
	}
	v[g][b] = value
}

// Observations maps a normalized city name to its values in one table family.
type Observations map[string]CityValues

// Reshape walks rows [startRow, endRow) of a table and emits one entry per
// city block. Blocks with a blank leading city cell are skipped. Under the
// reduced layout the fixed-base value mirrors the year-over-year value.
func Reshape(table report.RawTable, startRow, endRow int, family Family, layout Layout) Observations {
	out := Observations{}
	schema, ok := schemas[family][layout]
	if !ok {
		return out
	}
	if startRow < 0 {
		startRow = 0
	}
	if endRow > table.NumRows() {
		endRow = table.NumRows()
	}

	for row := startRow; row < endRow; row++ {
		for _, block := range schema.blocks {
			label := table.Cell(row, block.cityCol)
			if util.IsBlankCell(label) {
				continue
			}
			name := cities.Normalize(label)
			if name == "" {
				continue
			}
			values := CityValues{}
			for _, f := range block.fields {
				if v, ok := util.ParseIndexValue(table.Cell(row, f.col)); ok {
					values.set(f.group, f.basis, v)
				}
			}
			if layout == LayoutReduced {
				for g, byBasis := range values {
					if yoy, ok := byBasis[internal.BasisYoY]; ok {
						values.set(g, internal.BasisFixed, yoy)
					}
				}
			}
			out[name] = values
		}
	}
	return out
}

// Union merges mappings left to right; a later entry replaces an earlier one.
func Union(parts ...Observations) Observations {
	out := Observations{}
	for _, part := range parts {
		for name, values := range part {
			out[name] = values
		}
	}
	return out
}
