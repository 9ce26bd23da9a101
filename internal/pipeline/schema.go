package pipeline

import "cityprice/internal"

// Layout is the column layout of a report table. Reduced omits the
// fixed-base (running annual average) column of every metric group and is
// what January reports publish.
type Layout string

const (
	LayoutStandard Layout = "standard"
	LayoutReduced  Layout = "reduced"
)

// Family is the kind of report table.
type Family string

const (
	// FamilyMain tables pack two cities per row, one metric each.
	FamilyMain Family = "main"
	// FamilySize tables hold one city per row with three floor-area groups.
	FamilySize Family = "size"
)

// Group is a floor-area bracket of the size tables. Main tables use GroupAll.
type Group string

const (
	GroupAll      Group = "all"
	GroupBelow90  Group = "below90"
	Group90To144  Group = "90to144"
	GroupAbove144 Group = "above144"
)

var sizeGroups = []Group{GroupBelow90, Group90To144, GroupAbove144}

type fieldSpec struct {
	col   int
	group Group
	basis internal.Basis
}

type blockSpec struct {
	cityCol int
	fields  []fieldSpec
}

type tableSchema struct {
	blocks []blockSpec
	// minStandardCols is the narrowest row that can carry the standard layout.
	minStandardCols int
}

// schemas describes where every value sits, per family and layout.
var schemas = map[Family]map[Layout]tableSchema{
	FamilyMain: {
		LayoutStandard: {blocks: []blockSpec{mainBlock(0, true), mainBlock(4, true)}, minStandardCols: 7},
		LayoutReduced:  {blocks: []blockSpec{mainBlock(0, false), mainBlock(3, false)}, minStandardCols: 7},
	},
	FamilySize: {
		LayoutStandard: {blocks: []blockSpec{sizeBlock(true)}, minStandardCols: 10},
		LayoutReduced:  {blocks: []blockSpec{sizeBlock(false)}, minStandardCols: 10},
	},
}

func basesFor(withFixed bool) []internal.Basis {
	if withFixed {
		return []internal.Basis{internal.BasisMoM, internal.BasisYoY, internal.BasisFixed}
	}
	return []internal.Basis{internal.BasisMoM, internal.BasisYoY}
}

// mainBlock: city | MoM | YoY [| fixed-base]
func mainBlock(cityCol int, withFixed bool) blockSpec {
	b := blockSpec{cityCol: cityCol}
	for i, basis := range basesFor(withFixed) {
		b.fields = append(b.fields, fieldSpec{col: cityCol + 1 + i, group: GroupAll, basis: basis})
	}
	return b
}

// sizeBlock: city | below90 (MoM YoY [fixed]) | 90-144 (...) | above144 (...)
func sizeBlock(withFixed bool) blockSpec {
	bases := basesFor(withFixed)
	b := blockSpec{cityCol: 0}
	col := 1
	for _, g := range sizeGroups {
		for _, basis := range bases {
			b.fields = append(b.fields, fieldSpec{col: col, group: g, basis: basis})
			col++
		}
	}
	return b
}
