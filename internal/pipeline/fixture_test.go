package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"cityprice/internal/cities"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDirectory(t *testing.T) *cities.Directory {
	t.Helper()
	dir, err := cities.DefaultDirectory()
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	return dir
}

// reportFixture renders a six-table report page for every directory city.
type reportFixture struct {
	title   string
	reduced bool
	// mom overrides the new-commodity month-over-month cell per city stem.
	mom map[string]string
	// narrowSecondHand drops the fixed-base columns from the second-hand main table only.
	narrowSecondHand bool
}

func (f reportFixture) html(dir *cities.Directory) string {
	names := make([]string, 0, dir.Len())
	for _, c := range dir.Cities() {
		names = append(names, c.Name)
	}
	half := len(names) / 2

	var b strings.Builder
	b.WriteString("<html><head><title>" + f.title + "</title></head><body>")
	b.WriteString(f.mainTable(names, true))
	b.WriteString(f.mainTable(names, false))
	b.WriteString(f.sizeTable(names[:half]))
	b.WriteString(f.sizeTable(names[half:]))
	b.WriteString(f.sizeTable(names[:half]))
	b.WriteString(f.sizeTable(names[half:]))
	b.WriteString("</body></html>")
	return b.String()
}

func (f reportFixture) values(seed int) []string {
	return fixtureValues(seed, f.reduced)
}

func (f reportFixture) baseHeads() []string {
	return fixtureHeads(f.reduced)
}

func fixtureValues(seed int, reduced bool) []string {
	mom := fmt.Sprintf("%.1f", 99.5+float64(seed%10)/10)
	yoy := fmt.Sprintf("%.1f", 95.0+float64(seed%7)/10)
	fixed := fmt.Sprintf("%.1f", 97.0+float64(seed%5)/10)
	if reduced {
		return []string{mom, yoy}
	}
	return []string{mom, yoy, fixed}
}

func fixtureHeads(reduced bool) []string {
	if reduced {
		return []string{"环比", "同比"}
	}
	return []string{"环比", "同比", "定基"}
}

func (f reportFixture) mainTable(names []string, commodity bool) string {
	reduced := f.reduced || (!commodity && f.narrowSecondHand)
	var b strings.Builder
	b.WriteString("<table>")
	heads := fixtureHeads(reduced)
	fmt.Fprintf(&b, `<tr><td colspan="%d">70个大中城市住宅销售价格指数</td></tr>`, 2*(len(heads)+1))
	b.WriteString("<tr>")
	for block := 0; block < 2; block++ {
		b.WriteString("<td>城市</td>")
		for _, h := range heads {
			b.WriteString("<td>" + h + "</td>")
		}
	}
	b.WriteString("</tr>")
	for i := 0; i+1 < len(names); i += 2 {
		b.WriteString("<tr>")
		for j, name := range names[i : i+2] {
			vals := fixtureValues(i+j, reduced)
			if commodity {
				if v, ok := f.mom[name]; ok {
					vals[0] = v
				}
			}
			label := name
			if (i+j)%3 == 0 {
				label = strings.Join(strings.Split(name, ""), " ")
			}
			b.WriteString("<td>" + label + "</td>")
			for _, v := range vals {
				b.WriteString("<td>" + v + "</td>")
			}
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

func (f reportFixture) sizeTable(names []string) string {
	var b strings.Builder
	b.WriteString("<table>")
	heads := f.baseHeads()
	n := len(heads)
	fmt.Fprintf(&b, `<tr><td colspan="%d">按面积分类</td></tr>`, 1+3*n)
	fmt.Fprintf(&b, `<tr><td rowspan="2">城市</td><td colspan="%d">90m2及以下</td><td colspan="%d">90-144m2</td><td colspan="%d">144m2以上</td></tr>`, n, n, n)
	b.WriteString("<tr>")
	for g := 0; g < 3; g++ {
		for _, h := range heads {
			b.WriteString("<td>" + h + "</td>")
		}
	}
	b.WriteString("</tr>")
	for i, name := range names {
		b.WriteString("<tr><td>" + name + "</td>")
		for g := 0; g < 3; g++ {
			for _, v := range f.values(i + g) {
				b.WriteString("<td>" + v + "</td>")
			}
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
