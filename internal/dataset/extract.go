package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"cityprice/internal"
	"cityprice/internal/cities"
)

// FilterByMonth keeps records whose period lies in [start, end].
func FilterByMonth(records []internal.CityRecord, start, end internal.Period) ([]internal.CityRecord, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("start month %s is later than end month %s", start, end)
	}
	var out []internal.CityRecord
	for _, r := range records {
		if !r.Period.Before(start) && !end.Before(r.Period) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FilterByCities keeps records of the named cities. Names are compared in
// standardized form, so 北京 selects 北京市.
func FilterByCities(records []internal.CityRecord, names []string) []internal.CityRecord {
	want := map[string]struct{}{}
	for _, n := range names {
		if s := cities.Standardize(n); s != "" {
			want[strings.ToLower(s)] = struct{}{}
		}
	}
	var out []internal.CityRecord
	for _, r := range records {
		if _, ok := want[strings.ToLower(cities.Standardize(r.CityName))]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ListCities returns the distinct city names, sorted.
func ListCities(records []internal.CityRecord) []string {
	seen := map[string]struct{}{}
	for _, r := range records {
		seen[r.CityName] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type Coverage struct {
	First  internal.Period
	Last   internal.Period
	Months int
	// PerYear counts distinct months per calendar year.
	PerYear map[int]int
}

func (c Coverage) Years() []int {
	years := make([]int, 0, len(c.PerYear))
	for y := range c.PerYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func DateCoverage(records []internal.CityRecord) Coverage {
	periods := Periods(records)
	cov := Coverage{Months: len(periods), PerYear: map[int]int{}}
	if len(periods) == 0 {
		return cov
	}
	cov.First = periods[0]
	cov.Last = periods[len(periods)-1]
	for _, p := range periods {
		cov.PerYear[p.Year]++
	}
	return cov
}

// OutputName picks the default file name of an extraction.
func OutputName(start, end *internal.Period, names []string, ext string) string {
	if ext == "" {
		ext = "csv"
	}
	switch {
	case start != nil && end != nil && len(names) == 0:
		return fmt.Sprintf("70cityprice_%04d%02d_%04d%02d.%s", start.Year, int(start.Month), end.Year, int(end.Month), ext)
	case len(names) > 0 && start == nil && end == nil:
		shown := names
		if len(shown) > 3 {
			shown = shown[:3]
		}
		joined := strings.Join(shown, "_")
		if len(names) > 3 {
			joined += "_等"
		}
		return "70cityprice_" + joined + "." + ext
	default:
		return "70cityprice_filtered." + ext
	}
}

// OutputPath places bare file names under dir; names with a directory part
// are used as given.
func OutputPath(dir, name string) string {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(dir, name)
}
