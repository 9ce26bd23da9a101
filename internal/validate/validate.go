package validate

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"cityprice/internal"
	"cityprice/internal/cities"
	"cityprice/internal/dataset"
	"cityprice/internal/util"
)

type Check string

const (
	CheckColumns       Check = "columns"
	CheckDates         Check = "dates"
	CheckContinuity    Check = "continuity"
	CheckBasis         Check = "basis"
	CheckCityNames     Check = "city_names"
	CheckDuplicates    Check = "duplicates"
	CheckMonthCoverage Check = "month_coverage"
	CheckRequiredBases Check = "required_bases"
	CheckFixedBase     Check = "fixed_base_uniform"
	CheckNumeric       Check = "numeric"
)

type Issue struct {
	Check   Check
	Message string
}

func (i Issue) String() string { return i.Message }

type Report struct {
	Rows     int
	Issues   []Issue
	Warnings []string
}

func (r Report) OK() bool { return len(r.Issues) == 0 }

// Has reports whether any issue came from the given check.
func (r Report) Has(c Check) bool {
	for _, i := range r.Issues {
		if i.Check == c {
			return true
		}
	}
	return false
}

type Options struct {
	// MaxDetails caps the samples listed per issue; 0 means 8.
	MaxDetails int
}

type row struct {
	date    string
	period  internal.Period
	dateOK  bool
	rawCity string
	stdCity string
	basis   string
}

type monthCity struct {
	month internal.Period
	city  string
}

// Validate runs the dataset checks in order. It never fails: every problem
// becomes an Issue. Missing columns stop the remaining checks.
func Validate(t dataset.Table, dir *cities.Directory, opts Options) Report {
	limit := opts.MaxDetails
	if limit <= 0 {
		limit = 8
	}
	rep := Report{Rows: len(t.Rows)}
	add := func(c Check, format string, args ...any) {
		rep.Issues = append(rep.Issues, Issue{Check: c, Message: fmt.Sprintf(format, args...)})
	}

	missing := t.MissingColumns()
	if len(missing) > 0 {
		add(CheckColumns, "missing required columns: %s", strings.Join(missing, ", "))
	}
	if extra := t.ExtraColumns(); len(extra) > 0 {
		rep.Warnings = append(rep.Warnings, "extra columns: "+strings.Join(extra, ", "))
	}
	if len(missing) > 0 {
		return rep
	}

	rows := make([]row, len(t.Rows))
	for i := range t.Rows {
		r := row{
			date:    strings.TrimSpace(t.Cell(i, internal.ColumnDate)),
			rawCity: strings.TrimSpace(t.Cell(i, internal.ColumnCity)),
			basis:   strings.TrimSpace(t.Cell(i, internal.ColumnFixedBase)),
		}
		if p, err := internal.ParseDate(r.date); err == nil {
			r.period, r.dateOK = p, true
		}
		r.stdCity = cities.Standardize(r.rawCity)
		rows[i] = r
	}

	// dates
	var badDates []string
	for _, r := range rows {
		if !r.dateOK && !util.IsBlankCell(r.date) {
			badDates = append(badDates, r.date)
		}
	}
	if badDates = uniqueSorted(badDates); len(badDates) > 0 {
		add(CheckDates, "unparseable DATE values: %s", util.LimitJoin(badDates, limit))
	}

	// continuity
	var periods []internal.Period
	seenPeriod := map[internal.Period]struct{}{}
	for _, r := range rows {
		if _, ok := seenPeriod[r.period]; r.dateOK && !ok {
			seenPeriod[r.period] = struct{}{}
			periods = append(periods, r.period)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	if len(periods) == 0 {
		add(CheckContinuity, "no valid months found")
	} else {
		var gaps []string
		for i := 1; i < len(periods); i++ {
			if periods[i].Index()-periods[i-1].Index() != 1 {
				gaps = append(gaps, periods[i-1].Key()+"->"+periods[i].Key())
			}
		}
		if len(gaps) > 0 {
			add(CheckContinuity, "months not consecutive: %s", util.LimitJoin(gaps, limit))
		}
	}

	// basis
	var badBases []string
	for _, r := range rows {
		if !util.IsBlankCell(r.basis) && !internal.Basis(r.basis).Valid() {
			badBases = append(badBases, r.basis)
		}
	}
	if badBases = uniqueSorted(badBases); len(badBases) > 0 {
		add(CheckBasis, "invalid FixedBase values: %s", strings.Join(badBases, ", "))
	}

	// city names
	expected := dir.DisplayNames()
	changed := 0
	var pairs []string
	seenPair := map[string]struct{}{}
	citySet := map[string]struct{}{}
	for _, r := range rows {
		if r.stdCity != r.rawCity {
			changed++
			pair := r.rawCity + "->" + r.stdCity
			if _, ok := seenPair[pair]; !ok {
				seenPair[pair] = struct{}{}
				pairs = append(pairs, pair)
			}
		}
		if r.stdCity != "" {
			citySet[r.stdCity] = struct{}{}
		}
	}
	if changed > 0 {
		add(CheckCityNames, "%d CITY values are not in standard form: %s", changed, util.LimitJoin(pairs, limit))
	}
	var unknown []string
	for c := range citySet {
		if _, ok := expected[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		add(CheckCityNames, "cities outside the %d-city directory: %s", dir.Len(), util.LimitJoin(unknown, limit))
	}
	if len(citySet) != dir.Len() {
		add(CheckCityNames, "standardized city count is %d, expected %d", len(citySet), dir.Len())
	}

	// duplicates
	counts := map[string]int{}
	var keys []string
	for _, r := range rows {
		month := r.date
		if r.dateOK {
			month = r.period.Key()
		}
		key := month + "|" + r.stdCity + "|" + r.basis
		if counts[key] == 0 {
			keys = append(keys, key)
		}
		counts[key]++
	}
	var dups []string
	for _, k := range keys {
		if counts[k] > 1 {
			dups = append(dups, k)
		}
	}
	if len(dups) > 0 {
		add(CheckDuplicates, "duplicate (DATE, CITY, FixedBase) keys: %s", util.LimitJoin(dups, limit))
	}

	// month coverage, required bases and fixed-base uniformity share one grouping.
	bases := map[monthCity]map[string]struct{}{}
	var groups []monthCity
	for _, r := range rows {
		if !r.dateOK || r.stdCity == "" {
			continue
		}
		k := monthCity{month: r.period, city: r.stdCity}
		if bases[k] == nil {
			bases[k] = map[string]struct{}{}
			groups = append(groups, k)
		}
		if !util.IsBlankCell(r.basis) {
			bases[k][r.basis] = struct{}{}
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].month != groups[j].month {
			return groups[i].month.Before(groups[j].month)
		}
		return groups[i].city < groups[j].city
	})

	perMonth := map[internal.Period]int{}
	perMonthFixed := map[internal.Period]int{}
	var missingBases []string
	for _, g := range groups {
		perMonth[g.month]++
		set := bases[g]
		if _, ok := set[string(internal.BasisFixed)]; ok {
			perMonthFixed[g.month]++
		}
		_, yoy := set[string(internal.BasisYoY)]
		_, mom := set[string(internal.BasisMoM)]
		if !yoy || !mom {
			missingBases = append(missingBases, g.month.Key()+"|"+g.city)
		}
	}

	var badMonths, mixed []string
	for _, p := range periods {
		n, ok := perMonth[p]
		if !ok {
			continue
		}
		if n != dir.Len() {
			badMonths = append(badMonths, fmt.Sprintf("%s:%d", p.Key(), n))
		}
		if f := perMonthFixed[p]; f > 0 && f < n {
			mixed = append(mixed, fmt.Sprintf("%s:%.2f%%", p.Key(), float64(f)*100/float64(n)))
		}
	}
	if len(badMonths) > 0 {
		add(CheckMonthCoverage, "months not covering %d cities: %s", dir.Len(), util.LimitJoin(badMonths, limit))
	}
	if len(missingBases) > 0 {
		add(CheckRequiredBases, "(month, city) pairs missing %s or %s: %s",
			internal.BasisYoY, internal.BasisMoM, util.LimitJoin(missingBases, limit))
	}
	if len(mixed) > 0 {
		add(CheckFixedBase, "%s published for only part of the month: %s", internal.BasisFixed, util.LimitJoin(mixed, limit))
	}

	// numeric
	for _, m := range internal.Metrics {
		bad := 0
		var values []string
		for i := range t.Rows {
			cell := strings.TrimSpace(t.Cell(i, string(m)))
			if cell == "" || util.IsNumeric(cell) {
				continue
			}
			bad++
			values = append(values, cell)
		}
		if bad > 0 {
			add(CheckNumeric, "column %s has %d non-numeric values: %s", m, bad, util.LimitJoin(uniqueSorted(values), limit))
		}
	}

	return rep
}

// Print renders the report the way the validation command shows it.
func Print(w io.Writer, rep Report) {
	fmt.Fprintln(w, "================ validation ================")
	if rep.OK() {
		fmt.Fprintln(w, "passed: no blocking issues")
	} else {
		fmt.Fprintf(w, "failed: %d issue(s)\n", len(rep.Issues))
		for i, issue := range rep.Issues {
			fmt.Fprintf(w, "%d. %s\n", i+1, issue.Message)
		}
	}
	if len(rep.Warnings) > 0 {
		fmt.Fprintf(w, "\nwarnings: %d\n", len(rep.Warnings))
		for i, text := range rep.Warnings {
			fmt.Fprintf(w, "W%d. %s\n", i+1, text)
		}
	}
}

func uniqueSorted(items []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
