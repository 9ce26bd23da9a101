package dataset

import (
	"sort"

	"cityprice/internal"
)

// Merge replaces every existing row of period with incoming and returns the
// sorted result together with the number of rows removed. Incoming records of
// other periods are ignored.
func Merge(existing, incoming []internal.CityRecord, period internal.Period) ([]internal.CityRecord, int) {
	out := make([]internal.CityRecord, 0, len(existing)+len(incoming))
	replaced := 0
	for _, r := range existing {
		if r.Period == period {
			replaced++
			continue
		}
		out = append(out, r)
	}
	for _, r := range incoming {
		if r.Period == period {
			out = append(out, r)
		}
	}
	Sort(out)
	return out, replaced
}

// Sort orders records by city name, period and basis label.
func Sort(records []internal.CityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.CityName != b.CityName {
			return a.CityName < b.CityName
		}
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		return a.Basis < b.Basis
	})
}

// Periods returns the distinct periods of records in chronological order.
func Periods(records []internal.CityRecord) []internal.Period {
	seen := map[internal.Period]struct{}{}
	var out []internal.Period
	for _, r := range records {
		if _, ok := seen[r.Period]; ok {
			continue
		}
		seen[r.Period] = struct{}{}
		out = append(out, r.Period)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
