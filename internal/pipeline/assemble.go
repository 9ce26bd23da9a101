package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cityprice/internal"
	"cityprice/internal/cities"
	"cityprice/internal/util"
)

var ErrFixedBaseMixed = errors.New("fixed-base values present for only part of the period")

// Sources are the four reshaped table families of one report.
type Sources struct {
	CommodityMain  Observations
	SecondHandMain Observations
	CommoditySize  Observations
	SecondHandSize Observations
}

type metricBinding struct {
	metric internal.Metric
	group  Group
	source func(Sources) Observations
}

func commodityMain(s Sources) Observations  { return s.CommodityMain }
func secondHandMain(s Sources) Observations { return s.SecondHandMain }
func commoditySize(s Sources) Observations  { return s.CommoditySize }
func secondHandSize(s Sources) Observations { return s.SecondHandSize }

var metricBindings = []metricBinding{
	{internal.MetricCommodityHouse, GroupAll, commodityMain},
	{internal.MetricSecondHand, GroupAll, secondHandMain},
	{internal.MetricCommodityBelow90, GroupBelow90, commoditySize},
	{internal.MetricCommodity144, Group90To144, commoditySize},
	{internal.MetricCommodityAbove144, GroupAbove144, commoditySize},
	{internal.MetricSecondHandBelow90, GroupBelow90, secondHandSize},
	{internal.MetricSecondHand144, Group90To144, secondHandSize},
	{internal.MetricSecondHandAbove144, GroupAbove144, secondHandSize},
}

// Assembler turns reshaped tables into CityRecords.
type Assembler struct {
	resolver *cities.Resolver
}

func NewAssembler(resolver *cities.Resolver) *Assembler {
	return &Assembler{resolver: resolver}
}

// Assemble builds one record per (city, basis) that has at least one value.
// Cities the resolver cannot place are dropped. Labels that resolve to the
// same code are folded together, the first non-empty value winning.
func (a *Assembler) Assemble(period internal.Period, src Sources) []internal.CityRecord {
	names := map[string]struct{}{}
	for _, obs := range []Observations{src.CommodityMain, src.SecondHandMain, src.CommoditySize, src.SecondHandSize} {
		for name := range obs {
			names[name] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	type key struct {
		code  string
		basis internal.Basis
	}
	byKey := map[key]*internal.CityRecord{}
	var keys []key

	for _, name := range ordered {
		res, err := a.resolver.Resolve(name)
		if err != nil {
			continue
		}
		for _, basis := range internal.Bases {
			k := key{code: res.City.Code, basis: basis}
			rec, ok := byKey[k]
			if !ok {
				rec = &internal.CityRecord{
					Period:   period,
					CityCode: res.City.Code,
					CityName: res.City.DisplayName(),
					Basis:    basis,
					Values:   map[internal.Metric]string{},
				}
				byKey[k] = rec
				keys = append(keys, k)
			}
			for _, b := range metricBindings {
				if rec.Values[b.metric] != "" {
					continue
				}
				if v := b.source(src)[name].Get(b.group, basis); v != "" {
					rec.Values[b.metric] = v
				}
			}
		}
	}

	out := make([]internal.CityRecord, 0, len(keys))
	for _, k := range keys {
		if rec := byKey[k]; rec.HasData() {
			out = append(out, *rec)
		}
	}
	return out
}

// CheckFixedBaseUniform requires the fixed-base basis to be present for every
// city of the period or for none.
func CheckFixedBaseUniform(records []internal.CityRecord) error {
	all := map[string]struct{}{}
	withFixed := map[string]struct{}{}
	for _, r := range records {
		all[r.CityCode] = struct{}{}
		if r.Basis == internal.BasisFixed {
			withFixed[r.CityCode] = struct{}{}
		}
	}
	if len(withFixed) == 0 || len(withFixed) == len(all) {
		return nil
	}
	var missing []string
	for code := range all {
		if _, ok := withFixed[code]; !ok {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %d of %d cities, missing %s", ErrFixedBaseMixed,
		len(withFixed), len(all), strings.TrimSpace(util.LimitJoin(missing, 8)))
}
