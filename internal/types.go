package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Basis is the comparison type of an index value. The values are the labels
// stored in the FixedBase column of the canonical dataset.
type Basis string

const (
	BasisYoY   Basis = "同比"
	BasisMoM   Basis = "环比"
	BasisFixed Basis = "定基比"
)

// Bases lists the bases in the order records are emitted for a city.
var Bases = []Basis{BasisYoY, BasisMoM, BasisFixed}

func (b Basis) Valid() bool {
	switch b {
	case BasisYoY, BasisMoM, BasisFixed:
		return true
	default:
		return false
	}
}

type Metric string

const (
	MetricHouse                 Metric = "HouseIDX"
	MetricResident              Metric = "ResidentIDX"
	MetricCommodityHouse        Metric = "CommodityHouseIDX"
	MetricSecondHand            Metric = "SecondHandIDX"
	MetricResidentBelow90       Metric = "ResidentBelow90IDX"
	MetricCommonResidentBelow90 Metric = "CommonResidentBelow90IDX"
	MetricCommodityBelow90      Metric = "CommodityBelow90IDX"
	MetricCommodity144          Metric = "Commodity144IDX"
	MetricCommodityAbove144     Metric = "CommodityAbove144IDX"
	MetricSecondHandBelow90     Metric = "SecondHandBelow90IDX"
	MetricSecondHand144         Metric = "SecondHand144IDX"
	MetricSecondHandAbove144    Metric = "SecondHandAbove144IDX"
)

// Metrics is the column order of the numeric part of the canonical dataset.
var Metrics = []Metric{
	MetricHouse, MetricResident, MetricCommodityHouse, MetricSecondHand,
	MetricResidentBelow90, MetricCommonResidentBelow90, MetricCommodityBelow90,
	MetricCommodity144, MetricCommodityAbove144, MetricSecondHandBelow90,
	MetricSecondHand144, MetricSecondHandAbove144,
}

// IngestedMetrics are the eight metrics a monthly report populates.
var IngestedMetrics = []Metric{
	MetricCommodityHouse, MetricSecondHand,
	MetricCommodityBelow90, MetricCommodity144, MetricCommodityAbove144,
	MetricSecondHandBelow90, MetricSecondHand144, MetricSecondHandAbove144,
}

const (
	ColumnDate      = "DATE"
	ColumnCode      = "ADCODE"
	ColumnCity      = "CITY"
	ColumnFixedBase = "FixedBase"
)

// Columns is the fixed header of the canonical dataset file.
var Columns = func() []string {
	out := []string{ColumnDate, ColumnCode, ColumnCity, ColumnFixedBase}
	for _, m := range Metrics {
		out = append(out, string(m))
	}
	return out
}()

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// ParseDate parses a DATE cell (YYYY/M/D, zero padding optional) into its month.
func ParseDate(value string) (Period, error) {
	t, err := time.Parse("2006/1/2", strings.TrimSpace(value))
	if err != nil {
		return Period{}, fmt.Errorf("invalid DATE %q: %w", value, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// DateString renders the first-of-month DATE cell, e.g. 2025/6/1.
func (p Period) DateString() string {
	return strconv.Itoa(p.Year) + "/" + strconv.Itoa(int(p.Month)) + "/1"
}

// Key renders the period as YYYY-MM.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) String() string { return p.Key() }

func (p Period) Index() int { return p.Year*12 + int(p.Month) - 1 }

func (p Period) AddMonths(n int) Period {
	idx := p.Index() + n
	return Period{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

func (p Period) Before(o Period) bool { return p.Index() < o.Index() }

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

func (p Period) IsJanuary() bool { return p.Month == time.January }

// CityRecord is one city's values for one basis in one period. Values holds
// the cell text per metric; a missing or empty entry means absent.
type CityRecord struct {
	Period   Period
	CityCode string
	CityName string
	Basis    Basis
	Values   map[Metric]string
}

func (r CityRecord) Value(m Metric) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[m]
}

func (r CityRecord) HasData() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Row renders the record in Columns order.
func (r CityRecord) Row() []string {
	row := []string{r.Period.DateString(), r.CityCode, r.CityName, string(r.Basis)}
	for _, m := range Metrics {
		row = append(row, r.Value(m))
	}
	return row
}

type IngestRun struct {
	ID        string
	Source    string
	Period    string
	Layout    string
	Records   int
	Replaced  int
	Status    string
	CreatedAt string
}
