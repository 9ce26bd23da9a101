package dataset

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"cityprice/internal"
)

func rec(year int, month time.Month, code, city string, basis internal.Basis, house string) internal.CityRecord {
	return internal.CityRecord{
		Period:   internal.NewPeriod(year, month),
		CityCode: code,
		CityName: city,
		Basis:    basis,
		Values:   map[internal.Metric]string{internal.MetricCommodityHouse: house},
	}
}

func sample() []internal.CityRecord {
	return []internal.CityRecord{
		rec(2025, time.May, "310100", "上海市", internal.BasisYoY, "101.0"),
		rec(2025, time.May, "110100", "北京市", internal.BasisMoM, "100.1"),
		rec(2025, time.May, "110100", "北京市", internal.BasisYoY, "98.0"),
		rec(2025, time.June, "110100", "北京市", internal.BasisYoY, "97.5"),
	}
}

func TestWriteCSVQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()[:1]); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], `"DATE","ADCODE","CITY","FixedBase","HouseIDX"`) {
		t.Fatalf("header = %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], `"2025/5/1","310100","上海市","同比","","","101.0"`) {
		t.Fatalf("row = %s", lines[1])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "70cityprice.csv")
	records := sample()
	if err := Save(path, records); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, records) {
		t.Fatalf("loaded = %+v", loaded)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil || len(records) != 0 {
		t.Fatalf("records=%v err=%v", records, err)
	}
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("DATE,CITY\n2025/6/1,北京市\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadSkipsBlankRowsButRejectsBadDates(t *testing.T) {
	dir := t.TempDir()
	header := strings.Join(internal.Columns, ",")
	valid := strings.Join(sample()[0].Row(), ",")
	blank := strings.Repeat(",", len(internal.Columns)-1)

	path := filepath.Join(dir, "blank.csv")
	if err := os.WriteFile(path, []byte(header+"\n"+valid+"\n"+blank+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}

	bad := strings.Replace(valid, sample()[0].Row()[0], "2025-13-01", 1)
	path = filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte(header+"\n"+bad+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed DATE should fail the load")
	}
}

func TestParseCSVStripsBOM(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("\ufeffDATE,ADCODE\n2025/6/1,110100\n"))
	if err != nil {
		t.Fatal(err)
	}
	if table.Index(internal.ColumnDate) != 0 || table.Cell(0, internal.ColumnCode) != "110100" {
		t.Fatalf("table = %+v", table)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	june := internal.NewPeriod(2025, time.June)
	incoming := []internal.CityRecord{
		rec(2025, time.June, "110100", "北京市", internal.BasisYoY, "97.9"),
		rec(2025, time.June, "110100", "北京市", internal.BasisMoM, "99.9"),
	}
	once, replaced := Merge(sample(), incoming, june)
	if replaced != 1 {
		t.Fatalf("replaced = %d", replaced)
	}
	twice, replaced := Merge(once, incoming, june)
	if replaced != 2 {
		t.Fatalf("second replaced = %d", replaced)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\n%+v\n%+v", once, twice)
	}
}

func TestMergeReplacesWholePeriod(t *testing.T) {
	june := internal.NewPeriod(2025, time.June)
	incoming := []internal.CityRecord{rec(2025, time.June, "110100", "北京市", internal.BasisYoY, "96.0")}
	merged, _ := Merge(sample(), incoming, june)

	var juneRows []internal.CityRecord
	for _, r := range merged {
		if r.Period == june {
			juneRows = append(juneRows, r)
		}
	}
	if len(juneRows) != 1 || juneRows[0].Value(internal.MetricCommodityHouse) != "96.0" {
		t.Fatalf("june rows = %+v", juneRows)
	}
}

func TestSortOrder(t *testing.T) {
	records := sample()
	Sort(records)
	var got []string
	for _, r := range records {
		got = append(got, r.CityName+"|"+r.Period.Key()+"|"+string(r.Basis))
	}
	want := []string{
		"上海市|2025-05|同比",
		"北京市|2025-05|同比",
		"北京市|2025-05|环比",
		"北京市|2025-06|同比",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v", got)
	}
}

func TestFilters(t *testing.T) {
	records := sample()
	june := internal.NewPeriod(2025, time.June)

	byMonth, err := FilterByMonth(records, june, june)
	if err != nil || len(byMonth) != 1 {
		t.Fatalf("by month = %v, %v", byMonth, err)
	}
	if _, err := FilterByMonth(records, june, internal.NewPeriod(2025, time.May)); err == nil {
		t.Fatal("start after end should fail")
	}

	byCity := FilterByCities(records, []string{"北京", "广州"})
	if len(byCity) != 3 {
		t.Fatalf("by city = %d", len(byCity))
	}

	if got := ListCities(records); !reflect.DeepEqual(got, []string{"上海市", "北京市"}) {
		t.Fatalf("cities = %v", got)
	}

	cov := DateCoverage(records)
	if cov.Months != 2 || cov.First.Key() != "2025-05" || cov.Last.Key() != "2025-06" || cov.PerYear[2025] != 2 {
		t.Fatalf("coverage = %+v", cov)
	}
}

func TestOutputName(t *testing.T) {
	start := internal.NewPeriod(2025, time.July)
	end := internal.NewPeriod(2025, time.November)
	cases := []struct {
		start, end *internal.Period
		names      []string
		want       string
	}{
		{&start, &end, nil, "70cityprice_202507_202511.csv"},
		{nil, nil, []string{"北京", "上海"}, "70cityprice_北京_上海.csv"},
		{nil, nil, []string{"北京", "上海", "广州", "深圳"}, "70cityprice_北京_上海_广州_等.csv"},
		{&start, &end, []string{"成都"}, "70cityprice_filtered.csv"},
	}
	for _, tc := range cases {
		if got := OutputName(tc.start, tc.end, tc.names, "csv"); got != tc.want {
			t.Errorf("OutputName = %s, want %s", got, tc.want)
		}
	}
	if got := OutputPath("/out", "a.csv"); got != filepath.Join("/out", "a.csv") {
		t.Fatalf("output path = %s", got)
	}
	if got := OutputPath("/out", "sub/a.csv"); got != "sub/a.csv" {
		t.Fatalf("output path with dir = %s", got)
	}
}

func TestXLSXExportAndDiff(t *testing.T) {
	tmp := t.TempDir()
	left := filepath.Join(tmp, "left.xlsx")
	right := filepath.Join(tmp, "right.csv")

	records := sample()
	if err := WriteFile(left, FormatXLSX, records); err != nil {
		t.Fatal(err)
	}
	changed := append([]internal.CityRecord(nil), records...)
	changed[2] = rec(2025, time.May, "110100", "北京市", internal.BasisYoY, "98.5")
	if err := WriteFile(right, FormatCSV, changed); err != nil {
		t.Fatal(err)
	}

	a, err := ReadAnyTable(left)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ReadAnyTable(right)
	if err != nil {
		t.Fatal(err)
	}
	res := Diff(a, b, 5)
	if res.Identical || !reflect.DeepEqual(res.Rows, []int{2}) {
		t.Fatalf("diff = %+v", res)
	}
	if res.LeftShape != [2]int{4, len(internal.Columns)} {
		t.Fatalf("left shape = %v", res.LeftShape)
	}
	if same := Diff(a, a, 5); !same.Identical {
		t.Fatalf("self diff = %+v", same)
	}
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	if err := WriteFile(path, FormatParquet, sample()); err != nil {
		t.Fatal(err)
	}
	rows, err := parquet.ReadFile[parquetRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0].City != "上海市" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].CommodityHouseIDX == nil || *rows[0].CommodityHouseIDX != 101.0 || rows[0].HouseIDX != nil {
		t.Fatalf("metrics = %+v", rows[0])
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatCSV {
		t.Fatalf("default = %s, %v", f, err)
	}
	if _, err := ParseFormat("json"); err == nil {
		t.Fatal("json should be rejected")
	}
}
