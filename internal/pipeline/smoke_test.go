package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cityprice/internal"
	"cityprice/internal/cities"
	"cityprice/internal/config"
	"cityprice/internal/dataset"
	"cityprice/internal/report"
	"cityprice/internal/storage"
	"cityprice/internal/validate"
)

func testConfig(tmp string) config.Config {
	return config.Config{
		DatasetPath:  filepath.Join(tmp, "70cityprice.csv"),
		MainStartRow: 2,
		MainEndRow:   37,
		SizeStartRow: 3,
		SizeEndRow:   38,
	}
}

func writeReport(t *testing.T, dir *cities.Directory, path string, f reportFixture) {
	t.Helper()
	if err := os.WriteFile(path, []byte(f.html(dir)), 0o644); err != nil {
		t.Fatal(err)
	}
}

type staticFetcher struct{ html string }

func (f staticFetcher) Fetch(context.Context, string) (string, error) { return f.html, nil }

func TestSmokeReportToDataset(t *testing.T) {
	tmp := t.TempDir()
	dir := testDirectory(t)
	cfg := testConfig(tmp)

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	svc := NewService(cfg, nil, cities.NewResolver(dir, quietLogger()), db, quietLogger(), db)
	input := filepath.Join(tmp, "report.html")
	writeReport(t, dir, input, reportFixture{title: "2025年7月份70个大中城市商品住宅销售价格变动情况"})

	res, err := svc.Ingest(context.Background(), Request{InputPath: input})
	if err != nil {
		t.Fatal(err)
	}
	june := internal.NewPeriod(2025, time.June)
	if res.Period != june {
		t.Fatalf("period = %s", res.Period)
	}
	if res.Layout != LayoutStandard {
		t.Fatalf("layout = %s", res.Layout)
	}
	if res.Cities != cities.ExpectedCount || len(res.Records) != 3*cities.ExpectedCount {
		t.Fatalf("cities=%d records=%d warnings=%v", res.Cities, len(res.Records), res.Warnings)
	}

	table, err := dataset.ReadTable(cfg.DatasetPath)
	if err != nil {
		t.Fatal(err)
	}
	if rep := validate.Validate(table, dir, validate.Options{}); !rep.OK() {
		t.Fatalf("validation issues: %v", rep.Issues)
	}

	first, err := os.ReadFile(cfg.DatasetPath)
	if err != nil {
		t.Fatal(err)
	}
	again, err := svc.Ingest(context.Background(), Request{InputPath: input})
	if err != nil {
		t.Fatal(err)
	}
	if again.Replaced != 3*cities.ExpectedCount || again.Total != 3*cities.ExpectedCount {
		t.Fatalf("second run replaced=%d total=%d", again.Replaced, again.Total)
	}
	second, err := os.ReadFile(cfg.DatasetPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatal("re-ingesting the same report changed the dataset")
	}

	n, err := db.CountRecords(&june)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3*cities.ExpectedCount {
		t.Fatalf("mirrored rows = %d", n)
	}
	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Status != "ok" || runs[0].Period != "2025-06" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestIngestReplacesPeriodWithLatestValues(t *testing.T) {
	tmp := t.TempDir()
	dir := testDirectory(t)
	cfg := testConfig(tmp)
	svc := NewService(cfg, nil, cities.NewResolver(dir, quietLogger()), nil, quietLogger())
	input := filepath.Join(tmp, "report.html")
	title := "2025年7月份70个大中城市商品住宅销售价格变动情况"

	writeReport(t, dir, input, reportFixture{title: title, mom: map[string]string{"成都": "100.4"}})
	if _, err := svc.Ingest(context.Background(), Request{InputPath: input}); err != nil {
		t.Fatal(err)
	}
	writeReport(t, dir, input, reportFixture{title: title, mom: map[string]string{"成都": "99.6"}})
	if _, err := svc.Ingest(context.Background(), Request{InputPath: input}); err != nil {
		t.Fatal(err)
	}

	records, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		t.Fatal(err)
	}
	var chengdu []internal.CityRecord
	for _, r := range records {
		if r.CityName == "成都市" {
			chengdu = append(chengdu, r)
		}
	}
	if len(chengdu) != 3 {
		t.Fatalf("成都 rows = %d", len(chengdu))
	}
	for _, r := range chengdu {
		if r.Basis == internal.BasisMoM && r.Value(internal.MetricCommodityHouse) != "99.6" {
			t.Fatalf("mom = %q, want second ingestion value", r.Value(internal.MetricCommodityHouse))
		}
	}
}

func TestIngestJanuaryReportUsesReducedLayout(t *testing.T) {
	tmp := t.TempDir()
	dir := testDirectory(t)
	cfg := testConfig(tmp)
	fixture := reportFixture{reduced: true}
	svc := NewService(cfg, staticFetcher{html: fixture.html(dir)}, cities.NewResolver(dir, quietLogger()), nil, quietLogger())

	res, err := svc.Ingest(context.Background(), Request{
		URL:    "https://www.stats.gov.cn/sj/zxfb/202502/t20250217_1958700.html",
		DryRun: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Period != internal.NewPeriod(2025, time.January) || res.Layout != LayoutReduced {
		t.Fatalf("period=%s layout=%s", res.Period, res.Layout)
	}
	yoy := map[string]internal.CityRecord{}
	fixed := map[string]internal.CityRecord{}
	for _, r := range res.Records {
		switch r.Basis {
		case internal.BasisYoY:
			yoy[r.CityCode] = r
		case internal.BasisFixed:
			fixed[r.CityCode] = r
		}
	}
	if len(fixed) != cities.ExpectedCount {
		t.Fatalf("fixed-base records = %d", len(fixed))
	}
	for code, f := range fixed {
		for _, m := range internal.IngestedMetrics {
			if f.Value(m) != yoy[code].Value(m) {
				t.Fatalf("%s %s: fixed=%q yoy=%q", code, m, f.Value(m), yoy[code].Value(m))
			}
		}
	}
	if _, err := os.Stat(cfg.DatasetPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run wrote the dataset: %v", err)
	}
}

func TestIngestRecordsBothMainLayouts(t *testing.T) {
	tmp := t.TempDir()
	dir := testDirectory(t)
	cfg := testConfig(tmp)

	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	svc := NewService(cfg, nil, cities.NewResolver(dir, quietLogger()), db, quietLogger())
	input := filepath.Join(tmp, "report.html")
	writeReport(t, dir, input, reportFixture{
		title:            "2025年7月份70个大中城市商品住宅销售价格变动情况",
		narrowSecondHand: true,
	})

	res, err := svc.Ingest(context.Background(), Request{InputPath: input})
	if err != nil {
		t.Fatal(err)
	}
	want := MainLayouts{Commodity: LayoutStandard, SecondHand: LayoutReduced}
	if res.Layouts != want || res.Layout != LayoutStandard {
		t.Fatalf("layouts = %+v layout = %s", res.Layouts, res.Layout)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "main table layouts differ") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v", res.Warnings)
	}

	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Layout != "commodity=standard,secondhand=reduced" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestIngestRejectsShortReport(t *testing.T) {
	tmp := t.TempDir()
	cfg := testConfig(tmp)
	svc := NewService(cfg, staticFetcher{html: "<table><tr><td>x</td></tr></table>"},
		cities.NewResolver(testDirectory(t), quietLogger()), nil, quietLogger())
	_, err := svc.Ingest(context.Background(), Request{URL: "https://example.com/202507/t20250715_1.html"})
	if !errors.Is(err, report.ErrTooFewTables) {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(cfg.DatasetPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed ingest must not write the dataset")
	}
}
