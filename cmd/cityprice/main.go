package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cityprice/internal"
	"cityprice/internal/cities"
	"cityprice/internal/config"
	"cityprice/internal/dataset"
	"cityprice/internal/pipeline"
	"cityprice/internal/report"
	"cityprice/internal/storage"
	"cityprice/internal/validate"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := cfg.Logger()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "report:ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		url := fs.String("url", "", "report page url")
		input := fs.String("input", "", "saved report (.html, .mht, .mhtml, .eml)")
		period := fs.String("period", "", "data period YYYYMM, overrides url/title")
		csvPath := fs.String("csv", cfg.DatasetPath, "dataset csv path")
		dryRun := fs.Bool("dry-run", false, "parse and assemble only")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*url) == "" && strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--url or --input is required"))
		}
		if !*dryRun {
			must(cfg.Require("DATASET_PATH", *csvPath))
		}

		req := pipeline.Request{URL: *url, InputPath: *input, DatasetPath: *csvPath, DryRun: *dryRun}
		if *period != "" {
			p, err := report.ParseMonthArg(*period)
			must(err)
			req.Period = &p
		}

		resolver := cities.NewResolver(loadDirectory(cfg), logger)
		fetcher, err := report.NewFetcher(cfg)
		must(err)

		var db *storage.DB
		var mirrors []storage.Mirror
		if !*dryRun {
			db, err = storage.Open(cfg.DBPath)
			must(err)
			defer db.Close()
			if cfg.MirrorEnabled {
				mirrors = append(mirrors, db)
			}
			if pg := openPostgres(ctx, cfg, logger); pg != nil {
				defer pg.Close()
				mirrors = append(mirrors, pg)
			}
		}

		svc := pipeline.NewService(cfg, fetcher, resolver, db, logger, mirrors...)
		res, err := svc.Ingest(ctx, req)
		must(err)
		if *dryRun {
			fmt.Printf("dry run period=%s layout=%s cities=%d records=%d\n", res.Period, res.Layout, res.Cities, len(res.Records))
		} else {
			fmt.Printf("ingested period=%s layout=%s cities=%d records=%d replaced=%d total=%d run=%s\n",
				res.Period, res.Layout, res.Cities, len(res.Records), res.Replaced, res.Total, res.RunID)
		}
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
	case "dataset:validate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		csvPath := fs.String("csv", cfg.DatasetPath, "dataset csv path")
		maxDetails := fs.Int("max-details", cfg.ValidateMaxDetails, "samples shown per issue")
		_ = fs.Parse(os.Args[2:])
		if _, err := os.Stat(*csvPath); err != nil {
			must(fmt.Errorf("dataset not found: %s", *csvPath))
		}
		table, err := dataset.ReadTable(*csvPath)
		must(err)
		fmt.Printf("validating %s rows=%d\n", *csvPath, len(table.Rows))
		rep := validate.Validate(table, loadDirectory(cfg), validate.Options{MaxDetails: *maxDetails})
		validate.Print(os.Stdout, rep)
		if !rep.OK() {
			os.Exit(1)
		}
	case "dataset:extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		csvPath := fs.String("csv", cfg.DatasetPath, "dataset csv path")
		start := fs.String("start", "", "first month YYYYMM")
		end := fs.String("end", "", "last month YYYYMM")
		cityList := fs.String("cities", "", "comma separated city names")
		format := fs.String("format", "csv", "csv|xlsx|parquet")
		out := fs.String("out", "", "output file name or path")
		_ = fs.Parse(os.Args[2:])

		f, err := dataset.ParseFormat(*format)
		must(err)
		records := loadRecords(*csvPath)

		var startP, endP *internal.Period
		if *start != "" || *end != "" {
			if *start == "" || *end == "" {
				must(fmt.Errorf("--start and --end must be given together"))
			}
			s, err := report.ParseMonthArg(*start)
			must(err)
			e, err := report.ParseMonthArg(*end)
			must(err)
			records, err = dataset.FilterByMonth(records, s, e)
			must(err)
			startP, endP = &s, &e
		}
		names := splitList(*cityList)
		if len(names) > 0 {
			records = dataset.FilterByCities(records, names)
		}
		if startP == nil && len(names) == 0 {
			must(fmt.Errorf("--start/--end or --cities is required"))
		}
		if len(records) == 0 {
			fmt.Println("no matching records")
			return
		}

		name := *out
		if name == "" {
			name = dataset.OutputName(startP, endP, names, string(f))
		}
		path := dataset.OutputPath(cfg.OutputDir, name)
		must(dataset.WriteFile(path, f, records))
		fmt.Printf("extracted %d records (%d cities, %d months) to %s\n",
			len(records), len(dataset.ListCities(records)), len(dataset.Periods(records)), path)
	case "dataset:cities":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		csvPath := fs.String("csv", cfg.DatasetPath, "dataset csv path")
		_ = fs.Parse(os.Args[2:])
		names := dataset.ListCities(loadRecords(*csvPath))
		for i := 0; i < len(names); i += 5 {
			j := i + 5
			if j > len(names) {
				j = len(names)
			}
			fmt.Println("  " + strings.Join(names[i:j], "  "))
		}
		fmt.Printf("total: %d cities\n", len(names))
	case "dataset:dates":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		csvPath := fs.String("csv", cfg.DatasetPath, "dataset csv path")
		_ = fs.Parse(os.Args[2:])
		cov := dataset.DateCoverage(loadRecords(*csvPath))
		if cov.Months == 0 {
			fmt.Println("no dated records")
			return
		}
		fmt.Printf("first=%s last=%s months=%d\n", cov.First, cov.Last, cov.Months)
		for _, y := range cov.Years() {
			fmt.Printf("  %d: %d months\n", y, cov.PerYear[y])
		}
	case "dataset:diff":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		a := fs.String("a", "", "first file (.csv or .xlsx)")
		b := fs.String("b", "", "second file (.csv or .xlsx)")
		maxRows := fs.Int("max", 5, "differing rows to show")
		_ = fs.Parse(os.Args[2:])
		if *a == "" || *b == "" {
			must(fmt.Errorf("--a and --b are required"))
		}
		left, err := dataset.ReadAnyTable(*a)
		must(err)
		right, err := dataset.ReadAnyTable(*b)
		must(err)
		res := dataset.Diff(left, right, *maxRows)
		fmt.Printf("shape a=%v b=%v identical=%t\n", res.LeftShape, res.RightShape, res.Identical)
		if !res.Identical {
			fmt.Printf("differing rows: %d\n", len(res.Rows))
			for _, s := range res.Samples {
				fmt.Printf("row %d\n  a: %s\n  b: %s\n", s.Index, strings.Join(s.Left, ","), strings.Join(s.Right, ","))
			}
		}
	case "db:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		csvPath := fs.String("csv", cfg.DatasetPath, "dataset csv path")
		postgres := fs.Bool("postgres", false, "fail unless the postgres mirror is rebuilt too")
		_ = fs.Parse(os.Args[2:])
		records := loadRecords(*csvPath)
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		must(db.ReplaceAll(ctx, records))
		if *postgres {
			must(cfg.Require("POSTGRES_DSN", cfg.PostgresDSN))
			pg, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
			must(err)
			defer pg.Close()
			must(pg.ReplaceAll(ctx, records))
		} else if pg := openPostgres(ctx, cfg, logger); pg != nil {
			defer pg.Close()
			must(pg.ReplaceAll(ctx, records))
		}
		fmt.Printf("mirror rebuilt: %d records\n", len(records))
	case "db:runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "runs to list")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			fmt.Printf("%s %s period=%s layout=%s records=%d replaced=%d status=%s source=%s\n",
				r.CreatedAt, r.ID, r.Period, r.Layout, r.Records, r.Replaced, r.Status, r.Source)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func loadDirectory(cfg config.Config) *cities.Directory {
	if cfg.CityDirectoryPath != "" {
		dir, err := cities.LoadDirectory(cfg.CityDirectoryPath)
		must(err)
		return dir
	}
	dir, err := cities.DefaultDirectory()
	must(err)
	return dir
}

func loadRecords(path string) []internal.CityRecord {
	if _, err := os.Stat(path); err != nil {
		must(fmt.Errorf("dataset not found: %s", path))
	}
	records, err := dataset.Load(path)
	must(err)
	return records
}

// openPostgres returns nil when no DSN is configured. A failed connection is
// logged and skipped; the csv stays authoritative.
func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) *storage.PostgresMirror {
	if strings.TrimSpace(cfg.PostgresDSN) == "" || !cfg.MirrorEnabled {
		return nil
	}
	pg, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Warn("postgres mirror unavailable", "err", err)
		return nil
	}
	return pg
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '，' }) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func usage() {
	fmt.Println("usage: cityprice <command>")
	fmt.Println("commands:")
	fmt.Println("  report:ingest --url=... | --input=report.html [--period=YYYYMM] [--csv=...] [--dry-run]")
	fmt.Println("  dataset:validate [--csv=...] [--max-details=8]")
	fmt.Println("  dataset:extract [--start=YYYYMM --end=YYYYMM] [--cities=北京,上海] [--format=csv|xlsx|parquet] [--out=...]")
	fmt.Println("  dataset:cities [--csv=...]")
	fmt.Println("  dataset:dates [--csv=...]")
	fmt.Println("  dataset:diff --a=old.xlsx --b=new.csv [--max=5]")
	fmt.Println("  db:sync [--csv=...] [--postgres]")
	fmt.Println("  db:runs [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
