package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cityprice/internal"
	"cityprice/internal/cities"
	"cityprice/internal/config"
	"cityprice/internal/dataset"
	"cityprice/internal/report"
	"cityprice/internal/storage"
)

var ErrNoRecords = errors.New("report produced no city records")

type Request struct {
	URL       string
	InputPath string
	// Period overrides the period derived from the URL or title.
	Period *internal.Period
	// DatasetPath overrides the configured dataset file.
	DatasetPath string
	DryRun      bool
}

func (r Request) source() string {
	if r.InputPath != "" {
		return r.InputPath
	}
	return r.URL
}

// periodHint is the text searched for a publication month: the URL, or the
// base name of a saved file such as t20250715_1960403.html.
func (r Request) periodHint() string {
	if r.InputPath != "" {
		return filepath.Base(r.InputPath)
	}
	return r.URL
}

// MainLayouts holds the layouts chosen for the two main tables.
type MainLayouts struct {
	Commodity  Layout
	SecondHand Layout
}

func (m MainLayouts) Agree() bool { return m.Commodity == m.SecondHand }

// String is the ledger form: one layout when both tables agree, both otherwise.
func (m MainLayouts) String() string {
	if m.Agree() {
		return string(m.Commodity)
	}
	return "commodity=" + string(m.Commodity) + ",secondhand=" + string(m.SecondHand)
}

type Result struct {
	RunID    string
	Period   internal.Period
	Layout   Layout
	Layouts  MainLayouts
	Records  []internal.CityRecord
	Cities   int
	Replaced int
	Total    int
	Warnings []string
}

// Service runs one report through detection, reshaping and assembly and
// folds the result into the canonical dataset.
type Service struct {
	cfg       config.Config
	fetcher   report.Fetcher
	detector  *Detector
	assembler *Assembler
	db        *storage.DB
	mirrors   []storage.Mirror
	logger    *slog.Logger
}

// NewService wires the ingestion service. db may be nil, in which case no run
// ledger is kept; mirrors receive each replaced period after the dataset write.
func NewService(cfg config.Config, fetcher report.Fetcher, resolver *cities.Resolver, db *storage.DB, logger *slog.Logger, mirrors ...storage.Mirror) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		fetcher:   fetcher,
		detector:  NewDetector(logger),
		assembler: NewAssembler(resolver),
		db:        db,
		mirrors:   mirrors,
		logger:    logger,
	}
}

func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString()}

	res, err := s.ingest(ctx, req, res)
	status := "ok"
	if err != nil {
		status = "failed"
	}
	if !req.DryRun {
		s.recordRun(req, res, status)
	}
	if err != nil {
		return res, err
	}
	s.logger.Info("ingest finished",
		"run", res.RunID, "period", res.Period.Key(), "layout", res.Layout,
		"records", len(res.Records), "replaced", res.Replaced, "dryRun", req.DryRun,
		"ms", time.Since(start).Milliseconds())
	return res, nil
}

func (s *Service) ingest(ctx context.Context, req Request, res Result) (Result, error) {
	html, err := s.load(ctx, req)
	if err != nil {
		return res, err
	}
	tables, err := report.ParseTables(html)
	if err != nil {
		return res, err
	}
	fams, err := tables.Select()
	if err != nil {
		return res, err
	}

	if req.Period != nil {
		res.Period = *req.Period
	} else if res.Period, err = report.ResolvePeriod(req.periodHint(), tables); err != nil {
		return res, err
	}

	src, layouts := s.Reshape(fams, res.Period)
	res.Layout = layouts.Commodity
	res.Layouts = layouts
	if !layouts.Agree() {
		s.logger.Warn("main tables use different layouts",
			"period", res.Period.Key(), "commodity", layouts.Commodity, "secondhand", layouts.SecondHand)
		res.Warnings = append(res.Warnings, "main table layouts differ: "+layouts.String())
	}
	res.Records = s.assembler.Assemble(res.Period, src)
	if len(res.Records) == 0 {
		return res, fmt.Errorf("%w: period %s", ErrNoRecords, res.Period)
	}
	if err := CheckFixedBaseUniform(res.Records); err != nil {
		return res, err
	}
	res.Cities = countCities(res.Records)
	if res.Cities != s.assembler.resolver.Directory().Len() {
		msg := fmt.Sprintf("report yielded %d cities, expected %d", res.Cities, s.assembler.resolver.Directory().Len())
		s.logger.Warn("incomplete city coverage", "period", res.Period.Key(), "cities", res.Cities)
		res.Warnings = append(res.Warnings, msg)
	}
	if req.DryRun {
		return res, nil
	}

	path := req.DatasetPath
	if path == "" {
		path = s.cfg.DatasetPath
	}
	existing, err := dataset.Load(path)
	if err != nil {
		return res, fmt.Errorf("load dataset: %w", err)
	}
	merged, replaced := dataset.Merge(existing, res.Records, res.Period)
	if err := dataset.Save(path, merged); err != nil {
		return res, fmt.Errorf("save dataset: %w", err)
	}
	res.Replaced = replaced
	res.Total = len(merged)

	for _, m := range s.mirrors {
		if err := m.ReplacePeriod(ctx, res.Period, res.Records); err != nil {
			msg := fmt.Sprintf("mirror %T: %v", m, err)
			s.logger.Warn("mirror update failed", "period", res.Period.Key(), "err", err)
			res.Warnings = append(res.Warnings, msg)
		}
	}
	if s.db != nil {
		if err := s.db.SetMetadata("last_period", res.Period.Key()); err != nil {
			res.Warnings = append(res.Warnings, "metadata: "+err.Error())
		}
	}
	return res, nil
}

func (s *Service) load(ctx context.Context, req Request) (string, error) {
	switch {
	case strings.TrimSpace(req.InputPath) != "":
		return report.LoadFile(req.InputPath)
	case strings.TrimSpace(req.URL) != "":
		if s.fetcher == nil {
			return "", errors.New("no fetcher configured")
		}
		return s.fetcher.Fetch(ctx, req.URL)
	default:
		return "", errors.New("either a report url or an input file is required")
	}
}

// Reshape detects each table's layout and reshapes the four families,
// reporting the layouts chosen for the two main tables.
func (s *Service) Reshape(fams report.Families, period internal.Period) (Sources, MainLayouts) {
	jan := period.IsJanuary()
	mainStart, mainEnd := s.cfg.MainStartRow, s.cfg.MainEndRow
	sizeStart, sizeEnd := s.cfg.SizeStartRow, s.cfg.SizeEndRow

	main := func(t report.RawTable) (Observations, Layout) {
		d := s.detector.DetectLayout(t, mainStart, FamilyMain, jan)
		return Reshape(t, mainStart, mainEnd, FamilyMain, d.Layout), d.Layout
	}
	size := func(parts [2]report.RawTable) Observations {
		var out []Observations
		for _, t := range parts {
			d := s.detector.DetectLayout(t, sizeStart, FamilySize, jan)
			out = append(out, Reshape(t, sizeStart, sizeEnd, FamilySize, d.Layout))
		}
		return Union(out...)
	}

	var src Sources
	var layouts MainLayouts
	src.CommodityMain, layouts.Commodity = main(fams.CommodityMain)
	src.SecondHandMain, layouts.SecondHand = main(fams.SecondHandMain)
	src.CommoditySize = size(fams.CommoditySize)
	src.SecondHandSize = size(fams.SecondHandSize)
	return src, layouts
}

func (s *Service) recordRun(req Request, res Result, status string) {
	if s.db == nil {
		return
	}
	run := internal.IngestRun{
		ID:       res.RunID,
		Source:   req.source(),
		Layout:   res.Layouts.String(),
		Records:  len(res.Records),
		Replaced: res.Replaced,
		Status:   status,
	}
	if !res.Period.IsZero() {
		run.Period = res.Period.Key()
	}
	if err := s.db.InsertRun(run); err != nil {
		s.logger.Warn("run ledger write failed", "run", res.RunID, "err", err)
	}
}

func countCities(records []internal.CityRecord) int {
	seen := map[string]struct{}{}
	for _, r := range records {
		seen[r.CityCode] = struct{}{}
	}
	return len(seen)
}
