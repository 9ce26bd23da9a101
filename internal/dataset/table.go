package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cityprice/internal"
)

var ErrMissingColumns = errors.New("dataset is missing required columns")

// Table is a dataset file read as text, before any typing.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of a header column or -1.
func (t Table) Index(column string) int {
	for i, h := range t.Header {
		if h == column {
			return i
		}
	}
	return -1
}

// Cell returns the value of a named column in a row, "" when absent.
func (t Table) Cell(row int, column string) string {
	idx := t.Index(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}

// MissingColumns lists required columns absent from the header.
func (t Table) MissingColumns() []string {
	var missing []string
	for _, c := range internal.Columns {
		if t.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}

// ExtraColumns lists header columns outside the canonical set.
func (t Table) ExtraColumns() []string {
	known := map[string]struct{}{}
	for _, c := range internal.Columns {
		known[c] = struct{}{}
	}
	var extra []string
	for _, h := range t.Header {
		if _, ok := known[h]; !ok {
			extra = append(extra, h)
		}
	}
	return extra
}

// ReadTable reads a CSV file into a Table. A leading byte order mark is
// dropped from the header.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	return ParseCSV(f)
}

func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return Table{Header: header, Rows: records[1:]}, nil
}

// Records types every row of a canonical table.
func (t Table) Records() ([]internal.CityRecord, error) {
	if missing := t.MissingColumns(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	out := make([]internal.CityRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		if blankRow(row) {
			continue
		}
		period, err := internal.ParseDate(t.Cell(i, internal.ColumnDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rec := internal.CityRecord{
			Period:   period,
			CityCode: strings.TrimSpace(t.Cell(i, internal.ColumnCode)),
			CityName: strings.TrimSpace(t.Cell(i, internal.ColumnCity)),
			Basis:    internal.Basis(strings.TrimSpace(t.Cell(i, internal.ColumnFixedBase))),
			Values:   map[internal.Metric]string{},
		}
		for _, m := range internal.Metrics {
			if v := strings.TrimSpace(t.Cell(i, string(m))); v != "" {
				rec.Values[m] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Load reads the canonical dataset. A missing file is an empty dataset.
func Load(path string) ([]internal.CityRecord, error) {
	t, err := ReadTable(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(t.Header) == 0 {
		return nil, nil
	}
	return t.Records()
}

// Save replaces the dataset file in one step: the rows go to a temporary
// file in the same directory which is then renamed over the target.
func Save(path string, records []internal.CityRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := WriteCSV(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteCSV writes records in canonical column order with every field quoted.
func WriteCSV(w io.Writer, records []internal.CityRecord) error {
	bw := bufio.NewWriter(w)
	if err := writeQuotedRow(bw, internal.Columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := writeQuotedRow(bw, r.Row()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeQuotedRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}
