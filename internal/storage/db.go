package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"cityprice/internal"
)

// Mirror is a queryable copy of the canonical dataset. The CSV file stays the
// system of record; mirrors are rebuilt from it when they drift.
type Mirror interface {
	ReplacePeriod(ctx context.Context, period internal.Period, records []internal.CityRecord) error
	ReplaceAll(ctx context.Context, records []internal.CityRecord) error
}

var (
	_ Mirror = (*DB)(nil)
	_ Mirror = (*PostgresMirror)(nil)
)

// DB is the local sqlite store: the ingestion run ledger, key/value metadata
// and a records mirror.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  period TEXT NOT NULL,
  layout TEXT NOT NULL,
  records INTEGER NOT NULL,
  replaced INTEGER NOT NULL,
  status TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_period ON runs(period);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
` + recordsDDL + `
CREATE INDEX IF NOT EXISTS idx_records_period ON records(period);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(run internal.IngestRun) error {
	_, err := d.conn.Exec(`
INSERT INTO runs (id, source, period, layout, records, replaced, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.Source, run.Period, run.Layout, run.Records, run.Replaced, run.Status)
	return err
}

func (d *DB) ListRuns(limit int) ([]internal.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, source, period, layout, records, replaced, status, createdAt
FROM runs ORDER BY createdAt DESC, rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.IngestRun
	for rows.Next() {
		var r internal.IngestRun
		if err := rows.Scan(&r.ID, &r.Source, &r.Period, &r.Layout, &r.Records, &r.Replaced, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) ReplacePeriod(ctx context.Context, period internal.Period, records []internal.CityRecord) error {
	return replaceRecords(ctx, d.conn, sqlitePlaceholder, &period, records)
}

func (d *DB) ReplaceAll(ctx context.Context, records []internal.CityRecord) error {
	return replaceRecords(ctx, d.conn, sqlitePlaceholder, nil, records)
}

// CountRecords counts mirrored rows, optionally for one period.
func (d *DB) CountRecords(period *internal.Period) (int, error) {
	var n int
	var err error
	if period == nil {
		err = d.conn.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	} else {
		err = d.conn.QueryRow(`SELECT COUNT(*) FROM records WHERE period = ?`, period.Key()).Scan(&n)
	}
	return n, err
}

// RecordValue reads one mirrored metric cell.
func (d *DB) RecordValue(period internal.Period, code string, basis internal.Basis, metric internal.Metric) (string, error) {
	if !knownMetric(metric) {
		return "", errors.New("unknown metric: " + string(metric))
	}
	var value sql.NullString
	err := d.conn.QueryRow(`SELECT `+quoteIdent(string(metric))+` FROM records WHERE period = ? AND adcode = ? AND basis = ?`,
		period.Key(), code, string(basis)).Scan(&value)
	if err != nil {
		return "", err
	}
	return value.String, nil
}

func knownMetric(m internal.Metric) bool {
	for _, known := range internal.Metrics {
		if known == m {
			return true
		}
	}
	return false
}
