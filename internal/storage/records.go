package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"cityprice/internal"
)

var recordsDDL = func() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS records (\n")
	b.WriteString("  period TEXT NOT NULL,\n  date TEXT NOT NULL,\n  adcode TEXT NOT NULL,\n  city TEXT NOT NULL,\n  basis TEXT NOT NULL,\n")
	for _, m := range internal.Metrics {
		b.WriteString("  " + quoteIdent(string(m)) + " TEXT,\n")
	}
	b.WriteString("  PRIMARY KEY (period, adcode, basis)\n);\n")
	return b.String()
}()

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlitePlaceholder(int) string { return "?" }

func postgresPlaceholder(i int) string { return "$" + strconv.Itoa(i) }

func insertRecordSQL(placeholder func(int) string) string {
	cols := []string{"period", "date", "adcode", "city", "basis"}
	for _, m := range internal.Metrics {
		cols = append(cols, quoteIdent(string(m)))
	}
	args := make([]string, len(cols))
	for i := range cols {
		args[i] = placeholder(i + 1)
	}
	return "INSERT INTO records (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(args, ", ") + ")"
}

func recordArgs(r internal.CityRecord) []any {
	args := []any{r.Period.Key(), r.Period.DateString(), r.CityCode, r.CityName, string(r.Basis)}
	for _, m := range internal.Metrics {
		if v := r.Value(m); v != "" {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return args
}

// replaceRecords deletes the period (or everything when period is nil) and
// inserts records in one transaction.
func replaceRecords(ctx context.Context, conn *sql.DB, placeholder func(int) string, period *internal.Period, records []internal.CityRecord) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if period == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM records`)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM records WHERE period = `+placeholder(1), period.Key())
	}
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL(placeholder))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if period != nil && r.Period != *period {
			continue
		}
		if _, err := stmt.ExecContext(ctx, recordArgs(r)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
