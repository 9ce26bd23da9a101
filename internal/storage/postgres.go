package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"cityprice/internal"
)

// PostgresMirror keeps a records table in Postgres for downstream queries.
type PostgresMirror struct {
	conn *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresMirror, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := conn.ExecContext(ctx, recordsDDL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &PostgresMirror{conn: conn}, nil
}

func (p *PostgresMirror) Close() error {
	return p.conn.Close()
}

func (p *PostgresMirror) ReplacePeriod(ctx context.Context, period internal.Period, records []internal.CityRecord) error {
	return replaceRecords(ctx, p.conn, postgresPlaceholder, &period, records)
}

func (p *PostgresMirror) ReplaceAll(ctx context.Context, records []internal.CityRecord) error {
	return replaceRecords(ctx, p.conn, postgresPlaceholder, nil, records)
}
