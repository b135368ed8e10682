package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"
)

type SqlitePersister struct {
	db    *sql.DB
	table string
}

func NewSqlitePersister(ctx context.Context, dsn string, table string) (*SqlitePersister, error) {
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite database: %w", err)
	}
	//each connection to :memory: gets its own database
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(createTableTemplate, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create table %s: %w", table, err)
	}
	log.Info().Str("table", table).Msgf("Opened sqlite database %s", dsn)
	return &SqlitePersister{db: db, table: table}, nil
}

func (p *SqlitePersister) Save(ctx context.Context, record Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (uuid, query, code_generated, url, public_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (uuid) DO UPDATE SET query = excluded.query, code_generated = excluded.code_generated,
	url = excluded.url, public_id = excluded.public_id, created_at = excluded.created_at`, p.table)

	_, err := p.db.ExecContext(ctx, query, record.Uuid.String(), record.Query, record.Code, record.Url, record.PublicId, record.CreatedAt.UTC())
	return err
}

func (p *SqlitePersister) Close() error {
	return p.db.Close()
}
