package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
)

type PostgresPersister struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresPersister(ctx context.Context, dsn string, table string) (*PostgresPersister, error) {
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "enginimate"

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	if _, err := pool.Exec(connectCtx, fmt.Sprintf(createTableTemplate, table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not create table %s: %w", table, err)
	}
	log.Info().Str("table", table).Msg("Connected to postgres")
	return &PostgresPersister{pool: pool, table: table}, nil
}

func (p *PostgresPersister) Save(ctx context.Context, record Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (uuid, query, code_generated, url, public_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (uuid) DO UPDATE SET query = EXCLUDED.query, code_generated = EXCLUDED.code_generated,
	url = EXCLUDED.url, public_id = EXCLUDED.public_id, created_at = EXCLUDED.created_at`, p.table)

	_, err := p.pool.Exec(ctx, query, record.Uuid.String(), record.Query, record.Code, record.Url, record.PublicId, record.CreatedAt)
	return err
}

func (p *PostgresPersister) Close() error {
	p.pool.Close()
	return nil
}
