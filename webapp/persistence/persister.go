package persistence

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/helpers"
)

/**
Record is the row written once a video has been rendered
*/
type Record struct {
	Uuid      uuid.UUID
	Query     string
	Code      string
	Url       string
	PublicId  string
	CreatedAt time.Time
}

/**
Persister stores finished pipeline results. Saving the same uuid twice replaces the earlier row.
*/
type Persister interface {
	Save(ctx context.Context, record Record) error
	Close() error
}

var tableNameMatcher = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkTableName(table string) error {
	if !tableNameMatcher.MatchString(table) {
		return fmt.Errorf("'%s' is not a usable table name", table)
	}
	return nil
}

/**
the table layout shared by both drivers; %s is the table name
*/
const createTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	uuid TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	code_generated TEXT NOT NULL,
	url TEXT,
	public_id TEXT,
	created_at TIMESTAMP NOT NULL
)`

func NewPersisterFromConfig(ctx context.Context, config helpers.PersistenceConfig) (Persister, error) {
	if err := checkTableName(config.Table); err != nil {
		return nil, err
	}

	switch config.Driver {
	case "postgres", "postgresql":
		return NewPostgresPersister(ctx, config.DSN, config.Table)
	case "sqlite", "":
		return NewSqlitePersister(ctx, config.DSN, config.Table)
	default:
		return nil, fmt.Errorf("unknown persistence driver '%s'", config.Driver)
	}
}
