package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/RezaEskandarii/datafire/internal/constants"
	"github.com/RezaEskandarii/datafire/internal/lock"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const schema = "datafire_schema"

//go:embed migrations/*.sql
var migrations embed.FS

// Init creates the schema and applies the bundled SQL scripts. Only one
// instance runs it at a time, guarded by the migration advisory lock.
//
// The function performs the following steps:
//  1. Acquires the migration lock.
//  2. Pings the database to verify the connection.
//  3. Creates the schema if it does not exist.
//  4. Executes every script under migrations/ in file name order.
//
// Scripts are written to be idempotent, so running Init on every start is safe.
func Init(ctx context.Context, db *sql.DB, distributedLock lock.DistributedLockManager, logger *zap.SugaredLogger) error {
	migrationLock := constants.MigrationLock

	if err := distributedLock.Acquire(ctx, migrationLock); err != nil {
		return err
	}
	defer func() {
		if err := distributedLock.Release(migrationLock); err != nil {
			logger.Warnw("failed to release migration lock", "error", err)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping database")
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return errors.Wrap(err, "create schema")
	}

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, script := range scripts {
		logger.Infow("applying migration", "script", script.name)
		if _, err := db.ExecContext(ctx, script.body); err != nil {
			return errors.Wrapf(err, "migration %s", script.name)
		}
	}
	return nil
}

type sqlScript struct {
	name string
	body string
}

func readSQLScripts() ([]sqlScript, error) {
	entries, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	scripts := make([]sqlScript, 0, len(entries))
	for _, path := range entries {
		content, err := migrations.ReadFile(path)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, sqlScript{name: path, body: string(content)})
	}
	return scripts, nil
}
