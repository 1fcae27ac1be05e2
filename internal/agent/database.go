package agent

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn is the part of a database connection the agent uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// DatabaseDialer opens a connection for a task's database connector.
type DatabaseDialer func(ctx context.Context, cfg types.DatabaseConnector) (Conn, error)

// DialPostgres connects to any Postgres-wire database with pgx.
func DialPostgres(ctx context.Context, cfg types.DatabaseConnector) (Conn, error) {
	conn, err := pgx.Connect(ctx, ConnString(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", cfg.Host)
	}
	return conn, nil
}

// ConnString builds a postgres:// URL from a connector. Port defaults to
// 5432 and sslmode to prefer.
func ConnString(cfg types.DatabaseConnector) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	return u.String()
}

// executeStatements runs the statements of a database batch in order and
// stops at the first failure.
func executeStatements(ctx context.Context, dial DatabaseDialer, data types.DatabaseData) (map[string]any, error) {
	if len(data.Statements) == 0 {
		return nil, errors.New("missing statements")
	}
	if data.Config.Host == "" {
		return nil, errors.New("missing database host")
	}

	conn, err := dial(ctx, data.Config)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	var affected int64
	for i, stmt := range data.Statements {
		tag, err := conn.Exec(ctx, stmt)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %d of %d", i+1, len(data.Statements))
		}
		affected += tag.RowsAffected()
	}
	return map[string]any{
		"executed_statements": len(data.Statements),
		"rows_affected":       affected,
		"host":                data.Config.Host,
	}, nil
}
