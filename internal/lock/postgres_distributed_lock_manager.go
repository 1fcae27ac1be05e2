package lock

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const lockTimeout = 5 * time.Second

// PostgresDistributedLockManager uses session level advisory locks. Each held
// lock pins its own connection, since the unlock must run on the session that
// took it.
type PostgresDistributedLockManager struct {
	db *sql.DB

	mu   sync.Mutex
	held map[int]*sql.Conn
}

func NewPostgresDistributedLockManager(db *sql.DB) *PostgresDistributedLockManager {
	return &PostgresDistributedLockManager{
		db:   db,
		held: make(map[int]*sql.Conn),
	}
}

func (l *PostgresDistributedLockManager) Acquire(ctx context.Context, lockID int) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire lock")
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "failed to acquire lock")
	}
	return l.keep(lockID, conn)
}

func (l *PostgresDistributedLockManager) TryAcquire(ctx context.Context, lockID int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to try lock")
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&ok); err != nil {
		_ = conn.Close()
		return false, errors.Wrap(err, "failed to try lock")
	}
	if !ok {
		_ = conn.Close()
		return false, nil
	}
	return true, l.keep(lockID, conn)
}

func (l *PostgresDistributedLockManager) keep(lockID int, conn *sql.Conn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.held[lockID]; exists {
		_ = conn.Close()
		return errors.Newf("lock %d is already held by this instance", lockID)
	}
	l.held[lockID] = conn
	return nil
}

func (l *PostgresDistributedLockManager) Release(lockID int) error {
	l.mu.Lock()
	conn, ok := l.held[lockID]
	delete(l.held, lockID)
	l.mu.Unlock()
	if !ok {
		return errors.Newf("lock %d is not held", lockID)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return errors.Wrap(err, "failed to release lock")
	}
	return nil
}
