package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLockManager struct {
	acquireErr error
	releaseErr error
	released   []int
}

func (m *mockLockManager) Acquire(ctx context.Context, lockID int) error { return m.acquireErr }
func (m *mockLockManager) TryAcquire(ctx context.Context, lockID int) (bool, error) {
	return m.acquireErr == nil, m.acquireErr
}
func (m *mockLockManager) Release(lockID int) error {
	m.released = append(m.released, lockID)
	return m.releaseErr
}

func TestReadSQLScripts(t *testing.T) {
	scripts, err := readSQLScripts()
	require.NoError(t, err)
	require.NotEmpty(t, scripts)
	assert.Contains(t, scripts[0].body, "datafire_schema.data_tasks")
	assert.Contains(t, scripts[0].body, "datafire_schema.task_executions")
}

func TestInit_LockAcquireFails(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lockMgr := &mockLockManager{acquireErr: errors.New("lock busy")}

	err = Init(context.Background(), db, lockMgr, zap.NewNop().Sugar())
	assert.Error(t, err)
	assert.Empty(t, lockMgr.released)
}

func TestInit_AppliesScripts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	scripts, err := readSQLScripts()
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS datafire_schema").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for range scripts {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	lockMgr := &mockLockManager{}
	require.NoError(t, Init(context.Background(), db, lockMgr, zap.NewNop().Sugar()))
	assert.Len(t, lockMgr.released, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_PingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	lockMgr := &mockLockManager{}
	err = Init(context.Background(), db, lockMgr, zap.NewNop().Sugar())
	assert.Error(t, err)
	assert.Len(t, lockMgr.released, 1)
}
