package models

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, driver string) (*SQLETLLogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLETLLogRepository(db, driver, ""), mock
}

func TestCreateETLLogTable(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLETLLogRepository(db, config.DriverPostgres, "public")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.etl_run_log")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.CreateETLLogTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLogEntry(t *testing.T) {
	t.Parallel()

	repo, mock := newTestRepository(t, config.DriverPostgres)
	start := time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)
	runLog := &ETLRunLog{RunID: "7d3c1a8e-0000-4000-8000-000000000001", StartTime: start}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO etl_run_log (run_id,start_time,status) VALUES ($1,$2,$3)")).
		WithArgs(runLog.RunID, start, RunStatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateLogEntry(context.Background(), runLog))
	assert.Equal(t, RunStatusInProgress, runLog.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLogEntryFailure_RecordsPartialLoad(t *testing.T) {
	t.Parallel()

	repo, mock := newTestRepository(t, config.DriverMySQL)
	start := time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)
	runLog := &ETLRunLog{
		RunID:        "7d3c1a8e-0000-4000-8000-000000000002",
		StartTime:    start,
		EndTime:      start.Add(90 * time.Second),
		TargetPeriod: "2024-01",
		TablesLoaded: []string{TableVendorDim, TableTimeDim},
		ErrorMessage: "Ошибка в фазе Load",
	}

	// SetMap сортирует колонки по имени
	mock.ExpectExec(regexp.QuoteMeta("UPDATE etl_run_log SET end_time = ?, error_message = ?, execution_time_seconds = ?")).
		WithArgs(
			runLog.EndTime,
			"Ошибка в фазе Load",
			90.0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			RunStatusFailed,
			"vendor_dim,time_dim",
			"2024-01",
			sqlmock.AnyArg(),
			runLog.RunID,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLogEntryFailure(context.Background(), runLog))
	assert.Equal(t, RunStatusFailed, runLog.Status)
	assert.Equal(t, 90.0, runLog.ExecutionTimeSeconds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastSuccessfulRun(t *testing.T) {
	t.Parallel()

	repo, mock := newTestRepository(t, config.DriverPostgres)
	start := time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(runLogColumns).AddRow(
		"run-1", start, start.Add(time.Minute), RunStatusSuccess, "2024-01",
		int64(10), int64(7), int64(7), "vendor_dim,time_dim,location_dim",
		"153.40", nil, 60.0,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM etl_run_log WHERE status = $1 ORDER BY end_time DESC LIMIT 1")).
		WithArgs(RunStatusSuccess).
		WillReturnRows(rows)

	run, err := repo.GetLastSuccessfulRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "2024-01", run.TargetPeriod)
	assert.Equal(t, 7, run.FactRows)
	assert.Equal(t, []string{"vendor_dim", "time_dim", "location_dim"}, run.TablesLoaded)
	assert.True(t, decimal.RequireFromString("153.4").Equal(run.TotalAmountSum))
	assert.Empty(t, run.ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastSuccessfulRun_NoRows(t *testing.T) {
	t.Parallel()

	repo, mock := newTestRepository(t, config.DriverPostgres)
	mock.ExpectQuery("SELECT .+ FROM etl_run_log").WillReturnRows(sqlmock.NewRows(runLogColumns))

	run, err := repo.GetLastSuccessfulRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
	require.NoError(t, mock.ExpectationsWereMet())
}
