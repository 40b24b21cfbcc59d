package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/LilVoxy/taxi_etl/ETL/config"
	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

const tableETLRunLog = "etl_run_log"

var runLogColumns = []string{
	"run_id", "start_time", "end_time", "status", "target_period",
	"raw_trips", "staged_trips", "fact_rows", "tables_loaded",
	"total_amount_sum", "error_message", "execution_time_seconds",
}

// SQLETLLogRepository реализация ETLLogRepository для PostgreSQL и MySQL
type SQLETLLogRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	table   string
}

// NewSQLETLLogRepository создает новый экземпляр SQLETLLogRepository
func NewSQLETLLogRepository(db *sql.DB, driver, schema string) *SQLETLLogRepository {
	return &SQLETLLogRepository{
		db:      db,
		builder: config.Builder(driver),
		table:   config.QualifiedTable(schema, tableETLRunLog),
	}
}

// CreateETLLogTable создает таблицу для логирования ETL процесса, если она не существует
func (r *SQLETLLogRepository) CreateETLLogTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		run_id VARCHAR(36) PRIMARY KEY,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		status VARCHAR(16) NOT NULL,
		target_period VARCHAR(7),
		raw_trips BIGINT DEFAULT 0,
		staged_trips BIGINT DEFAULT 0,
		fact_rows BIGINT DEFAULT 0,
		tables_loaded TEXT,
		total_amount_sum NUMERIC(18,2),
		error_message TEXT,
		execution_time_seconds DOUBLE PRECISION
	)`, r.table)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка при создании таблицы %s: %w", r.table, err)
	}
	return nil
}

// CreateLogEntry создает новую запись о запуске ETL
func (r *SQLETLLogRepository) CreateLogEntry(ctx context.Context, runLog *ETLRunLog) error {
	runLog.Status = RunStatusInProgress

	query, args, err := r.builder.Insert(r.table).
		Columns("run_id", "start_time", "status").
		Values(runLog.RunID, runLog.StartTime, runLog.Status).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка при создании записи о запуске ETL: %w", err)
	}
	return nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntrySuccess(ctx context.Context, runLog *ETLRunLog) error {
	runLog.Status = RunStatusSuccess
	return r.update(ctx, runLog)
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntryFailure(ctx context.Context, runLog *ETLRunLog) error {
	runLog.Status = RunStatusFailed
	return r.update(ctx, runLog)
}

func (r *SQLETLLogRepository) update(ctx context.Context, runLog *ETLRunLog) error {
	// Рассчитываем время выполнения в секундах
	runLog.ExecutionTimeSeconds = runLog.EndTime.Sub(runLog.StartTime).Seconds()

	var errorMessage any
	if runLog.ErrorMessage != "" {
		errorMessage = runLog.ErrorMessage
	}

	query, args, err := r.builder.Update(r.table).
		SetMap(map[string]interface{}{
			"end_time":               runLog.EndTime,
			"status":                 runLog.Status,
			"target_period":          runLog.TargetPeriod,
			"raw_trips":              runLog.RawTrips,
			"staged_trips":           runLog.StagedTrips,
			"fact_rows":              runLog.FactRows,
			"tables_loaded":          runLog.TablesLoadedString(),
			"total_amount_sum":       runLog.TotalAmountSum,
			"error_message":          errorMessage,
			"execution_time_seconds": runLog.ExecutionTimeSeconds,
		}).
		Where(sq.Eq{"run_id": runLog.RunID}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL %s: %w", runLog.RunID, err)
	}
	return nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *SQLETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	query, args, err := r.builder.Select(runLogColumns...).
		From(r.table).
		Where(sq.Eq{"status": RunStatusSuccess}).
		OrderBy("end_time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		log          ETLRunLog
		endTime      sql.NullTime
		targetPeriod sql.NullString
		tablesLoaded sql.NullString
		errorMessage sql.NullString
		execSeconds  sql.NullFloat64
		totalAmount  decimal.NullDecimal
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&log.RunID, &log.StartTime, &endTime, &log.Status, &targetPeriod,
		&log.RawTrips, &log.StagedTrips, &log.FactRows, &tablesLoaded,
		&totalAmount, &errorMessage, &execSeconds,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Нет успешных запусков
		}
		return nil, fmt.Errorf("ошибка при получении информации о последнем успешном запуске ETL: %w", err)
	}

	log.EndTime = endTime.Time
	log.TargetPeriod = targetPeriod.String
	log.ErrorMessage = errorMessage.String
	log.ExecutionTimeSeconds = execSeconds.Float64
	log.TotalAmountSum = totalAmount.Decimal
	if tablesLoaded.String != "" {
		log.TablesLoaded = strings.Split(tablesLoaded.String, ",")
	}

	return &log, nil
}
