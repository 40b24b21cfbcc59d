package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы запуска ETL
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// ETLRunLog представляет запись о запуске ETL процесса
type ETLRunLog struct {
	RunID                string          `json:"run_id"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              time.Time       `json:"end_time"`
	Status               string          `json:"status"` // "success", "failed", "in_progress"
	TargetPeriod         string          `json:"target_period"`
	RawTrips             int             `json:"raw_trips"`
	StagedTrips          int             `json:"staged_trips"`
	FactRows             int             `json:"fact_rows"`
	TablesLoaded         []string        `json:"tables_loaded"`
	TotalAmountSum       decimal.Decimal `json:"total_amount_sum"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64         `json:"execution_time_seconds"`
}

// TablesLoadedString возвращает загруженные таблицы через запятую в порядке загрузки
func (l *ETLRunLog) TablesLoadedString() string {
	return strings.Join(l.TablesLoaded, ",")
}

// ETLLogRepository представляет репозиторий для работы с логами ETL
type ETLLogRepository interface {
	// CreateETLLogTable создает таблицу журнала, если она не существует
	CreateETLLogTable(ctx context.Context) error

	// CreateLogEntry создает новую запись о запуске ETL
	CreateLogEntry(ctx context.Context, runLog *ETLRunLog) error

	// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
	UpdateLogEntrySuccess(ctx context.Context, runLog *ETLRunLog) error

	// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL.
	// TablesLoaded фиксирует таблицы, оставшиеся загруженными после сбоя.
	UpdateLogEntryFailure(ctx context.Context, runLog *ETLRunLog) error

	// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
	GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error)
}
