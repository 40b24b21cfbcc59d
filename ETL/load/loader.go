package load

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
	sq "github.com/Masterminds/squirrel"
)

// maxStatementParams - предел числа параметров в одном запросе (PostgreSQL)
const maxStatementParams = 65535

// Execer выполняет запросы; реализуется *sql.DB и *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Loader загружает таблицу в хранилище
type Loader interface {
	// LoadTable вставляет все строки таблицы и возвращает их количество
	LoadTable(ctx context.Context, exec Execer, f *frame.Frame) (int, error)
}

// statement - готовый запрос с аргументами
type statement struct {
	SQL  string
	Args []any
}

// BulkLoader вставляет таблицы многострочными INSERT, собранными squirrel
type BulkLoader struct {
	builder   sq.StatementBuilderType
	schema    string
	batchSize int
	logger    *utils.ETLLogger
}

// NewBulkLoader создает новый экземпляр BulkLoader
func NewBulkLoader(driver, schema string, batchSize int, logger *utils.ETLLogger) *BulkLoader {
	return &BulkLoader{
		builder:   config.Builder(driver),
		schema:    schema,
		batchSize: batchSize,
		logger:    logger,
	}
}

// LoadTable вставляет строки таблицы пачками по batchSize.
// Каждый INSERT формируется непосредственно перед выполнением.
func (l *BulkLoader) LoadTable(ctx context.Context, exec Execer, f *frame.Frame) (int, error) {
	if len(f.Columns) == 0 {
		return 0, fmt.Errorf("таблица %s не содержит колонок", f.Name)
	}
	if f.Len() == 0 {
		l.logger.Debug("Нет данных для загрузки в %s", f.Name)
		return 0, nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки %s (всего: %d)", f.Name, f.Len())

	table := config.QualifiedTable(l.schema, f.Name)
	columns := f.Names()
	rowsPerStatement := l.rowsPerStatement(len(columns))

	processed := 0
	for start := 0; start < f.Len(); start += rowsPerStatement {
		end := start + rowsPerStatement
		if end > f.Len() {
			end = f.Len()
		}

		stmt, err := l.buildInsert(table, columns, f, start, end)
		if err != nil {
			return processed, err
		}
		if _, err := exec.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return processed, fmt.Errorf("ошибка при вставке в %s (строки %d-%d): %w",
				f.Name, start, end-1, err)
		}
		processed = end

		// Логируем прогресс каждые 10 пачек
		if (start/rowsPerStatement+1)%10 == 0 {
			l.logger.Debug("Загружено %d из %d строк %s...", processed, f.Len(), f.Name)
		}
	}

	l.logger.Info("Загрузка %s завершена. Загружено записей: %d. Длительность: %v",
		f.Name, processed, time.Since(startTime))
	return processed, nil
}

// buildInsert формирует многострочный INSERT для строк [start, end)
func (l *BulkLoader) buildInsert(table string, columns []string, f *frame.Frame, start, end int) (statement, error) {
	insert := l.builder.Insert(table).Columns(columns...)
	for i := start; i < end; i++ {
		insert = insert.Values(f.Row(i)...)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return statement{}, fmt.Errorf("ошибка при формировании запроса для %s: %w", f.Name, err)
	}
	return statement{SQL: query, Args: args}, nil
}

func (l *BulkLoader) rowsPerStatement(columns int) int {
	rows := l.batchSize
	if rows < 1 {
		rows = 1
	}
	if limit := maxStatementParams / columns; rows > limit {
		rows = limit
	}
	return rows
}
