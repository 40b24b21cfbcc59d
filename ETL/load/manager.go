package load

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/artifact"
	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// LoadManager отвечает за управление процессом загрузки данных в хранилище
type LoadManager struct {
	db     *sql.DB
	logger *utils.ETLLogger
	loader Loader
	atomic bool
}

// NewLoadManager создает новый экземпляр LoadManager
func NewLoadManager(db *sql.DB, warehouse config.DatabaseConfig, cfg config.LoadConfig, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		db:     db,
		logger: logger,
		loader: NewBulkLoader(warehouse.Driver, warehouse.Schema, cfg.BatchSize, logger),
		atomic: cfg.Atomic,
	}
}

// CreateTables выполняет DDL-скрипт в одной транзакции.
// При ошибке транзакция откатывается.
func (m *LoadManager) CreateTables(ctx context.Context, ddlPath string) error {
	m.logger.Info("Создание таблиц хранилища из %s...", ddlPath)

	script, err := os.ReadFile(ddlPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения DDL %s: %w", ddlPath, err)
	}
	statements := SplitStatements(string(script))
	if len(statements) == 0 {
		return fmt.Errorf("DDL %s не содержит команд", ddlPath)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			m.logger.Error("Ошибка при выполнении DDL (команда %d): %v", i+1, err)
			return fmt.Errorf("ошибка при выполнении DDL (команда %d): %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	m.logger.Info("Таблицы хранилища созданы (команд: %d)", len(statements))
	return nil
}

// Load выполняет фазу загрузки данных ETL-процесса.
// Таблицы читаются из артефактов и загружаются в порядке WarehouseTables.
// Возвращает таблицы, зафиксированные в хранилище; при ошибке в режиме
// транзакции на таблицу ранее загруженные таблицы остаются в хранилище.
func (m *LoadManager) Load(ctx context.Context, artifacts map[string]string) ([]string, error) {
	startTime := time.Now()
	m.logger.Info("Начало фазы Load (Загрузка данных)")

	var (
		loaded []string
		err    error
	)
	if m.atomic {
		loaded, err = m.loadAtomic(ctx, artifacts)
	} else {
		loaded, err = m.loadPerTable(ctx, artifacts)
	}
	if err != nil {
		m.logger.Error("Фаза Load прервана. Загружены таблицы: %v", loaded)
		return loaded, err
	}

	m.logger.Info("Фаза Load завершена. Таблиц: %d. Длительность: %v", len(loaded), time.Since(startTime))
	return loaded, nil
}

func (m *LoadManager) loadPerTable(ctx context.Context, artifacts map[string]string) ([]string, error) {
	loaded := make([]string, 0, len(models.WarehouseTables))

	for _, table := range models.WarehouseTables {
		f, err := readArtifact(artifacts, table)
		if err != nil {
			return loaded, err
		}

		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return loaded, fmt.Errorf("ошибка при начале транзакции для %s: %w", table, err)
		}

		if _, err := m.loader.LoadTable(ctx, tx, f); err != nil {
			tx.Rollback()
			m.logger.Error("Ошибка при загрузке %s: %v", table, err)
			return loaded, fmt.Errorf("ошибка при загрузке %s: %w", table, err)
		}

		if err := tx.Commit(); err != nil {
			tx.Rollback()
			return loaded, fmt.Errorf("ошибка при фиксации транзакции для %s: %w", table, err)
		}
		loaded = append(loaded, table)
	}

	return loaded, nil
}

func (m *LoadManager) loadAtomic(ctx context.Context, artifacts map[string]string) ([]string, error) {
	frames := make([]*frame.Frame, 0, len(models.WarehouseTables))
	for _, table := range models.WarehouseTables {
		f, err := readArtifact(artifacts, table)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	for _, f := range frames {
		if _, err := m.loader.LoadTable(ctx, tx, f); err != nil {
			tx.Rollback()
			m.logger.Error("Ошибка при загрузке %s: %v", f.Name, err)
			return nil, fmt.Errorf("ошибка при загрузке %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	loaded := make([]string, len(models.WarehouseTables))
	copy(loaded, models.WarehouseTables)
	return loaded, nil
}

func readArtifact(artifacts map[string]string, table string) (*frame.Frame, error) {
	path, ok := artifacts[table]
	if !ok {
		return nil, fmt.Errorf("нет артефакта для таблицы %s", table)
	}
	f, err := artifact.Read(path, table)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении артефакта %s: %w", table, err)
	}
	return f, nil
}
