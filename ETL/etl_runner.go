package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/LilVoxy/taxi_etl/ETL/config"
	"github.com/LilVoxy/taxi_etl/ETL/extractors"
	"github.com/LilVoxy/taxi_etl/ETL/load"
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/schema"
	"github.com/LilVoxy/taxi_etl/ETL/staging"
	"github.com/LilVoxy/taxi_etl/ETL/transform"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
	"github.com/google/uuid"
)

type ETLRunner struct {
	config      config.ETLConfig
	location    *time.Location
	db          *sql.DB
	logger      *utils.ETLLogger
	extractor   *extractors.Extractor
	normalizer  *staging.Normalizer
	transformer *transform.Transformer
	loadManager *load.LoadManager
	etlLogRepo  models.ETLLogRepository
}

// NewETLRunner создает новый экземпляр ETLRunner
func NewETLRunner(ctx context.Context) (*ETLRunner, error) {
	// Получаем конфигурацию
	etlConfig, err := config.Load(config.GetConfigPath())
	if err != nil {
		return nil, err
	}
	location, err := etlConfig.Location()
	if err != nil {
		return nil, err
	}

	// Инициализируем логгер
	logger, err := utils.NewETLLogger(etlConfig.EnableDetailedLogging)
	if err != nil {
		return nil, err
	}
	logger.Info("Инициализация ETL Runner")

	// Схема загружается до скачивания данных
	doc, err := schema.Load(etlConfig.Paths.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки схемы хранилища: %w", err)
	}

	// Подключаемся к хранилищу
	db, err := config.ConnectWarehouse(ctx, etlConfig.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	// Инициализируем репозиторий логов ETL
	etlLogRepo := models.NewSQLETLLogRepository(db, etlConfig.Warehouse.Driver, etlConfig.Warehouse.Schema)

	// Создаем таблицу логов, если она еще не существует
	if err := etlLogRepo.CreateETLLogTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка при создании таблицы логов ETL: %w", err)
	}

	return &ETLRunner{
		config:      etlConfig,
		location:    location,
		db:          db,
		logger:      logger,
		extractor:   extractors.NewExtractor(etlConfig.Paths.RawDir, etlConfig.Sources, logger),
		normalizer:  staging.NewNormalizer(etlConfig.Paths.StagingDir, logger),
		transformer: transform.NewTransformer(doc, etlConfig.Paths.WarehouseDir, logger),
		loadManager: load.NewLoadManager(db, etlConfig.Warehouse, etlConfig.Load, logger),
		etlLogRepo:  etlLogRepo,
	}, nil
}

// Close закрывает соединение с хранилищем
func (r *ETLRunner) Close() {
	r.logger.Info("Завершение работы ETL Runner")
	if err := r.db.Close(); err != nil {
		r.logger.Error("Ошибка при закрытии соединения с хранилищем: %v", err)
	}
	r.logger.Sync()
}

// ExecuteETL выполняет полный ETL процесс
func (r *ETLRunner) ExecuteETL(ctx context.Context) error {
	// Момент запуска фиксируется один раз и передается явно
	startTime := time.Now()
	runLog := &models.ETLRunLog{
		RunID:     uuid.NewString(),
		StartTime: startTime,
	}
	r.logger.LogETLStart(runLog.RunID)

	// Создаем запись в журнале ETL
	if err := r.etlLogRepo.CreateLogEntry(ctx, runLog); err != nil {
		r.logger.Error("Ошибка при создании записи в журнале ETL: %v", err)
		return fmt.Errorf("ошибка при создании записи в журнале ETL: %w", err)
	}

	lastRun, err := r.etlLogRepo.GetLastSuccessfulRun(ctx)
	if err != nil {
		r.logger.Error("Не удалось получить информацию о последнем успешном запуске: %v", err)
	} else if lastRun != nil {
		r.logger.Info("Последний успешный запуск: %v, период %s. Хранилище будет перезагружено полностью",
			lastRun.EndTime, lastRun.TargetPeriod)
	}

	// 1. Фаза извлечения данных (Extract)
	raw, err := r.extractor.Extract(ctx, r.config.Sources.TripDataURL, r.config.Sources.ZoneLookupURL)
	if err != nil {
		return r.fail(ctx, runLog, "Extract", err)
	}

	// 2. Фаза очистки данных (Staging)
	staged, err := r.normalizer.Normalize(raw, startTime.In(r.location))
	if err != nil {
		return r.fail(ctx, runLog, "Staging", err)
	}
	runLog.TargetPeriod = staged.Summary.Window.PeriodLabel()
	runLog.RawTrips = staged.Summary.RawTrips
	runLog.StagedTrips = staged.Summary.StagedTrips

	// 3. Фаза трансформации данных (Transform)
	transformedData, err := r.transformer.Transform(staged)
	if err != nil {
		return r.fail(ctx, runLog, "Transform", err)
	}
	runLog.FactRows = transformedData.Summary.Rows
	runLog.TotalAmountSum = transformedData.Summary.TotalAmountSum

	// 4. Фаза загрузки данных (Load)
	if err := r.loadManager.CreateTables(ctx, r.config.Paths.DDLFile); err != nil {
		return r.fail(ctx, runLog, "Load", err)
	}
	loaded, err := r.loadManager.Load(ctx, transformedData.Artifacts)
	runLog.TablesLoaded = loaded
	if err != nil {
		return r.fail(ctx, runLog, "Load", err)
	}

	// Обновляем запись в журнале с информацией об успешном выполнении
	runLog.EndTime = time.Now()
	if err := r.etlLogRepo.UpdateLogEntrySuccess(ctx, runLog); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
	}

	r.logger.LogETLComplete(startTime, runLog.StagedTrips, runLog.FactRows, len(runLog.TablesLoaded))
	return nil
}

// fail логирует ошибку фазы и фиксирует неудачный запуск в журнале
func (r *ETLRunner) fail(ctx context.Context, runLog *models.ETLRunLog, phase string, err error) error {
	errMsg := fmt.Sprintf("Ошибка в фазе %s: %v", phase, err)
	r.logger.Error("%s", errMsg)

	runLog.EndTime = time.Now()
	runLog.ErrorMessage = errMsg

	// Журнал обновляется и после отмены контекста запуска
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if updateErr := r.etlLogRepo.UpdateLogEntryFailure(logCtx, runLog); updateErr != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале ETL: %v", updateErr)
	}
	if len(runLog.TablesLoaded) > 0 {
		r.logger.Error("Хранилище загружено частично: %s", runLog.TablesLoadedString())
	}

	return fmt.Errorf("ошибка в фазе %s: %w", phase, err)
}

func main() {
	// Контекст отменяется при получении сигнала завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := NewETLRunner(ctx)
	if err != nil {
		log.Printf("Ошибка при создании ETL Runner: %v", err)
		os.Exit(1)
	}

	if err := runner.ExecuteETL(ctx); err != nil {
		runner.Close()
		log.Printf("Ошибка при выполнении ETL: %v", err)
		os.Exit(1)
	}
	runner.Close()
}
