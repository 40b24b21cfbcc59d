package transform

import (
	"fmt"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/artifact"
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/schema"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// Transformer координирует построение звездной схемы из данных staging
type Transformer struct {
	schema               schema.Document
	warehouseDir         string
	logger               *utils.ETLLogger
	timeDimProcessor     *TimeDimensionProcessor
	locationDimProcessor *LocationDimensionProcessor
	tripFProcessor       *TripFactsProcessor
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(doc schema.Document, warehouseDir string, logger *utils.ETLLogger) *Transformer {
	return &Transformer{
		schema:               doc,
		warehouseDir:         warehouseDir,
		logger:               logger,
		timeDimProcessor:     NewTimeDimensionProcessor(logger),
		locationDimProcessor: NewLocationDimensionProcessor(logger),
		tripFProcessor:       NewTripFactsProcessor(logger),
	}
}

// Transform строит измерения и факты, приводит их к схеме и сохраняет
// артефакты хранилища
func (t *Transformer) Transform(staged *models.StagedData) (*models.TransformedData, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform (Преобразование данных)")

	transformedData := &models.TransformedData{
		Frames:    make(map[string]*frame.Frame, len(models.WarehouseTables)),
		Artifacts: make(map[string]string, len(models.WarehouseTables)),
	}

	// 1. Измерение времени
	t.logger.Info("Построение измерения времени...")
	times, timeIndex := t.timeDimProcessor.ProcessTimeDimension(staged.Trips)
	transformedData.Times = times
	if err := t.persist(transformedData, TimeDimensionFrame(times)); err != nil {
		return nil, err
	}

	// 2. Статические измерения
	t.logger.Info("Построение справочников поставщиков, тарифов и способов оплаты...")
	transformedData.Vendors = VendorDimension()
	transformedData.RateCodes = RateCodeDimension()
	transformedData.PaymentTypes = PaymentTypeDimension()
	for _, f := range []*frame.Frame{
		VendorDimensionFrame(transformedData.Vendors),
		RateCodeDimensionFrame(transformedData.RateCodes),
		PaymentTypeDimensionFrame(transformedData.PaymentTypes),
	} {
		if err := t.persist(transformedData, f); err != nil {
			return nil, err
		}
	}

	// 3. Измерение зон
	t.logger.Info("Построение измерения зон...")
	locations := t.locationDimProcessor.ProcessLocationDimension(staged.Zones)
	transformedData.Locations = locations
	if err := t.persist(transformedData, LocationDimensionFrame(locations)); err != nil {
		return nil, err
	}

	// 4. Факты поездок
	t.logger.Info("Построение фактов поездок...")
	idx := NewDimensionIndex(timeIndex, locations,
		transformedData.Vendors, transformedData.RateCodes, transformedData.PaymentTypes)
	facts, summary := t.tripFProcessor.ProcessTripFacts(staged.Trips, idx)
	transformedData.Trips = facts
	transformedData.Summary = summary
	if err := t.persist(transformedData, TripFactsFrame(facts)); err != nil {
		return nil, err
	}

	t.logger.Info("Фаза Transform завершена. Фактов: %d, сумма total_amount: %s. Длительность: %v",
		summary.Rows, summary.TotalAmountSum.StringFixed(2), time.Since(startTime))

	return transformedData, nil
}

// persist приводит таблицу к схеме и записывает артефакт хранилища
func (t *Transformer) persist(data *models.TransformedData, f *frame.Frame) error {
	cast, err := t.schema.Cast(f)
	if err != nil {
		t.logger.Error("Ошибка при приведении таблицы %s к схеме: %v", f.Name, err)
		return fmt.Errorf("ошибка при приведении таблицы %s к схеме: %w", f.Name, err)
	}

	path := artifact.Path(t.warehouseDir, f.Name)
	if err := artifact.Write(path, cast); err != nil {
		t.logger.Error("Ошибка при сохранении таблицы %s: %v", f.Name, err)
		return fmt.Errorf("ошибка при сохранении таблицы %s: %w", f.Name, err)
	}

	data.Frames[f.Name] = cast
	data.Artifacts[f.Name] = path
	t.logger.Debug("Таблица %s (%d строк) сохранена в %s", f.Name, cast.Len(), path)
	return nil
}
