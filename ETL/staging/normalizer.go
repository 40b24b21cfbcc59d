// Package staging очищает исходные поездки и справочник зон перед
// построением звездной схемы.
package staging

import (
	"fmt"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/schema"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// Normalizer координирует фазу staging
type Normalizer struct {
	logger        *utils.ETLLogger
	tripProcessor *TripStagingProcessor
	zoneProcessor *ZoneStagingProcessor
}

// NewNormalizer создает новый экземпляр Normalizer
func NewNormalizer(stagingDir string, logger *utils.ETLLogger) *Normalizer {
	return &Normalizer{
		logger:        logger,
		tripProcessor: NewTripStagingProcessor(stagingDir, logger),
		zoneProcessor: NewZoneStagingProcessor(stagingDir, logger),
	}
}

// Normalize очищает исходные файлы. loadTime - момент запуска конвейера
// в часовом поясе метки загрузки.
func (n *Normalizer) Normalize(raw *models.RawFiles, loadTime time.Time) (*models.StagedData, error) {
	startTime := time.Now()
	n.logger.Info("Начало фазы Staging (Очистка данных)")

	loadDatetime := loadTime.Format(schema.LoadTimestampLayout)

	// 1. Очистка поездок
	n.logger.Info("Очистка поездок...")
	trips, summary, err := n.tripProcessor.ProcessTrips(raw.TripData, loadDatetime)
	if err != nil {
		n.logger.Error("Ошибка при очистке поездок: %v", err)
		return nil, fmt.Errorf("ошибка при очистке поездок: %w", err)
	}

	// 2. Очистка справочника зон
	n.logger.Info("Очистка справочника зон...")
	zones, err := n.zoneProcessor.ProcessZones(raw.ZoneLookup)
	if err != nil {
		n.logger.Error("Ошибка при очистке справочника зон: %v", err)
		return nil, fmt.Errorf("ошибка при очистке справочника зон: %w", err)
	}
	summary.Zones = len(zones)

	n.logger.Info("Фаза Staging завершена. Поездок: %d из %d, зон: %d. Длительность: %v",
		summary.StagedTrips, summary.RawTrips, summary.Zones, time.Since(startTime))

	return &models.StagedData{
		Trips:   trips,
		Zones:   zones,
		Summary: summary,
	}, nil
}
