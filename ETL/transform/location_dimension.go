package transform

import (
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// LocationDimensionProcessor отвечает за построение измерения зон
type LocationDimensionProcessor struct {
	logger *utils.ETLLogger
}

// NewLocationDimensionProcessor создает новый экземпляр LocationDimensionProcessor
func NewLocationDimensionProcessor(logger *utils.ETLLogger) *LocationDimensionProcessor {
	return &LocationDimensionProcessor{
		logger: logger,
	}
}

// locationKey - полная строка зоны; nil и пустая строка различаются
type locationKey struct {
	id             int64
	borough        string
	zone           string
	serviceZone    string
	hasBorough     bool
	hasZone        bool
	hasServiceZone bool
}

func newLocationKey(z models.ZoneRecord) locationKey {
	key := locationKey{id: z.LocationID}
	if z.Borough != nil {
		key.borough, key.hasBorough = *z.Borough, true
	}
	if z.Zone != nil {
		key.zone, key.hasZone = *z.Zone, true
	}
	if z.ServiceZone != nil {
		key.serviceZone, key.hasServiceZone = *z.ServiceZone, true
	}
	return key
}

// ProcessLocationDimension удаляет полностью совпадающие строки зон,
// сохраняя порядок первого появления и исходный location_id
func (p *LocationDimensionProcessor) ProcessLocationDimension(zones []models.ZoneRecord) []models.LocationDimension {
	p.logger.Debug("Обработка измерения зон...")

	seen := make(map[locationKey]struct{}, len(zones))
	ids := make(map[int64]struct{}, len(zones))
	locations := make([]models.LocationDimension, 0, len(zones))

	for _, z := range zones {
		key := newLocationKey(z)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}

		if _, exists := ids[z.LocationID]; exists {
			p.logger.Error("Зона %d встречается с разными атрибутами", z.LocationID)
		}
		ids[z.LocationID] = struct{}{}

		locations = append(locations, models.LocationDimension{
			ID:          z.LocationID,
			Borough:     z.Borough,
			Zone:        z.Zone,
			ServiceZone: z.ServiceZone,
		})
	}

	p.logger.Debug("Измерение зон содержит %d записей (удалено дубликатов: %d)",
		len(locations), len(zones)-len(locations))
	return locations
}
