package staging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/LilVoxy/taxi_etl/ETL/artifact"
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

var zoneColumnRenames = map[string]string{
	"locationid": "location_id",
}

var requiredZoneColumns = []string{"location_id", "borough", "zone", "service_zone"}

// naTokens - значения CSV, которые считаются отсутствующими
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// ZoneStagingProcessor отвечает за очистку справочника зон
type ZoneStagingProcessor struct {
	stagingDir string
	logger     *utils.ETLLogger
}

// NewZoneStagingProcessor создает новый экземпляр ZoneStagingProcessor
func NewZoneStagingProcessor(stagingDir string, logger *utils.ETLLogger) *ZoneStagingProcessor {
	return &ZoneStagingProcessor{
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// ProcessZones читает CSV справочника зон, заполняет пропуски по правилам
// и сохраняет результат в staging
func (p *ZoneStagingProcessor) ProcessZones(rawPath string) ([]models.ZoneRecord, error) {
	p.logger.Debug("Чтение справочника зон из %s...", rawPath)

	file, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии справочника зон: %w", err)
	}
	defer file.Close()

	zones, err := ReadZones(file)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении справочника зон %s: %w", rawPath, err)
	}

	filled := make(map[string]int)
	for i := range zones {
		var rule string
		zones[i], rule = fillZone(zones[i])
		if rule != "" {
			filled[rule]++
		}
	}
	p.logger.Debug("Прочитано %d зон, сработавшие правила заполнения: %s", len(zones), formatCounts(filled))

	path := artifact.Path(p.stagingDir, ZoneTable)
	if err := artifact.Write(path, ZonesFrame(zones)); err != nil {
		return nil, fmt.Errorf("ошибка при сохранении staging зон: %w", err)
	}
	p.logger.Debug("Staging зон сохранен в %s", path)

	return zones, nil
}

// ReadZones разбирает CSV справочника зон. Заголовок приводится к нижнему
// регистру, значения из naTokens становятся nil.
func ReadZones(r io.Reader) ([]models.ZoneRecord, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("пустой файл без заголовка")
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if renamed, ok := zoneColumnRenames[name]; ok {
			name = renamed
		}
		index[name] = i
	}
	for _, name := range requiredZoneColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%s.%s: %w", ZoneTable, name, frame.ErrMissingColumn)
		}
	}

	zones := make([]models.ZoneRecord, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		idValue := naValue(record[index["location_id"]])
		if idValue == nil {
			return nil, fmt.Errorf("строка %d: отсутствует location_id", line)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(*idValue), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("строка %d: некорректный location_id %q: %w", line, *idValue, err)
		}

		zones = append(zones, models.ZoneRecord{
			LocationID:  id,
			Borough:     naValue(record[index["borough"]]),
			Zone:        naValue(record[index["zone"]]),
			ServiceZone: naValue(record[index["service_zone"]]),
		})
	}
	return zones, nil
}

func naValue(s string) *string {
	if _, ok := naTokens[strings.TrimSpace(s)]; ok {
		return nil
	}
	return &s
}

// ZonesFrame преобразует зоны в staging-таблицу
func ZonesFrame(zones []models.ZoneRecord) *frame.Frame {
	ids := make([]any, len(zones))
	boroughs := make([]any, len(zones))
	names := make([]any, len(zones))
	serviceZones := make([]any, len(zones))
	for i, z := range zones {
		ids[i] = z.LocationID
		boroughs[i] = frame.Nullable(z.Borough)
		names[i] = frame.Nullable(z.Zone)
		serviceZones[i] = frame.Nullable(z.ServiceZone)
	}

	f := frame.New(ZoneTable)
	f.MustAddColumn("location_id", frame.Int64, ids)
	f.MustAddColumn("borough", frame.String, boroughs)
	f.MustAddColumn("zone", frame.String, names)
	f.MustAddColumn("service_zone", frame.String, serviceZones)
	return f
}
