package transform

import (
	"sort"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// Части суток
const (
	PartMorning   = "Morning"
	PartAfternoon = "Afternoon"
	PartEvening   = "Evening"
	PartNight     = "Night"
)

// TimeKey - составной ключ измерения времени (дата, час, минута, секунда)
type TimeKey struct {
	Date   string
	Hour   int
	Minute int
	Second int
}

// NewTimeKey строит ключ измерения времени для момента t
func NewTimeKey(t time.Time) TimeKey {
	return TimeKey{
		Date:   t.Format("2006-01-02"),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// PartOfDay возвращает часть суток для часа:
// Morning 5-11, Afternoon 12-17, Evening 18-21, иначе Night
func PartOfDay(hour int) string {
	switch {
	case hour >= 5 && hour <= 11:
		return PartMorning
	case hour >= 12 && hour <= 17:
		return PartAfternoon
	case hour >= 18 && hour <= 21:
		return PartEvening
	default:
		return PartNight
	}
}

// TimeDimensionProcessor отвечает за построение измерения времени
type TimeDimensionProcessor struct {
	logger *utils.ETLLogger
}

// NewTimeDimensionProcessor создает новый экземпляр TimeDimensionProcessor
func NewTimeDimensionProcessor(logger *utils.ETLLogger) *TimeDimensionProcessor {
	return &TimeDimensionProcessor{
		logger: logger,
	}
}

// ProcessTimeDimension строит измерение времени по моментам посадки и высадки.
// Моменты усекаются до секунды, дубликаты удаляются, идентификаторы
// назначаются подряд с нуля в хронологическом порядке. Вторым значением
// возвращается индекс ключ -> time_id.
func (p *TimeDimensionProcessor) ProcessTimeDimension(trips []models.TripRecord) ([]models.TimeDimension, map[TimeKey]int64) {
	p.logger.Debug("Обработка измерения времени...")

	// Собираем уникальные моменты
	seen := make(map[TimeKey]struct{}, len(trips)*2)
	instants := make([]time.Time, 0, len(trips)*2)
	add := func(t time.Time) {
		t = t.Truncate(time.Second)
		key := NewTimeKey(t)
		if _, exists := seen[key]; exists {
			return
		}
		seen[key] = struct{}{}
		instants = append(instants, t)
	}
	for _, trip := range trips {
		add(trip.PickupDatetime)
		add(trip.DropoffDatetime)
	}

	sort.Slice(instants, func(i, j int) bool {
		return instants[i].Before(instants[j])
	})

	times := make([]models.TimeDimension, len(instants))
	index := make(map[TimeKey]int64, len(instants))
	for i, t := range instants {
		id := int64(i)
		times[i] = models.TimeDimension{
			ID:        id,
			Date:      time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Year:      t.Year(),
			Month:     int(t.Month()),
			Day:       t.Day(),
			DayOfWeek: t.Weekday().String(),
			Hour:      t.Hour(),
			Minute:    t.Minute(),
			Second:    t.Second(),
			PartOfDay: PartOfDay(t.Hour()),
		}
		index[NewTimeKey(t)] = id
	}

	p.logger.Debug("Измерение времени содержит %d записей", len(times))
	return times, index
}
