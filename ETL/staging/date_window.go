package staging

import (
	"errors"
	"sort"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/models"
)

// ErrNoDominantPeriod возвращается, когда по меткам времени нельзя
// определить доминирующий месяц
var ErrNoDominantPeriod = errors.New("не удалось определить доминирующий месяц")

type monthKey struct {
	year  int
	month time.Month
}

// ComputeDateWindow определяет самый частый календарный месяц среди меток
// времени (при равенстве - более ранний) и границы окна вокруг него.
func ComputeDateWindow(timestamps []time.Time) (models.DateWindow, error) {
	if len(timestamps) == 0 {
		return models.DateWindow{}, ErrNoDominantPeriod
	}

	sorted := make([]time.Time, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	counts := make(map[monthKey]int)
	var best monthKey
	bestCount := 0
	for _, ts := range sorted {
		key := monthKey{year: ts.Year(), month: ts.Month()}
		counts[key]++
		// Обход идет по возрастанию, поэтому строгое сравнение оставляет
		// более ранний месяц при равенстве частот
		if counts[key] > bestCount || (counts[key] == bestCount && monthBefore(key, best)) {
			best = key
			bestCount = counts[key]
		}
	}

	if best.month < time.January || best.month > time.December {
		return models.DateWindow{}, ErrNoDominantPeriod
	}

	period := time.Date(best.year, best.month, 1, 0, 0, 0, 0, time.UTC)
	return models.DateWindow{
		Period:               period,
		LastDayPreviousMonth: period.AddDate(0, 0, -1),
		FirstDayNextMonth:    period.AddDate(0, 1, 0),
	}, nil
}

func monthBefore(a, b monthKey) bool {
	if a.year != b.year {
		return a.year < b.year
	}
	return a.month < b.month
}

// WindowAdmits проверяет, что поездка попадает в окно:
// pickup в [lastPrev, firstNext), dropoff в (lastPrev + 1 день, firstNext]
func WindowAdmits(w models.DateWindow, pickup, dropoff time.Time) bool {
	firstDayOfMonth := w.LastDayPreviousMonth.AddDate(0, 0, 1)
	return !pickup.Before(w.LastDayPreviousMonth) &&
		pickup.Before(w.FirstDayNextMonth) &&
		dropoff.After(firstDayOfMonth) &&
		!dropoff.After(w.FirstDayNextMonth)
}
