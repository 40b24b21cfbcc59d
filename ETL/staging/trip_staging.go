package staging

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/artifact"
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
)

// Имена staging-таблиц
const (
	TripTable = "yellow_tripdata"
	ZoneTable = "zone_lookup"
)

// tripColumnRenames приводит исходные имена колонок (после lower-case) к каноническим
var tripColumnRenames = map[string]string{
	"vendorid":              "vendor_id",
	"ratecodeid":            "rate_code_id",
	"pulocationid":          "pu_location_id",
	"dolocationid":          "do_location_id",
	"tpep_pickup_datetime":  "pickup_datetime",
	"tpep_dropoff_datetime": "dropoff_datetime",
	"payment_type":          "payment_type_id",
}

// requiredTripColumns должны присутствовать в исходном файле поездок
var requiredTripColumns = []string{
	"vendor_id", "pickup_datetime", "dropoff_datetime", "passenger_count",
	"trip_distance", "rate_code_id", "store_and_fwd_flag", "pu_location_id",
	"do_location_id", "payment_type_id", "fare_amount", "extra", "mta_tax",
	"tip_amount", "tolls_amount", "total_amount",
}

// tripColumnTypes - колонки staging-таблицы поездок в порядке сохранения
var tripColumnTypes = []struct {
	name string
	typ  frame.Type
}{
	{"vendor_id", frame.Int64},
	{"pickup_datetime", frame.Timestamp},
	{"dropoff_datetime", frame.Timestamp},
	{"passenger_count", frame.Int64},
	{"trip_distance", frame.Float64},
	{"rate_code_id", frame.Int64},
	{"store_and_fwd_flag", frame.String},
	{"pu_location_id", frame.Int64},
	{"do_location_id", frame.Int64},
	{"payment_type_id", frame.Int64},
	{"fare_amount", frame.Float64},
	{"extra", frame.Float64},
	{"mta_tax", frame.Float64},
	{"tip_amount", frame.Float64},
	{"tolls_amount", frame.Float64},
	{"improvement_surcharge", frame.Float64},
	{"total_amount", frame.Float64},
	{"congestion_surcharge", frame.Float64},
	{"airport_fee", frame.Float64},
	{"load_datetime", frame.String},
}

// rawTrip - поездка до фильтрации. Поля, участвующие в фильтре,
// могут отсутствовать в исходных данных.
type rawTrip struct {
	record  models.TripRecord
	fare    *float64
	pickup  *time.Time
	dropoff *time.Time
}

// TripStagingProcessor отвечает за очистку поездок
type TripStagingProcessor struct {
	stagingDir string
	logger     *utils.ETLLogger
}

// NewTripStagingProcessor создает новый экземпляр TripStagingProcessor
func NewTripStagingProcessor(stagingDir string, logger *utils.ETLLogger) *TripStagingProcessor {
	return &TripStagingProcessor{
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// ProcessTrips читает исходный parquet поездок, вычисляет окно дат, отбрасывает
// поездки вне окна и с некорректными значениями, исправляет категориальные
// значения и сохраняет результат в staging.
func (p *TripStagingProcessor) ProcessTrips(rawPath, loadDatetime string) ([]models.TripRecord, models.StagingSummary, error) {
	var summary models.StagingSummary

	// 1. Чтение исходного файла
	p.logger.Debug("Чтение поездок из %s...", rawPath)
	raw, err := artifact.Read(rawPath, TripTable)
	if err != nil {
		return nil, summary, fmt.Errorf("ошибка при чтении поездок: %w", err)
	}

	// 2. Нормализация имен колонок
	if err := NormalizeTripColumns(raw); err != nil {
		return nil, summary, err
	}

	// 3. Разбор строк
	rows, misses, err := decodeTrips(raw)
	if err != nil {
		return nil, summary, err
	}
	summary.RawTrips = len(rows)
	p.logger.Debug("Прочитано %d поездок, нецелых кодов: %s", len(rows), formatCounts(misses))

	// 4. Окно дат по доминирующему месяцу
	timestamps := make([]time.Time, 0, len(rows)*2)
	for _, r := range rows {
		if r.pickup != nil {
			timestamps = append(timestamps, *r.pickup)
		}
		if r.dropoff != nil {
			timestamps = append(timestamps, *r.dropoff)
		}
	}
	window, err := ComputeDateWindow(timestamps)
	if err != nil {
		return nil, summary, fmt.Errorf("ошибка при вычислении окна дат: %w", err)
	}
	summary.Window = window
	p.logger.Info("Доминирующий месяц: %s, окно [%s, %s]",
		window.PeriodLabel(),
		window.LastDayPreviousMonth.Format("2006-01-02"),
		window.FirstDayNextMonth.Format("2006-01-02"))

	// 5. Фильтрация и исправление значений
	trips := filterTrips(rows, window)
	repairs := make(map[string]int)
	for i := range trips {
		repairTrip(&trips[i], repairs)
		trips[i].LoadDatetime = loadDatetime
	}
	summary.StagedTrips = len(trips)
	p.logger.Debug("Отфильтровано %d поездок, исправлено значений: %s",
		summary.RawTrips-summary.StagedTrips, formatCounts(repairs))

	// 6. Сохранение staging-артефакта
	path := artifact.Path(p.stagingDir, TripTable)
	if err := artifact.Write(path, TripsFrame(trips)); err != nil {
		return nil, summary, fmt.Errorf("ошибка при сохранении staging поездок: %w", err)
	}
	p.logger.Debug("Staging поездок сохранен в %s", path)

	return trips, summary, nil
}

// NormalizeTripColumns приводит имена колонок к нижнему регистру,
// переименовывает их в канонические и проверяет обязательные колонки
func NormalizeTripColumns(f *frame.Frame) error {
	if err := f.Rename(strings.ToLower); err != nil {
		return fmt.Errorf("ошибка при нормализации колонок: %w", err)
	}
	if err := f.RenameMap(tripColumnRenames); err != nil {
		return fmt.Errorf("ошибка при переименовании колонок: %w", err)
	}
	for _, name := range requiredTripColumns {
		if !f.Has(name) {
			return fmt.Errorf("%s.%s: %w", f.Name, name, frame.ErrMissingColumn)
		}
	}
	return nil
}

// filterTrips оставляет поездки с fare_amount > 0, passenger_count > 0
// и временами внутри окна. Порядок поездок сохраняется.
func filterTrips(rows []rawTrip, window models.DateWindow) []models.TripRecord {
	trips := make([]models.TripRecord, 0, len(rows))
	for _, r := range rows {
		if r.fare == nil || *r.fare <= 0 {
			continue
		}
		if r.record.PassengerCount == nil || *r.record.PassengerCount <= 0 {
			continue
		}
		if r.pickup == nil || r.dropoff == nil || !WindowAdmits(window, *r.pickup, *r.dropoff) {
			continue
		}
		t := r.record
		t.FareAmount = *r.fare
		t.PickupDatetime = *r.pickup
		t.DropoffDatetime = *r.dropoff
		trips = append(trips, t)
	}
	return trips
}

// TripsFrame преобразует поездки в staging-таблицу
func TripsFrame(trips []models.TripRecord) *frame.Frame {
	columns := make(map[string][]any, len(tripColumnTypes))
	for _, c := range tripColumnTypes {
		columns[c.name] = make([]any, len(trips))
	}

	for i, t := range trips {
		columns["vendor_id"][i] = frame.Nullable(t.VendorID)
		columns["pickup_datetime"][i] = t.PickupDatetime
		columns["dropoff_datetime"][i] = t.DropoffDatetime
		columns["passenger_count"][i] = frame.Nullable(t.PassengerCount)
		columns["trip_distance"][i] = frame.Nullable(t.TripDistance)
		columns["rate_code_id"][i] = frame.Nullable(t.RateCodeID)
		columns["store_and_fwd_flag"][i] = frame.Nullable(t.StoreAndFwdFlag)
		columns["pu_location_id"][i] = frame.Nullable(t.PULocationID)
		columns["do_location_id"][i] = frame.Nullable(t.DOLocationID)
		columns["payment_type_id"][i] = frame.Nullable(t.PaymentTypeID)
		columns["fare_amount"][i] = t.FareAmount
		columns["extra"][i] = frame.Nullable(t.Extra)
		columns["mta_tax"][i] = frame.Nullable(t.MTATax)
		columns["tip_amount"][i] = frame.Nullable(t.TipAmount)
		columns["tolls_amount"][i] = frame.Nullable(t.TollsAmount)
		columns["improvement_surcharge"][i] = frame.Nullable(t.ImprovementSurcharge)
		columns["total_amount"][i] = frame.Nullable(t.TotalAmount)
		columns["congestion_surcharge"][i] = frame.Nullable(t.CongestionSurcharge)
		columns["airport_fee"][i] = frame.Nullable(t.AirportFee)
		columns["load_datetime"][i] = t.LoadDatetime
	}

	f := frame.New(TripTable)
	for _, c := range tripColumnTypes {
		f.MustAddColumn(c.name, c.typ, columns[c.name])
	}
	return f
}

// decodeTrips разбирает строки исходной таблицы в поездки.
// Дробное значение в целочисленной колонке (passenger_count = 1.5) считается
// пропуском и учитывается в возвращаемых счетчиках по колонкам.
func decodeTrips(f *frame.Frame) ([]rawTrip, map[string]int, error) {
	col := func(name string) []any {
		c, err := f.Column(name)
		if err != nil {
			return nil
		}
		return c.Values
	}

	var (
		vendor       = col("vendor_id")
		pickup       = col("pickup_datetime")
		dropoff      = col("dropoff_datetime")
		passengers   = col("passenger_count")
		distance     = col("trip_distance")
		rateCode     = col("rate_code_id")
		storeAndFwd  = col("store_and_fwd_flag")
		puLocation   = col("pu_location_id")
		doLocation   = col("do_location_id")
		paymentType  = col("payment_type_id")
		fare         = col("fare_amount")
		extra        = col("extra")
		mtaTax       = col("mta_tax")
		tip          = col("tip_amount")
		tolls        = col("tolls_amount")
		improvement  = col("improvement_surcharge")
		total        = col("total_amount")
		congestion   = col("congestion_surcharge")
		airportFee   = col("airport_fee")
		rows         = make([]rawTrip, f.Len())
		misses       = make(map[string]int)
		decodeErr    error
		decodeColumn string
	)

	intAt := func(name string, values []any, i int) *int64 {
		if values == nil || decodeErr != nil {
			return nil
		}
		if !integral(values[i]) {
			misses[name]++
			return nil
		}
		n, ok, err := frame.Int64Value(values[i])
		if err != nil {
			decodeErr, decodeColumn = err, name
			return nil
		}
		if !ok {
			return nil
		}
		return &n
	}
	floatAt := func(name string, values []any, i int) *float64 {
		if values == nil || decodeErr != nil {
			return nil
		}
		x, ok, err := frame.Float64Value(values[i])
		if err != nil {
			decodeErr, decodeColumn = err, name
			return nil
		}
		if !ok {
			return nil
		}
		return &x
	}
	stringAt := func(name string, values []any, i int) *string {
		if values == nil || decodeErr != nil {
			return nil
		}
		s, ok, err := frame.StringValue(values[i])
		if err != nil {
			decodeErr, decodeColumn = err, name
			return nil
		}
		if !ok {
			return nil
		}
		return &s
	}
	timeAt := func(name string, values []any, i int) *time.Time {
		if values == nil || decodeErr != nil {
			return nil
		}
		ts, ok, err := frame.TimeValue(values[i])
		if err != nil {
			decodeErr, decodeColumn = err, name
			return nil
		}
		if !ok {
			return nil
		}
		return &ts
	}

	for i := range rows {
		rows[i] = rawTrip{
			record: models.TripRecord{
				VendorID:             intAt("vendor_id", vendor, i),
				PassengerCount:       intAt("passenger_count", passengers, i),
				TripDistance:         floatAt("trip_distance", distance, i),
				RateCodeID:           intAt("rate_code_id", rateCode, i),
				StoreAndFwdFlag:      stringAt("store_and_fwd_flag", storeAndFwd, i),
				PULocationID:         intAt("pu_location_id", puLocation, i),
				DOLocationID:         intAt("do_location_id", doLocation, i),
				PaymentTypeID:        intAt("payment_type_id", paymentType, i),
				Extra:                floatAt("extra", extra, i),
				MTATax:               floatAt("mta_tax", mtaTax, i),
				TipAmount:            floatAt("tip_amount", tip, i),
				TollsAmount:          floatAt("tolls_amount", tolls, i),
				ImprovementSurcharge: floatAt("improvement_surcharge", improvement, i),
				TotalAmount:          floatAt("total_amount", total, i),
				CongestionSurcharge:  floatAt("congestion_surcharge", congestion, i),
				AirportFee:           floatAt("airport_fee", airportFee, i),
			},
			fare:    floatAt("fare_amount", fare, i),
			pickup:  timeAt("pickup_datetime", pickup, i),
			dropoff: timeAt("dropoff_datetime", dropoff, i),
		}
		if decodeErr != nil {
			return nil, nil, fmt.Errorf("ошибка разбора %s.%s (строка %d): %w", f.Name, decodeColumn, i, decodeErr)
		}
	}
	return rows, misses, nil
}

// integral сообщает, можно ли без потерь привести значение к целому.
// Нечисловые значения проверяет frame.Int64Value.
func integral(v any) bool {
	switch x := v.(type) {
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0) && x == math.Trunc(x) && x == float64(int64(x))
	case float32:
		return integral(float64(x))
	default:
		return true
	}
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "нет"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
