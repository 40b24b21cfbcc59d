package transform

import (
	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/LilVoxy/taxi_etl/ETL/models"
)

// TimeDimensionFrame преобразует измерение времени в таблицу time_dim
func TimeDimensionFrame(times []models.TimeDimension) *frame.Frame {
	n := len(times)
	ids, dates := make([]any, n), make([]any, n)
	years, months, days := make([]any, n), make([]any, n), make([]any, n)
	weekdays, parts := make([]any, n), make([]any, n)
	hours, minutes, seconds := make([]any, n), make([]any, n), make([]any, n)

	for i, t := range times {
		ids[i] = t.ID
		dates[i] = t.Date
		years[i] = int64(t.Year)
		months[i] = int64(t.Month)
		days[i] = int64(t.Day)
		weekdays[i] = t.DayOfWeek
		hours[i] = int64(t.Hour)
		minutes[i] = int64(t.Minute)
		seconds[i] = int64(t.Second)
		parts[i] = t.PartOfDay
	}

	f := frame.New(models.TableTimeDim)
	f.MustAddColumn("time_id", frame.Int64, ids)
	f.MustAddColumn("date", frame.Date, dates)
	f.MustAddColumn("year", frame.Int64, years)
	f.MustAddColumn("month", frame.Int64, months)
	f.MustAddColumn("day", frame.Int64, days)
	f.MustAddColumn("day_of_week", frame.String, weekdays)
	f.MustAddColumn("hour", frame.Int64, hours)
	f.MustAddColumn("minute", frame.Int64, minutes)
	f.MustAddColumn("second", frame.Int64, seconds)
	f.MustAddColumn("part_of_day", frame.String, parts)
	return f
}

// LocationDimensionFrame преобразует измерение зон в таблицу location_dim
func LocationDimensionFrame(locations []models.LocationDimension) *frame.Frame {
	n := len(locations)
	ids, boroughs, zones, serviceZones := make([]any, n), make([]any, n), make([]any, n), make([]any, n)
	for i, l := range locations {
		ids[i] = l.ID
		boroughs[i] = frame.Nullable(l.Borough)
		zones[i] = frame.Nullable(l.Zone)
		serviceZones[i] = frame.Nullable(l.ServiceZone)
	}

	f := frame.New(models.TableLocationDim)
	f.MustAddColumn("location_id", frame.Int64, ids)
	f.MustAddColumn("borough", frame.String, boroughs)
	f.MustAddColumn("zone", frame.String, zones)
	f.MustAddColumn("service_zone", frame.String, serviceZones)
	return f
}

// VendorDimensionFrame преобразует справочник поставщиков в таблицу vendor_dim
func VendorDimensionFrame(vendors []models.VendorDimension) *frame.Frame {
	ids, names := make([]any, len(vendors)), make([]any, len(vendors))
	for i, v := range vendors {
		ids[i], names[i] = v.ID, v.Name
	}

	f := frame.New(models.TableVendorDim)
	f.MustAddColumn("vendor_id", frame.Int64, ids)
	f.MustAddColumn("vendor_name", frame.String, names)
	return f
}

// RateCodeDimensionFrame преобразует справочник тарифов в таблицу rate_code_dim
func RateCodeDimensionFrame(rateCodes []models.RateCodeDimension) *frame.Frame {
	ids, descriptions := make([]any, len(rateCodes)), make([]any, len(rateCodes))
	for i, r := range rateCodes {
		ids[i], descriptions[i] = r.ID, r.Description
	}

	f := frame.New(models.TableRateCodeDim)
	f.MustAddColumn("rate_code_id", frame.Int64, ids)
	f.MustAddColumn("rate_code_description", frame.String, descriptions)
	return f
}

// PaymentTypeDimensionFrame преобразует справочник способов оплаты в таблицу payment_type_dim
func PaymentTypeDimensionFrame(paymentTypes []models.PaymentTypeDimension) *frame.Frame {
	ids, descriptions := make([]any, len(paymentTypes)), make([]any, len(paymentTypes))
	for i, pt := range paymentTypes {
		ids[i], descriptions[i] = pt.ID, pt.Description
	}

	f := frame.New(models.TablePaymentTypeDim)
	f.MustAddColumn("payment_type_id", frame.Int64, ids)
	f.MustAddColumn("payment_description", frame.String, descriptions)
	return f
}

// tripFactColumns - проекция таблицы фактов в порядке колонок
var tripFactColumns = []struct {
	name  string
	typ   frame.Type
	value func(models.TripFact) any
}{
	{"trip_id", frame.Int64, func(f models.TripFact) any { return f.TripID }},
	{"vendor_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.VendorID) }},
	{"pickup_time_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.PickupTimeID) }},
	{"dropoff_time_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.DropoffTimeID) }},
	{"pickup_location_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.PickupLocationID) }},
	{"dropoff_location_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.DropoffLocationID) }},
	{"rate_code_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.RateCodeID) }},
	{"passenger_count", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.PassengerCount) }},
	{"trip_distance", frame.Float64, func(f models.TripFact) any { return frame.Nullable(f.TripDistance) }},
	{"payment_type_id", frame.Int64, func(f models.TripFact) any { return frame.Nullable(f.PaymentTypeID) }},
	{"fare_amount", frame.Float64, func(f models.TripFact) any { return f.FareAmount }},
	{"extra", frame.Float64, func(f models.TripFact) any { return frame.Nullable(f.Extra) }},
	{"mta_tax", frame.Float64, func(f models.TripFact) any { return frame.Nullable(f.MTATax) }},
	{"tip_amount", frame.Float64, func(f models.TripFact) any { return frame.Nullable(f.TipAmount) }},
	{"tolls_amount", frame.Float64, func(f models.TripFact) any { return frame.Nullable(f.TollsAmount) }},
	{"total_amount", frame.Float64, func(f models.TripFact) any { return frame.Nullable(f.TotalAmount) }},
	{"calc_trip_duration_seconds", frame.Float64, func(f models.TripFact) any { return f.CalcTripDurationSeconds }},
	{"load_datetime", frame.String, func(f models.TripFact) any { return f.LoadDatetime }},
}

// TripFactsFrame преобразует факты поездок в таблицу trips_fact
func TripFactsFrame(facts []models.TripFact) *frame.Frame {
	f := frame.New(models.TableTripsFact)
	for _, c := range tripFactColumns {
		values := make([]any, len(facts))
		for i, fact := range facts {
			values[i] = c.value(fact)
		}
		f.MustAddColumn(c.name, c.typ, values)
	}
	return f
}
