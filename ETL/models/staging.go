package models

import (
	"time"
)

// RawFiles - пути к исходным файлам в каталоге raw
type RawFiles struct {
	TripData   string
	ZoneLookup string
}

// TripRecord представляет очищенную поездку в staging
type TripRecord struct {
	VendorID             *int64
	PickupDatetime       time.Time
	DropoffDatetime      time.Time
	PassengerCount       *int64
	TripDistance         *float64
	RateCodeID           *int64
	StoreAndFwdFlag      *string
	PULocationID         *int64
	DOLocationID         *int64
	PaymentTypeID        *int64
	FareAmount           float64
	Extra                *float64
	MTATax               *float64
	TipAmount            *float64
	TollsAmount          *float64
	ImprovementSurcharge *float64
	TotalAmount          *float64
	CongestionSurcharge  *float64
	AirportFee           *float64
	LoadDatetime         string
}

// ZoneRecord представляет зону такси в staging. nil означает отсутствующее значение.
type ZoneRecord struct {
	LocationID  int64
	Borough     *string
	Zone        *string
	ServiceZone *string
}

// DateWindow - окно дат, вычисленное по доминирующему месяцу
type DateWindow struct {
	// Доминирующий месяц (первое число, 00:00)
	Period time.Time

	// Последний день предыдущего месяца
	LastDayPreviousMonth time.Time

	// Первый день следующего месяца
	FirstDayNextMonth time.Time
}

// PeriodLabel возвращает доминирующий месяц в формате YYYY-MM
func (w DateWindow) PeriodLabel() string {
	return w.Period.Format("2006-01")
}

// StagingSummary содержит статистику фазы staging
type StagingSummary struct {
	RawTrips    int
	StagedTrips int
	Zones       int
	Window      DateWindow
}

// StagedData содержит результат фазы staging для следующих этапов
type StagedData struct {
	Trips   []TripRecord
	Zones   []ZoneRecord
	Summary StagingSummary
}
