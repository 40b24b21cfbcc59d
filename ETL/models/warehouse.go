package models

import (
	"time"

	"github.com/LilVoxy/taxi_etl/ETL/frame"
	"github.com/shopspring/decimal"
)

// Имена таблиц хранилища
const (
	TableVendorDim      = "vendor_dim"
	TableTimeDim        = "time_dim"
	TableLocationDim    = "location_dim"
	TableRateCodeDim    = "rate_code_dim"
	TablePaymentTypeDim = "payment_type_dim"
	TableTripsFact      = "trips_fact"
)

// WarehouseTables - порядок загрузки: измерения перед фактами
var WarehouseTables = []string{
	TableVendorDim,
	TableTimeDim,
	TableLocationDim,
	TableRateCodeDim,
	TablePaymentTypeDim,
	TableTripsFact,
}

// TimeDimension представляет временное измерение
type TimeDimension struct {
	ID        int64
	Date      time.Time
	Year      int
	Month     int
	Day       int
	DayOfWeek string
	Hour      int
	Minute    int
	Second    int
	PartOfDay string
}

// LocationDimension представляет измерение зон (ключ - исходный location_id)
type LocationDimension struct {
	ID          int64
	Borough     *string
	Zone        *string
	ServiceZone *string
}

// VendorDimension представляет измерение поставщиков
type VendorDimension struct {
	ID   int64
	Name string
}

// RateCodeDimension представляет измерение тарифов
type RateCodeDimension struct {
	ID          int64
	Description string
}

// PaymentTypeDimension представляет измерение способов оплаты
type PaymentTypeDimension struct {
	ID          int64
	Description string
}

// TripFact представляет факт поездки. nil во внешнем ключе - отсутствие
// соответствия в измерении (семантика left join).
type TripFact struct {
	TripID                  int64
	VendorID                *int64
	PickupTimeID            *int64
	DropoffTimeID           *int64
	PickupLocationID        *int64
	DropoffLocationID       *int64
	RateCodeID              *int64
	PassengerCount          *int64
	TripDistance            *float64
	PaymentTypeID           *int64
	FareAmount              float64
	Extra                   *float64
	MTATax                  *float64
	TipAmount               *float64
	TollsAmount             *float64
	TotalAmount             *float64
	CalcTripDurationSeconds float64
	LoadDatetime            string
}

// FactSummary содержит статистику построения таблицы фактов
type FactSummary struct {
	Rows                int
	NullPickupTime      int
	NullDropoffTime     int
	NullPickupLocation  int
	NullDropoffLocation int
	NullVendor          int
	NullRateCode        int
	NullPaymentType     int
	FareAmountSum       decimal.Decimal
	TotalAmountSum      decimal.Decimal
}

// TransformedData содержит измерения и факты, готовые к загрузке
type TransformedData struct {
	// Измерения
	Times        []TimeDimension
	Locations    []LocationDimension
	Vendors      []VendorDimension
	RateCodes    []RateCodeDimension
	PaymentTypes []PaymentTypeDimension

	// Факты
	Trips []TripFact

	// Таблицы после приведения к схеме (имя таблицы -> таблица)
	Frames map[string]*frame.Frame

	// Пути к артефактам (имя таблицы -> путь)
	Artifacts map[string]string

	Summary FactSummary
}
