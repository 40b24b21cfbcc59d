package transform

import (
	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
	"github.com/shopspring/decimal"
)

// DimensionIndex - ключи измерений, с которыми связываются факты
type DimensionIndex struct {
	Times        map[TimeKey]int64
	Locations    map[int64]struct{}
	Vendors      map[int64]struct{}
	RateCodes    map[int64]struct{}
	PaymentTypes map[int64]struct{}
}

// NewDimensionIndex строит индекс ключей измерений
func NewDimensionIndex(
	times map[TimeKey]int64,
	locations []models.LocationDimension,
	vendors []models.VendorDimension,
	rateCodes []models.RateCodeDimension,
	paymentTypes []models.PaymentTypeDimension,
) *DimensionIndex {
	idx := &DimensionIndex{
		Times:        times,
		Locations:    make(map[int64]struct{}, len(locations)),
		Vendors:      make(map[int64]struct{}, len(vendors)),
		RateCodes:    make(map[int64]struct{}, len(rateCodes)),
		PaymentTypes: make(map[int64]struct{}, len(paymentTypes)),
	}
	for _, l := range locations {
		idx.Locations[l.ID] = struct{}{}
	}
	for _, v := range vendors {
		idx.Vendors[v.ID] = struct{}{}
	}
	for _, r := range rateCodes {
		idx.RateCodes[r.ID] = struct{}{}
	}
	for _, pt := range paymentTypes {
		idx.PaymentTypes[pt.ID] = struct{}{}
	}
	return idx
}

// lookup возвращает ключ, если он есть в измерении, иначе nil (left join)
func lookup(keys map[int64]struct{}, id *int64) *int64 {
	if id == nil {
		return nil
	}
	if _, ok := keys[*id]; !ok {
		return nil
	}
	v := *id
	return &v
}

func (idx *DimensionIndex) timeID(key TimeKey) *int64 {
	id, ok := idx.Times[key]
	if !ok {
		return nil
	}
	return &id
}

// TripFactsProcessor отвечает за построение таблицы фактов поездок
type TripFactsProcessor struct {
	logger *utils.ETLLogger
}

// NewTripFactsProcessor создает новый экземпляр TripFactsProcessor
func NewTripFactsProcessor(logger *utils.ETLLogger) *TripFactsProcessor {
	return &TripFactsProcessor{
		logger: logger,
	}
}

// ProcessTripFacts связывает очищенные поездки с измерениями.
// Отсутствие соответствия дает nil во внешнем ключе, строка не отбрасывается.
func (p *TripFactsProcessor) ProcessTripFacts(trips []models.TripRecord, idx *DimensionIndex) ([]models.TripFact, models.FactSummary) {
	p.logger.Debug("Обработка фактов поездок...")

	facts := make([]models.TripFact, len(trips))
	summary := models.FactSummary{
		Rows:           len(trips),
		FareAmountSum:  decimal.Zero,
		TotalAmountSum: decimal.Zero,
	}

	for i, trip := range trips {
		fact := models.TripFact{
			TripID:                  int64(i),
			VendorID:                lookup(idx.Vendors, trip.VendorID),
			PickupTimeID:            idx.timeID(NewTimeKey(trip.PickupDatetime)),
			DropoffTimeID:           idx.timeID(NewTimeKey(trip.DropoffDatetime)),
			PickupLocationID:        lookup(idx.Locations, trip.PULocationID),
			DropoffLocationID:       lookup(idx.Locations, trip.DOLocationID),
			RateCodeID:              lookup(idx.RateCodes, trip.RateCodeID),
			PassengerCount:          trip.PassengerCount,
			TripDistance:            trip.TripDistance,
			PaymentTypeID:           lookup(idx.PaymentTypes, trip.PaymentTypeID),
			FareAmount:              trip.FareAmount,
			Extra:                   trip.Extra,
			MTATax:                  trip.MTATax,
			TipAmount:               trip.TipAmount,
			TollsAmount:             trip.TollsAmount,
			TotalAmount:             trip.TotalAmount,
			CalcTripDurationSeconds: trip.DropoffDatetime.Sub(trip.PickupDatetime).Seconds(),
			LoadDatetime:            trip.LoadDatetime,
		}
		facts[i] = fact

		// Статистика по внешним ключам и суммам
		if fact.PickupTimeID == nil {
			summary.NullPickupTime++
		}
		if fact.DropoffTimeID == nil {
			summary.NullDropoffTime++
		}
		if fact.PickupLocationID == nil {
			summary.NullPickupLocation++
		}
		if fact.DropoffLocationID == nil {
			summary.NullDropoffLocation++
		}
		if fact.VendorID == nil {
			summary.NullVendor++
		}
		if fact.RateCodeID == nil {
			summary.NullRateCode++
		}
		if fact.PaymentTypeID == nil {
			summary.NullPaymentType++
		}
		summary.FareAmountSum = summary.FareAmountSum.Add(decimal.NewFromFloat(fact.FareAmount))
		if fact.TotalAmount != nil {
			summary.TotalAmountSum = summary.TotalAmountSum.Add(decimal.NewFromFloat(*fact.TotalAmount))
		}
	}

	// Время посадки и высадки всегда есть в измерении времени
	if summary.NullPickupTime > 0 || summary.NullDropoffTime > 0 {
		p.logger.Error("Факты без ссылки на измерение времени: посадка %d, высадка %d",
			summary.NullPickupTime, summary.NullDropoffTime)
	}

	p.logger.Debug("Построено %d фактов поездок. Без зоны посадки: %d, без зоны высадки: %d, "+
		"без поставщика: %d, без тарифа: %d, без способа оплаты: %d",
		summary.Rows, summary.NullPickupLocation, summary.NullDropoffLocation,
		summary.NullVendor, summary.NullRateCode, summary.NullPaymentType)

	return facts, summary
}
