package staging

import (
	"github.com/LilVoxy/taxi_etl/ETL/models"
)

// intRepair заменяет значение целочисленного поля поездки.
// match == nil означает замену отсутствующего значения.
type intRepair struct {
	column string
	field  func(*models.TripRecord) **int64
	match  *int64
	value  int64
}

func (r intRepair) apply(t *models.TripRecord) bool {
	p := r.field(t)
	if r.match == nil {
		if *p != nil {
			return false
		}
	} else if *p == nil || **p != *r.match {
		return false
	}
	v := r.value
	*p = &v
	return true
}

func int64Ptr(v int64) *int64 { return &v }

func stringPtr(v string) *string { return &v }

var (
	rateCodeField    = func(t *models.TripRecord) **int64 { return &t.RateCodeID }
	passengerField   = func(t *models.TripRecord) **int64 { return &t.PassengerCount }
	vendorField      = func(t *models.TripRecord) **int64 { return &t.VendorID }
	paymentTypeField = func(t *models.TripRecord) **int64 { return &t.PaymentTypeID }
)

// tripRepairs - фиксированные исправления категориальных значений поездок
var tripRepairs = []intRepair{
	{column: "rate_code_id", field: rateCodeField, match: nil, value: 1},
	{column: "rate_code_id", field: rateCodeField, match: int64Ptr(99), value: 1},
	{column: "passenger_count", field: passengerField, match: nil, value: 1},
	{column: "vendor_id", field: vendorField, match: int64Ptr(6), value: 2},
	{column: "payment_type_id", field: paymentTypeField, match: int64Ptr(0), value: 5},
}

// defaultStoreAndFwdFlag подставляется вместо отсутствующего флага
const defaultStoreAndFwdFlag = "N"

// repairTrip применяет исправления к поездке, counts считает замены по колонкам
func repairTrip(t *models.TripRecord, counts map[string]int) {
	for _, r := range tripRepairs {
		if r.apply(t) {
			counts[r.column]++
		}
	}
	if t.StoreAndFwdFlag == nil {
		t.StoreAndFwdFlag = stringPtr(defaultStoreAndFwdFlag)
		counts["store_and_fwd_flag"]++
	}
}

// zoneFillRule заполняет отсутствующие поля зоны значением fill,
// если строка удовлетворяет условию
type zoneFillRule struct {
	name    string
	matches func(models.ZoneRecord) bool
	fill    string
}

func fieldEquals(p *string, v string) bool {
	return p != nil && *p == v
}

// zoneFillRules проверяются по порядку, применяется первое совпавшее правило
var zoneFillRules = []zoneFillRule{
	{
		name:    "borough=Unknown",
		matches: func(z models.ZoneRecord) bool { return fieldEquals(z.Borough, "Unknown") },
		fill:    "Unknown",
	},
	{
		name:    "zone=Outside of NYC",
		matches: func(z models.ZoneRecord) bool { return fieldEquals(z.Zone, "Outside of NYC") },
		fill:    "Outside of NYC",
	},
}

// fillZone возвращает зону с заполненными по правилам пропусками
// и имя примененного правила (пустое, если правило не сработало)
func fillZone(z models.ZoneRecord) (models.ZoneRecord, string) {
	for _, rule := range zoneFillRules {
		if !rule.matches(z) {
			continue
		}
		for _, p := range []**string{&z.Borough, &z.Zone, &z.ServiceZone} {
			if *p == nil {
				*p = stringPtr(rule.fill)
			}
		}
		return z, rule.name
	}
	return z, ""
}
