package transform

import (
	"github.com/LilVoxy/taxi_etl/ETL/models"
)

// Справочники TLC, не зависящие от входных данных
var (
	vendorDimension = []models.VendorDimension{
		{ID: 1, Name: "Creative Mobile Technologies, LLC"},
		{ID: 2, Name: "VeriFone Inc"},
	}

	rateCodeDimension = []models.RateCodeDimension{
		{ID: 1, Description: "Standard rate"},
		{ID: 2, Description: "JFK"},
		{ID: 3, Description: "Newark"},
		{ID: 4, Description: "Nassau or Westchester"},
		{ID: 5, Description: "Negotiated fare"},
		{ID: 6, Description: "Group ride"},
	}

	paymentTypeDimension = []models.PaymentTypeDimension{
		{ID: 1, Description: "Credit Card"},
		{ID: 2, Description: "Cash"},
		{ID: 3, Description: "No Charge"},
		{ID: 4, Description: "Dispute"},
		{ID: 5, Description: "Unknown"},
		{ID: 6, Description: "Voided Trip"},
	}
)

// VendorDimension возвращает копию справочника поставщиков
func VendorDimension() []models.VendorDimension {
	return append([]models.VendorDimension(nil), vendorDimension...)
}

// RateCodeDimension возвращает копию справочника тарифов
func RateCodeDimension() []models.RateCodeDimension {
	return append([]models.RateCodeDimension(nil), rateCodeDimension...)
}

// PaymentTypeDimension возвращает копию справочника способов оплаты
func PaymentTypeDimension() []models.PaymentTypeDimension {
	return append([]models.PaymentTypeDimension(nil), paymentTypeDimension...)
}
