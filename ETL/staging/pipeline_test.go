package staging

import (
	"path/filepath"
	"testing"

	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/LilVoxy/taxi_etl/ETL/transform"
	"github.com/LilVoxy/taxi_etl/ETL/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Поездка с недопустимыми кодами проходит от исходного parquet до строки фактов
// с исправленными ключами измерений
func TestRepairedTripReachesFacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rawPath := filepath.Join(dir, "yellow_tripdata.parquet")
	writeRawTrips(t, rawPath, []rawRow{
		{int32(6), "2024-01-15 08:30:00", "2024-01-15 08:50:00", 1.0, 99.0, nil, int64(0), 12.5, 20.0},
	})

	logger := utils.NewNopLogger()
	trips, summary, err := NewTripStagingProcessor(filepath.Join(dir, "staging"), logger).
		ProcessTrips(rawPath, "15/03/2024 10:00:00")
	require.NoError(t, err)
	require.Equal(t, 1, summary.StagedTrips)
	require.Len(t, trips, 1)
	assert.Equal(t, "N", *trips[0].StoreAndFwdFlag)

	borough, zone, service := "Manhattan", "Midtown Center", "Yellow Zone"
	locations := []models.LocationDimension{
		{ID: 161, Borough: &borough, Zone: &zone, ServiceZone: &service},
		{ID: 237, Borough: &borough, Zone: &zone, ServiceZone: &service},
	}

	times, timeIndex := transform.NewTimeDimensionProcessor(logger).ProcessTimeDimension(trips)
	require.Len(t, times, 2)

	idx := transform.NewDimensionIndex(timeIndex, locations,
		transform.VendorDimension(), transform.RateCodeDimension(), transform.PaymentTypeDimension())
	facts, factSummary := transform.NewTripFactsProcessor(logger).ProcessTripFacts(trips, idx)
	require.Len(t, facts, 1)
	assert.Equal(t, 1, factSummary.Rows)

	fact := facts[0]
	require.NotNil(t, fact.VendorID)
	require.NotNil(t, fact.RateCodeID)
	require.NotNil(t, fact.PaymentTypeID)
	require.NotNil(t, fact.PickupTimeID)
	require.NotNil(t, fact.DropoffTimeID)
	require.NotNil(t, fact.PickupLocationID)
	require.NotNil(t, fact.DropoffLocationID)
	assert.Equal(t, int64(2), *fact.VendorID)
	assert.Equal(t, int64(1), *fact.RateCodeID)
	assert.Equal(t, int64(5), *fact.PaymentTypeID)
	assert.Equal(t, int64(0), *fact.PickupTimeID)
	assert.Equal(t, int64(1), *fact.DropoffTimeID)
	assert.Equal(t, int64(161), *fact.PickupLocationID)
	assert.Equal(t, int64(237), *fact.DropoffLocationID)
	assert.Equal(t, 1200.0, fact.CalcTripDurationSeconds)
	assert.Equal(t, 12.5, fact.FareAmount)
	assert.Equal(t, "15/03/2024 10:00:00", fact.LoadDatetime)
}
