package staging

import (
	"testing"

	"github.com/LilVoxy/taxi_etl/ETL/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairTrip(t *testing.T) {
	t.Parallel()

	trip := models.TripRecord{
		VendorID:       int64Ptr(6),
		PassengerCount: nil,
		RateCodeID:     int64Ptr(99),
		PaymentTypeID:  int64Ptr(0),
	}
	counts := make(map[string]int)
	repairTrip(&trip, counts)

	require.NotNil(t, trip.VendorID)
	assert.Equal(t, int64(2), *trip.VendorID)
	require.NotNil(t, trip.PassengerCount)
	assert.Equal(t, int64(1), *trip.PassengerCount)
	require.NotNil(t, trip.RateCodeID)
	assert.Equal(t, int64(1), *trip.RateCodeID)
	require.NotNil(t, trip.PaymentTypeID)
	assert.Equal(t, int64(5), *trip.PaymentTypeID)
	require.NotNil(t, trip.StoreAndFwdFlag)
	assert.Equal(t, "N", *trip.StoreAndFwdFlag)

	assert.Equal(t, map[string]int{
		"vendor_id":          1,
		"passenger_count":    1,
		"rate_code_id":       1,
		"payment_type_id":    1,
		"store_and_fwd_flag": 1,
	}, counts)
}

func TestRepairTrip_KeepsValidValues(t *testing.T) {
	t.Parallel()

	trip := models.TripRecord{
		VendorID:        int64Ptr(1),
		PassengerCount:  int64Ptr(3),
		RateCodeID:      nil,
		PaymentTypeID:   int64Ptr(2),
		StoreAndFwdFlag: stringPtr("Y"),
	}
	counts := make(map[string]int)
	repairTrip(&trip, counts)

	assert.Equal(t, int64(1), *trip.VendorID)
	assert.Equal(t, int64(3), *trip.PassengerCount)
	assert.Equal(t, int64(1), *trip.RateCodeID)
	assert.Equal(t, int64(2), *trip.PaymentTypeID)
	assert.Equal(t, "Y", *trip.StoreAndFwdFlag)
	assert.Equal(t, map[string]int{"rate_code_id": 1}, counts)
}

func TestFillZone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       models.ZoneRecord
		want     models.ZoneRecord
		wantRule string
	}{
		{
			name:     "unknown borough",
			in:       models.ZoneRecord{LocationID: 264, Borough: stringPtr("Unknown"), Zone: nil, ServiceZone: nil},
			want:     models.ZoneRecord{LocationID: 264, Borough: stringPtr("Unknown"), Zone: stringPtr("Unknown"), ServiceZone: stringPtr("Unknown")},
			wantRule: "borough=Unknown",
		},
		{
			name:     "outside of nyc",
			in:       models.ZoneRecord{LocationID: 265, Borough: nil, Zone: stringPtr("Outside of NYC"), ServiceZone: nil},
			want:     models.ZoneRecord{LocationID: 265, Borough: stringPtr("Outside of NYC"), Zone: stringPtr("Outside of NYC"), ServiceZone: stringPtr("Outside of NYC")},
			wantRule: "zone=Outside of NYC",
		},
		{
			name: "regular zone keeps nulls",
			in:   models.ZoneRecord{LocationID: 1, Borough: stringPtr("EWR"), Zone: stringPtr("Newark Airport"), ServiceZone: nil},
			want: models.ZoneRecord{LocationID: 1, Borough: stringPtr("EWR"), Zone: stringPtr("Newark Airport"), ServiceZone: nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := fillZone(tt.in)
			assert.Equal(t, tt.wantRule, rule)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("fillZone() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
