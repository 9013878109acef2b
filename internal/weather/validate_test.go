package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinates
		ok   bool
	}{
		{name: "paris", c: Coordinates{Lat: 48.85, Lon: 2.35}, ok: true},
		{name: "poles and antimeridian", c: Coordinates{Lat: -90, Lon: 180}, ok: true},
		{name: "lat too high", c: Coordinates{Lat: 90.01, Lon: 0}},
		{name: "lon too low", c: Coordinates{Lat: 0, Lon: -180.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.c)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidCoordinates)
		})
	}
}

func TestValidateHistoricalTime(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateHistoricalTime(HistoryEpoch, now))
	assert.NoError(t, ValidateHistoricalTime(now.Add(-HistoryLag), now))
	assert.ErrorIs(t, ValidateHistoricalTime(time.Date(1978, 12, 31, 0, 0, 0, 0, time.UTC), now), ErrInvalidDate)
	assert.ErrorIs(t, ValidateHistoricalTime(now.Add(-HistoryLag+time.Second), now), ErrInvalidDate)
	assert.ErrorIs(t, ValidateHistoricalTime(now.Add(time.Hour), now), ErrInvalidDate)
}

func TestValidationErrorUsesJSONNames(t *testing.T) {
	lat := 95.0
	err := validate.Struct(LocationInput{City: "Paris", Latitude: &lat})
	require.Error(t, err)

	verr := validationError(err)
	assert.ErrorIs(t, verr, ErrValidation)
	assert.Contains(t, verr.Error(), "country is required")
	assert.Contains(t, verr.Error(), "latitude must be between -90 and 90")
	assert.Contains(t, verr.Error(), "longitude is required")
}

func TestValidatePatch(t *testing.T) {
	assert.ErrorIs(t, validatePatch(RecordPatch{}), ErrValidation)

	long := "a description that is far too long"
	err := validatePatch(RecordPatch{Description: &long})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "description must be at most 20 characters")

	short := "drizzle"
	assert.NoError(t, validatePatch(RecordPatch{Description: &short}))
}
