package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExport(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := ExportSnapshot{
		Locations: []Location{{ID: 1, City: "Paris", Country: "FR"}},
		WeatherRecords: []WeatherRecord{
			{ID: 1, LocationID: 1, Temperature: 10, Description: "rain", Timestamp: now},
			{ID: 2, LocationID: 1, Temperature: 20, Description: "rain", Timestamp: now.Add(time.Hour)},
		},
		HistoricalRecords: []HistoricalWeatherRecord{
			{ID: 7, LocationID: 1, Temperature: 5, Description: "snow", Timestamp: at, QueryTimestamp: at},
		},
	}

	doc := BuildExport("Paris", snap, now)
	assert.NotEmpty(t, doc.ExportID)
	assert.Equal(t, "Paris", doc.City)
	require.Len(t, doc.WeatherRecords, 2)
	assert.Equal(t, "FR", doc.WeatherRecords[0].Country)
	assert.Nil(t, doc.WeatherRecords[0].QueryTimestamp)
	require.Len(t, doc.HistoricalRecords, 1)
	require.NotNil(t, doc.HistoricalRecords[0].QueryTimestamp)
	assert.True(t, at.Equal(*doc.HistoricalRecords[0].QueryTimestamp))
	assert.Equal(t, 2, doc.CurrentSummary.Count)
	assert.InDelta(t, 15.0, doc.CurrentSummary.MeanTemperature, 1e-9)
	assert.Equal(t, "snow", doc.HistoricalSummary.Description)
}

func TestBuildExportEmptyListsAreNotNil(t *testing.T) {
	doc := BuildExport("Nowhere", ExportSnapshot{}, time.Now())
	assert.NotNil(t, doc.Locations)
	assert.NotNil(t, doc.WeatherRecords)
	assert.NotNil(t, doc.HistoricalRecords)
}
