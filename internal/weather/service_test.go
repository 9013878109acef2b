package weather_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-records/internal/config"
	"github.com/i474232898/weather-records/internal/store"
	"github.com/i474232898/weather-records/internal/weather"
	"github.com/i474232898/weather-records/internal/weather/weathertest"
)

func newTestService(t *testing.T, opts ...weather.Option) (*weather.Service, *weathertest.Provider, *store.GormStore) {
	t.Helper()
	db, err := store.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "weather.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	st := store.New(db)
	prov := weathertest.NewProvider()
	return weather.NewService(st, prov, opts...), prov, st
}

func ptr[T any](v T) *T { return &v }

func countRows(t *testing.T, st *store.GormStore, city string) (locs, recs, hist int) {
	t.Helper()
	snap, err := st.ExportCity(context.Background(), city)
	require.NoError(t, err)
	return len(snap.Locations), len(snap.WeatherRecords), len(snap.HistoricalRecords)
}

func TestCreateLocation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, weather.LocationInput{
		City: "  New   York ", Country: "US", Latitude: ptr(40.71), Longitude: ptr(-74.0),
	})
	require.NoError(t, err)
	assert.NotZero(t, loc.ID)
	assert.Equal(t, "New York", loc.City)
	assert.False(t, loc.CreatedAt.IsZero())

	_, err = svc.CreateLocation(ctx, weather.LocationInput{
		City: "new york", Country: "US", Latitude: ptr(40.0), Longitude: ptr(-74.0),
	})
	assert.ErrorIs(t, err, weather.ErrConflict)

	other, err := svc.CreateLocation(ctx, weather.LocationInput{
		City: "New York", Country: "GB", Latitude: ptr(53.0), Longitude: ptr(-0.1),
	})
	require.NoError(t, err)
	assert.NotEqual(t, loc.ID, other.ID)

	_, err = svc.CreateLocation(ctx, weather.LocationInput{City: "Nowhere", Country: "XX", Latitude: ptr(100.0), Longitude: ptr(0.0)})
	assert.ErrorIs(t, err, weather.ErrValidation)

	locs, err := svc.ListLocations(ctx, weather.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestFetchCurrentCreatesLocationOnce(t *testing.T) {
	svc, prov, st := newTestService(t)
	ctx := context.Background()

	first, err := svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)
	require.NotNil(t, first.Location)
	assert.Equal(t, "FR", first.Location.Country)
	assert.Equal(t, 18.5, first.Temperature)
	assert.Equal(t, 1, prov.LookupCalls)

	second, err := svc.FetchCurrent(ctx, "paris", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.LocationID, second.LocationID)
	assert.Equal(t, 1, prov.LookupCalls)

	locs, recs, _ := countRows(t, st, "Paris")
	assert.Equal(t, 1, locs)
	assert.Equal(t, 2, recs)
}

func TestFetchCurrentWithCoordinates(t *testing.T) {
	svc, prov, _ := newTestService(t)

	rec, err := svc.FetchCurrent(context.Background(), "Paris", &weather.Coordinates{Lat: 48.8566, Lon: 2.3522})
	require.NoError(t, err)
	assert.Equal(t, "FR", rec.Location.Country)
	assert.Zero(t, prov.LookupCalls)
}

func TestFetchCurrentDedupesWithinWindow(t *testing.T) {
	svc, prov, st := newTestService(t, weather.WithDedupeWindow(time.Minute))
	ctx := context.Background()

	first, err := svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)
	second, err := svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, prov.CurrentCalls)
	_, recs, _ := countRows(t, st, "Paris")
	assert.Equal(t, 1, recs)
}

func TestFetchCurrentProviderFailureWritesNothing(t *testing.T) {
	svc, prov, st := newTestService(t)
	prov.SetErr(weather.ErrUpstream)

	_, err := svc.FetchCurrent(context.Background(), "Paris", &weather.Coordinates{Lat: 48.8566, Lon: 2.3522})
	assert.ErrorIs(t, err, weather.ErrUpstream)

	locs, recs, _ := countRows(t, st, "Paris")
	assert.Zero(t, locs)
	assert.Zero(t, recs)
}

func TestFetchCurrentInvalidCoordinatesSkipsProvider(t *testing.T) {
	svc, prov, _ := newTestService(t)

	_, err := svc.FetchCurrent(context.Background(), "Paris", &weather.Coordinates{Lat: 91, Lon: 0})
	assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
	assert.Zero(t, prov.Calls())
}

type fakeGeocoder struct {
	coords weather.Coordinates
	err    error
	calls  int
}

func (g *fakeGeocoder) Geocode(context.Context, string, string) (weather.Coordinates, error) {
	g.calls++
	return g.coords, g.err
}

func TestResolveLocationUsesGeocoderFirst(t *testing.T) {
	geo := &fakeGeocoder{coords: weather.Coordinates{Lat: 51.5074, Lon: -0.1278}}
	svc, prov, _ := newTestService(t, weather.WithGeocoder(geo))

	rec, err := svc.FetchCurrent(context.Background(), "London", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, geo.calls)
	assert.Zero(t, prov.LookupCalls)
	assert.Equal(t, "GB", rec.Location.Country)
}

func TestResolveLocationFallsBackWhenGeocoderFails(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("quota exceeded")}
	svc, prov, _ := newTestService(t, weather.WithGeocoder(geo))

	_, err := svc.FetchCurrent(context.Background(), "London", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, prov.LookupCalls)
}

func TestForecast(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Forecast(ctx, "Paris", nil, 0)
	assert.ErrorIs(t, err, weather.ErrValidation)
	_, err = svc.Forecast(ctx, "Paris", nil, 6)
	assert.ErrorIs(t, err, weather.ErrValidation)

	fc, err := svc.Forecast(ctx, "Paris", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, fc.Days)
	assert.Len(t, fc.Entries, 16)

	locs, recs, _ := countRows(t, st, "Paris")
	assert.Zero(t, locs)
	assert.Zero(t, recs)
}

func TestFetchHistorical(t *testing.T) {
	svc, prov, st := newTestService(t)
	ctx := context.Background()
	at := time.Date(2020, time.June, 1, 12, 0, 0, 0, time.UTC)

	rec, err := svc.FetchHistorical(ctx, "Paris", &weather.Coordinates{Lat: 48.8566, Lon: 2.3522}, at)
	require.NoError(t, err)
	assert.True(t, at.Equal(rec.QueryTimestamp))
	assert.True(t, at.Equal(rec.Timestamp), "timestamp is the provider's observation time")
	assert.True(t, rec.CreatedAt.After(at))
	require.NotNil(t, rec.Location)
	assert.Equal(t, "FR", rec.Location.Country)
	assert.Equal(t, 1, prov.CurrentCalls)

	again, err := svc.FetchHistorical(ctx, "Paris", nil, at)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	_, _, hist := countRows(t, st, "Paris")
	assert.Equal(t, 1, hist)
}

func TestFetchHistoricalRejectsOutOfRangeDates(t *testing.T) {
	svc, prov, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.FetchHistorical(ctx, "Paris", nil, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, weather.ErrInvalidDate)

	_, err = svc.FetchHistorical(ctx, "Paris", nil, time.Now().Add(-24*time.Hour))
	assert.ErrorIs(t, err, weather.ErrInvalidDate)

	assert.Zero(t, prov.Calls())
	locs, _, hist := countRows(t, st, "Paris")
	assert.Zero(t, locs)
	assert.Zero(t, hist)
}

func TestPastSearchesAndHistoricalRecords(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.PastSearches(ctx, "Atlantis", weather.ListOptions{})
	assert.ErrorIs(t, err, weather.ErrNotFound)
	_, err = svc.HistoricalRecords(ctx, "Atlantis", weather.ListOptions{})
	assert.ErrorIs(t, err, weather.ErrNotFound)

	_, err = svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)

	recs, err := svc.PastSearches(ctx, "Paris", weather.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	hist, err := svc.HistoricalRecords(ctx, "Paris", weather.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestUpdateAndDeleteRecords(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)

	_, err = svc.UpdateWeatherRecord(ctx, rec.ID, weather.RecordPatch{})
	assert.ErrorIs(t, err, weather.ErrValidation)

	_, err = svc.UpdateWeatherRecord(ctx, rec.ID, weather.RecordPatch{Description: ptr("twenty-one characters")})
	assert.ErrorIs(t, err, weather.ErrValidation)

	updated, err := svc.UpdateWeatherRecord(ctx, rec.ID, weather.RecordPatch{Temperature: ptr(-3.5)})
	require.NoError(t, err)
	assert.Equal(t, -3.5, updated.Temperature)
	assert.Equal(t, rec.Description, updated.Description)

	_, err = svc.UpdateWeatherRecord(ctx, 9999, weather.RecordPatch{Temperature: ptr(1.0)})
	assert.ErrorIs(t, err, weather.ErrNotFound)

	require.NoError(t, svc.DeleteWeatherRecord(ctx, rec.ID))
	assert.ErrorIs(t, svc.DeleteWeatherRecord(ctx, rec.ID), weather.ErrNotFound)

	at := time.Date(2019, 3, 3, 0, 0, 0, 0, time.UTC)
	hist, err := svc.FetchHistorical(ctx, "Paris", nil, at)
	require.NoError(t, err)

	hu, err := svc.UpdateHistoricalRecord(ctx, hist.ID, weather.RecordPatch{Description: ptr("hail")})
	require.NoError(t, err)
	assert.Equal(t, "hail", hu.Description)

	require.NoError(t, svc.DeleteHistoricalRecord(ctx, hist.ID))
	_, err = svc.UpdateHistoricalRecord(ctx, hist.ID, weather.RecordPatch{Description: ptr("hail")})
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestDeleteLocationRemovesRecords(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	rec, err := svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)
	_, err = svc.FetchHistorical(ctx, "Paris", nil, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLocation(ctx, rec.LocationID))

	locs, recs, hist := countRows(t, st, "Paris")
	assert.Zero(t, locs)
	assert.Zero(t, recs)
	assert.Zero(t, hist)

	assert.ErrorIs(t, svc.DeleteLocation(ctx, rec.LocationID), weather.ErrNotFound)
}

func TestExport(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Export(ctx, "Paris")
	assert.ErrorIs(t, err, weather.ErrNotFound)

	for i := 0; i < 3; i++ {
		_, err := svc.FetchCurrent(ctx, "Paris", nil)
		require.NoError(t, err)
	}
	_, err = svc.FetchHistorical(ctx, "Paris", nil, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	doc, err := svc.Export(ctx, "paris")
	require.NoError(t, err)

	recs, err := svc.PastSearches(ctx, "Paris", weather.ListOptions{})
	require.NoError(t, err)
	hist, err := svc.HistoricalRecords(ctx, "Paris", weather.ListOptions{})
	require.NoError(t, err)

	require.Len(t, doc.WeatherRecords, len(recs))
	require.Len(t, doc.HistoricalRecords, len(hist))
	for i := range recs {
		assert.Equal(t, recs[i].ID, doc.WeatherRecords[i].ID)
	}
	assert.Equal(t, 3, doc.CurrentSummary.Count)
	assert.Equal(t, "FR", doc.WeatherRecords[0].Country)
}

func TestFetchCurrentParisScenario(t *testing.T) {
	svc, prov, st := newTestService(t)
	ctx := context.Background()

	prov.Cities["Paris"] = weathertest.City{Country: "FR", Coords: weather.Coordinates{Lat: 48.85, Lon: 2.35}}
	prov.Temperature = 18.2
	prov.Humidity = 60
	prov.Pressure = 1012
	prov.Description = "clear sky"

	paris, err := svc.CreateLocation(ctx, weather.LocationInput{
		City: "Paris", Country: "FR", Latitude: ptr(48.85), Longitude: ptr(2.35),
	})
	require.NoError(t, err)

	rec, err := svc.FetchCurrent(ctx, "Paris", nil)
	require.NoError(t, err)
	assert.Zero(t, prov.LookupCalls)

	recs, err := svc.PastSearches(ctx, "Paris", weather.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got := recs[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, paris.ID, got.LocationID)
	assert.Equal(t, 18.2, got.Temperature)
	assert.Equal(t, 60.0, got.Humidity)
	assert.Equal(t, 1012.0, got.Pressure)
	assert.Equal(t, "clear sky", got.Description)

	locs, _, _ := countRows(t, st, "Paris")
	assert.Equal(t, 1, locs)
}

func TestFetchCurrentReusesLocationWithOtherCountrySpelling(t *testing.T) {
	tests := []struct {
		name    string
		country string
	}{
		{name: "lower case code", country: "fr"},
		{name: "country name", country: "France"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, st := newTestService(t)
			ctx := context.Background()

			paris, err := svc.CreateLocation(ctx, weather.LocationInput{
				City: "Paris", Country: tt.country, Latitude: ptr(48.85), Longitude: ptr(2.35),
			})
			require.NoError(t, err)

			rec, err := svc.FetchCurrent(ctx, "Paris", &weather.Coordinates{Lat: 48.8566, Lon: 2.3522})
			require.NoError(t, err)
			assert.Equal(t, paris.ID, rec.LocationID)

			locs, recs, _ := countRows(t, st, "Paris")
			assert.Equal(t, 1, locs)
			assert.Equal(t, 1, recs)
		})
	}
}

func TestFetchCurrentKeepsDistantSameNameCitiesApart(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	texas, err := svc.CreateLocation(ctx, weather.LocationInput{
		City: "Paris", Country: "US", Latitude: ptr(33.66), Longitude: ptr(-95.55),
	})
	require.NoError(t, err)

	rec, err := svc.FetchCurrent(ctx, "Paris", &weather.Coordinates{Lat: 48.8566, Lon: 2.3522})
	require.NoError(t, err)
	assert.NotEqual(t, texas.ID, rec.LocationID)
	assert.Equal(t, "FR", rec.Location.Country)

	locs, _, _ := countRows(t, st, "Paris")
	assert.Equal(t, 2, locs)
}

func TestConcurrentFetchCurrentWithDefaultDatabase(t *testing.T) {
	cfg := config.Defaults().Database
	cfg.DSN = filepath.Join(t.TempDir(), "weather.db")
	cfg.LogLevel = "silent"

	db, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	svc := weather.NewService(store.New(db), weathertest.NewProvider())
	ctx := context.Background()

	const requests = 20
	errs := make(chan error, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			coords := weather.Coordinates{Lat: float64(i), Lon: float64(i)}
			_, err := svc.FetchCurrent(ctx, fmt.Sprintf("City%d", i), &coords)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	locs, err := svc.ListLocations(ctx, weather.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, locs, requests)
}
