package weather

import (
	"context"
	"time"
)

// Reading is a provider observation normalized into the internal record shape.
// Country and coordinates are filled when the provider reports them.
type Reading struct {
	ProviderName string    `json:"-"`
	Timestamp    time.Time `json:"timestamp"`

	TemperatureC float64 `json:"temperature"`
	HumidityPct  float64 `json:"humidity"`
	PressureHpa  float64 `json:"pressure"`
	Description  string  `json:"description"`
	Icon         string  `json:"icon"`

	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Provider abstracts the third-party weather API.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, coords Coordinates) (Reading, error)
	FetchForecast(ctx context.Context, coords Coordinates, days int) ([]Reading, error)
	FetchHistorical(ctx context.Context, coords Coordinates, at time.Time) (Reading, error)
	// LookupCity resolves a city name to its current reading, which carries
	// coordinates and country.
	LookupCity(ctx context.Context, city string) (Reading, error)
}

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (Coordinates, error)
}

// Store is the persistence contract the service depends on.
type Store interface {
	// InTx runs fn against a store bound to a single transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	CreateLocation(ctx context.Context, loc *Location) error
	ListLocations(ctx context.Context, opts ListOptions) ([]Location, error)
	GetLocation(ctx context.Context, id uint) (Location, error)
	FindLocation(ctx context.Context, city, country string) (Location, error)
	ListLocationsByCity(ctx context.Context, city string) ([]Location, error)
	CityExists(ctx context.Context, city string) (bool, error)
	DeleteLocation(ctx context.Context, id uint) error

	CreateWeatherRecord(ctx context.Context, rec *WeatherRecord) error
	GetWeatherRecord(ctx context.Context, id uint) (WeatherRecord, error)
	RecentWeatherRecord(ctx context.Context, locationID uint, since time.Time) (WeatherRecord, error)
	ListWeatherRecordsByCity(ctx context.Context, city string, opts ListOptions) ([]WeatherRecord, error)
	UpdateWeatherRecord(ctx context.Context, id uint, patch RecordPatch) (WeatherRecord, error)
	DeleteWeatherRecord(ctx context.Context, id uint) error

	CreateHistoricalRecord(ctx context.Context, rec *HistoricalWeatherRecord) error
	GetHistoricalRecord(ctx context.Context, id uint) (HistoricalWeatherRecord, error)
	FindHistoricalRecord(ctx context.Context, locationID uint, queryTimestamp time.Time) (HistoricalWeatherRecord, error)
	ListHistoricalRecordsByCity(ctx context.Context, city string, opts ListOptions) ([]HistoricalWeatherRecord, error)
	UpdateHistoricalRecord(ctx context.Context, id uint, patch RecordPatch) (HistoricalWeatherRecord, error)
	DeleteHistoricalRecord(ctx context.Context, id uint) error

	ExportCity(ctx context.Context, city string) (ExportSnapshot, error)
}

// ExportSnapshot is everything stored for a city, read at one point in time.
type ExportSnapshot struct {
	Locations         []Location
	WeatherRecords    []WeatherRecord
	HistoricalRecords []HistoricalWeatherRecord
}
