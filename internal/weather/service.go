package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/i474232898/weather-records/internal/common"
)

// MaxForecastDays is the longest forecast the provider returns.
const MaxForecastDays = 5

// Service orchestrates the provider and the store. Within one call, writes only
// happen after every provider fetch has succeeded.
type Service struct {
	store        Store
	provider     Provider
	geocoder     Geocoder
	now          func() time.Time
	dedupeWindow time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithGeocoder resolves coordinates for unknown cities before falling back to
// the provider's city lookup.
func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDedupeWindow skips storing a new current-weather record when one was stored
// for the same location within d. Zero disables deduplication.
func WithDedupeWindow(d time.Duration) Option {
	return func(s *Service) { s.dedupeWindow = d }
}

// NewService creates a new Service.
func NewService(store Store, provider Provider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLocation stores a location entered by the user. A second location with the
// same city and country is rejected with ErrConflict.
func (s *Service) CreateLocation(ctx context.Context, in LocationInput) (Location, error) {
	in.City = common.NormalizeCity(in.City)
	in.Country = strings.TrimSpace(in.Country)
	if err := validate.Struct(in); err != nil {
		return Location{}, validationError(err)
	}

	_, err := s.store.FindLocation(ctx, in.City, in.Country)
	if err == nil {
		return Location{}, fmt.Errorf("%w: location %s, %s", ErrConflict, in.City, in.Country)
	}
	if !errors.Is(err, ErrNotFound) {
		return Location{}, err
	}

	loc := Location{
		City:      in.City,
		Country:   in.Country,
		Latitude:  *in.Latitude,
		Longitude: *in.Longitude,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateLocation(ctx, &loc); err != nil {
		return Location{}, err
	}
	log.Printf("INFO: created location %d (%s, %s)", loc.ID, loc.City, loc.Country)
	return loc, nil
}

// ListLocations delegates to the underlying store.
func (s *Service) ListLocations(ctx context.Context, opts ListOptions) ([]Location, error) {
	return s.store.ListLocations(ctx, opts)
}

// DeleteLocation removes a location and every record that references it.
func (s *Service) DeleteLocation(ctx context.Context, id uint) error {
	if err := s.store.DeleteLocation(ctx, id); err != nil {
		return err
	}
	log.Printf("INFO: deleted location %d and its records", id)
	return nil
}

// ResolveLocation finds where a city is. Explicit coordinates win; otherwise a stored
// location for the city is reused; otherwise the geocoder and then the provider are
// asked. A location that is not stored yet comes back with a zero ID and is created
// together with the first record written for it.
func (s *Service) ResolveLocation(ctx context.Context, city string, coords *Coordinates) (Location, error) {
	city = common.NormalizeCity(city)
	if city == "" {
		return Location{}, fmt.Errorf("%w: city is required", ErrValidation)
	}

	if coords != nil {
		if err := ValidateCoordinates(*coords); err != nil {
			return Location{}, err
		}
		return Location{City: city, Latitude: coords.Lat, Longitude: coords.Lon}, nil
	}

	stored, err := s.store.FindLocation(ctx, city, "")
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Location{}, err
	}

	if s.geocoder != nil {
		c, gerr := s.geocoder.Geocode(ctx, city, "")
		if gerr == nil && ValidateCoordinates(c) == nil {
			return Location{City: city, Latitude: c.Lat, Longitude: c.Lon}, nil
		}
		log.Printf("INFO: geocoding %q failed, falling back to %s lookup: %v", city, s.provider.Name(), gerr)
	}

	r, err := s.provider.LookupCity(ctx, city)
	if err != nil {
		return Location{}, err
	}
	return Location{
		City:      city,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}, nil
}

// attachLocation returns the stored location rows should reference, creating it
// inside tx when it does not exist yet.
func (s *Service) attachLocation(ctx context.Context, tx Store, loc Location, country string) (Location, error) {
	if loc.ID != 0 {
		return loc, nil
	}
	if loc.Country == "" {
		loc.Country = country
	}

	existing, err := tx.FindLocation(ctx, loc.City, loc.Country)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Location{}, err
	}

	// The stored country may be spelled differently ("France" vs "FR"), so a row
	// for the same city at the same place is reused as well.
	stored, err := tx.ListLocationsByCity(ctx, loc.City)
	if err != nil {
		return Location{}, err
	}
	for _, l := range stored {
		if nearby(l.Coordinates(), loc.Coordinates()) {
			return l, nil
		}
	}

	loc.CreatedAt = s.now().UTC()
	if err := tx.CreateLocation(ctx, &loc); err != nil {
		return Location{}, err
	}
	log.Printf("INFO: created location %d (%s, %s)", loc.ID, loc.City, loc.Country)
	return loc, nil
}

// sameLocationDegrees is how far apart, in degrees of latitude and longitude,
// two coordinates of the same city may be and still name one location.
const sameLocationDegrees = 0.1

func nearby(a, b Coordinates) bool {
	return math.Abs(a.Lat-b.Lat) <= sameLocationDegrees && math.Abs(a.Lon-b.Lon) <= sameLocationDegrees
}

// FetchCurrent fetches current weather for a city and stores it as a WeatherRecord.
func (s *Service) FetchCurrent(ctx context.Context, city string, coords *Coordinates) (WeatherRecord, error) {
	loc, err := s.ResolveLocation(ctx, city, coords)
	if err != nil {
		return WeatherRecord{}, err
	}

	reading, err := s.provider.FetchCurrent(ctx, loc.Coordinates())
	if err != nil {
		log.Printf("ERROR: %s current weather failed for %s: %v", s.provider.Name(), loc.City, err)
		return WeatherRecord{}, err
	}

	now := s.now().UTC()
	var rec WeatherRecord
	err = s.store.InTx(ctx, func(tx Store) error {
		l, err := s.attachLocation(ctx, tx, loc, reading.Country)
		if err != nil {
			return err
		}

		if s.dedupeWindow > 0 {
			recent, err := tx.RecentWeatherRecord(ctx, l.ID, now.Add(-s.dedupeWindow))
			if err == nil {
				log.Printf("DEBUG: reusing weather record %d for %s stored within %s", recent.ID, l.City, s.dedupeWindow)
				recent.Location = &l
				rec = recent
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		rec = recordFromReading(l.ID, reading, now)
		if err := tx.CreateWeatherRecord(ctx, &rec); err != nil {
			return err
		}
		rec.Location = &l
		return nil
	})
	if err != nil {
		return WeatherRecord{}, err
	}
	return rec, nil
}

func recordFromReading(locationID uint, r Reading, now time.Time) WeatherRecord {
	ts := r.Timestamp.UTC()
	if r.Timestamp.IsZero() {
		ts = now
	}
	icon := r.Icon
	if icon == "" {
		icon = DefaultIcon
	}
	return WeatherRecord{
		LocationID:  locationID,
		Temperature: r.TemperatureC,
		Humidity:    r.HumidityPct,
		Pressure:    r.PressureHpa,
		Description: r.Description,
		Icon:        icon,
		Timestamp:   ts,
		CreatedAt:   now,
	}
}

// Forecast returns the provider's multi-day forecast for a city. Nothing is stored.
func (s *Service) Forecast(ctx context.Context, city string, coords *Coordinates, days int) (Forecast, error) {
	if days < 1 || days > MaxForecastDays {
		return Forecast{}, fmt.Errorf("%w: days must be between 1 and %d", ErrValidation, MaxForecastDays)
	}

	loc, err := s.ResolveLocation(ctx, city, coords)
	if err != nil {
		return Forecast{}, err
	}

	entries, err := s.provider.FetchForecast(ctx, loc.Coordinates(), days)
	if err != nil {
		log.Printf("ERROR: %s forecast failed for %s: %v", s.provider.Name(), loc.City, err)
		return Forecast{}, err
	}

	return Forecast{Location: loc, Days: days, Entries: entries}, nil
}

// FetchHistorical fetches the observation for at and stores it as a
// HistoricalWeatherRecord. A record already stored for the same location and
// query time is returned instead of a duplicate.
func (s *Service) FetchHistorical(ctx context.Context, city string, coords *Coordinates, at time.Time) (HistoricalWeatherRecord, error) {
	at = at.UTC().Truncate(time.Second)
	if err := ValidateHistoricalTime(at, s.now()); err != nil {
		return HistoricalWeatherRecord{}, err
	}

	loc, err := s.ResolveLocation(ctx, city, coords)
	if err != nil {
		return HistoricalWeatherRecord{}, err
	}

	reading, err := s.provider.FetchHistorical(ctx, loc.Coordinates(), at)
	if err != nil {
		log.Printf("ERROR: %s historical weather failed for %s at %s: %v", s.provider.Name(), loc.City, at.Format(time.RFC3339), err)
		return HistoricalWeatherRecord{}, err
	}

	country := loc.Country
	if loc.ID == 0 && country == "" {
		// The historical endpoint does not report a country.
		if stored, err := s.store.FindLocation(ctx, loc.City, ""); err == nil {
			loc = stored
		} else if errors.Is(err, ErrNotFound) {
			cur, err := s.provider.FetchCurrent(ctx, loc.Coordinates())
			if err != nil {
				return HistoricalWeatherRecord{}, err
			}
			country = cur.Country
		} else {
			return HistoricalWeatherRecord{}, err
		}
	}

	now := s.now().UTC()
	var rec HistoricalWeatherRecord
	err = s.store.InTx(ctx, func(tx Store) error {
		l, err := s.attachLocation(ctx, tx, loc, country)
		if err != nil {
			return err
		}

		existing, err := tx.FindHistoricalRecord(ctx, l.ID, at)
		if err == nil {
			existing.Location = &l
			rec = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		base := recordFromReading(l.ID, reading, at)
		rec = HistoricalWeatherRecord{
			LocationID:     l.ID,
			Temperature:    base.Temperature,
			Humidity:       base.Humidity,
			Pressure:       base.Pressure,
			Description:    base.Description,
			Icon:           base.Icon,
			Timestamp:      base.Timestamp,
			QueryTimestamp: at,
			CreatedAt:      now,
		}
		if err := tx.CreateHistoricalRecord(ctx, &rec); err != nil {
			return err
		}
		rec.Location = &l
		return nil
	})
	if err != nil {
		return HistoricalWeatherRecord{}, err
	}
	return rec, nil
}

func (s *Service) requireCity(ctx context.Context, city string) (string, error) {
	city = common.NormalizeCity(city)
	if city == "" {
		return "", fmt.Errorf("%w: city is required", ErrValidation)
	}
	ok, err := s.store.CityExists(ctx, city)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: no location stored for city %q", ErrNotFound, city)
	}
	return city, nil
}

// PastSearches lists the current-weather records stored for a city.
func (s *Service) PastSearches(ctx context.Context, city string, opts ListOptions) ([]WeatherRecord, error) {
	city, err := s.requireCity(ctx, city)
	if err != nil {
		return nil, err
	}
	return s.store.ListWeatherRecordsByCity(ctx, city, opts)
}

// HistoricalRecords lists the historical records stored for a city.
func (s *Service) HistoricalRecords(ctx context.Context, city string, opts ListOptions) ([]HistoricalWeatherRecord, error) {
	city, err := s.requireCity(ctx, city)
	if err != nil {
		return nil, err
	}
	return s.store.ListHistoricalRecordsByCity(ctx, city, opts)
}

func validatePatch(p RecordPatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: temperature or description is required", ErrValidation)
	}
	if err := validate.Struct(p); err != nil {
		return validationError(err)
	}
	return nil
}

// UpdateWeatherRecord applies a partial edit to a weather record.
func (s *Service) UpdateWeatherRecord(ctx context.Context, id uint, patch RecordPatch) (WeatherRecord, error) {
	if err := validatePatch(patch); err != nil {
		return WeatherRecord{}, err
	}
	return s.store.UpdateWeatherRecord(ctx, id, patch)
}

// DeleteWeatherRecord delegates to the underlying store.
func (s *Service) DeleteWeatherRecord(ctx context.Context, id uint) error {
	return s.store.DeleteWeatherRecord(ctx, id)
}

// UpdateHistoricalRecord applies a partial edit to a historical record.
func (s *Service) UpdateHistoricalRecord(ctx context.Context, id uint, patch RecordPatch) (HistoricalWeatherRecord, error) {
	if err := validatePatch(patch); err != nil {
		return HistoricalWeatherRecord{}, err
	}
	return s.store.UpdateHistoricalRecord(ctx, id, patch)
}

// DeleteHistoricalRecord delegates to the underlying store.
func (s *Service) DeleteHistoricalRecord(ctx context.Context, id uint) error {
	return s.store.DeleteHistoricalRecord(ctx, id)
}

// Export assembles every current and historical record stored for a city.
func (s *Service) Export(ctx context.Context, city string) (ExportDocument, error) {
	city = common.NormalizeCity(city)
	if city == "" {
		return ExportDocument{}, fmt.Errorf("%w: city is required", ErrValidation)
	}

	snap, err := s.store.ExportCity(ctx, city)
	if err != nil {
		return ExportDocument{}, err
	}
	if len(snap.Locations) == 0 {
		return ExportDocument{}, fmt.Errorf("%w: no location stored for city %q", ErrNotFound, city)
	}

	doc := BuildExport(city, snap, s.now())
	log.Printf("INFO: exported %d weather and %d historical records for %s",
		len(doc.WeatherRecords), len(doc.HistoricalRecords), city)
	return doc, nil
}
