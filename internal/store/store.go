package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/i474232898/weather-records/internal/weather"
)

var (
	// ErrNotFound is returned when no row matches the requested id or city.
	ErrNotFound = fmt.Errorf("record %w", weather.ErrNotFound)
)

// GormStore is the relational implementation of weather.Store.
type GormStore struct {
	db *gorm.DB
}

// New wraps an opened database handle.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// InTx runs fn against a store bound to a single transaction. fn's error rolls
// the transaction back.
func (s *GormStore) InTx(ctx context.Context, fn func(tx weather.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}

func paginate(q *gorm.DB, opts weather.ListOptions) *gorm.DB {
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	return q
}

// cityMatch restricts a query to locations whose city equals city, ignoring case.
func cityMatch(q *gorm.DB, city string) *gorm.DB {
	return q.Where("LOWER(locations.city) = LOWER(?)", city)
}

func (s *GormStore) CreateLocation(ctx context.Context, loc *weather.Location) error {
	if err := s.conn(ctx).Create(loc).Error; err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	return nil
}

func (s *GormStore) ListLocations(ctx context.Context, opts weather.ListOptions) ([]weather.Location, error) {
	var locs []weather.Location
	q := paginate(s.conn(ctx).Order("id"), opts)
	if err := q.Find(&locs).Error; err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locs, nil
}

func (s *GormStore) GetLocation(ctx context.Context, id uint) (weather.Location, error) {
	var loc weather.Location
	if err := s.conn(ctx).First(&loc, id).Error; err != nil {
		return weather.Location{}, notFound(err, "location", id)
	}
	return loc, nil
}

// FindLocation returns the first location for city. Country is compared
// ignoring case; an empty country matches any.
func (s *GormStore) FindLocation(ctx context.Context, city, country string) (weather.Location, error) {
	var loc weather.Location
	q := cityMatch(s.conn(ctx).Model(&weather.Location{}), city)
	if country != "" {
		q = q.Where("LOWER(locations.country) = LOWER(?)", country)
	}
	if err := q.Order("id").First(&loc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return weather.Location{}, fmt.Errorf("%w: location for city %q", ErrNotFound, city)
		}
		return weather.Location{}, err
	}
	return loc, nil
}

// ListLocationsByCity returns every location stored for city, oldest first.
func (s *GormStore) ListLocationsByCity(ctx context.Context, city string) ([]weather.Location, error) {
	var locs []weather.Location
	if err := cityMatch(s.conn(ctx), city).Order("id").Find(&locs).Error; err != nil {
		return nil, fmt.Errorf("list locations for city: %w", err)
	}
	return locs, nil
}

func (s *GormStore) CityExists(ctx context.Context, city string) (bool, error) {
	var n int64
	if err := cityMatch(s.conn(ctx).Model(&weather.Location{}), city).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteLocation removes a location and its dependent rows in one transaction.
func (s *GormStore) DeleteLocation(ctx context.Context, id uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var loc weather.Location
		if err := tx.First(&loc, id).Error; err != nil {
			return notFound(err, "location", id)
		}
		if err := tx.Where("location_id = ?", id).Delete(&weather.HistoricalWeatherRecord{}).Error; err != nil {
			return fmt.Errorf("delete historical records: %w", err)
		}
		if err := tx.Where("location_id = ?", id).Delete(&weather.WeatherRecord{}).Error; err != nil {
			return fmt.Errorf("delete weather records: %w", err)
		}
		if err := tx.Delete(&loc).Error; err != nil {
			return fmt.Errorf("delete location: %w", err)
		}
		return nil
	})
}

func (s *GormStore) CreateWeatherRecord(ctx context.Context, rec *weather.WeatherRecord) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return fmt.Errorf("create weather record: %w", err)
	}
	return nil
}

func (s *GormStore) GetWeatherRecord(ctx context.Context, id uint) (weather.WeatherRecord, error) {
	var rec weather.WeatherRecord
	if err := s.conn(ctx).Preload("Location").First(&rec, id).Error; err != nil {
		return weather.WeatherRecord{}, notFound(err, "weather record", id)
	}
	return rec, nil
}

// RecentWeatherRecord returns the newest record for a location created at or after since.
func (s *GormStore) RecentWeatherRecord(ctx context.Context, locationID uint, since time.Time) (weather.WeatherRecord, error) {
	var rec weather.WeatherRecord
	err := s.conn(ctx).
		Where("location_id = ? AND created_at >= ?", locationID, since.UTC()).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		return weather.WeatherRecord{}, notFound(err, "recent weather record for location", locationID)
	}
	return rec, nil
}

func (s *GormStore) ListWeatherRecordsByCity(ctx context.Context, city string, opts weather.ListOptions) ([]weather.WeatherRecord, error) {
	q := cityMatch(s.conn(ctx).
		Joins("JOIN locations ON locations.id = weather_records.location_id"), city).
		Preload("Location").
		Order("weather_records.id")
	if opts.From != nil {
		q = q.Where("weather_records.timestamp >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		q = q.Where("weather_records.timestamp <= ?", opts.To.UTC())
	}

	var recs []weather.WeatherRecord
	if err := paginate(q, opts).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list weather records: %w", err)
	}
	return recs, nil
}

// UpdateWeatherRecord changes only the fields set in patch.
func (s *GormStore) UpdateWeatherRecord(ctx context.Context, id uint, patch weather.RecordPatch) (weather.WeatherRecord, error) {
	var rec weather.WeatherRecord
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, id).Error; err != nil {
			return notFound(err, "weather record", id)
		}
		if err := tx.Model(&rec).Updates(patchColumns(patch)).Error; err != nil {
			return fmt.Errorf("update weather record: %w", err)
		}
		return tx.Preload("Location").First(&rec, id).Error
	})
	if err != nil {
		return weather.WeatherRecord{}, err
	}
	return rec, nil
}

func (s *GormStore) DeleteWeatherRecord(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&weather.WeatherRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete weather record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: weather record %d", ErrNotFound, id)
	}
	return nil
}

func (s *GormStore) CreateHistoricalRecord(ctx context.Context, rec *weather.HistoricalWeatherRecord) error {
	if err := s.conn(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return fmt.Errorf("create historical record: %w", err)
	}
	return nil
}

func (s *GormStore) GetHistoricalRecord(ctx context.Context, id uint) (weather.HistoricalWeatherRecord, error) {
	var rec weather.HistoricalWeatherRecord
	if err := s.conn(ctx).Preload("Location").First(&rec, id).Error; err != nil {
		return weather.HistoricalWeatherRecord{}, notFound(err, "historical record", id)
	}
	return rec, nil
}

func (s *GormStore) FindHistoricalRecord(ctx context.Context, locationID uint, queryTimestamp time.Time) (weather.HistoricalWeatherRecord, error) {
	var rec weather.HistoricalWeatherRecord
	err := s.conn(ctx).
		Where("location_id = ? AND query_timestamp = ?", locationID, queryTimestamp.UTC()).
		Order("id").
		First(&rec).Error
	if err != nil {
		return weather.HistoricalWeatherRecord{}, notFound(err, "historical record for location", locationID)
	}
	return rec, nil
}

func (s *GormStore) ListHistoricalRecordsByCity(ctx context.Context, city string, opts weather.ListOptions) ([]weather.HistoricalWeatherRecord, error) {
	q := cityMatch(s.conn(ctx).
		Joins("JOIN locations ON locations.id = historical_weather_records.location_id"), city).
		Preload("Location").
		Order("historical_weather_records.id")
	if opts.From != nil {
		q = q.Where("historical_weather_records.query_timestamp >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		q = q.Where("historical_weather_records.query_timestamp <= ?", opts.To.UTC())
	}

	var recs []weather.HistoricalWeatherRecord
	if err := paginate(q, opts).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list historical records: %w", err)
	}
	return recs, nil
}

func (s *GormStore) UpdateHistoricalRecord(ctx context.Context, id uint, patch weather.RecordPatch) (weather.HistoricalWeatherRecord, error) {
	var rec weather.HistoricalWeatherRecord
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, id).Error; err != nil {
			return notFound(err, "historical record", id)
		}
		if err := tx.Model(&rec).Updates(patchColumns(patch)).Error; err != nil {
			return fmt.Errorf("update historical record: %w", err)
		}
		return tx.Preload("Location").First(&rec, id).Error
	})
	if err != nil {
		return weather.HistoricalWeatherRecord{}, err
	}
	return rec, nil
}

func (s *GormStore) DeleteHistoricalRecord(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&weather.HistoricalWeatherRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete historical record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: historical record %d", ErrNotFound, id)
	}
	return nil
}

// ExportCity reads all locations and records for a city inside one transaction so
// the lists are consistent with each other.
func (s *GormStore) ExportCity(ctx context.Context, city string) (weather.ExportSnapshot, error) {
	var snap weather.ExportSnapshot
	err := s.InTx(ctx, func(tx weather.Store) error {
		g := tx.(*GormStore)
		var err error
		if snap.Locations, err = g.ListLocationsByCity(ctx, city); err != nil {
			return err
		}
		if snap.WeatherRecords, err = g.ListWeatherRecordsByCity(ctx, city, weather.ListOptions{}); err != nil {
			return err
		}
		if snap.HistoricalRecords, err = g.ListHistoricalRecordsByCity(ctx, city, weather.ListOptions{}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return weather.ExportSnapshot{}, err
	}
	return snap, nil
}

func patchColumns(p weather.RecordPatch) map[string]any {
	cols := make(map[string]any, 2)
	if p.Temperature != nil {
		cols["temperature"] = *p.Temperature
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	return cols
}
