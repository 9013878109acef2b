package weather

import (
	"time"
)

// DefaultIcon is the provider icon code used when none is known (clear sky, day).
const DefaultIcon = "01d"

// Location represents a named geographic point for which observations are stored.
// City is indexed but not unique.
type Location struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	City      string    `json:"city" gorm:"index;not null"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Location) TableName() string {
	return "locations"
}

// Coordinates returns the location's coordinates.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Lat: l.Latitude, Lon: l.Longitude}
}

// WeatherRecord is a single current-weather observation owned by a Location.
type WeatherRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	LocationID  uint      `json:"location_id" gorm:"index;not null"`
	Temperature float64   `json:"temperature"` // Celsius
	Humidity    float64   `json:"humidity"`    // percent
	Pressure    float64   `json:"pressure"`    // hPa
	Description string    `json:"description"`
	Icon        string    `json:"icon" gorm:"default:01d"`
	Timestamp   time.Time `json:"timestamp" gorm:"index"` // observation time, UTC
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`

	Location *Location `json:"location,omitempty" gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE"`
}

func (WeatherRecord) TableName() string {
	return "weather_records"
}

// HistoricalWeatherRecord is an observation for a past date. QueryTimestamp is the
// instant the lookup was issued for; Timestamp is the provider's observation time.
type HistoricalWeatherRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	LocationID     uint      `json:"location_id" gorm:"index;not null"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	Pressure       float64   `json:"pressure"`
	Description    string    `json:"description"`
	Icon           string    `json:"icon" gorm:"default:01d"`
	Timestamp      time.Time `json:"timestamp"`
	QueryTimestamp time.Time `json:"query_timestamp" gorm:"index"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`

	Location *Location `json:"location,omitempty" gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE"`
}

func (HistoricalWeatherRecord) TableName() string {
	return "historical_weather_records"
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RecordPatch carries the editable fields of a weather or historical record.
// Nil fields are left untouched.
type RecordPatch struct {
	Temperature *float64 `json:"temperature"`
	Description *string  `json:"description" validate:"omitempty,max=20"`
}

// Empty reports whether the patch changes nothing.
func (p RecordPatch) Empty() bool {
	return p.Temperature == nil && p.Description == nil
}

// ListOptions narrows list queries. A Limit <= 0 means no limit.
type ListOptions struct {
	Offset int
	Limit  int
	From   *time.Time
	To     *time.Time
}

// LocationInput is the payload for creating a location explicitly.
type LocationInput struct {
	City      string   `json:"city" validate:"required,max=100"`
	Country   string   `json:"country" validate:"required,max=100"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// Forecast is a provider forecast for a location; it is never persisted.
// Entries are ordered by Timestamp ascending.
type Forecast struct {
	Location Location  `json:"location"`
	Days     int       `json:"days"`
	Entries  []Reading `json:"entries"`
}
