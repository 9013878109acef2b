package weather

import (
	"time"

	"github.com/google/uuid"
)

// ExportEntry is one flattened record in an export document.
type ExportEntry struct {
	ID             uint       `json:"id"`
	LocationID     uint       `json:"location_id"`
	City           string     `json:"city"`
	Country        string     `json:"country"`
	Temperature    float64    `json:"temperature"`
	Humidity       float64    `json:"humidity"`
	Pressure       float64    `json:"pressure"`
	Description    string     `json:"description"`
	Icon           string     `json:"icon"`
	Timestamp      time.Time  `json:"timestamp"`
	QueryTimestamp *time.Time `json:"query_timestamp,omitempty"`
}

// ExportDocument aggregates everything stored for a city.
type ExportDocument struct {
	ExportID          string        `json:"export_id"`
	City              string        `json:"city"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Locations         []Location    `json:"locations"`
	WeatherRecords    []ExportEntry `json:"weather_records"`
	HistoricalRecords []ExportEntry `json:"historical_records"`
	CurrentSummary    Summary       `json:"current_summary"`
	HistoricalSummary Summary       `json:"historical_summary"`
}

// BuildExport flattens a snapshot into an export document.
func BuildExport(city string, snap ExportSnapshot, now time.Time) ExportDocument {
	byID := make(map[uint]Location, len(snap.Locations))
	for _, l := range snap.Locations {
		byID[l.ID] = l
	}

	doc := ExportDocument{
		ExportID:          uuid.NewString(),
		City:              city,
		GeneratedAt:       now.UTC(),
		Locations:         snap.Locations,
		WeatherRecords:    make([]ExportEntry, 0, len(snap.WeatherRecords)),
		HistoricalRecords: make([]ExportEntry, 0, len(snap.HistoricalRecords)),
	}
	if doc.Locations == nil {
		doc.Locations = []Location{}
	}

	current := make([]Observation, 0, len(snap.WeatherRecords))
	for _, r := range snap.WeatherRecords {
		loc := byID[r.LocationID]
		doc.WeatherRecords = append(doc.WeatherRecords, ExportEntry{
			ID:          r.ID,
			LocationID:  r.LocationID,
			City:        loc.City,
			Country:     loc.Country,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Pressure:    r.Pressure,
			Description: r.Description,
			Icon:        r.Icon,
			Timestamp:   r.Timestamp.UTC(),
		})
		current = append(current, Observation{
			Timestamp:   r.Timestamp,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Pressure:    r.Pressure,
			Description: r.Description,
		})
	}

	historical := make([]Observation, 0, len(snap.HistoricalRecords))
	for _, r := range snap.HistoricalRecords {
		loc := byID[r.LocationID]
		qt := r.QueryTimestamp.UTC()
		doc.HistoricalRecords = append(doc.HistoricalRecords, ExportEntry{
			ID:             r.ID,
			LocationID:     r.LocationID,
			City:           loc.City,
			Country:        loc.Country,
			Temperature:    r.Temperature,
			Humidity:       r.Humidity,
			Pressure:       r.Pressure,
			Description:    r.Description,
			Icon:           r.Icon,
			Timestamp:      r.Timestamp.UTC(),
			QueryTimestamp: &qt,
		})
		historical = append(historical, Observation{
			Timestamp:   r.QueryTimestamp,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Pressure:    r.Pressure,
			Description: r.Description,
		})
	}

	doc.CurrentSummary = Summarize(current)
	doc.HistoricalSummary = Summarize(historical)
	return doc
}
