// Package weathertest provides a scripted weather.Provider for tests.
package weathertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/weather-records/internal/weather"
)

// City is a place the fake provider knows about.
type City struct {
	Country string
	Coords  weather.Coordinates
}

// Provider answers from fixed data and counts calls. Set Err to make every
// call fail with it.
type Provider struct {
	mu sync.Mutex

	Cities      map[string]City
	Temperature float64
	Humidity    float64
	Pressure    float64
	Description string
	Err         error

	CurrentCalls    int
	ForecastCalls   int
	HistoricalCalls int
	LookupCalls     int
}

// NewProvider returns a Provider that knows Paris and London.
func NewProvider() *Provider {
	return &Provider{
		Cities: map[string]City{
			"Paris":  {Country: "FR", Coords: weather.Coordinates{Lat: 48.8566, Lon: 2.3522}},
			"London": {Country: "GB", Coords: weather.Coordinates{Lat: 51.5074, Lon: -0.1278}},
		},
		Temperature: 18.5,
		Humidity:    55,
		Pressure:    1013,
		Description: "clear sky",
	}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) reading(c weather.Coordinates, ts time.Time) weather.Reading {
	country := ""
	for _, city := range p.Cities {
		if city.Coords == c {
			country = city.Country
		}
	}
	return weather.Reading{
		ProviderName: p.Name(),
		Timestamp:    ts,
		TemperatureC: p.Temperature,
		HumidityPct:  p.Humidity,
		PressureHpa:  p.Pressure,
		Description:  p.Description,
		Icon:         "01d",
		Country:      country,
		Latitude:     c.Lat,
		Longitude:    c.Lon,
	}
}

// SetErr makes subsequent calls fail with err, or succeed again when err is nil.
func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// Calls returns the total number of provider calls made so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentCalls + p.ForecastCalls + p.HistoricalCalls + p.LookupCalls
}

func (p *Provider) FetchCurrent(_ context.Context, c weather.Coordinates) (weather.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CurrentCalls++
	if p.Err != nil {
		return weather.Reading{}, p.Err
	}
	return p.reading(c, time.Now().UTC().Truncate(time.Second)), nil
}

func (p *Provider) FetchForecast(_ context.Context, c weather.Coordinates, days int) ([]weather.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ForecastCalls++
	if p.Err != nil {
		return nil, p.Err
	}
	start := time.Now().UTC().Truncate(time.Hour)
	out := make([]weather.Reading, 0, days*8)
	for i := 0; i < days*8; i++ {
		out = append(out, p.reading(c, start.Add(time.Duration(i)*3*time.Hour)))
	}
	return out, nil
}

func (p *Provider) FetchHistorical(_ context.Context, c weather.Coordinates, at time.Time) (weather.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HistoricalCalls++
	if p.Err != nil {
		return weather.Reading{}, p.Err
	}
	r := p.reading(c, at)
	r.Country = ""
	return r, nil
}

func (p *Provider) LookupCity(_ context.Context, city string) (weather.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LookupCalls++
	if p.Err != nil {
		return weather.Reading{}, p.Err
	}
	known, ok := p.Cities[city]
	if !ok {
		return weather.Reading{}, fmt.Errorf("%w: city %q not found", weather.ErrUpstream, city)
	}
	return p.reading(known.Coords, time.Now().UTC()), nil
}
