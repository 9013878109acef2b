package providers

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-records/internal/weather"
)

// GoogleGeocoder resolves city names through the Google Geocoding API.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder configures the geocoder package with apiKey. The key is
// process-wide, so only one GoogleGeocoder should be created.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

// Geocode returns the coordinates of city, optionally narrowed by country.
func (g *GoogleGeocoder) Geocode(ctx context.Context, city, country string) (weather.Coordinates, error) {
	type result struct {
		loc geocoder.Location
		err error
	}

	// The geocoder package has no context support; stop waiting when ctx ends.
	done := make(chan result, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{City: city, Country: country})
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Coordinates{}, fmt.Errorf("%w: geocode %q: %v", weather.ErrUpstream, city, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return weather.Coordinates{}, fmt.Errorf("%w: geocode %q: %v", weather.ErrUpstream, city, r.err)
		}
		return weather.Coordinates{Lat: r.loc.Latitude, Lon: r.loc.Longitude}, nil
	}
}
