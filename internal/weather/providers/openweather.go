package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-records/internal/weather"
)

const forecastEntriesPerDay = 8 // three-hour steps

var errNoHistoricalData = errors.New("no historical data available for the specified time")

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// Coordinates are preferred over city names to avoid ambiguity.
type OpenWeatherProvider struct {
	name       string
	apiKey     string
	baseURL    string
	oneCallURL string
	client     *http.Client
}

// OpenWeatherOption customizes an OpenWeatherProvider.
type OpenWeatherOption func(*OpenWeatherProvider)

// WithBaseURL points the current and forecast calls at another host.
func WithBaseURL(u string) OpenWeatherOption {
	return func(p *OpenWeatherProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithOneCallURL points the historical call at another host.
func WithOneCallURL(u string) OpenWeatherOption {
	return func(p *OpenWeatherProvider) { p.oneCallURL = strings.TrimRight(u, "/") }
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...OpenWeatherOption) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		name:       "openweathermap",
		apiKey:     apiKey,
		baseURL:    "https://api.openweathermap.org/data/2.5",
		oneCallURL: "https://api.openweathermap.org/data/3.0/onecall",
		client:     client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owCondition struct {
	Description string `json:"description" validate:"required"`
	Icon        string `json:"icon"`
}

type owMain struct {
	Temp     *float64 `json:"temp" validate:"required"`
	Humidity *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
	Pressure *float64 `json:"pressure" validate:"required"`
}

type owCoord struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

type owCurrentPayload struct {
	Dt      int64         `json:"dt" validate:"required"`
	Coord   owCoord       `json:"coord"`
	Main    owMain        `json:"main"`
	Weather []owCondition `json:"weather" validate:"required,min=1,dive"`
	Sys     struct {
		Country string `json:"country"`
	} `json:"sys"`
}

type owForecastItem struct {
	Dt      int64         `json:"dt" validate:"required"`
	Main    owMain        `json:"main"`
	Weather []owCondition `json:"weather" validate:"required,min=1,dive"`
}

type owForecastPayload struct {
	List []owForecastItem `json:"list" validate:"required,min=1,dive"`
	City struct {
		Country string `json:"country"`
	} `json:"city"`
}

type owHistoricalItem struct {
	Dt       int64         `json:"dt" validate:"required"`
	Temp     *float64      `json:"temp" validate:"required"`
	Humidity *float64      `json:"humidity" validate:"required,gte=0,lte=100"`
	Pressure *float64      `json:"pressure" validate:"required"`
	Weather  []owCondition `json:"weather" validate:"required,min=1,dive"`
}

type owHistoricalPayload struct {
	Lat  float64            `json:"lat"`
	Lon  float64            `json:"lon"`
	Data []owHistoricalItem `json:"data" validate:"dive"`
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint string, values url.Values, dst any) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: openweather api key is not configured", weather.ErrUpstream)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		u := fmt.Sprintf("%s?%s", endpoint, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, buildRequest)
	if err != nil {
		return err
	}
	return decodePayload(resp, dst)
}

func coordValues(c weather.Coordinates) url.Values {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	return values
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, coords weather.Coordinates) (weather.Reading, error) {
	if err := weather.ValidateCoordinates(coords); err != nil {
		return weather.Reading{}, err
	}
	return p.current(ctx, coordValues(coords))
}

func (p *OpenWeatherProvider) LookupCity(ctx context.Context, city string) (weather.Reading, error) {
	values := url.Values{}
	values.Set("q", city)
	return p.current(ctx, values)
}

func (p *OpenWeatherProvider) current(ctx context.Context, values url.Values) (weather.Reading, error) {
	var payload owCurrentPayload
	if err := p.get(ctx, p.baseURL+"/weather", values, &payload); err != nil {
		return weather.Reading{}, err
	}

	cond := payload.Weather[0]
	return weather.Reading{
		ProviderName: p.name,
		Timestamp:    time.Unix(payload.Dt, 0).UTC(),
		TemperatureC: *payload.Main.Temp,
		HumidityPct:  *payload.Main.Humidity,
		PressureHpa:  *payload.Main.Pressure,
		Description:  cond.Description,
		Icon:         iconOrDefault(cond.Icon),
		Country:      payload.Sys.Country,
		Latitude:     *payload.Coord.Lat,
		Longitude:    *payload.Coord.Lon,
	}, nil
}

func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, coords weather.Coordinates, days int) ([]weather.Reading, error) {
	if err := weather.ValidateCoordinates(coords); err != nil {
		return nil, err
	}
	if days < 1 || days > weather.MaxForecastDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", weather.ErrValidation, weather.MaxForecastDays)
	}

	var payload owForecastPayload
	if err := p.get(ctx, p.baseURL+"/forecast", coordValues(coords), &payload); err != nil {
		return nil, err
	}

	items := payload.List
	if limit := days * forecastEntriesPerDay; len(items) > limit {
		items = items[:limit]
	}

	readings := make([]weather.Reading, 0, len(items))
	for _, item := range items {
		cond := item.Weather[0]
		readings = append(readings, weather.Reading{
			ProviderName: p.name,
			Timestamp:    time.Unix(item.Dt, 0).UTC(),
			TemperatureC: *item.Main.Temp,
			HumidityPct:  *item.Main.Humidity,
			PressureHpa:  *item.Main.Pressure,
			Description:  cond.Description,
			Icon:         iconOrDefault(cond.Icon),
			Country:      payload.City.Country,
			Latitude:     coords.Lat,
			Longitude:    coords.Lon,
		})
	}
	return readings, nil
}

func (p *OpenWeatherProvider) FetchHistorical(ctx context.Context, coords weather.Coordinates, at time.Time) (weather.Reading, error) {
	if err := weather.ValidateCoordinates(coords); err != nil {
		return weather.Reading{}, err
	}

	values := coordValues(coords)
	values.Set("dt", strconv.FormatInt(at.Unix(), 10))

	var payload owHistoricalPayload
	if err := p.get(ctx, p.oneCallURL+"/timemachine", values, &payload); err != nil {
		return weather.Reading{}, err
	}
	if len(payload.Data) == 0 {
		return weather.Reading{}, fmt.Errorf("%w: %w", weather.ErrUpstream, errNoHistoricalData)
	}

	item := payload.Data[0]
	cond := item.Weather[0]
	return weather.Reading{
		ProviderName: p.name,
		Timestamp:    time.Unix(item.Dt, 0).UTC(),
		TemperatureC: *item.Temp,
		HumidityPct:  *item.Humidity,
		PressureHpa:  *item.Pressure,
		Description:  cond.Description,
		Icon:         iconOrDefault(cond.Icon),
		Latitude:     payload.Lat,
		Longitude:    payload.Lon,
	}, nil
}

func iconOrDefault(icon string) string {
	if icon == "" {
		return weather.DefaultIcon
	}
	return icon
}
