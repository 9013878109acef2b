package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-records/internal/common"
	"github.com/i474232898/weather-records/internal/weather"
)

var validate = validator.New()

type handlers struct {
	service *weather.Service
	timeout time.Duration
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. Every handler bounds
// its work, including provider calls, by timeout.
func RegisterRoutes(app *fiber.App, service *weather.Service, timeout time.Duration) {
	h := &handlers{service: service, timeout: timeout}
	v1 := app.Group("/api/v1")

	v1.Post("/locations", h.createLocation)
	v1.Get("/locations", h.listLocations)
	v1.Delete("/locations/:id", h.deleteLocation)

	v1.Get("/weather/current/:city", h.currentWeather)
	v1.Get("/weather/forecast/:city", h.forecast)
	v1.Get("/weather/historical/:city", h.historicalWeather)
	v1.Get("/weather/past_searches/:city", h.pastSearches)
	v1.Put("/weather/:id", h.updateWeatherRecord)
	v1.Delete("/weather/:id", h.deleteWeatherRecord)

	v1.Get("/historical-weather/:city", h.listHistorical)
	v1.Put("/historical-weather/:id", h.updateHistoricalRecord)
	v1.Delete("/historical-weather/:id", h.deleteHistoricalRecord)

	v1.Get("/export/:city", h.export)
}

func (h *handlers) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

func (h *handlers) createLocation(c *fiber.Ctx) error {
	var in weather.LocationInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	loc, err := h.service.CreateLocation(ctx, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(loc)
}

func (h *handlers) listLocations(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	locs, err := h.service.ListLocations(ctx, page.options())
	if err != nil {
		return err
	}
	return c.JSON(locs)
}

func (h *handlers) deleteLocation(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.service.DeleteLocation(ctx, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "location and associated weather data deleted"})
}

func (h *handlers) currentWeather(c *fiber.Ctx) error {
	coords, err := parseCoordinates(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rec, err := h.service.FetchCurrent(ctx, c.Params("city"), coords)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Days int `validate:"gte=1,lte=5"`
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	coords, err := parseCoordinates(c)
	if err != nil {
		return err
	}

	q := forecastQuery{Days: weather.MaxForecastDays}
	if raw := c.Query("days"); raw != "" {
		if q.Days, err = strconv.Atoi(raw); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "days must be an integer")
		}
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", weather.MaxForecastDays))
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	fc, err := h.service.Forecast(ctx, c.Params("city"), coords, q.Days)
	if err != nil {
		return err
	}
	return c.JSON(fc)
}

func (h *handlers) historicalWeather(c *fiber.Ctx) error {
	coords, err := parseCoordinates(c)
	if err != nil {
		return err
	}

	raw := c.Query("timestamp")
	if raw == "" {
		return fiber.NewError(fiber.StatusBadRequest, "timestamp query parameter is required")
	}
	at, err := common.ParseTime(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rec, err := h.service.FetchHistorical(ctx, c.Params("city"), coords, at)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *handlers) pastSearches(c *fiber.Ctx) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	recs, err := h.service.PastSearches(ctx, c.Params("city"), q.options())
	if err != nil {
		return err
	}
	return c.JSON(recs)
}

func (h *handlers) listHistorical(c *fiber.Ctx) error {
	q, err := parseHistoryQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	recs, err := h.service.HistoricalRecords(ctx, c.Params("city"), q.options())
	if err != nil {
		return err
	}
	return c.JSON(recs)
}

func (h *handlers) updateWeatherRecord(c *fiber.Ctx) error {
	id, patch, err := parseUpdate(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rec, err := h.service.UpdateWeatherRecord(ctx, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *handlers) deleteWeatherRecord(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.service.DeleteWeatherRecord(ctx, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "weather record deleted"})
}

func (h *handlers) updateHistoricalRecord(c *fiber.Ctx) error {
	id, patch, err := parseUpdate(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	rec, err := h.service.UpdateHistoricalRecord(ctx, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (h *handlers) deleteHistoricalRecord(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.service.DeleteHistoricalRecord(ctx, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "historical weather record deleted"})
}

func (h *handlers) export(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	doc, err := h.service.Export(ctx, c.Params("city"))
	if err != nil {
		return err
	}

	c.Attachment(exportFilename(doc.City))
	return c.JSON(doc)
}

func exportFilename(city string) string {
	name := strings.ToLower(strings.ReplaceAll(city, " ", "_"))
	return name + "_weather_export.json"
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "id must be a positive integer")
	}
	return uint(id), nil
}

func parseUpdate(c *fiber.Ctx) (uint, weather.RecordPatch, error) {
	id, err := parseID(c)
	if err != nil {
		return 0, weather.RecordPatch{}, err
	}
	var patch weather.RecordPatch
	if err := c.BodyParser(&patch); err != nil {
		return 0, weather.RecordPatch{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return id, patch, nil
}

// parseCoordinates reads the optional lat/lon pair. Either both are given or neither.
func parseCoordinates(c *fiber.Ctx) (*weather.Coordinates, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "lat and lon must be provided together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "lon must be a number")
	}

	coords := weather.Coordinates{Lat: lat, Lon: lon}
	if err := weather.ValidateCoordinates(coords); err != nil {
		return nil, err
	}
	return &coords, nil
}

// pageQuery holds the skip/limit pagination parameters.
type pageQuery struct {
	Skip  int `validate:"gte=0"`
	Limit int `validate:"gte=0"`
}

func (p pageQuery) options() weather.ListOptions {
	return weather.ListOptions{Offset: p.Skip, Limit: p.Limit}
}

func parsePage(c *fiber.Ctx) (pageQuery, error) {
	var p pageQuery
	var err error

	if raw := c.Query("skip"); raw != "" {
		if p.Skip, err = strconv.Atoi(raw); err != nil {
			return p, fiber.NewError(fiber.StatusBadRequest, "skip must be an integer")
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if p.Limit, err = strconv.Atoi(raw); err != nil {
			return p, fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
		}
	}
	if err := validate.Struct(p); err != nil {
		return p, fiber.NewError(fiber.StatusBadRequest, "skip and limit must not be negative")
	}
	return p, nil
}

// historyQuery holds query parameters for the record listing endpoints.
type historyQuery struct {
	Page  pageQuery
	Start *time.Time
	End   *time.Time
}

func (q historyQuery) options() weather.ListOptions {
	opts := q.Page.options()
	opts.From = q.Start
	opts.To = q.End
	return opts
}

func parseHistoryQuery(c *fiber.Ctx) (historyQuery, error) {
	var q historyQuery

	page, err := parsePage(c)
	if err != nil {
		return q, err
	}
	q.Page = page

	if raw := c.Query("start_date"); raw != "" {
		start, err := common.ParseTime(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "start_date: "+err.Error())
		}
		q.Start = &start
	}
	if raw := c.Query("end_date"); raw != "" {
		end, err := common.ParseTime(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "end_date: "+err.Error())
		}
		// A plain date covers the whole day.
		if _, derr := time.Parse(time.DateOnly, strings.TrimSpace(raw)); derr == nil {
			end = end.Add(24*time.Hour - time.Second)
		}
		q.End = &end
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return q, fiber.NewError(fiber.StatusBadRequest, "end_date must not be before start_date")
	}
	return q, nil
}

// ErrorHandler renders every error as {"error": true, "message": ...}. Domain
// errors are mapped to their status codes; anything unrecognized becomes a 500
// with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, msg := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		logError(c, err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, weather.ErrValidation),
		errors.Is(err, weather.ErrInvalidCoordinates),
		errors.Is(err, weather.ErrInvalidDate):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, weather.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, weather.ErrConflict):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, weather.ErrUpstream):
		return fiber.StatusServiceUnavailable, "weather provider unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "request timed out"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
