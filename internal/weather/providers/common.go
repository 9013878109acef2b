package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-records/internal/weather"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 4 << 20

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errNoHTTPClient = errors.New("http client not configured")
	errBadPayload   = errors.New("malformed payload")
)

var payloadValidator = validator.New()

// doRequest executes a single outbound request bound to ctx. Every failure,
// including non-2xx statuses, comes back wrapped in weather.ErrUpstream.
func doRequest(
	ctx context.Context,
	client *http.Client,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: %w", weather.ErrUpstream, errNoHTTPClient)
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", weather.ErrUpstream, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrUpstream, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %w", weather.ErrUpstream, errRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %w: %d", weather.ErrUpstream, errServerError, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: %w: %d", weather.ErrUpstream, errUnexpected, resp.StatusCode)
	}
}

// decodePayload decodes the response body into dst and validates it against its
// struct tags. Shape mismatches are reported as weather.ErrUpstream.
func decodePayload(resp *http.Response, dst any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w: %v", weather.ErrUpstream, errBadPayload, err)
	}
	if err := payloadValidator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w: %v", weather.ErrUpstream, errBadPayload, err)
	}
	return nil
}
