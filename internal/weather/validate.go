package weather

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// HistoryEpoch is the earliest date the provider holds historical data for.
var HistoryEpoch = time.Date(1979, time.January, 1, 0, 0, 0, 0, time.UTC)

// HistoryLag is how far behind the current date historical lookups must stay.
const HistoryLag = 5 * 24 * time.Hour

// ValidateCoordinates checks lat in [-90, 90] and lon in [-180, 180].
func ValidateCoordinates(c Coordinates) error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinates, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}

// ValidateHistoricalTime checks that at falls between HistoryEpoch and now minus HistoryLag.
func ValidateHistoricalTime(at, now time.Time) error {
	if at.Before(HistoryEpoch) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDate, at.UTC().Format(time.DateOnly), HistoryEpoch.Format(time.DateOnly))
	}
	latest := now.Add(-HistoryLag)
	if at.After(latest) {
		return fmt.Errorf("%w: %s must be at least 5 days in the past", ErrInvalidDate, at.UTC().Format(time.DateOnly))
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns validator output into an ErrValidation with a readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "latitude":
		return fe.Field() + " must be between -90 and 90"
	case "longitude":
		return fe.Field() + " must be between -180 and 180"
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
