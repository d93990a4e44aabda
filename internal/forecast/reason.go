package forecast

import "errors"

// Reason is a short machine-readable cause for a forecast that could not be
// produced.
type Reason string

const (
	ReasonNotFound     Reason = "location_not_found"
	ReasonPastDates    Reason = "past_dates"
	ReasonTooFarFuture Reason = "too_far_future"
	ReasonInvalidDate  Reason = "invalid_date_format"
	ReasonProvider     Reason = "api_error"
	ReasonUnknown      Reason = "unknown"
)

// Failure wraps an optional cause with a Reason. MaxDays carries the
// forecast horizon for ReasonTooFarFuture.
type Failure struct {
	Reason  Reason
	Err     error
	MaxDays int
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return string(f.Reason) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(reason Reason, err error) error {
	return &Failure{Reason: reason, Err: err}
}

// ReasonOf extracts the Reason from err, or ReasonUnknown when err is
// not a *Failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ReasonUnknown
}

// HorizonOf returns the forecast horizon carried by err, or 0 when none.
func HorizonOf(err error) int {
	var f *Failure
	if errors.As(err, &f) {
		return f.MaxDays
	}
	return 0
}
