// Package forecast resolves free-text locations and fetches bounded daily
// forecasts from the Open-Meteo geocoding and forecast APIs.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com"
	DefaultForecastURL  = "https://api.open-meteo.com"
	DefaultMaxDays      = 14
	DefaultTimeout      = 10 * time.Second
)

const dailyFields = "temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,wind_speed_10m_max,weather_code"

// Units selects the temperature unit.
type Units string

const (
	Celsius    Units = "C"
	Fahrenheit Units = "F"
)

// ParseUnits accepts "C"/"F" in any case; anything else means Celsius.
func ParseUnits(s string) Units {
	if strings.EqualFold(strings.TrimSpace(s), "F") {
		return Fahrenheit
	}
	return Celsius
}

func (u Units) param() string {
	if u == Fahrenheit {
		return "fahrenheit"
	}
	return "celsius"
}

// Symbol returns the degree suffix, e.g. "°C".
func (u Units) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// Location is the top geocoding match.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
}

// Formatted renders "Name, Country".
func (l Location) Formatted() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// Day is one daily forecast record. A nil measurement means the provider
// reported no value for that day.
type Day struct {
	Date              string
	TempMax           *float64
	TempMin           *float64
	Precipitation     *float64
	PrecipitationProb *float64
	WindSpeed         *float64
	Code              *int
	Condition         string
}

// Forecast is the result of a successful Fetch. When the requested window ran
// past the forecast horizon, DateAdjusted is set and OriginalEnd holds the
// end date the caller asked for.
type Forecast struct {
	Location     Location
	Start        string
	End          string
	Units        Units
	Timezone     string
	Days         []Day
	DateAdjusted bool
	OriginalEnd  string
	// MaxDays is the horizon the window was checked against.
	MaxDays int
}

// Resolver talks to the geocoding and forecast endpoints.
type Resolver struct {
	HTTP         *http.Client
	GeocodingURL string
	ForecastURL  string
	MaxDays      int
	Now          func() time.Time
}

// NewResolver returns a Resolver pointed at the public Open-Meteo endpoints.
func NewResolver() *Resolver {
	return &Resolver{
		HTTP:         &http.Client{Timeout: DefaultTimeout},
		GeocodingURL: DefaultGeocodingURL,
		ForecastURL:  DefaultForecastURL,
		MaxDays:      DefaultMaxDays,
		Now:          time.Now,
	}
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Resolver) maxDays() int {
	if r.MaxDays <= 0 {
		return DefaultMaxDays
	}
	return r.MaxDays
}

func (r *Resolver) client() *http.Client {
	if r.HTTP == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}
	return r.HTTP
}

type geocodingResponse struct {
	Results []Location `json:"results"`
}

// Geocode resolves free text to coordinates using the top match.
func (r *Resolver) Geocode(ctx context.Context, text string) (*Location, error) {
	q := url.Values{}
	q.Set("name", text)
	q.Set("count", "1")
	q.Set("language", "en")

	var payload geocodingResponse
	if err := r.getJSON(ctx, strings.TrimRight(r.GeocodingURL, "/")+"/v1/search?"+q.Encode(), &payload); err != nil {
		slog.Warn("Geocoding failed", slog.String("location", text), slog.String("err", err.Error()))
		return nil, fail(ReasonProvider, err)
	}
	if len(payload.Results) == 0 {
		return nil, fail(ReasonNotFound, fmt.Errorf("no match for %q", text))
	}

	loc := payload.Results[0]
	return &loc, nil
}

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Daily    struct {
		Time              []string   `json:"time"`
		TempMax           []*float64 `json:"temperature_2m_max"`
		TempMin           []*float64 `json:"temperature_2m_min"`
		Precipitation     []*float64 `json:"precipitation_sum"`
		PrecipitationProb []*float64 `json:"precipitation_probability_max"`
		WindSpeed         []*float64 `json:"wind_speed_10m_max"`
		WeatherCode       []*int     `json:"weather_code"`
	} `json:"daily"`
}

// Fetch validates the requested window against the forecast horizon and
// fetches daily records. Rejected windows never touch the network.
func (r *Resolver) Fetch(ctx context.Context, loc Location, startDate, endDate string, units Units) (*Forecast, error) {
	start, err := time.Parse(time.DateOnly, startDate)
	if err != nil {
		return nil, fail(ReasonInvalidDate, err)
	}
	end, err := time.Parse(time.DateOnly, endDate)
	if err != nil {
		return nil, fail(ReasonInvalidDate, err)
	}

	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, 0, r.maxDays())

	if end.Before(today) {
		return nil, fail(ReasonPastDates, fmt.Errorf("end date %s is before %s", endDate, today.Format(time.DateOnly)))
	}
	if start.After(horizon) {
		return nil, &Failure{
			Reason:  ReasonTooFarFuture,
			Err:     fmt.Errorf("start date %s is after %s", startDate, horizon.Format(time.DateOnly)),
			MaxDays: r.maxDays(),
		}
	}
	if end.Before(start) {
		return nil, fail(ReasonInvalidDate, fmt.Errorf("end date %s is before start date %s", endDate, startDate))
	}

	result := &Forecast{
		Location: loc,
		Start:    startDate,
		End:      endDate,
		Units:    units,
		MaxDays:  r.maxDays(),
	}
	if end.After(horizon) {
		result.DateAdjusted = true
		result.OriginalEnd = endDate
		result.End = horizon.Format(time.DateOnly)
		slog.Info("Clamped forecast window",
			slog.String("requested_end", endDate),
			slog.String("end", result.End),
			slog.Int("max_days", r.maxDays()),
		)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("daily", dailyFields)
	q.Set("temperature_unit", units.param())
	q.Set("start_date", result.Start)
	q.Set("end_date", result.End)
	q.Set("timezone", "auto")

	var payload forecastResponse
	if err := r.getJSON(ctx, strings.TrimRight(r.ForecastURL, "/")+"/v1/forecast?"+q.Encode(), &payload); err != nil {
		slog.Warn("Forecast fetch failed", slog.String("location", loc.Formatted()), slog.String("err", err.Error()))
		return nil, fail(ReasonProvider, err)
	}

	d := payload.Daily
	n := len(d.Time)
	for _, l := range []int{len(d.TempMax), len(d.TempMin), len(d.Precipitation), len(d.PrecipitationProb), len(d.WindSpeed), len(d.WeatherCode)} {
		if l != n {
			return nil, fail(ReasonProvider, errors.New("daily arrays have mismatched lengths"))
		}
	}
	if n == 0 {
		return nil, fail(ReasonProvider, errors.New("forecast contained no days"))
	}

	result.Timezone = payload.Timezone
	result.Days = make([]Day, n)
	for i := range n {
		result.Days[i] = Day{
			Date:              d.Time[i],
			TempMax:           d.TempMax[i],
			TempMin:           d.TempMin[i],
			Precipitation:     d.Precipitation[i],
			PrecipitationProb: d.PrecipitationProb[i],
			WindSpeed:         d.WindSpeed[i],
			Code:              d.WeatherCode[i],
			Condition:         describeCode(d.WeatherCode[i]),
		}
	}

	return result, nil
}

type providerError struct {
	Reason string `json:"reason"`
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe providerError
		if json.Unmarshal(body, &pe) == nil && pe.Reason != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, pe.Reason)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Summary renders one compact line per day for the LLM to prose-ify.
func Summary(f *Forecast) string {
	if f == nil || len(f.Days) == 0 {
		return "Weather forecast unavailable."
	}
	lines := make([]string, 0, len(f.Days))
	for _, day := range f.Days {
		lines = append(lines, fmt.Sprintf("%s: %s, %s-%s%s, Precip: %s (%s chance), Wind: %s",
			day.Date, day.Condition,
			measure(day.TempMin, "%.1f"), measure(day.TempMax, "%.1f"), f.Units.Symbol(),
			measure(day.Precipitation, "%.1fmm"), measure(day.PrecipitationProb, "%.0f%%"),
			measure(day.WindSpeed, "%.1f km/h"),
		))
	}
	return strings.Join(lines, "\n")
}

// measure 缺失值输出 n/a
func measure(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
