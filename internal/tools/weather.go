package tools

import (
	"context"
	"fmt"

	"log/slog"

	"travelpilot/internal/forecast"
)

// DateRange 日期范围
type DateRange struct {
	Start string `json:"start" jsonschema:"required" jsonschema_description:"Start date in YYYY-MM-DD format"`
	End   string `json:"end" jsonschema:"required" jsonschema_description:"End date in YYYY-MM-DD format"`
}

// WeatherArgs 天气预报参数
type WeatherArgs struct {
	Location  string    `json:"location" jsonschema:"required" jsonschema_description:"The location (city and country, e.g., 'Rome, Italy')"`
	DateRange DateRange `json:"date_range" jsonschema:"required" jsonschema_description:"Date range for the weather forecast"`
	Units     string    `json:"units,omitempty" jsonschema:"enum=C,enum=F,default=C" jsonschema_description:"Temperature units (Celsius or Fahrenheit)"`
}

// ForecastSource is the subset of *forecast.Resolver the weather tool needs.
type ForecastSource interface {
	Geocode(ctx context.Context, text string) (*forecast.Location, error)
	Fetch(ctx context.Context, loc forecast.Location, startDate, endDate string, units forecast.Units) (*forecast.Forecast, error)
}

// WeatherTool fetches a bounded forecast and has the model summarize it.
type WeatherTool struct {
	gen    *Generator
	source ForecastSource
	prompt string
	params map[string]any
}

func NewWeatherTool(gen *Generator, source ForecastSource, prompt string) *WeatherTool {
	return &WeatherTool{
		gen:    gen,
		source: source,
		prompt: prompt,
		params: reflectParameters[WeatherArgs](),
	}
}

func (t *WeatherTool) Name() string { return "get_weather_forecast" }

func (t *WeatherTool) Description() string {
	return "Fetch and summarize weather forecast for a location and date range. Use when user asks about weather, OR when user asks what to wear/pack AND location + dates are known."
}

func (t *WeatherTool) Parameters() map[string]any { return t.params }
func (t *WeatherTool) Visibility() Visibility     { return Visible }
func (t *WeatherTool) Label() string              { return "Checking the weather forecast..." }

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any) (Output, error) {
	var in WeatherArgs
	if err := decodeArgs(t.params, args, &in); err != nil {
		return nil, err
	}
	return t.run(ctx, in), nil
}

func (t *WeatherTool) run(ctx context.Context, in WeatherArgs) Output {
	return func(yield func(string, error) bool) {
		loc, err := t.source.Geocode(ctx, in.Location)
		if err != nil {
			yield(t.explain(ctx, in, err))
			return
		}

		fc, err := t.source.Fetch(ctx, *loc, in.DateRange.Start, in.DateRange.End, forecast.ParseUnits(in.Units))
		if err != nil {
			yield(t.explain(ctx, in, err))
			return
		}

		if fc.DateAdjusted {
			note := fmt.Sprintf("\n📅 **Note**: Weather forecast limited to %d days ahead. Showing forecast through %s (original request: %s).\n\n",
				horizonDays(fc), fc.Days[len(fc.Days)-1].Date, fc.OriginalEnd)
			if !yield(note, nil) {
				return
			}
		}

		user := fmt.Sprintf("Location: %s\nDate Range: %s to %s\n\nWeather Data:\n%s",
			loc.Formatted(), in.DateRange.Start, in.DateRange.End, forecast.Summary(fc))

		for chunk, err := range t.gen.stream(ctx, t.prompt, user, weatherTemperature, true) {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// explain turns a resolution failure into the single user-facing fragment.
// A cancelled turn is passed through as an error instead.
func (t *WeatherTool) explain(ctx context.Context, in WeatherArgs, err error) (string, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	slog.Info("Weather forecast unavailable",
		slog.String("location", in.Location),
		slog.String("reason", string(forecast.ReasonOf(err))),
	)
	return unavailable(in, err), nil
}

func horizonDays(fc *forecast.Forecast) int {
	if fc.MaxDays > 0 {
		return fc.MaxDays
	}
	return forecast.DefaultMaxDays
}

func unavailable(in WeatherArgs, err error) string {
	const prefix = "\n⚠️ **Weather forecast unavailable** - "
	switch forecast.ReasonOf(err) {
	case forecast.ReasonNotFound:
		return prefix + fmt.Sprintf("I couldn't find the location '%s'. Please try a different city name or include the country (e.g., 'Paris, France').\n\n", in.Location)
	case forecast.ReasonPastDates:
		return prefix + fmt.Sprintf("The dates you requested (%s to %s) are in the past. I can only provide forecasts for current and future dates.\n\n", in.DateRange.Start, in.DateRange.End)
	case forecast.ReasonTooFarFuture:
		days := forecast.HorizonOf(err)
		if days <= 0 {
			days = forecast.DefaultMaxDays
		}
		return prefix + fmt.Sprintf("The start date (%s) is too far in the future. I can only provide weather forecasts up to **%d days** ahead. Please try dates closer to today.\n\n", in.DateRange.Start, days)
	case forecast.ReasonInvalidDate:
		return prefix + "Invalid date range. Dates should be in YYYY-MM-DD format, with the end on or after the start.\n\n"
	default:
		return prefix + fmt.Sprintf("I couldn't fetch live weather data for %s. This might be a temporary API issue. Please try again later.\n\n", in.Location)
	}
}
