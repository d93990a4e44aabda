package tools

import (
	"context"
	"fmt"
	"strings"
)

// TripPlanArgs 行程规划参数
type TripPlanArgs struct {
	Destination    string   `json:"destination" jsonschema:"required" jsonschema_description:"The destination (city, country, or region)"`
	DurationDays   int      `json:"duration_days,omitempty" jsonschema_description:"Trip duration in days. Provide this OR date_range."`
	DateRange      string   `json:"date_range,omitempty" jsonschema_description:"Date range in format 'YYYY-MM-DD to YYYY-MM-DD'. Provide this OR duration_days."`
	TravelersCount int      `json:"travelers_count,omitempty" jsonschema_description:"Number of travelers (optional)"`
	BudgetLevel    string   `json:"budget_level,omitempty" jsonschema:"enum=budget,enum=mid,enum=luxury" jsonschema_description:"Budget level: budget, mid, or luxury (optional)"`
	TripStyle      string   `json:"trip_style,omitempty" jsonschema_description:"Trip style: relaxed, balanced, or intense (optional)"`
	Interests      []string `json:"interests,omitempty" jsonschema_description:"List of interests or activities (e.g., culture, food, nature, adventure) (optional)"`
	Constraints    string   `json:"constraints,omitempty" jsonschema_description:"Any special constraints or requirements (e.g., accessibility needs, dietary restrictions) (optional)"`
}

// Brief renders the trip summary. An explicit date range wins over a duration.
func (a TripPlanArgs) Brief() string {
	lines := []string{"Destination: " + a.Destination}

	switch {
	case a.DateRange != "":
		lines = append(lines, "Duration: "+a.DateRange)
	case a.DurationDays > 0:
		lines = append(lines, fmt.Sprintf("Duration: %d days", a.DurationDays))
	}

	if a.TravelersCount > 0 {
		lines = append(lines, fmt.Sprintf("Travelers: %d", a.TravelersCount))
	}
	if a.BudgetLevel != "" {
		lines = append(lines, "Budget: "+a.BudgetLevel)
	}
	if a.TripStyle != "" {
		lines = append(lines, "Style: "+a.TripStyle)
	}
	if len(a.Interests) > 0 {
		lines = append(lines, "Interests: "+strings.Join(a.Interests, ", "))
	}
	if a.Constraints != "" {
		lines = append(lines, "Constraints: "+a.Constraints)
	}
	return strings.Join(lines, "\n")
}

// TripPlanTool generates a day-by-day itinerary.
type TripPlanTool struct {
	gen    *Generator
	prompt string
	params map[string]any
}

func NewTripPlanTool(gen *Generator, prompt string) *TripPlanTool {
	return &TripPlanTool{
		gen:    gen,
		prompt: prompt,
		params: reflectParameters[TripPlanArgs](),
	}
}

func (t *TripPlanTool) Name() string { return "generate_trip_plan" }

func (t *TripPlanTool) Description() string {
	return "Generate a day-by-day itinerary for a trip. Requires destination AND either duration_days OR date_range (at least one must be provided)."
}

func (t *TripPlanTool) Parameters() map[string]any { return t.params }
func (t *TripPlanTool) Visibility() Visibility     { return Visible }
func (t *TripPlanTool) Label() string              { return "Planning your itinerary..." }

func (t *TripPlanTool) Execute(ctx context.Context, args map[string]any) (Output, error) {
	var in TripPlanArgs
	if err := decodeArgs(t.params, args, &in); err != nil {
		return nil, err
	}
	return t.gen.stream(ctx, t.prompt, in.Brief(), defaultTemperature, true), nil
}
