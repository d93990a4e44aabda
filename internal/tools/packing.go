package tools

import (
	"context"
	"fmt"
	"strings"
)

// PackingListArgs 打包清单参数
type PackingListArgs struct {
	Destination  string   `json:"destination" jsonschema:"required" jsonschema_description:"The destination (city, country, or region)"`
	DurationDays int      `json:"duration_days,omitempty" jsonschema_description:"Trip duration in days"`
	Activities   []string `json:"activities,omitempty" jsonschema_description:"List of planned activities (e.g., hiking, beach, business)"`
	Season       string   `json:"season,omitempty" jsonschema_description:"Season or month of travel"`
}

// Brief renders the one-line-per-field trip summary sent to the model.
func (a PackingListArgs) Brief() string {
	lines := []string{"Destination: " + a.Destination}
	if a.DurationDays > 0 {
		lines = append(lines, fmt.Sprintf("Duration: %d days", a.DurationDays))
	}
	if len(a.Activities) > 0 {
		lines = append(lines, "Activities: "+strings.Join(a.Activities, ", "))
	}
	if a.Season != "" {
		lines = append(lines, "Season: "+a.Season)
	}
	return strings.Join(lines, "\n")
}

// PackingListTool generates a packing list for a trip.
type PackingListTool struct {
	gen    *Generator
	prompt string
	params map[string]any
}

func NewPackingListTool(gen *Generator, prompt string) *PackingListTool {
	return &PackingListTool{
		gen:    gen,
		prompt: prompt,
		params: reflectParameters[PackingListArgs](),
	}
}

func (t *PackingListTool) Name() string { return "generate_packing_list" }

func (t *PackingListTool) Description() string {
	return "Generate a packing list for a destination based on trip details"
}

func (t *PackingListTool) Parameters() map[string]any { return t.params }
func (t *PackingListTool) Visibility() Visibility     { return Visible }
func (t *PackingListTool) Label() string              { return "Generating packing list..." }

func (t *PackingListTool) Execute(ctx context.Context, args map[string]any) (Output, error) {
	var in PackingListArgs
	if err := decodeArgs(t.params, args, &in); err != nil {
		return nil, err
	}
	return t.gen.stream(ctx, t.prompt, in.Brief(), defaultTemperature, false), nil
}
