package tools

import (
	"time"

	"travelpilot/internal/llm"
	"travelpilot/internal/prompts"
)

// Deps 默认工具集的依赖
type Deps struct {
	Model     llm.ChatModel
	ModelName string
	Now       func() time.Time
	Forecast  ForecastSource

	// Prompt overrides; empty means the embedded default.
	PackingPrompt string
	TripPrompt    string
	WeatherPrompt string
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// DefaultRegistry wires the packing list, trip plan and weather tools.
func DefaultRegistry(d Deps) *Registry {
	gen := &Generator{Model: d.Model, ModelName: d.ModelName, Now: d.Now}

	r, err := NewRegistry(
		NewPackingListTool(gen, orDefault(d.PackingPrompt, prompts.PackingList)),
		NewTripPlanTool(gen, orDefault(d.TripPrompt, prompts.TripPlanner)),
		NewWeatherTool(gen, d.Forecast, orDefault(d.WeatherPrompt, prompts.Weather)),
	)
	if err != nil {
		// names are constants; a clash is a programming error
		panic(err)
	}
	return r
}
