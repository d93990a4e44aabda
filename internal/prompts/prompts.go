// Package prompts holds the embedded prompt texts and the per-turn runtime
// context block.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"
)

var (
	//go:embed chat_assistant.md
	ChatAssistant string

	//go:embed packing_list.md
	PackingList string

	//go:embed trip_planner.md
	TripPlanner string

	//go:embed weather.md
	Weather string
)

// Load returns the contents of path, or fallback when path is empty,
// unreadable, or blank.
func Load(path, fallback string) string {
	fallback = strings.TrimSpace(fallback)
	if path == "" {
		return fallback
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fallback
	}
	return text
}

// RuntimeContext renders the current date, time and timezone. It is sent as
// an extra system message on every request and never stored in history.
func RuntimeContext(now time.Time) string {
	tz, _ := now.Zone()
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf(`Runtime Context:
Current date: %s
Current time: %s
Timezone: %s

Interpret relative dates (e.g., "next month", "this weekend", "in 2 weeks") relative to the current date above.`,
		now.Format(time.DateOnly),
		now.Format(time.TimeOnly),
		tz,
	)
}
