package tools

import (
	"context"
	"time"

	"travelpilot/internal/llm"
	"travelpilot/internal/prompts"
	"travelpilot/internal/schema"
)

const (
	defaultTemperature = 0.7
	weatherTemperature = 0.3
)

// Generator is the shared LLM access used by the executors: a prompt plus a
// one-shot streamed completion.
type Generator struct {
	Model     llm.ChatModel
	ModelName string
	Now       func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// stream sends [system, (runtime context), user] and forwards text fragments.
func (g *Generator) stream(ctx context.Context, system, user string, temperature float64, withRuntime bool) Output {
	messages := []schema.Message{schema.SystemMessage(system)}
	if withRuntime {
		messages = append(messages, schema.SystemMessage(prompts.RuntimeContext(g.now())))
	}
	messages = append(messages, schema.UserMessage(user))

	return llm.TextOnly(g.Model.Stream(ctx, llm.Request{
		Model:       g.ModelName,
		Messages:    messages,
		Temperature: temperature,
	}))
}
