package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"travelpilot/internal/agent"
	"travelpilot/internal/config"
	"travelpilot/internal/forecast"
	"travelpilot/internal/llm"
	"travelpilot/internal/logger"
	"travelpilot/internal/prompts"
	"travelpilot/internal/store"
	"travelpilot/internal/tools"
)

// newChatModel builds the provider client; tests replace it.
var newChatModel = func(c *config.Config) llm.ChatModel {
	return llm.NewClient(c.LLM.APIKey, c.LLM.APIBase, c.LLM.Model, llm.WithTimeout(c.LLM.Timeout()))
}

// app 一次命令运行所需的全部组件
type app struct {
	agent   *agent.Agent
	store   *store.FileStore
	model   string
	tools   []string
	turnLog *logger.TurnLogger
	now     func() time.Time
}

func openStore(c *config.Config) (*store.FileStore, error) {
	dir, err := c.StoreDir()
	if err != nil {
		return nil, err
	}
	return store.NewFileStore(dir)
}

func newApp(c *config.Config) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStore(c)
	if err != nil {
		return nil, err
	}

	model := newChatModel(c)

	resolver := forecast.NewResolver()
	resolver.HTTP = &http.Client{Timeout: c.Weather.Timeout()}
	resolver.GeocodingURL = c.Weather.GeocodingURL
	resolver.ForecastURL = c.Weather.ForecastURL
	resolver.MaxDays = c.Weather.MaxDays

	registry := tools.DefaultRegistry(tools.Deps{
		Model:     model,
		ModelName: c.LLM.EffectiveToolModel(),
		Forecast:  resolver,
	})

	opts := []agent.Option{
		agent.WithModelName(c.LLM.Model),
		agent.WithTemperature(c.LLM.Temperature),
		agent.WithMaxRounds(c.Agent.MaxRounds),
		agent.WithResultLimit(c.Agent.ResultLimit),
		agent.WithSystemPrompt(prompts.Load(c.Agent.SystemPromptPath, prompts.ChatAssistant)),
	}

	a := &app{store: st, model: c.LLM.Model, tools: registry.Names(), now: time.Now}
	if c.Agent.TurnLog {
		tl, err := logger.NewTurnLogger(c.Agent.LogDir)
		if err != nil {
			return nil, err
		}
		a.turnLog = tl
		opts = append(opts, agent.WithTurnLog(tl))
	}

	a.agent = agent.New(model, registry, opts...)
	return a, nil
}

func (a *app) Close() error {
	if a.turnLog != nil {
		return a.turnLog.Close()
	}
	return nil
}

// turn runs one exchange against conv (created when nil) and saves it.
func (a *app) turn(ctx context.Context, conv *store.Conversation, message string, onFragment func(string)) (*store.Conversation, error) {
	if conv == nil {
		var err error
		if conv, err = a.store.Create(); err != nil {
			return nil, err
		}
	}

	reply := agent.RunTurn(ctx, a.agent, conv.History(), message, onFragment)

	conv.AppendExchange(message, reply, a.now())
	if err := a.store.Save(conv); err != nil {
		return conv, err
	}
	return conv, nil
}
