package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"log/slog"

	"travelpilot/internal/agent/tokenizer"
	"travelpilot/internal/llm"
	"travelpilot/internal/logger"
	"travelpilot/internal/prompts"
	"travelpilot/internal/schema"
	"travelpilot/internal/tools"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxRounds   = 5
	DefaultResultLimit = 1000

	duplicateNote = "This tool already ran with identical arguments in this turn. Answer the user with the results you already have and do not repeat the call."

	bannerOpen  = "\n\n---\n\n"
	bannerClose = "---\n\n"
)

var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrMalformedArguments = errors.New("malformed tool arguments")
	errStopped            = errors.New("consumer stopped")
)

//
// ============================================================
// Agent Structure
// ============================================================
//

// Agent runs the multi-round tool loop for one turn at a time. It holds no
// per-conversation state, so a single Agent can serve many conversations.
type Agent struct {
	model    llm.ChatModel
	registry *tools.Registry

	modelName    string
	temperature  float64
	systemPrompt string
	maxRounds    int
	resultLimit  int
	now          func() time.Time
	turnLog      *logger.TurnLogger
}

type Option func(*Agent)

func WithModelName(name string) Option {
	return func(a *Agent) { a.modelName = name }
}

func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

func WithSystemPrompt(p string) Option {
	return func(a *Agent) { a.systemPrompt = p }
}

// WithMaxRounds caps LLM rounds per turn; non-positive values are ignored.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithResultLimit caps the characters of a tool result fed back to the
// model. Zero disables truncation.
func WithResultLimit(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.resultLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithTurnLog writes every turn to its own file under l's directory.
func WithTurnLog(l *logger.TurnLogger) Option {
	return func(a *Agent) { a.turnLog = l }
}

func New(model llm.ChatModel, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		model:        model,
		registry:     registry,
		temperature:  DefaultTemperature,
		systemPrompt: strings.TrimSpace(prompts.ChatAssistant),
		maxRounds:    DefaultMaxRounds,
		resultLimit:  DefaultResultLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

//
// ============================================================
// Turn
// ============================================================
//

// Reply runs one turn. History is reduced to role and content before use.
// The returned sequence is lazy: nothing is sent to the model until it is
// ranged over, and breaking out of the loop stops every further LLM or tool
// call. A failure ends the sequence with a single "Error: ..." fragment; the
// concatenation of all fragments is the assistant message to persist.
func (a *Agent) Reply(ctx context.Context, history []schema.Message, userMessage string) iter.Seq[string] {
	return func(yield func(string) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		plain := schema.Plain(history)
		messages := make([]schema.Message, 0, len(plain)+3)
		messages = append(messages,
			schema.SystemMessage(a.systemPrompt),
			schema.SystemMessage(prompts.RuntimeContext(a.now())),
		)
		messages = append(messages, plain...)
		messages = append(messages, schema.UserMessage(userMessage))

		if a.turnLog != nil {
			if err := a.turnLog.StartTurn(userMessage); err != nil {
				slog.Warn("Turn log unavailable", slog.String("err", err.Error()))
			}
		}

		s := newSession(messages, yield)
		err := a.run(ctx, s)
		switch {
		case err == nil, errors.Is(err, errStopped):
			return
		default:
			slog.Error("Turn aborted", slog.String("err", err.Error()))
			yield("Error: " + err.Error())
		}
	}
}

func (a *Agent) run(ctx context.Context, s *session) error {
	for n := 1; n <= a.maxRounds; n++ {
		done, err := a.round(ctx, s, n)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	slog.Info("Round limit reached", slog.Int("rounds", a.maxRounds))
	return nil
}

// round runs one LLM request and, if the model asked for one, one tool.
// It reports true once the model answered without calling a tool.
func (a *Agent) round(ctx context.Context, s *session, n int) (bool, error) {
	offered := a.registry.Specs(s.used)
	if len(offered) == 0 {
		offered = nil
	}
	a.logRequest(n, s.messages, offered)

	rs := newRound()
	stream := a.model.Stream(ctx, llm.Request{
		Model:       a.modelName,
		Messages:    s.messages,
		Temperature: a.temperature,
		Tools:       offered,
	})
	for d, err := range stream {
		if err != nil {
			return false, err
		}
		if d.Content != "" {
			rs.text.WriteString(d.Content)
			if !s.suppress {
				if err := s.emit(d.Content); err != nil {
					return false, err
				}
			}
		}
		for _, f := range d.ToolCalls {
			rs.add(f)
		}
	}

	calls := rs.finished()
	text := rs.text.String()
	a.logResponse(n, text, calls, s.suppress)

	if len(calls) == 0 {
		if s.suppress && text != "" {
			slog.Info("Discarded model reply after visible tool output", slog.Int("chars", len(text)))
		}
		return true, nil
	}
	if len(calls) > 1 {
		slog.Debug("Dropping extra tool calls", slog.Int("requested", len(calls)))
	}
	call := calls[0]
	if call.ID == "" {
		call.ID = fmt.Sprintf("call_%d_%s", n, call.Name)
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return false, fmt.Errorf("%w for %s: %v", ErrMalformedArguments, call.Name, err)
	}
	sig, err := signature(call.Name, args)
	if err != nil {
		return false, fmt.Errorf("%w for %s: %v", ErrMalformedArguments, call.Name, err)
	}

	if _, dup := s.seen[sig]; dup {
		slog.Info("Skipping duplicate tool call", slog.String("tool", call.Name))
		if text != "" {
			s.messages = append(s.messages, schema.AssistantMessage(text))
		}
		s.messages = append(s.messages, schema.SystemMessage(duplicateNote))
		s.used[call.Name] = struct{}{}
		return false, nil
	}

	tool, ok := a.registry.Get(call.Name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	s.seen[sig] = struct{}{}
	s.used[call.Name] = struct{}{}
	if strings.TrimSpace(call.Arguments) == "" {
		call.Arguments = "{}"
	}
	s.messages = append(s.messages, schema.AssistantToolCallMessage(text, call))

	result, err := a.execute(ctx, s, tool, args)
	a.logToolResult(call.Name, args, result, err)
	if err != nil {
		return false, err
	}

	s.messages = append(s.messages, schema.ToolMessage(call.ID, truncate(result, a.resultLimit)))
	s.suppress = tool.Visibility() == tools.Visible
	return false, nil
}

// execute runs the tool, streaming a banner and its output when visible, and
// returns the full output either way.
func (a *Agent) execute(ctx context.Context, s *session, tool tools.Tool, args map[string]any) (string, error) {
	slog.Info("Executing tool", slog.String("tool", tool.Name()), slog.String("visibility", tool.Visibility().String()))

	out, err := tool.Execute(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", tool.Name(), err)
	}

	visible := tool.Visibility() == tools.Visible
	if visible {
		for _, f := range []string{bannerOpen, "**🔧 " + tool.Label() + "**\n\n", bannerClose} {
			if err := s.emit(f); err != nil {
				return "", err
			}
		}
	}

	var sb strings.Builder
	for chunk, err := range out {
		if err != nil {
			return sb.String(), fmt.Errorf("%s: %w", tool.Name(), err)
		}
		sb.WriteString(chunk)
		if visible {
			if err := s.emit(chunk); err != nil {
				return sb.String(), err
			}
		}
	}
	return sb.String(), nil
}

//
// ============================================================
// Turn Log
// ============================================================
//

func (a *Agent) logRequest(n int, messages []schema.Message, offered []schema.ToolSpec) {
	if a.turnLog == nil {
		return
	}
	if err := a.turnLog.LogRequest(n, messages, offered, tokenizer.EstimateTokens(messages)); err != nil {
		slog.Debug("Turn log write failed", slog.String("err", err.Error()))
	}
}

func (a *Agent) logResponse(n int, text string, calls []schema.ToolCall, suppressed bool) {
	if a.turnLog == nil {
		return
	}
	if err := a.turnLog.LogResponse(n, text, calls, suppressed); err != nil {
		slog.Debug("Turn log write failed", slog.String("err", err.Error()))
	}
}

func (a *Agent) logToolResult(name string, args map[string]any, result string, toolErr error) {
	if a.turnLog == nil || errors.Is(toolErr, errStopped) {
		return
	}
	if err := a.turnLog.LogToolResult(name, args, result, toolErr); err != nil {
		slog.Debug("Turn log write failed", slog.String("err", err.Error()))
	}
}

// RunTurn drains one Reply, passing every fragment to onFragment (which may
// be nil), and returns the assistant message to persist.
func RunTurn(ctx context.Context, a *Agent, history []schema.Message, userMessage string, onFragment func(string)) string {
	var sb strings.Builder
	for fragment := range a.Reply(ctx, history, userMessage) {
		sb.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}
	return sb.String()
}
