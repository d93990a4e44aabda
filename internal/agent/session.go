package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"travelpilot/internal/llm"
	"travelpilot/internal/schema"
)

//
// ============================================================
// Turn State
// ============================================================
//

// session 一个 turn 的状态，turn 结束即丢弃，不跨 turn 共享。
type session struct {
	messages []schema.Message
	used     map[string]struct{} // 本 turn 已调用过的工具名
	seen     map[string]struct{} // 本 turn 已执行过的调用签名
	suppress bool                // 上一轮执行了可见工具

	yield func(string) bool
}

func newSession(messages []schema.Message, yield func(string) bool) *session {
	return &session{
		messages: messages,
		used:     map[string]struct{}{},
		seen:     map[string]struct{}{},
		yield:    yield,
	}
}

// emit forwards one fragment to the consumer; errStopped means it stopped
// pulling.
func (s *session) emit(text string) error {
	if !s.yield(text) {
		return errStopped
	}
	return nil
}

//
// ============================================================
// Round State
// ============================================================
//

// pendingCall is a tool call being assembled from streamed fragments.
type pendingCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// round 一轮 LLM 请求的状态：文本和按 slot index 收集的工具调用。
type round struct {
	text  strings.Builder
	slots map[int]int // provider slot index -> calls 下标
	calls []*pendingCall
}

func newRound() *round {
	return &round{slots: map[int]int{}}
}

// add merges one fragment. ID and name are set when present, arguments are
// appended in arrival order.
func (r *round) add(f llm.ToolCallDelta) {
	pos, ok := r.slots[f.Index]
	if !ok {
		pos = len(r.calls)
		r.slots[f.Index] = pos
		r.calls = append(r.calls, &pendingCall{index: f.Index})
	}
	c := r.calls[pos]
	if f.ID != "" {
		c.id = f.ID
	}
	if f.Name != "" {
		c.name = f.Name
	}
	c.args.WriteString(f.Arguments)
}

// finished returns the assembled calls ordered by slot index.
func (r *round) finished() []schema.ToolCall {
	ordered := slices.Clone(r.calls)
	slices.SortFunc(ordered, func(a, b *pendingCall) int { return a.index - b.index })

	out := make([]schema.ToolCall, len(ordered))
	for i, c := range ordered {
		out[i] = schema.ToolCall{ID: c.id, Name: c.name, Arguments: c.args.String()}
	}
	return out
}

//
// ============================================================
// Arguments
// ============================================================
//

// parseArguments decodes the raw argument text. Blank text is an empty record.
func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return args, nil
}

// signature hashes the tool name with its arguments re-encoded with sorted
// keys, so key order in the model's output does not matter.
func signature(name string, args map[string]any) (string, error) {
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(name), canonical...))
	return hex.EncodeToString(sum[:]), nil
}

// truncate 按字符（rune）截断；limit <= 0 表示不截断
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
