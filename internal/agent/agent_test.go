package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelpilot/internal/llm"
	"travelpilot/internal/schema"
	"travelpilot/internal/tools"
)

//
// ---------------------------------------------------------
// Test doubles
// ---------------------------------------------------------
//

type fakeTool struct {
	name       string
	visibility tools.Visibility
	chunks     []string
	execErr    error

	invocations []map[string]any
	pulled      int
}

func (f *fakeTool) Name() string                 { return f.name }
func (f *fakeTool) Description() string          { return "fake " + f.name }
func (f *fakeTool) Visibility() tools.Visibility { return f.visibility }
func (f *fakeTool) Label() string                { return "Running " + f.name + "..." }
func (f *fakeTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (tools.Output, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.invocations = append(f.invocations, args)
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			f.pulled++
			if !yield(c, nil) {
				return
			}
		}
	}, nil
}

func registry(t *testing.T, list ...tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(list...)
	require.NoError(t, err)
	return r
}

var fixedClock = func() time.Time { return time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC) }

func newTestAgent(m llm.ChatModel, r *tools.Registry, opts ...Option) *Agent {
	base := []Option{WithModelName("chat-model"), WithSystemPrompt("SYSTEM"), WithClock(fixedClock)}
	return New(m, r, append(base, opts...)...)
}

func collect(seq func(func(string) bool)) []string {
	var out []string
	for f := range seq {
		out = append(out, f)
	}
	return out
}

func toolNames(specs []schema.ToolSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

func banner(label string) []string {
	return []string{"\n\n---\n\n", "**🔧 " + label + "**\n\n", "---\n\n"}
}

//
// ---------------------------------------------------------
// Message assembly
// ---------------------------------------------------------
//

func TestReply_BuildsMessagesFromPlainHistory(t *testing.T) {
	m := &llm.MockModel{Rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Text("Hello "), llm.Text("there")}}}}
	a := newTestAgent(m, registry(t, &fakeTool{name: "a"}))

	history := []schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantToolCallMessage("", schema.ToolCall{ID: "c0", Name: "a", Arguments: "{}"}),
		schema.ToolMessage("c0", "tool output"),
		schema.AssistantMessage("earlier answer"),
	}

	out := collect(a.Reply(context.Background(), history, "plan Kyoto"))
	require.Equal(t, []string{"Hello ", "there"}, out)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "chat-model", reqs[0].Model)
	require.InDelta(t, 0.7, reqs[0].Temperature, 1e-9)

	msgs := reqs[0].Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, schema.SystemMessage("SYSTEM"), msgs[0])
	assert.Equal(t, schema.RoleSystem, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Current date: 2026-07-01")
	assert.Equal(t, schema.UserMessage("hi"), msgs[2])
	assert.Equal(t, schema.AssistantMessage("earlier answer"), msgs[3])
	assert.Equal(t, schema.UserMessage("plan Kyoto"), msgs[4])
}

func TestReply_IsLazy(t *testing.T) {
	m := &llm.MockModel{Rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Text("x")}}}}
	seq := newTestAgent(m, registry(t)).Reply(context.Background(), nil, "hi")
	require.Empty(t, m.Requests())
	require.Equal(t, []string{"x"}, collect(seq))
}

//
// ---------------------------------------------------------
// Tool call assembly
// ---------------------------------------------------------
//

func TestReply_ReassemblesFragmentedArguments(t *testing.T) {
	tool := &fakeTool{name: "a", visibility: tools.Silent, chunks: []string{"ok"}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{
			llm.Call(0, "call_1", "a", ""),
			llm.Call(0, "", "", `{"desti`),
			llm.Call(0, "", "", `nation":"Lis`),
			llm.Call(0, "", "", `bon","days":`),
			llm.Call(0, "", "", `3}`),
		}},
		{Deltas: []llm.Delta{llm.Text("Done.")}},
	}}

	out := collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))
	require.Equal(t, []string{"Done."}, out)

	require.Len(t, tool.invocations, 1)
	require.Equal(t, map[string]any{"destination": "Lisbon", "days": float64(3)}, tool.invocations[0])

	second := m.Requests()[1].Messages
	call := second[len(second)-2]
	require.Equal(t, schema.RoleAssistant, call.Role)
	require.Equal(t, []schema.ToolCall{{ID: "call_1", Name: "a", Arguments: `{"destination":"Lisbon","days":3}`}}, call.ToolCalls)
	require.Equal(t, schema.ToolMessage("call_1", "ok"), second[len(second)-1])
}

func TestReply_OnlyLowestIndexCallRuns(t *testing.T) {
	first := &fakeTool{name: "first", visibility: tools.Silent, chunks: []string{"1"}}
	second := &fakeTool{name: "second", visibility: tools.Silent, chunks: []string{"2"}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{
			llm.Call(1, "c_second", "second", "{}"),
			llm.Call(0, "c_first", "first", "{}"),
		}},
		{Deltas: []llm.Delta{llm.Text("fine")}},
	}}

	out := collect(newTestAgent(m, registry(t, first, second)).Reply(context.Background(), nil, "go"))
	require.Equal(t, []string{"fine"}, out)
	require.Len(t, first.invocations, 1)
	require.Empty(t, second.invocations)

	msgs := m.Requests()[1].Messages
	require.Len(t, msgs[len(msgs)-2].ToolCalls, 1)
	require.Equal(t, "first", msgs[len(msgs)-2].ToolCalls[0].Name)
	require.Equal(t, []string{"second"}, toolNames(m.Requests()[1].Tools))
}

func TestReply_EmptyArgumentsAreAnEmptyRecord(t *testing.T) {
	tool := &fakeTool{name: "a", visibility: tools.Silent}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "a", "")}},
		{Deltas: []llm.Delta{llm.Text("ok")}},
	}}

	collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))
	require.Equal(t, []map[string]any{{}}, tool.invocations)
}

//
// ---------------------------------------------------------
// Deduplication
// ---------------------------------------------------------
//

func TestReply_DuplicateCallIsSkipped(t *testing.T) {
	tool := &fakeTool{name: "a", visibility: tools.Silent, chunks: []string{"result"}}
	other := &fakeTool{name: "b", visibility: tools.Silent}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "a", `{"x":1,"y":{"p":true,"q":"s"}}`)}},
		{Deltas: []llm.Delta{llm.Text("let me retry"), llm.Call(0, "c2", "a", `{"y":{"q":"s","p":true},"x":1}`)}},
		{Deltas: []llm.Delta{llm.Text(" final")}},
	}}

	out := collect(newTestAgent(m, registry(t, tool, other)).Reply(context.Background(), nil, "go"))
	require.Equal(t, []string{"let me retry", " final"}, out)
	require.Len(t, tool.invocations, 1)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	require.Equal(t, []string{"a", "b"}, toolNames(reqs[0].Tools))
	require.Equal(t, []string{"b"}, toolNames(reqs[2].Tools))

	third := reqs[2].Messages
	require.Equal(t, schema.AssistantMessage("let me retry"), third[len(third)-2])
	require.Equal(t, schema.RoleSystem, third[len(third)-1].Role)
	require.Contains(t, third[len(third)-1].Content, "identical arguments")
}

func TestReply_DifferentArgumentsAreNotDuplicates(t *testing.T) {
	tool := &fakeTool{name: "a", visibility: tools.Silent, chunks: []string{"r"}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "a", `{"x":1,"y":2}`)}},
		{Deltas: []llm.Delta{llm.Call(0, "c2", "a", `{"y":3,"x":1}`)}},
		{Deltas: []llm.Delta{llm.Text("done")}},
	}}

	collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))
	require.Len(t, tool.invocations, 2)
}

func TestSignature_IgnoresKeyOrder(t *testing.T) {
	a, err := parseArguments(`{"b":[1,2],"a":{"y":1,"x":2}}`)
	require.NoError(t, err)
	b, err := parseArguments(`{"a":{"x":2,"y":1},"b":[1,2]}`)
	require.NoError(t, err)

	sa, err := signature("t", a)
	require.NoError(t, err)
	sb, err := signature("t", b)
	require.NoError(t, err)
	require.Equal(t, sa, sb)

	other, err := signature("u", b)
	require.NoError(t, err)
	require.NotEqual(t, sa, other)
}

//
// ---------------------------------------------------------
// Suppression
// ---------------------------------------------------------
//

func TestReply_TextAfterVisibleToolIsSuppressed(t *testing.T) {
	tool := &fakeTool{name: "show", visibility: tools.Visible, chunks: []string{"A", "B"}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "show", "{}")}},
		{Deltas: []llm.Delta{llm.Text("To recap: A B")}},
	}}

	out := collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))
	want := append(banner("Running show..."), "A", "B")
	require.Equal(t, want, out)
}

func TestReply_TextAfterSilentToolIsForwarded(t *testing.T) {
	tool := &fakeTool{name: "quiet", visibility: tools.Silent, chunks: []string{"hidden data"}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Text("Checking. "), llm.Call(0, "c1", "quiet", "{}")}},
		{Deltas: []llm.Delta{llm.Text("Here is the answer.")}},
	}}

	out := collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))
	require.Equal(t, []string{"Checking. ", "Here is the answer."}, out)

	msgs := m.Requests()[1].Messages
	require.Equal(t, schema.ToolMessage("c1", "hidden data"), msgs[len(msgs)-1])
	require.Equal(t, "Checking. ", msgs[len(msgs)-2].Content)
}

func TestReply_SuppressedTextStillReachesHistory(t *testing.T) {
	show := &fakeTool{name: "show", visibility: tools.Visible, chunks: []string{"itinerary"}}
	quiet := &fakeTool{name: "quiet", visibility: tools.Silent}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "show", "{}")}},
		{Deltas: []llm.Delta{llm.Text("repeating itinerary"), llm.Call(0, "c2", "quiet", "{}")}},
		{Deltas: []llm.Delta{llm.Text("visible again")}},
	}}

	out := collect(newTestAgent(m, registry(t, show, quiet)).Reply(context.Background(), nil, "go"))
	require.Equal(t, append(banner("Running show..."), "itinerary", "visible again"), out)

	third := m.Requests()[2].Messages
	require.Equal(t, "repeating itinerary", third[len(third)-2].Content)
}

//
// ---------------------------------------------------------
// Scenarios
// ---------------------------------------------------------
//

func TestReply_PackingListScenario(t *testing.T) {
	m := &llm.MockModel{Rounds: []llm.MockRound{
		// orchestration round 1
		{Deltas: []llm.Delta{
			llm.Call(0, "call_pack", "generate_packing_list", `{"destination":"Lisbon",`),
			llm.Call(0, "", "", `"duration_days":3,"activities":["beach"],"season":"July"}`),
		}},
		// packing list generation
		{Deltas: []llm.Delta{llm.Text("- Swimsuit\n"), llm.Text("- Sunscreen\n")}},
		// orchestration round 2
		{Deltas: []llm.Delta{llm.Text("Here is your packing list again...")}},
	}}
	reg := tools.DefaultRegistry(tools.Deps{Model: m, ModelName: "tool-model", Now: fixedClock})
	a := newTestAgent(m, reg)

	var streamed []string
	reply := RunTurn(context.Background(), a, nil, "pack for a 3-day beach trip to Lisbon in July", func(f string) {
		streamed = append(streamed, f)
	})

	want := append(banner("Generating packing list..."), "- Swimsuit\n", "- Sunscreen\n")
	require.Equal(t, want, streamed)
	require.Equal(t, strings.Join(want, ""), reply)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	require.Equal(t, []string{"generate_packing_list", "generate_trip_plan", "get_weather_forecast"}, toolNames(reqs[0].Tools))
	require.Equal(t, "tool-model", reqs[1].Model)
	require.Contains(t, reqs[1].Messages[1].Content, "Destination: Lisbon\nDuration: 3 days\nActivities: beach\nSeason: July")
	require.Equal(t, []string{"generate_trip_plan", "get_weather_forecast"}, toolNames(reqs[2].Tools))
}

func TestReply_StopsAtRoundCap(t *testing.T) {
	var list []tools.Tool
	var rounds []llm.MockRound
	for _, name := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		list = append(list, &fakeTool{name: name, visibility: tools.Visible, chunks: []string{name + " output"}})
		rounds = append(rounds, llm.MockRound{Deltas: []llm.Delta{llm.Call(0, "c_"+name, name, "{}")}})
	}
	m := &llm.MockModel{Rounds: rounds}

	out := collect(newTestAgent(m, registry(t, list...)).Reply(context.Background(), nil, "go"))

	require.Len(t, m.Requests(), 5)
	require.Len(t, out, 5*4)
	for _, f := range out {
		require.NotContains(t, f, "Error")
	}
	require.Equal(t, "t5 output", out[len(out)-1])
	require.Empty(t, list[5].(*fakeTool).invocations)
}

func TestReply_NoToolsOfferedOnceAllUsed(t *testing.T) {
	tool := &fakeTool{name: "only", visibility: tools.Silent}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "only", "{}")}},
		{Deltas: []llm.Delta{llm.Text("answer")}},
	}}

	collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))
	reqs := m.Requests()
	require.Len(t, reqs[0].Tools, 1)
	require.Nil(t, reqs[1].Tools)
}

func TestReply_TruncatesToolResultInHistory(t *testing.T) {
	long := strings.Repeat("é", 50)
	tool := &fakeTool{name: "a", visibility: tools.Silent, chunks: []string{long}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "a", "{}")}},
		{Deltas: []llm.Delta{llm.Text("ok")}},
	}}

	collect(newTestAgent(m, registry(t, tool), WithResultLimit(10)).Reply(context.Background(), nil, "go"))
	msgs := m.Requests()[1].Messages
	result := msgs[len(msgs)-1].Content
	require.Equal(t, 10, utf8.RuneCountInString(result))
	require.True(t, utf8.ValidString(result))
}

//
// ---------------------------------------------------------
// Failures
// ---------------------------------------------------------
//

func TestReply_Failures(t *testing.T) {
	cases := []struct {
		name   string
		rounds []llm.MockRound
		tool   *fakeTool
		want   []string
		errIs  string
	}{
		{
			name:   "transport",
			rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Text("Hi")}, Err: errors.New("connection reset")}},
			want:   []string{"Hi", "Error: connection reset"},
		},
		{
			name:   "unknown tool",
			rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Call(0, "c1", "nope", "{}")}}},
			want:   []string{"Error: unknown tool: nope"},
		},
		{
			name:   "malformed arguments",
			rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Call(0, "c1", "a", `{"x":`)}}},
			errIs:  "Error: malformed tool arguments for a",
		},
		{
			name:   "non-object arguments",
			rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Call(0, "c1", "a", `null`)}}},
			errIs:  "Error: malformed tool arguments for a",
		},
		{
			name:   "tool rejects arguments",
			rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Call(0, "c1", "a", `{}`)}}},
			tool:   &fakeTool{name: "a", execErr: tools.ErrMissingArgument},
			want:   []string{"Error: a: missing required argument"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool := tc.tool
			if tool == nil {
				tool = &fakeTool{name: "a"}
			}
			m := &llm.MockModel{Rounds: tc.rounds}
			out := collect(newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go"))

			if tc.want != nil {
				require.Equal(t, tc.want, out)
			} else {
				require.Len(t, out, 1)
				require.True(t, strings.HasPrefix(out[0], tc.errIs), out[0])
			}
			require.Len(t, m.Requests(), 1)
		})
	}
}

func TestReply_ToolOutputErrorAbortsAfterStreamedChunks(t *testing.T) {
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "generate_trip_plan", `{"destination":"Rome"}`)}},
		{Deltas: []llm.Delta{llm.Text("Day 1")}, Err: errors.New("timeout")},
	}}
	reg := tools.DefaultRegistry(tools.Deps{Model: m, Now: fixedClock})

	out := collect(newTestAgent(m, reg).Reply(context.Background(), nil, "go"))
	want := append(banner("Planning your itinerary..."), "Day 1", "Error: generate_trip_plan: timeout")
	require.Equal(t, want, out)
	require.Len(t, m.Requests(), 2)
}

//
// ---------------------------------------------------------
// Early termination
// ---------------------------------------------------------
//

func TestReply_ConsumerStopStopsFurtherWork(t *testing.T) {
	tool := &fakeTool{name: "show", visibility: tools.Visible, chunks: []string{"one", "two", "three"}}
	m := &llm.MockModel{Rounds: []llm.MockRound{
		{Deltas: []llm.Delta{llm.Call(0, "c1", "show", "{}")}},
		{Deltas: []llm.Delta{llm.Text("never requested")}},
	}}

	var got []string
	for f := range newTestAgent(m, registry(t, tool)).Reply(context.Background(), nil, "go") {
		got = append(got, f)
		if f == "one" {
			break
		}
	}

	require.Equal(t, append(banner("Running show..."), "one"), got)
	require.Equal(t, 1, tool.pulled)
	require.Len(t, m.Requests(), 1)
}

func TestReply_ConsumerStopDuringModelText(t *testing.T) {
	m := &llm.MockModel{Rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Text("a"), llm.Text("b"), llm.Text("c")}}}}

	var got []string
	for f := range newTestAgent(m, registry(t)).Reply(context.Background(), nil, "go") {
		got = append(got, f)
		break
	}
	require.Equal(t, []string{"a"}, got)
}

func TestReply_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &llm.MockModel{Rounds: []llm.MockRound{{Deltas: []llm.Delta{llm.Text("late")}}}}

	out := collect(newTestAgent(m, registry(t)).Reply(ctx, nil, "go"))
	require.Equal(t, []string{"Error: context canceled"}, out)
}
