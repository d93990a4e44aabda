package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"travelpilot/internal/schema"
)

func TestTurnLogger_WritesNumberedEntries(t *testing.T) {
	dir := t.TempDir()
	l, err := NewTurnLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	require.Error(t, l.LogResponse(1, "too early", nil, false))

	require.NoError(t, l.StartTurn("pack for Lisbon"))
	path := l.Path()
	require.Equal(t, dir, filepath.Dir(path))

	require.NoError(t, l.LogRequest(1,
		[]schema.Message{schema.SystemMessage("sys"), schema.UserMessage("pack for Lisbon")},
		[]schema.ToolSpec{{Name: "generate_packing_list"}}, 42))
	require.NoError(t, l.LogResponse(1, "", []schema.ToolCall{{ID: "c1", Name: "generate_packing_list", Arguments: `{"destination":"Lisbon"}`}}, false))
	require.NoError(t, l.LogToolResult("generate_packing_list", map[string]any{"destination": "Lisbon"}, "- Sunscreen", nil))
	require.NoError(t, l.LogToolResult("generate_packing_list", nil, "", errors.New("boom")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "User: pack for Lisbon")
	require.Contains(t, text, "[1] REQUEST")
	require.Contains(t, text, `"estimated_tokens": 42`)
	require.Contains(t, text, "[2] RESPONSE")
	require.Contains(t, text, "[3] TOOL_RESULT")
	require.Contains(t, text, "- Sunscreen")
	require.Contains(t, text, `"error": "boom"`)
}

func TestTurnLogger_NewFilePerTurn(t *testing.T) {
	l, err := NewTurnLogger(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.StartTurn("one"))
	first := l.Path()
	require.NoError(t, l.StartTurn("two"))
	require.NotEqual(t, first, l.Path())

	require.NoError(t, l.Close())
	require.Empty(t, l.Path())
}
