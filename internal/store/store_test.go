package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelpilot/internal/schema"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "conversations"))
	require.NoError(t, err)
	return s
}

func TestFileStore_CreateSaveLoad(t *testing.T) {
	s := newStore(t)
	created := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }

	c, err := s.Create()
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)
	require.Equal(t, DefaultTitle, c.Title)

	c.AppendExchange("pack for Lisbon", "- Sunscreen", created.Add(time.Minute))
	require.NoError(t, s.Save(c))

	got, err := s.Load(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "pack for Lisbon", got.Title)
	assert.Equal(t, []schema.Message{
		schema.UserMessage("pack for Lisbon"),
		schema.AssistantMessage("- Sunscreen"),
	}, got.Messages)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(created.Add(time.Minute)))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Load("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load("../escape")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestFileStore_ListNewestFirst(t *testing.T) {
	s := newStore(t)
	base := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		c, err := s.Create()
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{"), 0o644))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestFileStore_LegacyFileWithoutTimestamps(t *testing.T) {
	s := newStore(t)
	body := `{"title":"Old trip","messages":[{"role":"user","content":"hi"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "legacy.json"), []byte(body), 0o644))

	c, err := s.Load("legacy")
	require.NoError(t, err)
	assert.Equal(t, "legacy", c.ID)
	assert.Equal(t, "Old trip", c.Title)
	assert.False(t, c.CreatedAt.IsZero())
	assert.False(t, c.UpdatedAt.IsZero())
}

func TestFileStore_Delete(t *testing.T) {
	s := newStore(t)
	c, err := s.Create()
	require.NoError(t, err)

	require.NoError(t, s.Delete(c.ID))
	_, err = s.Load(c.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(c.ID))
}

func TestConversation_Title(t *testing.T) {
	c := &Conversation{Title: DefaultTitle}
	long := strings.Repeat("a", 60)

	c.AppendExchange(long, "ok", time.Now())
	assert.Equal(t, strings.Repeat("a", 50)+"...", c.Title)

	c.AppendExchange("second question", "ok", time.Now())
	assert.Equal(t, strings.Repeat("a", 50)+"...", c.Title, "title follows the first user message")

	short := &Conversation{}
	short.AppendExchange("Rome in May?", "Sure", time.Now())
	assert.Equal(t, "Rome in May?", short.Title)
}

func TestConversation_History(t *testing.T) {
	c := &Conversation{Messages: []schema.Message{
		schema.UserMessage("q"),
		schema.AssistantToolCallMessage("", schema.ToolCall{ID: "c", Name: "t", Arguments: "{}"}),
		schema.ToolMessage("c", "r"),
		schema.AssistantMessage("a"),
	}}
	assert.Equal(t, []schema.Message{schema.UserMessage("q"), schema.AssistantMessage("a")}, c.History())
}
