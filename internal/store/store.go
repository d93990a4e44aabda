// Package store persists conversations as one JSON file per conversation.
// The orchestration loop never touches it; callers load history before a
// turn and save the reply after.
package store

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"travelpilot/internal/schema"
)

const (
	DefaultTitle   = "New Conversation"
	titleMaxLength = 50
)

var (
	ErrNotFound  = errors.New("conversation not found")
	ErrInvalidID = errors.New("invalid conversation id")
)

// Conversation 一次会话的持久化记录，只保存 role+content
type Conversation struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Messages  []schema.Message `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AppendExchange records one finished turn and refreshes the title from the
// first user message.
func (c *Conversation) AppendExchange(user, assistant string, now time.Time) {
	c.Messages = append(c.Messages, schema.UserMessage(user), schema.AssistantMessage(assistant))
	c.UpdatedAt = now

	if len(c.Messages) < 2 {
		return
	}
	for _, m := range c.Messages {
		if m.Role == schema.RoleUser && m.Content != "" {
			c.Title = titleFrom(m.Content)
			return
		}
	}
}

func titleFrom(text string) string {
	runes := []rune(text)
	if len(runes) > titleMaxLength {
		return string(runes[:titleMaxLength]) + "..."
	}
	return text
}

// History returns the stored messages reduced to role and content.
func (c *Conversation) History() []schema.Message {
	return schema.Plain(c.Messages)
}

//
// ---------------------------------------------------------
// File Store
// ---------------------------------------------------------
//

// FileStore 每个会话一个 <id>.json 文件
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create conversation directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Create 创建并保存一个空会话
func (s *FileStore) Create() (*Conversation, error) {
	now := s.now()
	c := &Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []schema.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes the conversation through a temp file and rename.
func (s *FileStore) Save(c *Conversation) error {
	path, err := s.path(c.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", c.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, c.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", c.ID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save conversation %s: %w", c.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save conversation %s: %w", c.ID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save conversation %s: %w", c.ID, err)
	}
	return nil
}

// Load 读取会话；不存在时返回 ErrNotFound
func (s *FileStore) Load(id string) (*Conversation, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return readConversation(path, id)
}

func readConversation(path, id string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	if c.ID == "" {
		c.ID = id
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}

	// 旧文件可能没有时间戳，退回到文件修改时间
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			if c.CreatedAt.IsZero() {
				c.CreatedAt = info.ModTime()
			}
			if c.UpdatedAt.IsZero() {
				c.UpdatedAt = info.ModTime()
			}
		}
	}
	return &c, nil
}

// List returns every readable conversation, newest created first.
// Unreadable files are logged and skipped.
func (s *FileStore) List() ([]*Conversation, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	out := make([]*Conversation, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".json")
		c, err := readConversation(p, id)
		if err != nil {
			slog.Warn("Skipping unreadable conversation", slog.String("id", id), slog.String("err", err.Error()))
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b *Conversation) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Delete 删除会话，不存在时不报错
func (s *FileStore) Delete(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}
