package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, DisplayWidth("hello"))
	assert.Equal(t, 5, DisplayWidth("\033[1mhello\033[0m"))
	assert.Equal(t, 4, DisplayWidth("东京"))
	assert.Equal(t, 3, DisplayWidth("✈️a"))
	assert.Equal(t, 2, DisplayWidth("🌤"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "东…", Truncate("东京大阪", 4))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestPad(t *testing.T) {
	assert.Equal(t, "ab  ", Pad("ab", 4, AlignLeft))
	assert.Equal(t, "  ab", Pad("ab", 4, AlignRight))
	assert.Equal(t, " ab  ", Pad("ab", 5, AlignCenter))
	assert.Equal(t, "abcdef", Pad("abcdef", 3, AlignLeft))
}

func TestBox(t *testing.T) {
	out := Box("Trip", []string{"Lisbon", strings.Repeat("x", 30)}, 12, "")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	assert.Len(t, lines, 6)
	for _, l := range lines {
		assert.Equal(t, 14, DisplayWidth(l), l)
	}
	assert.Equal(t, "│ Lisbon     │", lines[3])
	assert.Contains(t, lines[4], "…")
}
