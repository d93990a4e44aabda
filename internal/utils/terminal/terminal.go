// Package terminal measures and lays out text for fixed-width terminal boxes.
package terminal

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Align 对齐方式
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func runeWidth(r rune) int {
	switch {
	case unicode.Is(unicode.Mn, r):
		return 0
	case isEmoji(r):
		return 2
	}

	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF)
}

// StripANSI removes color escape sequences.
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// DisplayWidth 计算字符串在终端中占用的列数，忽略 ANSI 颜色码
func DisplayWidth(s string) int {
	w := 0
	for _, r := range StripANSI(s) {
		w += runeWidth(r)
	}
	return w
}

// Truncate shortens text to maxWidth columns, ending with "…" when cut.
// Color codes are dropped from truncated text.
func Truncate(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if DisplayWidth(text) <= maxWidth {
		return text
	}

	const ellipsis = "…"
	plain := StripANSI(text)
	if maxWidth <= DisplayWidth(ellipsis) {
		return truncateWidth(plain, maxWidth)
	}
	return truncateWidth(plain, maxWidth-DisplayWidth(ellipsis)) + ellipsis
}

func truncateWidth(s string, max int) string {
	w := 0
	var sb strings.Builder
	for _, r := range s {
		rw := runeWidth(r)
		if w+rw > max {
			break
		}
		sb.WriteRune(r)
		w += rw
	}
	return sb.String()
}

// Pad 用空格把文本补齐到 targetWidth 列
func Pad(text string, targetWidth int, align Align) string {
	pad := targetWidth - DisplayWidth(text)
	if pad <= 0 {
		return text
	}

	switch align {
	case AlignRight:
		return strings.Repeat(" ", pad) + text
	case AlignCenter:
		left := pad / 2
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", pad-left)
	default:
		return text + strings.Repeat(" ", pad)
	}
}

// Box 绘制带标题的单线框。每行超出宽度时截断。
// border 是框线使用的颜色码，可为空。
func Box(title string, lines []string, innerWidth int, border string) string {
	reset := ""
	if border != "" {
		reset = "\033[0m"
	}
	edge := func(s string) string { return border + s + reset }

	var sb strings.Builder
	sb.WriteString(edge("┌"+strings.Repeat("─", innerWidth)+"┐") + "\n")
	if title != "" {
		sb.WriteString(edge("│") + " " + Pad(Truncate(title, innerWidth-1), innerWidth-1, AlignCenter) + edge("│") + "\n")
		sb.WriteString(edge("├"+strings.Repeat("─", innerWidth)+"┤") + "\n")
	}
	for _, line := range lines {
		sb.WriteString(edge("│") + " " + Pad(Truncate(line, innerWidth-1), innerWidth-1, AlignLeft) + edge("│") + "\n")
	}
	sb.WriteString(edge("└"+strings.Repeat("─", innerWidth)+"┘") + "\n")
	return sb.String()
}
