package colors

import (
	"os"
	"strings"
)

// Terminal color and style codes used by the CLI.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"

	BrightRed     = "\033[91m"
	BrightGreen   = "\033[92m"
	BrightYellow  = "\033[93m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Enabled 为 false 时 Paint 原样返回文本（遵循 NO_COLOR 约定）
var Enabled = os.Getenv("NO_COLOR") == ""

// Paint wraps text in the given codes followed by Reset.
func Paint(text string, codes ...string) string {
	if !Enabled || len(codes) == 0 {
		return text
	}
	return strings.Join(codes, "") + text + Reset
}
