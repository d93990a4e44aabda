package cli

import (
	"fmt"
	"io"
	"strings"

	"travelpilot/internal/agent/colors"
	"travelpilot/internal/schema"
	"travelpilot/internal/store"
	"travelpilot/internal/utils/terminal"
)

const boxWidth = 58

//
// Banner & 帮助 & Session Info
//

func printBanner(w io.Writer) {
	text := colors.Paint("✈️  Travel Assistant - Interactive Session", colors.Bold)
	edge := func(s string) string { return colors.Paint(s, colors.Bold, colors.BrightCyan) }

	fmt.Fprintln(w)
	fmt.Fprintln(w, edge("╔"+strings.Repeat("═", boxWidth)+"╗"))
	fmt.Fprintln(w, edge("║")+terminal.Pad(text, boxWidth, terminal.AlignCenter)+edge("║"))
	fmt.Fprintln(w, edge("╚"+strings.Repeat("═", boxWidth)+"╝"))
	fmt.Fprintln(w)
}

func printHelp(w io.Writer) {
	cmd := func(s string) string { return colors.Paint(s, colors.BrightGreen) }
	fmt.Fprintf(w, `
%s
  %s      - Show this help message
  %s       - Start a new conversation
  %s      - List saved conversations
  %s   - Show the current conversation
  %s      - Exit program (also: exit, quit, q)

%s
  - 直接输入问题回车即可，例如 "pack for a 3-day beach trip to Lisbon in July"
  - 使用 Tab 可以补全 /help /exit 等命令
  - Ctrl+C 中断当前回复

`,
		colors.Paint("Available Commands:", colors.Bold, colors.BrightYellow),
		cmd("/help"), cmd("/new"), cmd("/list"), cmd("/history"), cmd("/exit"),
		colors.Paint("Notes:", colors.Bold, colors.BrightYellow),
	)
}

func printSessionInfo(w io.Writer, a *app, conv *store.Conversation) {
	conversation := "(new)"
	messages := 0
	if conv != nil {
		conversation = conv.ID
		messages = len(conv.Messages)
	}

	lines := []string{
		fmt.Sprintf("Model: %s", a.model),
		fmt.Sprintf("Conversation: %s", conversation),
		fmt.Sprintf("Message History: %d messages", messages),
		fmt.Sprintf("Available Tools: %s", strings.Join(a.tools, ", ")),
		fmt.Sprintf("Conversations: %s", a.store.Dir()),
	}
	if a.turnLog != nil {
		lines = append(lines, "Turn log: enabled")
	}

	border := ""
	if colors.Enabled {
		border = colors.Dim
	}
	fmt.Fprint(w, terminal.Box(colors.Paint("Session Info", colors.BrightCyan), lines, boxWidth, border))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n\n", colors.Paint("Type /help for help, /exit to quit", colors.Dim))
}

//
// Conversations
//

func printConversationList(w io.Writer, list []*store.Conversation, current string) {
	if len(list) == 0 {
		fmt.Fprintln(w, colors.Paint("No saved conversations.", colors.Dim))
		return
	}
	for _, c := range list {
		marker := "  "
		if c.ID == current {
			marker = colors.Paint("▶ ", colors.BrightGreen)
		}
		fmt.Fprintf(w, "%s%s  %s  %s %s\n",
			marker,
			colors.Paint(c.ID, colors.Cyan),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"),
			terminal.Truncate(c.Title, 50),
			colors.Paint(fmt.Sprintf("(%d messages)", len(c.Messages)), colors.Dim),
		)
	}
}

func roleLabel(r schema.Role) string {
	switch r {
	case schema.RoleUser:
		return colors.Paint("You", colors.Bold, colors.BrightGreen)
	case schema.RoleAssistant:
		return colors.Paint("Assistant", colors.Bold, colors.BrightBlue)
	default:
		return colors.Paint(string(r), colors.Dim)
	}
}

func printConversation(w io.Writer, c *store.Conversation) {
	fmt.Fprintf(w, "%s %s\n", colors.Paint(c.Title, colors.Bold), colors.Paint("["+c.ID+"]", colors.Dim))
	fmt.Fprintln(w, colors.Paint(strings.Repeat("─", 60), colors.Dim))
	for _, m := range c.Messages {
		fmt.Fprintf(w, "\n%s %s\n%s\n", roleLabel(m.Role), colors.Paint("›", colors.Dim), m.Content)
	}
	fmt.Fprintln(w)
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, colors.Paint("❌ "+err.Error(), colors.Red))
}
