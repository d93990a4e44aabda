package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"travelpilot/internal/agent/colors"
	"travelpilot/internal/store"
)

func newChatCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive travel planning session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			s := &chatSession{app: a, out: cmd.OutOrStdout()}
			if conversationID != "" {
				if s.conv, err = a.store.Load(conversationID); err != nil {
					return err
				}
			}
			return s.run()
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "resume a saved conversation")
	return cmd
}

// chatSession REPL 状态：当前会话以及是否退出
type chatSession struct {
	app  *app
	out  io.Writer
	conv *store.Conversation
	quit bool
}

var chatSuggestions = []prompt.Suggest{
	{Text: "/help", Description: "Show help message"},
	{Text: "/new", Description: "Start a new conversation"},
	{Text: "/list", Description: "List saved conversations"},
	{Text: "/history", Description: "Show the current conversation"},
	{Text: "/exit", Description: "Exit program"},
}

func (s *chatSession) run() error {
	printBanner(s.out)
	printSessionInfo(s.out, s.app, s.conv)

	completer := func(d prompt.Document) []prompt.Suggest {
		text := strings.TrimSpace(d.TextBeforeCursor())
		// 仅在开头位置补全命令
		if strings.HasPrefix(text, "/") {
			return prompt.FilterHasPrefix(chatSuggestions, text, true)
		}
		return []prompt.Suggest{}
	}

	p := prompt.New(
		s.execute,
		completer,
		prompt.OptionPrefix("You › "),
		prompt.OptionTitle("travelpilot"),
		prompt.OptionInputTextColor(prompt.Yellow),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return s.quit }),
	)
	p.Run()
	return nil
}

// execute handles one line of input: a slash command or a message.
func (s *chatSession) execute(in string) {
	input := strings.TrimSpace(in)
	if input == "" {
		return
	}

	if strings.HasPrefix(input, "/") {
		s.command(strings.ToLower(input))
		return
	}

	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		s.command("/exit")
		return
	}

	s.message(input)
}

func (s *chatSession) command(cmd string) {
	switch cmd {
	case "/exit", "/quit", "/q":
		fmt.Fprintf(s.out, "\n%s\n\n", colors.Paint("👋 Goodbye! Safe travels.", colors.BrightYellow))
		s.quit = true
	case "/help":
		printHelp(s.out)
	case "/new":
		s.conv = nil
		fmt.Fprintf(s.out, "%s\n\n", colors.Paint("✅ Started a new conversation", colors.Green))
	case "/list":
		list, err := s.app.store.List()
		if err != nil {
			printError(s.out, err)
			return
		}
		current := ""
		if s.conv != nil {
			current = s.conv.ID
		}
		printConversationList(s.out, list, current)
		fmt.Fprintln(s.out)
	case "/history":
		if s.conv == nil || len(s.conv.Messages) == 0 {
			fmt.Fprintf(s.out, "%s\n\n", colors.Paint("No messages yet.", colors.Dim))
			return
		}
		printConversation(s.out, s.conv)
	default:
		fmt.Fprintln(s.out, colors.Paint("❌ Unknown command: "+cmd, colors.Red))
		fmt.Fprintf(s.out, "%s\n\n", colors.Paint("Type /help to see available commands", colors.Dim))
	}
}

func (s *chatSession) message(input string) {
	fmt.Fprintf(s.out, "\n%s %s\n\n", colors.Paint("Assistant", colors.BrightBlue), colors.Paint("›", colors.Dim))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conv, err := s.app.turn(ctx, s.conv, input, func(f string) { fmt.Fprint(s.out, f) })
	if conv != nil {
		s.conv = conv
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintf(s.out, "\n%s", colors.Paint("⏹  Interrupted", colors.BrightYellow))
	}
	if err != nil {
		fmt.Fprintln(s.out)
		printError(s.out, err)
	}

	fmt.Fprintf(s.out, "\n\n%s\n\n", colors.Paint(strings.Repeat("─", 60), colors.Dim))
}
