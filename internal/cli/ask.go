package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"travelpilot/internal/agent/colors"
	"travelpilot/internal/store"
)

func newAskCmd() *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a single question and stream the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var conv *store.Conversation
			if conversationID != "" {
				if conv, err = a.store.Load(conversationID); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			conv, err = a.turn(cmd.Context(), conv, strings.Join(args, " "), func(f string) { fmt.Fprint(out, f) })
			fmt.Fprintln(out)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), colors.Paint("conversation: "+conv.ID, colors.Dim))
			return nil
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "continue a saved conversation")
	return cmd
}
