package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"travelpilot/internal/agent/colors"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage saved conversations",
	}

	cmd.AddCommand(newConversationsListCmd())
	cmd.AddCommand(newConversationsShowCmd())
	cmd.AddCommand(newConversationsDeleteCmd())
	return cmd
}

func newConversationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			list, err := st.List()
			if err != nil {
				return err
			}
			printConversationList(cmd.OutOrStdout(), list, "")
			return nil
		},
	}
}

func newConversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			c, err := st.Load(args[0])
			if err != nil {
				return err
			}
			printConversation(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newConversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			if _, err := st.Load(args[0]); err != nil {
				return err
			}
			if err := st.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), colors.Paint("✅ Deleted "+args[0], colors.Green))
			return nil
		},
	}
}
