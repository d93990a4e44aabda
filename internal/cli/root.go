// Package cli wires the travel assistant into cobra commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"travelpilot/internal/config"
)

var (
	cfgFile  string
	logLevel string

	// loaded by the root command before any subcommand runs
	cfg *config.Config
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "travelpilot",
		Short: "travelpilot - AI travel assistant",
		Long:  "travelpilot plans trips, builds packing lists and checks forecasts through an LLM that calls travel tools.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			level, err := config.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath+")")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newConversationsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// Main runs Execute and exits non-zero on failure.
func Main() {
	if err := Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
