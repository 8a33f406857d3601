package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"edubot/internal/config"
	"edubot/internal/widget"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "edubot",
		Short: "Chat with the EduBot study assistant",
		Long: `edubot sends each line you type to the EduBot /chat endpoint and prints
the reply. Run without a subcommand it starts an interactive chat, using a
full-screen terminal UI when attached to a terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, _ := cmd.Flags().GetString("log-level")
			level, err := zerolog.ParseLevel(lvl)
			if err != nil {
				return errors.Wrapf(err, "invalid --log-level %q", lvl)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				With().Timestamp().Logger()
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("endpoint", "", "chat endpoint URL (default $EDUBOT_ENDPOINT or "+widget.DefaultEndpoint+")")
	flags.String("user-id", "", "user id sent with every message (default $EDUBOT_USER_ID or "+widget.DefaultUserID+")")
	flags.Duration("timeout", 0, "per-message timeout, 0 to use $EDUBOT_TIMEOUT or the default")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")

	chatCmd := newChatCmd()
	rootCmd.AddCommand(chatCmd, newAskCmd(), newHistoryCmd(), newResetCmd(), newPingCmd())

	// Bare "edubot" behaves like "edubot chat".
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
	rootCmd.RunE = chatCmd.RunE

	return rootCmd
}

// clientConfig layers flags over the environment.
func clientConfig(cmd *cobra.Command) (widget.Config, error) {
	cfg := config.LoadClient()
	flags := cmd.Flags()

	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("user-id") {
		cfg.UserID, _ = flags.GetString("user-id")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return widget.Config{}, err
	}
	return cfg, nil
}

// redirectLogs points the global logger at path, or discards logs when path
// is empty. The returned func restores the previous logger.
func redirectLogs(path string) (func(), error) {
	prev := log.Logger
	var (
		w       io.Writer = io.Discard
		closeFn           = func() error { return nil }
	)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		w, closeFn = f, f.Close
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return func() {
		log.Logger = prev
		_ = closeFn()
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
