package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"edubot/internal/chatclient"
	"edubot/internal/console"
	"edubot/internal/models"
	"edubot/internal/tui"
	"edubot/internal/widget"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (the default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientConfig(cmd)
			if err != nil {
				return err
			}
			plain, _ := cmd.Flags().GetBool("plain")
			logFile, _ := cmd.Flags().GetString("log-file")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			client := chatclient.New(cfg)
			ctx := cmd.Context()

			if !plain && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
				return runTUI(ctx, cfg, client, logFile)
			}
			return runLines(ctx, cmd, cfg, client, concurrency)
		},
	}
	cmd.Flags().Bool("plain", false, "line mode even when attached to a terminal")
	cmd.Flags().String("log-file", "", "write logs here while the terminal UI runs (default: discard)")
	cmd.Flags().Int("concurrency", 1, "line mode: deliveries in flight at once")
	return cmd
}

func runTUI(ctx context.Context, cfg widget.Config, client *chatclient.Client, logFile string) error {
	restore, err := redirectLogs(logFile)
	if err != nil {
		return err
	}
	defer restore()

	screen := tui.NewScreen()
	ctrl, err := widget.NewController(cfg, screen, client)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	log.Info().Str("endpoint", cfg.Endpoint).Msg("starting terminal UI")
	err = tui.Run(ctx, ctrl, screen, tui.WithPinger(client))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runLines(ctx context.Context, cmd *cobra.Command, cfg widget.Config, client *chatclient.Client, concurrency int) error {
	ctrl, err := widget.NewController(cfg, console.NewView(cmd.OutOrStdout()), client)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	stats, err := console.Run(ctx, ctrl, cmd.InOrStdin(), concurrency)
	log.Debug().Int("sent", stats.Sent).Int("failed", stats.Failed).Msg("input closed")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if stats.Failed > 0 {
		return errors.Errorf("%d of %d messages were not delivered", stats.Failed, stats.Sent)
	}
	return nil
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientConfig(cmd)
			if err != nil {
				return err
			}
			view := widget.NewTranscript()
			ctrl, err := widget.NewController(cfg, view, chatclient.New(cfg))
			if err != nil {
				return err
			}
			defer ctrl.Close()

			d, ok := ctrl.Submit(strings.Join(args, " "))
			if !ok {
				return errors.New("message is empty")
			}
			if err := d.Deliver(cmd.Context()); err != nil {
				return err
			}
			entries := view.Entries()
			fmt.Fprintln(cmd.OutOrStdout(), entries[len(entries)-1].Text)
			return nil
		},
	}
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
}

// writeStructured prints v as json or yaml. It reports false for text output.
func writeStructured(cmd *cobra.Command, w io.Writer, v interface{}) (bool, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "text":
		return false, nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, errors.Errorf("unknown output format %q", format)
	}
}

func userArg(args []string, cfg widget.Config) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.UserID
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [user-id]",
		Short: "Print a user's conversation history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientConfig(cmd)
			if err != nil {
				return err
			}
			userID := userArg(args, cfg)
			msgs, err := chatclient.New(cfg).History(cmd.Context(), userID)
			if errors.Is(err, chatclient.ErrUnknownUser) {
				return errors.Errorf("no conversation found for user %q", userID)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if msgs == nil {
				msgs = []models.ChatMessage{}
			}
			if done, err := writeStructured(cmd, out, msgs); done || err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "%s> %s\n", rolePrefix(m.Role), m.Content)
			}
			return nil
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func rolePrefix(role string) string {
	if role == models.RoleUser {
		return "you"
	}
	return role
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [user-id]",
		Short: "Clear a user's conversation history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientConfig(cmd)
			if err != nil {
				return err
			}
			msg, err := chatclient.New(cfg).Reset(cmd.Context(), userArg(args, cfg))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newPingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the chat server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientConfig(cmd)
			if err != nil {
				return err
			}
			resp, err := chatclient.New(cfg).Ping(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if done, err := writeStructured(cmd, out, resp); done || err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", resp.Status, resp.Message)
			return nil
		},
	}
	addOutputFlag(cmd)
	return cmd
}
