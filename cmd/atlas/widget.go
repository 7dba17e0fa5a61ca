package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"atlas-widget/internal/chatapi"
	"atlas-widget/internal/console"
	"atlas-widget/internal/integrations/freecrypto"
	"atlas-widget/internal/logging"
	"atlas-widget/internal/tui"
	"atlas-widget/internal/widget"
)

func newWidgetCommand(root *rootOptions) *cobra.Command {
	var url, logFile string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Open the chat widget in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the program owns the terminal, so logs go elsewhere
			closer, err := logging.ToFile(root.cfg.LogLevel, logFile)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			endpoint := root.cfg.ChatURL
			if cmd.Flags().Changed("url") {
				endpoint = url
			}
			client, err := chatapi.New(endpoint, chatapi.WithTimeout(timeout))
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), client, client.Endpoint())
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chat API endpoint (overrides ATLAS_CHAT_URL)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs here instead of discarding them")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request timeout (0 waits for the transport)")
	return cmd
}

func newChatCommand(root *rootOptions) *cobra.Command {
	var url string
	var local bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				transport widget.Transport
				label     string
			)
			if local {
				svc, err := buildChatService(ctx, root.cfg)
				if err != nil {
					return err
				}
				transport, label = localTransport{uc: svc}, "local agent"
				if !root.cfg.UsesParamStore() {
					label += ", model " + root.cfg.Model
				}
			} else {
				endpoint := root.cfg.ChatURL
				if cmd.Flags().Changed("url") {
					endpoint = url
				}
				client, err := chatapi.New(endpoint)
				if err != nil {
					return err
				}
				transport, label = client, client.Endpoint()
			}

			view := console.New(cmd.OutOrStdout())
			ctrl, err := widget.New(view.Elements(), transport, widget.WithLogger(log.Logger))
			if err != nil {
				return err
			}
			return view.Run(ctx, ctrl, cmd.InOrStdin(), label)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chat API endpoint (overrides ATLAS_CHAT_URL)")
	cmd.Flags().BoolVar(&local, "local", false, "run the agent in process instead of calling the API")
	return cmd
}

func newCoinsCommand(root *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "coins",
		Short: "Export the supported crypto list as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			client := freecrypto.New(cfg.FreeCryptoAPIKey, freecrypto.WithBaseURL(cfg.FreeCryptoBaseURL))
			raw, err := client.GetCryptoList(cmd.Context())
			if err != nil {
				return err
			}
			pretty, err := json.MarshalIndent(raw, "", "  ")
			if err != nil {
				return errors.Wrap(err, "indent crypto list")
			}
			if err := os.WriteFile(out, append(pretty, '\n'), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", out)
			}
			log.Info().Str("path", out).Int("bytes", len(pretty)).Msg("crypto list saved")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "Crypto_Data.json", "output file")
	return cmd
}
