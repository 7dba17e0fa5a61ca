package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"atlas-widget/internal/config"
	"atlas-widget/internal/logging"
)

type rootOptions struct {
	envFile  string
	logLevel string
	cfg      config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "atlas",
		Short:         "Atlas crypto assistant: chat API, terminal widget and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if opts.envFile != "" {
				files = append(files, opts.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			opts.cfg = cfg
			_, err = logging.Init(logging.Options{Level: cfg.LogLevel})
			return err
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newServeCommand(opts),
		newLambdaCommand(opts),
		newWidgetCommand(opts),
		newChatCommand(opts),
		newCoinsCommand(opts),
	)
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("atlas failed")
		os.Exit(1)
	}
}
