package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"atlas-widget/handler"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int
	var staticDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API and the widget page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("static-dir") {
				cfg.StaticDir = staticDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := buildChatService(ctx, cfg)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           handler.NewRouter(svc, handler.RouterConfig{StaticDir: cfg.StaticDir}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", srv.Addr).Str("static_dir", cfg.StaticDir).Msg("listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errors.Wrap(err, "serve")
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				log.Info().Msg("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().IntVar(&port, "port", 5000, "listen port (overrides PORT)")
	cmd.Flags().StringVar(&staticDir, "static-dir", ".", "directory served at / (overrides STATIC_DIR)")
	return cmd
}

func newLambdaCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an API Gateway Lambda handler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := buildChatService(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			h, err := handler.NewHandler(svc)
			if err != nil {
				return err
			}
			lambda.StartWithOptions(h.Handle, lambda.WithContext(cmd.Context()))
			return nil
		},
	}
}
