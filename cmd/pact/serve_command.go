package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pact/internal/httpapi"
	"pact/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis queries over HTTP",
		Long:  "Serves until interrupted. SIGHUP invalidates the query cache and reloads metadata.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			session, err := ctx.openSession()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts := httpapi.OptionsFromConfig(cfg)
			if bind != "" {
				opts.Bind = bind
			}
			server := httpapi.New(session, opts, logger)
			if err := server.Start(runCtx); err != nil {
				return err
			}
			defer server.Stop()

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			for {
				select {
				case <-runCtx.Done():
					logger.Info("pact serve shutting down")
					return nil
				case <-hup:
					if err := session.Invalidate(context.WithoutCancel(runCtx)); err != nil {
						logging.WarnWithContext(logger, "reload after SIGHUP failed", "sighup_reload_failed",
							logging.Error(err),
							logging.String(logging.FieldErrorHint, "fix the metadata or exceptions file and send SIGHUP again"),
						)
						continue
					}
					logger.Info("query cache invalidated", logging.String("trigger", "SIGHUP"))
				}
			}
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default api.bind)")
	return cmd
}
