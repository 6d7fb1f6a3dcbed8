package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tidy/internal/tabular"
	"github.com/JonMunkholm/tidy/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve CSV normalization over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srvCfg := a.cfg.Server
			if cmd.Flags().Changed("host") {
				srvCfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				srvCfg.Port = port
			}

			opts, err := a.cfg.NormalizerOptions()
			if err != nil {
				return err
			}
			n, err := tabular.NewNormalizer(opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}

			srvOpts := web.Options{
				Addr:          srvCfg.Addr(),
				Normalizer:    n,
				MaxBody:       srvCfg.MaxBody,
				MaxConcurrent: srvCfg.MaxConcurrent,
				MaxWait:       srvCfg.MaxWait,
			}
			if store != nil {
				defer store.Close()
				srvOpts.History = store
			}
			server := web.NewServer(srvOpts)

			slog.Info("configuration loaded",
				"addr", srvOpts.Addr,
				"max_concurrent", srvOpts.MaxConcurrent,
				"history", store != nil,
			)

			// Graceful shutdown
			go func() {
				<-ctx.Done()
				slog.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			return server.Start()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "interface to bind (SERVER_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (SERVER_PORT)")
	return cmd
}
