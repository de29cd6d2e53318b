package main

import (
	"github.com/spf13/cobra"

	"wayback-news/internal/api"
	"wayback-news/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := app.GracefulShutdown(rt.logger)
			defer cancel()

			server := api.NewServer(rt.cfg, rt.logger, rt.pipeline, rt.registry, nil)
			if err := server.Run(ctx); err != nil {
				rt.logger.Error("Server stopped with error", "error", err.Error())
				return err
			}

			rt.logger.Info("Server stopped")
			return nil
		},
	}
}
