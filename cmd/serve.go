// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/internal/config"
	"github.com/xkilldash9x/a11yscan/internal/observability"
	"github.com/xkilldash9x/a11yscan/internal/server"
	"github.com/xkilldash9x/a11yscan/internal/service"
)

func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	var port int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			serverCfg := cfg.Server()
			if cmd.Flags().Changed("port") {
				serverCfg.Port = port
			}
			return runServe(ctx, cfg, serverCfg, factory, observability.GetLogger())
		},
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return serveCmd
}

func runServe(ctx context.Context, cfg config.Interface, serverCfg config.ServerConfig, factory service.ComponentFactory, logger *zap.Logger) error {
	comps, err := factory.Create(ctx, cfg, service.Needs{
		Analysis: true,
		Export:   true,
		Store:    service.StoreOptional,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize service components: %w", err)
	}
	defer comps.Shutdown()

	srv := server.New(serverCfg, comps.Handlers(logger), logger)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("Server exited cleanly.")
	return nil
}
