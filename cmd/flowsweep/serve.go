package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tcmartin/flowsweep/pkg/api"
	"github.com/tcmartin/flowsweep/pkg/config"
	"github.com/tcmartin/flowsweep/pkg/logging"
	"github.com/tcmartin/flowsweep/pkg/platform"
	"github.com/tcmartin/flowsweep/pkg/sweep"
)

// serveCmd runs the local HTTP adapter that a browser rendering layer talks to.
func serveCmd() *cobra.Command {
	var serverConfigPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local rendering adapter server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.DefaultConfig()
			if serverConfigPath != "" {
				loaded, err := config.LoadConfig(serverConfigPath)
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
				cfg = loaded
			}
			config.ApplyEnv(cfg)

			// CLI-level flags and the login config win over the server config
			// file so one credential setup serves both modes.
			if baseURL != "" {
				cfg.Platform.BaseURL = baseURL
			}
			if session != "" {
				cfg.Platform.Session = session
			}
			if cfg.Platform.BaseURL == "" {
				fmt.Println("Error: platform base URL is required")
				os.Exit(1)
			}

			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			client := platform.NewClient(cfg.Platform.BaseURL)
			controller := sweep.NewController(client, client, cfg.Platform.Session, logger)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err = controller.Bootstrap(ctx)
			cancel()
			switch {
			case err == nil:
			case errors.Is(err, sweep.ErrAccessDenied):
				// Keep serving so the rendering layer can show the denied
				// state; the access gate middleware answers everything 403.
				logger.Error("session has no access to flow management")
			default:
				logger.Warn("initial flow load failed, the UI can retry",
					logging.F("error", err.Error()))
			}

			server := api.NewServer(cfg, controller, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
			case <-stop:
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
			}
		},
	}

	cmd.Flags().StringVar(&serverConfigPath, "server-config", "", "Path to the server config file")
	return cmd
}
