package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/bond-onboarding/internal/config"
	"github.com/jonathan/bond-onboarding/internal/server"
	"github.com/jonathan/bond-onboarding/internal/server/ratelimit"
)

var (
	servePort   int
	serveNoAuth bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the application, step progress and submission endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: $PORT or 8080)")
	serveCmd.Flags().BoolVar(&serveNoAuth, "no-auth", false, "Disable bearer authentication (local development only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, cfg, closeStore, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	srvCfg := server.Config{
		Port:      cfg.Port,
		RateLimit: ratelimit.LoadConfig(),
	}
	if servePort != 0 {
		srvCfg.Port = servePort
	}
	if !serveNoAuth {
		jwtCfg, err := config.NewJWTConfig()
		if err != nil {
			return fmt.Errorf("failed to create JWT config: %w", err)
		}
		srvCfg.JWT = jwtCfg
	}

	return server.New(srvCfg, svc).Start()
}
