package main

import (
	"github.com/spf13/cobra"

	"github.com/delta94/cvmaker/internal/config"
	"github.com/delta94/cvmaker/pkg/logging"
)

func serveCmd(configFile *string) *cobra.Command {
	var (
		port int
		host string
		env  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

The development environment serves unbundled assets from the
dev directory with live reload. Any other environment resolves
bundles through the build manifest and fails to start when a
required bundle is missing.

Examples:
  cvmaker serve
  cvmaker serve --port=8080
  APP_ENV=development cvmaker serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("env") {
				cfg.Env = env
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default all interfaces)")
	cmd.Flags().StringVarP(&env, "env", "e", "", "Environment tag (development selects the dev assembly)")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if path := cfg.Path(); path != "" {
		logger.Info().Str("path", path).Msg("configuration loaded")
	}

	ctx := cmd.Context()
	svc, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}()

	return svc.app.Run(ctx)
}

func loadConfig(file string) (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: file})
}
