package main

import (
	"github.com/spf13/cobra"
)

func checkConfigCmd(configFile *string) *cobra.Command {
	var resolve bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration",
		Long: `Load and validate the configuration without starting the server.

With --resolve, the build manifest is loaded as well and every
required bundle is checked, exactly as serve does at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			source := cfg.Path()
			if source == "" {
				source = "defaults and environment"
			}
			success("Configuration is valid")
			info("Source:        %s", source)
			info("Mode:          %s", cfg.Mode())
			info("Address:       %s", cfg.Address())
			info("Session store: %s", cfg.Session.Store)
			info("Fault policy:  %s", cfg.Faults.Policy)

			if !resolve {
				return nil
			}
			rc, err := shellConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			success("Bundles resolved")
			info("main.css:      %s", rc.Bundles.MainCSS)
			info("main.js:       %s", rc.Bundles.MainJS)
			info("vendor.js:     %s", rc.Bundles.VendorJS)
			return nil
		},
	}

	cmd.Flags().BoolVar(&resolve, "resolve", false, "Also load the manifest and resolve bundles")

	return cmd
}
