package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "cvmaker",
		Short: "Serve the CV Maker web application",
		Long: `cvmaker serves the CV Maker single page application.

It renders the HTML shell with the initial page state, keeps
signed sessions in a persistent store and authenticates users
with passwords or bearer tokens.

Configuration is read from cvmaker.yaml, .env files and
CVMAKER_* environment variables. PORT, APP_ENV and
ENABLE_ANALYTICS are honored as well.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./cvmaker.yaml)")

	cmd.AddCommand(
		serveCmd(&configFile),
		checkConfigCmd(&configFile),
		versionCmd(),
	)
	return cmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
