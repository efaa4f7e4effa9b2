// Package cli holds the roster command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "roster",
		Short:         "Student records service",
		Long:          `Serve, import and inspect student records kept in a document store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"},
		"dotenv files loaded before reading configuration; missing files are skipped")

	cmd.AddCommand(
		newServeCmd(opts),
		newImportCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the command tree and exits non-zero on failure. It is
// called once by main.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the env files, then the configuration, and installs the
// configured logger.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(o.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
