package main

import (
	"github.com/spf13/cobra"

	"github.com/conduit-run/conduit/config"
	"github.com/conduit-run/conduit/internal/logging"
)

// rootConfig holds the process-level configuration (C14) overlaid from
// CONDUIT_-prefixed environment variables via the teacher's config.Loader
// (config/env.go), then further overridden by CLI flags.
type rootConfig struct {
	LogLevel  string
	LogFormat string
}

func newRootCmd() *cobra.Command {
	cfg := rootConfig{LogLevel: "info", LogFormat: "json"}

	root := &cobra.Command{
		Use:           "conduit",
		Short:         "Run declarative YAML-described data pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loader := config.Loader{Prefix: "CONDUIT"}
			loaded := cfg
			if err := loader.Load("cli", &loaded); err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") {
				cfg.LogLevel = loaded.LogLevel
			}
			if !cmd.Flags().Changed("log-format") {
				cfg.LogFormat = loaded.LogFormat
			}
			return logging.Install(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		},
	}

	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json|console)")

	root.AddCommand(newRunCmd(), newServeCmd(), newSchemaCmd())
	return root
}
