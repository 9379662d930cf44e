// Package app provides the command line entry point for the code reader API server.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/code-reader/internal/config"
	"github.com/stacklok/code-reader/internal/versions"
)

// LogLevel is the level of the process logger. --debug lowers it to slog.LevelDebug.
var LogLevel = new(slog.LevelVar)

// NewRootCmd creates a new root command for the code reader.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "code-reader",
		DisableAutoGenTag: true,
		Short:             "Code Reader API server",
		Long: `Code Reader API server clones a git repository on request and returns the
text content of every file in it as a single document.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if viper.GetBool("debug") {
				LogLevel.Set(slog.LevelDebug)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			slog.Info("code-reader version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
			return nil
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
