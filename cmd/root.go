package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/openblcmm/blcmm/internal/config"
)

var (
	logLevel      string
	constantsPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&constantsPath, "constants", "c", "", "Path to a validation constants file (yaml, toml, json or hcl)")
}

var rootCmd = &cobra.Command{
	Use:           "blcmm",
	Short:         "BLCMM: inspect, check and invert Borderlands patch files",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "blcmm"})
		logger.SetLevel(level)
		log.SetDefault(logger)
		return nil
	},
}

// loadConstants reads --constants, or returns the defaults (with BLCMM_
// environment overrides) when the flag is not set.
func loadConstants() (*config.Constants, error) {
	return config.Load(constantsPath)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
