// Package cli provides shared command scaffolding for relic binaries.
package cli

import (
	"os"
	"strings"

	"github.com/relictools/relic/config"
	"github.com/relictools/relic/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandOptions holds common options for relic commands
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with standard relic flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}

	// Standard flags for all relic tools
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to relic.yml config file")

	// Accept underscored flag spellings so daemon config keys map directly
	cmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	return cmd
}

// GetLogger creates a logger based on command flags
func GetLogger(cmd *cobra.Command) *logrus.Logger {
	entry := logging.NewLogger("relic-cli")
	logger := entry.Logger

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the configuration honoring the --config flag, falling
// back to the walk-up search from the current directory.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		return config.Load(configFile)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.LoadFrom(cwd)
}
