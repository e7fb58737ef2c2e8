package cmd

import (
	"fmt"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate relic configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the merged configuration for the current context",
		Long: `Shows the final configuration after merging layers:
1. Global config (~/.config/relic/relic.yml)
2. Project config (relic.yml, found by walking up)
3. Override file (relic.override.yml)
This is useful for debugging configuration issues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}

			fmt.Printf("# Source: %s\n", cfg.Path())
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration against the relic schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := cli.NewErrorHandler(cli.GetOptions(cmd).Verbose)

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return handler.Handle(err)
			}

			validator, err := schema.NewValidator()
			if err != nil {
				return handler.Handle(err)
			}
			if err := validator.Validate(cfg); err != nil {
				return handler.Handle(err)
			}

			fmt.Printf("%s is valid\n", cfg.Path())
			return nil
		},
	}
}
