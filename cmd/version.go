package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/version"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relic version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()

			if cli.GetOptions(cmd).JSONOutput {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("relic %s\n", info.Version)
			fmt.Printf("  Commit:   %s\n", info.Commit)
			fmt.Printf("  Built:    %s\n", info.BuildDate)
			fmt.Printf("  Go:       %s\n", info.GoVersion)
			fmt.Printf("  Platform: %s\n", info.Platform)
			return nil
		},
	}
}
