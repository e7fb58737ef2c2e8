package cmd

import (
	"fmt"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/pkg/daemon"
	"github.com/relictools/relic/pkg/glob"
	"github.com/spf13/cobra"
)

// NewTrackCmd creates the `track` command.
func NewTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track <hash>",
		Short: "Register a hash with the globs that produced it",
		Long: `Register a cache hash with the include and exclude globs that selected its
inputs. The daemon then watches those globs; a later 'relic changed' reports
whether any matching files changed since registration.

Examples:
  # Track a build output hash over its sources
  relic track 0f2e3a91 --include 'src/**/*.ts' --exclude 'src/**/*.test.ts'
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := cli.NewErrorHandler(cli.GetOptions(cmd).Verbose)

			include, _ := cmd.Flags().GetStringSlice("include")
			exclude, _ := cmd.Flags().GetStringSlice("exclude")
			if len(include) == 0 {
				return handler.Handle(fmt.Errorf("at least one --include glob is required"))
			}
			if err := glob.Validate(append(append([]string{}, include...), exclude...)...); err != nil {
				return handler.Handle(err)
			}

			client := daemon.New()
			defer client.Close()

			if err := client.Track(cmd.Context(), args[0], include, exclude); err != nil {
				return handler.Handle(err)
			}

			fmt.Printf("Tracking %s (%d include, %d exclude)\n", args[0], len(include), len(exclude))
			return nil
		},
	}

	cmd.Flags().StringSliceP("include", "i", nil, "Glob selecting files the hash depends on (repeatable)")
	cmd.Flags().StringSliceP("exclude", "e", nil, "Glob carving exceptions out of the includes (repeatable)")

	return cmd
}
