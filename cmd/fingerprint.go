package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/pkg/fingerprint"
	"github.com/spf13/cobra"
)

// NewFingerprintCmd creates the `fingerprint` command.
func NewFingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint <glob...>",
		Short: "Compute a content fingerprint for a set of globs",
		Long: `Compute a stable content hash over the files selected by the given globs.
The fingerprint covers both the set of matched paths and their contents, so
it changes whenever a matched file is added, removed, renamed, or edited.

Pair it with 'relic track' to register the result:

  hash=$(relic fingerprint 'src/**/*.ts')
  relic track "$hash" --include 'src/**/*.ts'
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			handler := cli.NewErrorHandler(opts.Verbose)

			root, _ := cmd.Flags().GetString("root")
			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				root = cwd
			}

			exclude, _ := cmd.Flags().GetStringSlice("exclude")

			result, err := fingerprint.Compute(root, args, exclude)
			if err != nil {
				return handler.Handle(err)
			}

			if opts.JSONOutput {
				out, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(out))
			} else {
				fmt.Println(result.Hash)
			}
			return nil
		},
	}

	cmd.Flags().String("root", "", "Directory the globs are resolved against (default: current directory)")
	cmd.Flags().StringSliceP("exclude", "e", nil, "Glob carving exceptions out of the selection (repeatable)")

	return cmd
}
