package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/pkg/daemon"
	"github.com/spf13/cobra"
)

// NewChangedCmd creates the `changed` command.
func NewChangedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changed <hash> [glob...]",
		Short: "Ask which globs saw changes since a hash was tracked",
		Long: `Report the subset of candidate globs whose files may have changed since the
hash was registered with 'relic track'. An untracked hash reports every
candidate, so a cold daemon never claims freshness it cannot prove.

Exits 0 when nothing changed and 2 when at least one glob did, so scripts can
branch on cache validity.

Examples:
  relic changed 0f2e3a91 'src/**/*.ts' 'package.json'
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			handler := cli.NewErrorHandler(opts.Verbose)

			client := daemon.New()
			defer client.Close()

			changed, err := client.Changed(cmd.Context(), args[0], args[1:])
			if err != nil {
				return handler.Handle(err)
			}

			if opts.JSONOutput {
				out, _ := json.MarshalIndent(map[string][]string{"changed": changed}, "", "  ")
				fmt.Println(string(out))
			} else {
				for _, g := range changed {
					fmt.Println(g)
				}
			}

			if len(changed) > 0 {
				cmd.SilenceUsage = true
				cmd.SilenceErrors = true
				return &exitCodeError{code: 2}
			}
			return nil
		},
	}

	return cmd
}

// exitCodeError signals a specific process exit code without an error message.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// ExitCode extracts a requested exit code from an error chain, or 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exitCodeError); ok {
		return exitErr.code
	}
	return 1
}
