package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/relictools/relic/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput represents the XDG-compliant paths used by relic.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	StateDir  string `json:"state_dir"`
	LogsDir   string `json:"logs_dir"`
	Socket    string `json:"socket"`
	PidFile   string `json:"pid_file"`
	CookieDir string `json:"cookie_dir"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by relic",
		Long: `Print the XDG-compliant paths used by relic.

This command outputs the paths in JSON format, making it easy to parse from
scripts and other tools.

- config_dir: Configuration files (relic.yml)
- state_dir: Runtime state (logs, pid file)
- logs_dir: Component log files
- socket: The daemon's Unix socket
- pid_file: The daemon's pid file
- cookie_dir: Flush cookie files used for watch ordering barriers`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				StateDir:  paths.StateDir(),
				LogsDir:   paths.LogsDir(),
				Socket:    paths.SocketPath(),
				PidFile:   paths.PidFilePath(),
				CookieDir: paths.CookieDir(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		},
	}

	return cmd
}
