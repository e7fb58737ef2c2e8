package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/config"
	"github.com/relictools/relic/pkg/api"
	"github.com/relictools/relic/pkg/daemon"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the `status` command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and remote cache status",
		Long: `Show a snapshot of the running daemon: watched root, tracked hashes and
globs, and retirements since startup. With --remote, also query the remote
cache service for the configured team's caching status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			handler := cli.NewErrorHandler(opts.Verbose)

			client := daemon.New()
			defer client.Close()

			status, err := client.Status(cmd.Context())
			if err != nil {
				return handler.Handle(err)
			}

			if opts.JSONOutput {
				out, _ := json.MarshalIndent(status, "", "  ")
				fmt.Println(string(out))
			} else {
				fmt.Printf("Daemon running (PID: %d)\n", status.PID)
				fmt.Printf("  Root:           %s\n", status.Root)
				fmt.Printf("  Uptime:         %s\n", time.Since(status.StartedAt).Round(time.Second))
				fmt.Printf("  Tracked hashes: %d\n", status.TrackedHashes)
				fmt.Printf("  Tracked globs:  %d\n", status.TrackedGlobs)
				fmt.Printf("  Retirements:    %d\n", status.Retirements)
			}

			remote, _ := cmd.Flags().GetBool("remote")
			if remote {
				if err := printRemoteStatus(cmd); err != nil {
					return handler.Handle(err)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("remote", false, "Also query the remote cache service")

	return cmd
}

func printRemoteStatus(cmd *cobra.Command) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Cache.URL == "" {
		return fmt.Errorf("no cache.url configured in %s", config.ConfigFileNames[0])
	}

	client := api.New(cfg.Cache.URL, cfg.Cache.Token, api.Options{})

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cachingStatus, err := client.GetCachingStatus(ctx, cfg.Cache.TeamID)
	if err != nil {
		return err
	}
	fmt.Printf("  Remote cache:   %s\n", cachingStatus)
	return nil
}
