package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/pkg/paths"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [component]",
		Short: "Display logs from relic components",
		Long: `Streams logs written by relic components (relicd, relic-cli, ...). By
default, shows the most recent log file for each component; pass a component
name to restrict output.

Examples:
  # Follow the daemon's log
  relic logs relicd -f

  # Show the last lines from every component in JSON Lines format
  relic logs --json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	opts := cli.GetOptions(cmd)
	follow, _ := cmd.Flags().GetBool("follow")

	component := ""
	if len(args) > 0 {
		component = args[0]
	}

	files, err := findLogFiles(paths.LogsDir(), component)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No log files found.")
		return nil
	}

	for _, file := range files {
		t, err := tail.TailFile(file, tail.Config{
			Follow:    follow,
			ReOpen:    follow,
			MustExist: true,
			Logger:    tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("failed to tail %s: %w", file, err)
		}
		defer t.Stop()

		for line := range t.Lines {
			if line.Err != nil {
				if line.Err == io.EOF {
					break
				}
				continue
			}
			printLogLine(line.Text, opts.JSONOutput)
		}
	}

	return nil
}

// findLogFiles returns the most recent log file per component, newest first.
// Log files are named <component>-<date>.log.
func findLogFiles(dir, component string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	latest := make(map[string]os.FileInfo)
	latestPath := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".log")
		// File names are <component>-YYYY-MM-DD.log; strip the date suffix.
		comp := name
		if parts := strings.Split(name, "-"); len(parts) >= 4 {
			comp = strings.Join(parts[:len(parts)-3], "-")
		}
		if component != "" && comp != component {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if prev, ok := latest[comp]; !ok || info.ModTime().After(prev.ModTime()) {
			latest[comp] = info
			latestPath[comp] = filepath.Join(dir, entry.Name())
		}
	}

	files := make([]string, 0, len(latestPath))
	for _, path := range latestPath {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// printLogLine prints one structured log line, pretty-printed unless JSON
// output was requested.
func printLogLine(line string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(line)
		return
	}

	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		fmt.Println(line)
		return
	}

	ts, _ := logMap["time"].(string)
	level, _ := logMap["level"].(string)
	msg, _ := logMap["msg"].(string)
	component, _ := logMap["component"].(string)

	var fields []string
	for k, v := range logMap {
		switch k {
		case "time", "level", "msg", "component":
		default:
			fields = append(fields, fmt.Sprintf("%s=%v", k, v))
		}
	}
	sort.Strings(fields)

	fmt.Printf("%s [%s] [%s] %s %s\n",
		ts, strings.ToUpper(level), component, msg, strings.Join(fields, " "))
}
