package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relictools/relic/cli"
	"github.com/relictools/relic/config"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/internal/daemon/pidfile"
	"github.com/relictools/relic/internal/daemon/server"
	"github.com/relictools/relic/internal/daemon/store"
	"github.com/relictools/relic/logging"
	"github.com/relictools/relic/pkg/globwatch"
	"github.com/relictools/relic/pkg/hashglob"
	"github.com/relictools/relic/pkg/paths"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the relic daemon",
		Long:  "The relic daemon (relicd) watches the filesystem and maintains the build cache invalidation index.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

// daemonConfig resolves the effective daemon configuration, tolerating a
// missing project config by watching the current directory with defaults.
func daemonConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, errors.ErrCodeConfigNotFound) {
		return nil, err
	}

	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		return nil, cwdErr
	}
	return &config.Config{
		Daemon: config.DaemonConfig{
			Root:       cwd,
			DebounceMs: 10,
			Socket:     paths.SocketPath(),
		},
	}, nil
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the relic daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("relicd")
			pidPath := paths.PidFilePath()

			cfg, err := daemonConfig(cmd)
			if err != nil {
				return err
			}

			// 1. Acquire lock
			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Event source over the configured root
			source, err := globwatch.New(cfg.Daemon.Root, globwatch.Options{
				CookieDir: paths.CookieDir(),
				Debounce:  time.Duration(cfg.Daemon.DebounceMs) * time.Millisecond,
				Ignore:    cfg.Daemon.Ignore,
			})
			if err != nil {
				return err
			}
			defer source.Close()

			// 3. Invalidation index wired to the event store
			var tracker *hashglob.Watcher
			st := store.New(source.Root(), func() (int, int) {
				return tracker.Stats()
			})
			tracker = hashglob.New(source, hashglob.Options{
				OnRetire: func(r hashglob.Retirement) {
					st.RecordRetirement(r.Hash, r.Glob)
				},
			})

			srv := server.New(logger, tracker, st)

			// 4. Handle signals
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()
			}()

			// 5. Run the watch loop and the server together
			logger.WithField("pid", os.Getpid()).WithField("root", source.Root()).Info("Starting daemon")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return tracker.Watch(gctx)
			})
			g.Go(func() error {
				return srv.ListenAndServe(cfg.Daemon.Socket)
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			// Send SIGTERM
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()
			running, pid, err := pidfile.IsRunning(pidPath)

			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			if running {
				fmt.Printf("Running (PID: %d)\nSocket: %s\n", pid, paths.SocketPath())
			} else {
				fmt.Println("Stopped")
				os.Exit(1) // Return non-zero for stopped state (useful for scripts)
			}
			return nil
		},
	}
}
