package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanhub/internal/daemon"
	"github.com/Aman-CERP/amanhub/internal/profiling"
	"github.com/Aman-CERP/amanhub/internal/refresh"
)

func newServeCmd() *cobra.Command {
	var cpuProfile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh daemon",
		Long: `Run the refresh daemon until SIGINT/SIGTERM: polls tracked
repositories on a jittered cadence, republishes changed ones
copy-on-write, and executes branch-change jobs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			profiler := profiling.NewProfiler()
			if cpuProfile != "" {
				stopCPU, err := profiler.StartCPU(cpuProfile)
				if err != nil {
					return err
				}
				defer stopCPU()
			}

			guard := daemon.NewInstanceGuard(app.cfg.LockPath())
			acquired, err := guard.TryAcquire()
			if err != nil {
				return err
			}
			if !acquired {
				return fmt.Errorf("another amanhub daemon already serves %s", app.cfg.Paths.DataDir)
			}
			defer func() { _ = guard.Release() }()

			pidFile := daemon.NewPIDFile(filepath.Join(app.cfg.Paths.DataDir, "daemon.pid"))
			if err := pidFile.Write(); err != nil {
				return err
			}
			defer func() { _ = pidFile.Remove() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// SIGUSR1 dumps heap and goroutine profiles without stopping
			// the daemon.
			dumpCh := make(chan os.Signal, 1)
			signal.Notify(dumpCh, syscall.SIGUSR1)
			defer signal.Stop(dumpCh)
			go func() {
				for range dumpCh {
					stamp := time.Now().Format("20060102-150405")
					heap := filepath.Join(app.cfg.Paths.DataDir, "heap-"+stamp+".prof")
					stacks := filepath.Join(app.cfg.Paths.DataDir, "goroutine-"+stamp+".prof")
					if err := profiler.WriteHeap(heap); err != nil {
						slog.Warn("heap dump", slog.String("error", err.Error()))
					}
					if err := profiler.WriteGoroutine(stacks); err != nil {
						slog.Warn("goroutine dump", slog.String("error", err.Error()))
					}
					slog.Info("profiles written", slog.String("dir", app.cfg.Paths.DataDir))
				}
			}()

			app.cleanup.Start(ctx)
			defer app.cleanup.Stop()
			app.pool.Start(ctx)
			defer app.pool.Stop()
			app.scheduler.Start(ctx)
			defer app.scheduler.Stop()

			if app.cfg.Refresh.Watch {
				watcher, err := refresh.NewDirtyWatcher(app.scheduler)
				if err != nil {
					return err
				}
				repos, err := app.registry.ListRepos()
				if err != nil {
					return err
				}
				for _, repo := range repos {
					if err := watcher.Watch(repo.Alias, repo.ClonePath); err != nil {
						slog.Warn("watch clone",
							slog.String("alias", repo.Alias),
							slog.String("error", err.Error()))
					}
				}
				watcher.Start()
				defer func() { _ = watcher.Stop() }()
			}

			app.out.Success("amanhub daemon serving %s", app.cfg.Paths.DataDir)
			<-ctx.Done()
			app.out.Success("shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&cpuProfile, "cpu-profile", "", "Write a CPU profile to this file")
	return cmd
}
