package cmd

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/amanhub/internal/config"
	"github.com/Aman-CERP/amanhub/internal/fts"
	"github.com/Aman-CERP/amanhub/internal/gitops"
	"github.com/Aman-CERP/amanhub/internal/jobs"
	"github.com/Aman-CERP/amanhub/internal/locks"
	"github.com/Aman-CERP/amanhub/internal/pipeline"
	"github.com/Aman-CERP/amanhub/internal/refresh"
	"github.com/Aman-CERP/amanhub/internal/registry"
	"github.com/Aman-CERP/amanhub/internal/snapshot"
	"github.com/Aman-CERP/amanhub/internal/telemetry"
	"github.com/Aman-CERP/amanhub/internal/ui"
)

// app wires the orchestrator components for one command invocation. The
// job pool, cleanup manager, and scheduler are created but not started;
// commands that need them running start them explicitly.
type app struct {
	cfg       *config.Config
	registry  *registry.Store
	snapshots *snapshot.Store
	locks     *locks.Registry
	git       gitops.Operations
	runs      *telemetry.RunStore
	cleanup   *snapshot.CleanupManager
	pool      *jobs.Pool
	pipeline  *pipeline.Pipeline
	scheduler *refresh.Scheduler
	out       *ui.Renderer
}

func openApp() (*app, error) {
	cfg, err := config.Load(flagDataDir)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.ReposDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	reg, err := registry.Open(cfg.RegistryPath())
	if err != nil {
		return nil, err
	}
	if err := telemetry.InitRunHistorySchema(reg.DB()); err != nil {
		_ = reg.Close()
		return nil, err
	}
	runs, err := telemetry.NewRunStore(reg.DB())
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	snaps, err := snapshot.NewStore(cfg.VersionedDir())
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		registry:  reg,
		snapshots: snaps,
		locks:     locks.NewRegistry(),
		git:       gitops.NewOperations(),
		runs:      runs,
		cleanup:   snapshot.NewCleanupManager(snaps, cfg.CleanupGrace(), cfg.CleanupSweep()),
		pool:      jobs.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueDepth),
		out:       ui.NewRenderer(os.Stdout, flagNoColor),
	}
	engine := fts.NewBleveEngine()
	a.pipeline = pipeline.New(reg, a.locks, a.git, fts.NewTreeIndexer(), engine, snaps, a.cleanup, a.pool)
	a.scheduler = refresh.NewScheduler(refresh.Options{
		Interval: cfg.RefreshInterval(),
		Enabled:  cfg.Refresh.Enabled,
	}, reg, a.locks, a.git, fts.NewTreeIndexer(), snaps, a.cleanup, runs)
	return a, nil
}

func (a *app) Close() {
	_ = a.registry.Close()
}
