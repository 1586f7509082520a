package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/scheduler"
	"dragon-mcp/internal/service"
	"dragon-mcp/internal/storage"
)

// Monitor runs scheduled health snapshots until a signal arrives.
func (a *App) Monitor(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := a.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	err = a.runMonitor(ctx, a.newOracle(client).Aggregator())
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}
	a.Logger.Info().Msg("monitor stopped")
	return nil
}

func (a *App) runMonitor(ctx context.Context, agg *oracle.Aggregator) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	} else {
		defer closeStore()
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Immediate:    true,
	}, a.Logger)
	if err != nil {
		return err
	}

	var (
		snapshots storage.SnapshotStore
		alerts    storage.AlertStore
	)
	if store != nil {
		snapshots, alerts = store, store
	}

	m := service.New(a.monitorOptions(), sched, agg, snapshots, alerts, a.newNotifier(), a.Logger)
	a.Logger.Info().Dur("interval", sched.Interval()).
		Strs("chains", a.Config.Oracle.HealthChains).
		Msg("starting health monitor")
	return m.Run(ctx)
}

func (a *App) monitorOptions() service.Options {
	return service.Options{
		Chains:        a.Config.Oracle.HealthChains,
		AlertsEnabled: a.Config.Alerting.Enabled,
		Cooldown:      a.Config.Alerting.Cooldown,
		Channels:      a.Config.Alerting.Channels,
		LockKey:       a.Config.Scheduler.AdvisoryLockKey,
	}
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) ([]string, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("database not configured; cannot migrate")
	}
	defer closeStore()
	return store.Migrate(ctx, a.Config.Database.MigrationsPath)
}
