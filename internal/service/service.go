// Package service runs scheduled oracle health snapshots with persistence and alerting.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/alerting"
	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/scheduler"
	"dragon-mcp/internal/storage"
)

// Options configure the monitor.
type Options struct {
	Chains        []string
	AlertsEnabled bool
	Cooldown      time.Duration
	Channels      []string
	LockKey       int64
}

// Monitor orchestrates health checks, persistence and alerting.
type Monitor struct {
	scheduler  *scheduler.Scheduler
	aggregator *oracle.Aggregator
	store      storage.SnapshotStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	locker     storage.AdvisoryLocker
	opts       Options
	logger     zerolog.Logger
	now        func() time.Time

	// lastAlert is used for the cooldown when no alert store is configured.
	lastAlert *storage.AlertRecord
}

// New constructs the monitor. store, alertStore and notifier may be nil.
func New(opts Options, sched *scheduler.Scheduler, agg *oracle.Aggregator, store storage.SnapshotStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Monitor {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}
	return &Monitor{
		scheduler:  sched,
		aggregator: agg,
		store:      store,
		alertStore: alertStore,
		notifier:   notifier,
		locker:     locker,
		opts:       opts,
		logger:     logger.With().Str("component", "monitor").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the scheduled snapshot loop.
func (m *Monitor) Run(ctx context.Context) error {
	if m.scheduler == nil {
		return errors.New("scheduler not configured")
	}
	return m.scheduler.Run(ctx, func(ctx context.Context, bucket time.Time) error {
		_, err := m.ProcessBucket(ctx, bucket)
		return err
	})
}

// ProcessBucket takes one snapshot for bucket. It is skipped, with a zero
// report and nil error, when another runner holds the advisory lock.
func (m *Monitor) ProcessBucket(ctx context.Context, bucket time.Time) (oracle.HealthReport, error) {
	unlock, proceed, err := m.acquireLock(ctx)
	if err != nil {
		return oracle.HealthReport{}, err
	}
	if !proceed {
		m.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return oracle.HealthReport{}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	report := m.aggregator.Check(ctx, m.opts.Chains)
	m.logger.Info().Time("bucket", bucket).
		Str("overall_status", string(report.OverallStatus)).
		Int("healthy", report.HealthyCount()).
		Int("total", len(report.Chains)).
		Msg("health snapshot taken")

	// snapshotID stays nil unless the snapshot row exists; alert rows reference it.
	var snapshotID uuid.UUID
	if m.store != nil {
		snap, obs := ToSnapshot(bucket, report)
		snap.ID = uuid.New()
		id, err := m.store.SaveSnapshot(ctx, snap, obs)
		if err != nil {
			m.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist snapshot")
		} else {
			snapshotID = id
		}
	}

	if err := m.maybeAlert(ctx, bucket, snapshotID, report); err != nil {
		m.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
	}
	return report, nil
}

// NeedsAlert reports whether a report warrants notifying operators.
func NeedsAlert(report oracle.HealthReport) bool {
	return report.OverallStatus != oracle.StatusHealthy || len(report.Alerts) > 0
}

func (m *Monitor) maybeAlert(ctx context.Context, bucket time.Time, snapshotID uuid.UUID, report oracle.HealthReport) error {
	if !m.opts.AlertsEnabled || m.notifier == nil || !NeedsAlert(report) {
		return nil
	}

	last, err := m.previousAlert(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not read last alert; using in-memory record")
	}
	if last != nil && m.opts.Cooldown > 0 &&
		last.OverallStatus == string(report.OverallStatus) &&
		m.now().Sub(last.CreatedAt) < m.opts.Cooldown {
		m.logger.Info().Time("last_alert", last.CreatedAt).Msg("alert suppressed by cooldown")
		return nil
	}

	note := NotificationFor(bucket, report, m.aggregator.Threshold())
	note.Channels = m.opts.Channels
	if err := m.notifier.Notify(ctx, note); err != nil {
		return err
	}

	record := storage.AlertRecord{
		SnapshotID:    snapshotID,
		OverallStatus: string(report.OverallStatus),
		Messages:      report.Alerts,
		Channels:      m.opts.Channels,
		CreatedAt:     m.now(),
	}
	switch {
	case m.alertStore == nil:
	case snapshotID == uuid.Nil:
		m.logger.Warn().Time("bucket", bucket).Msg("snapshot not persisted; alert kept in memory only")
	default:
		if _, err := m.alertStore.InsertAlert(ctx, record); err != nil {
			m.logger.Error().Err(err).Msg("failed to persist alert record")
		}
	}
	m.lastAlert = &record
	return nil
}

// previousAlert returns the newer of the stored and in-memory last alerts, so
// cooldown holds for alerts that could not be persisted.
func (m *Monitor) previousAlert(ctx context.Context) (*storage.AlertRecord, error) {
	if m.alertStore == nil {
		return m.lastAlert, nil
	}
	stored, err := m.alertStore.LastAlert(ctx)
	if err != nil {
		return m.lastAlert, err
	}
	if stored == nil || (m.lastAlert != nil && m.lastAlert.CreatedAt.After(stored.CreatedAt)) {
		return m.lastAlert, nil
	}
	return stored, nil
}

func (m *Monitor) acquireLock(ctx context.Context) (func(), bool, error) {
	if m.opts.LockKey == 0 || m.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := m.locker.TryAdvisoryLock(ctx, m.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// NotificationFor builds the alert payload for a report.
func NotificationFor(bucket time.Time, report oracle.HealthReport, threshold decimal.Decimal) alerting.Notification {
	note := alerting.Notification{
		Bucket:        bucket,
		OverallStatus: string(report.OverallStatus),
		HealthyChains: report.HealthyCount(),
		TotalChains:   len(report.Chains),
		ThresholdPct:  threshold,
		Alerts:        report.Alerts,
	}
	if pc := report.PriceConsistency; pc != nil {
		avg, dev := pc.AveragePrice, pc.MaxDeviationPercent
		note.AveragePrice = &avg
		note.MaxDeviationPct = &dev
	}
	return note
}

// ToSnapshot flattens a report into storage rows.
func ToSnapshot(bucket time.Time, report oracle.HealthReport) (storage.HealthSnapshot, []storage.ChainObservation) {
	snap := storage.HealthSnapshot{
		Bucket:        bucket,
		OverallStatus: string(report.OverallStatus),
		HealthyChains: report.HealthyCount(),
		TotalChains:   len(report.Chains),
		Alerts:        report.Alerts,
	}
	if pc := report.PriceConsistency; pc != nil {
		avg, dev, ok := pc.AveragePrice, pc.MaxDeviationPercent, pc.IsConsistent
		snap.AveragePrice = &avg
		snap.MaxDeviationPct = &dev
		snap.IsConsistent = &ok
	}

	order := report.Order
	if len(order) == 0 {
		for id := range report.Chains {
			order = append(order, id)
		}
		sort.Strings(order)
	}

	obs := make([]storage.ChainObservation, 0, len(order))
	for _, id := range order {
		c := report.Chains[id]
		o := storage.ChainObservation{
			Chain:    id,
			Status:   string(c.Status),
			PriceUSD: c.Price,
			IsValid:  c.IsValid,
			Source:   c.Source,
		}
		if c.Timestamp != 0 {
			ts := c.Timestamp
			o.ObservedAt = &ts
		}
		if c.Error != "" {
			msg := c.Error
			o.Error = &msg
		}
		obs = append(obs, o)
	}
	return snap, obs
}
