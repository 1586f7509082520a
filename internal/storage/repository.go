package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSnapshotSQL = `INSERT INTO health_snapshots (
        id,
        bucket_ts,
        overall_status,
        average_price,
        max_deviation_pct,
        is_consistent,
        healthy_chains,
        total_chains,
        alerts
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET
        overall_status    = EXCLUDED.overall_status,
        average_price     = EXCLUDED.average_price,
        max_deviation_pct = EXCLUDED.max_deviation_pct,
        is_consistent     = EXCLUDED.is_consistent,
        healthy_chains    = EXCLUDED.healthy_chains,
        total_chains      = EXCLUDED.total_chains,
        alerts            = EXCLUDED.alerts
    RETURNING id;`

	deleteObservationsSQL = `DELETE FROM chain_observations WHERE snapshot_id = $1;`

	insertObservationSQL = `INSERT INTO chain_observations (
        snapshot_id,
        chain,
        status,
        price_usd,
        is_valid,
        source,
        observed_at,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	snapshotColumns = `
        id,
        bucket_ts,
        overall_status,
        average_price::text,
        max_deviation_pct::text,
        is_consistent,
        healthy_chains,
        total_chains,
        alerts,
        created_at`

	listSnapshotsBetweenSQL = `SELECT` + snapshotColumns + `
    FROM health_snapshots
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	listRecentSnapshotsSQL = `SELECT` + snapshotColumns + `
    FROM health_snapshots
    ORDER BY bucket_ts DESC
    LIMIT $1;`

	listObservationsSQL = `SELECT
        snapshot_id,
        chain,
        status,
        price_usd::text,
        is_valid,
        source,
        observed_at,
        error
    FROM chain_observations
    WHERE snapshot_id = $1
    ORDER BY chain;`

	insertAlertSQL = `INSERT INTO alerts (
        snapshot_id,
        overall_status,
        messages,
        channels
    ) VALUES (
        $1,$2,$3,$4
    )
    RETURNING id, snapshot_id, overall_status, messages, channels, created_at;`

	lastAlertSQL = `SELECT
        id,
        snapshot_id,
        overall_status,
        messages,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore persists health reports.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap HealthSnapshot, obs []ChainObservation) (uuid.UUID, error)
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]HealthSnapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]HealthSnapshot, error)
	ListObservations(ctx context.Context, snapshotID uuid.UUID) ([]ChainObservation, error)
}

// AlertStore records alert emissions.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	LastAlert(ctx context.Context) (*AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Releasing the connection drops the session lock if this fails.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// SaveSnapshot upserts the snapshot for its bucket and replaces its observations.
// The stored id is returned; a re-run of the same bucket keeps the original id.
func (s *Store) SaveSnapshot(ctx context.Context, snap HealthSnapshot, obs []ChainObservation) (uuid.UUID, error) {
	pool, err := s.getPool()
	if err != nil {
		return uuid.Nil, err
	}
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	alerts := snap.Alerts
	if alerts == nil {
		alerts = []string{}
	}

	var id uuid.UUID
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, upsertSnapshotSQL,
			snap.ID,
			snap.Bucket,
			snap.OverallStatus,
			decimalArg(snap.AveragePrice),
			decimalArg(snap.MaxDeviationPct),
			snap.IsConsistent,
			snap.HealthyChains,
			snap.TotalChains,
			alerts,
		).Scan(&id); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx, deleteObservationsSQL, id); err != nil {
			return fmt.Errorf("clear observations: %w", err)
		}

		batch := &pgx.Batch{}
		for _, o := range obs {
			batch.Queue(insertObservationSQL,
				id,
				o.Chain,
				o.Status,
				decimalArg(o.PriceUSD),
				o.IsValid,
				o.Source,
				o.ObservedAt,
				o.Error,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert observations: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListSnapshotsBetween lists snapshots within [from, to) in bucket order.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]HealthSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots between: %w", err)
	}
	return collectSnapshots(rows)
}

// ListRecentSnapshots lists the newest snapshots first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]HealthSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// ListObservations returns the per-chain rows of a snapshot.
func (s *Store) ListObservations(ctx context.Context, snapshotID uuid.UUID) ([]ChainObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listObservationsSQL, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	out := make([]ChainObservation, 0)
	for rows.Next() {
		var (
			o     ChainObservation
			price *string
		)
		if err := rows.Scan(&o.SnapshotID, &o.Chain, &o.Status, &price, &o.IsValid, &o.Source, &o.ObservedAt, &o.Error); err != nil {
			return nil, err
		}
		if o.PriceUSD, err = parseDecimal(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}
	row := pool.QueryRow(ctx, insertAlertSQL, alert.SnapshotID, alert.OverallStatus, alert.Messages, alert.Channels)
	rec, err := scanAlert(row)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

// LastAlert returns the most recent alert, or nil when none was sent.
func (s *Store) LastAlert(ctx context.Context) (*AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rec, err := scanAlert(pool.QueryRow(ctx, lastAlertSQL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last alert: %w", err)
	}
	return &rec, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	err := row.Scan(&rec.ID, &rec.SnapshotID, &rec.OverallStatus, &rec.Messages, &rec.Channels, &rec.CreatedAt)
	return rec, err
}

func collectSnapshots(rows pgx.Rows) ([]HealthSnapshot, error) {
	defer rows.Close()

	out := make([]HealthSnapshot, 0)
	for rows.Next() {
		var (
			snap     HealthSnapshot
			avg, dev *string
		)
		if err := rows.Scan(
			&snap.ID,
			&snap.Bucket,
			&snap.OverallStatus,
			&avg,
			&dev,
			&snap.IsConsistent,
			&snap.HealthyChains,
			&snap.TotalChains,
			&snap.Alerts,
			&snap.CreatedAt,
		); err != nil {
			return nil, err
		}

		var err error
		if snap.AveragePrice, err = parseDecimal(avg); err != nil {
			return nil, fmt.Errorf("parse average price: %w", err)
		}
		if snap.MaxDeviationPct, err = parseDecimal(dev); err != nil {
			return nil, fmt.Errorf("parse deviation pct: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
