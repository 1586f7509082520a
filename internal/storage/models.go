package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HealthSnapshot is one persisted oracle health report.
type HealthSnapshot struct {
	ID              uuid.UUID
	Bucket          time.Time
	OverallStatus   string
	AveragePrice    *decimal.Decimal
	MaxDeviationPct *decimal.Decimal
	IsConsistent    *bool
	HealthyChains   int
	TotalChains     int
	Alerts          []string
	CreatedAt       time.Time
}

// ChainObservation is the per-chain row of a snapshot.
type ChainObservation struct {
	SnapshotID uuid.UUID
	Chain      string
	Status     string
	PriceUSD   *decimal.Decimal
	IsValid    bool
	Source     string
	ObservedAt *int64
	Error      *string
}

// AlertRecord captures an emitted alert for cooldown and auditing.
type AlertRecord struct {
	ID            int64
	SnapshotID    uuid.UUID
	OverallStatus string
	Messages      []string
	Channels      []string
	CreatedAt     time.Time
}
