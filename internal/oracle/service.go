package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/contract"
)

// PriceData is the observation part of a price report. Error is set instead
// of the price fields when the oracle could not be read.
type PriceData struct {
	PriceUSD  *decimal.Decimal `json:"price_usd,omitempty"`
	IsValid   bool             `json:"is_valid"`
	Timestamp int64            `json:"timestamp,omitempty"`
	Source    string           `json:"source,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// NativePrice is the gas token price published by the primary oracle.
type NativePrice struct {
	PriceUSD  decimal.Decimal `json:"price_usd"`
	IsValid   bool            `json:"is_valid"`
	Timestamp int64           `json:"timestamp"`
}

// PriceReport answers get_dragon_price.
type PriceReport struct {
	Chain        string       `json:"chain"`
	Timestamp    int64        `json:"timestamp"`
	PriceData    PriceData    `json:"price_data"`
	NativeToken  *NativePrice `json:"native_token,omitempty"`
	BlockNumber  uint64       `json:"block_number,omitempty"`
	HealthStatus Status       `json:"health_status"`
}

// UpdateResult answers update_oracle_price.
type UpdateResult struct {
	Success      bool        `json:"success"`
	Chain        string      `json:"chain"`
	TxHash       string      `json:"tx_hash"`
	GasUsed      uint64      `json:"gas_used"`
	BlockNumber  uint64      `json:"block_number"`
	UpdatedPrice PriceReport `json:"updated_price"`
}

// Options tune the oracle service.
type Options struct {
	HealthChains          []string
	DeviationThresholdPct float64
}

// Service groups the oracle operations.
type Service struct {
	client     *contract.Client
	fetcher    Fetcher
	aggregator *Aggregator
	chains     []string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService wires the contract fetcher and the health aggregator.
func NewService(client *contract.Client, opts Options, logger zerolog.Logger) *Service {
	fetcher := NewContractFetcher(client, logger)
	return &Service{
		client:     client,
		fetcher:    fetcher,
		aggregator: NewAggregator(fetcher, opts.DeviationThresholdPct, logger),
		chains:     append([]string(nil), opts.HealthChains...),
		logger:     logger.With().Str("component", "oracle_service").Logger(),
		now:        time.Now,
	}
}

// Aggregator exposes the health aggregator used by Health.
func (s *Service) Aggregator() *Aggregator {
	return s.aggregator
}

// HealthChains returns the chains polled by Health.
func (s *Service) HealthChains() []string {
	return append([]string(nil), s.chains...)
}

// Health runs the cross-chain check over the configured chains.
func (s *Service) Health(ctx context.Context) HealthReport {
	return s.aggregator.Check(ctx, s.chains)
}

// Price reads the DRAGON price on chainID. Read failures are reported in the
// result, never as an error.
func (s *Service) Price(ctx context.Context, chainID string) PriceReport {
	report := PriceReport{Chain: chainID, Timestamp: s.now().Unix()}

	obs, err := s.fetcher.FetchPrice(ctx, chainID)
	if err != nil {
		report.PriceData = PriceData{Error: err.Error()}
		report.HealthStatus = StatusError
		return report
	}

	price := obs.PriceUSD
	report.PriceData = PriceData{
		PriceUSD:  &price,
		IsValid:   obs.IsValid,
		Timestamp: obs.Timestamp,
		Source:    obs.Source,
	}
	if obs.IsValid {
		report.HealthStatus = StatusHealthy
	} else {
		report.HealthStatus = StatusInvalidPrice
	}

	if s.client.Registry().IsPrimary(chainID) {
		report.NativeToken = s.nativePrice(ctx, chainID)
	}
	if height, err := s.client.BlockNumber(ctx, chainID); err == nil {
		report.BlockNumber = height
	}
	return report
}

func (s *Service) nativePrice(ctx context.Context, chainID string) *NativePrice {
	binding, err := s.client.Oracle(ctx, chainID)
	if err != nil {
		return nil
	}
	raw, err := binding.GetNativeTokenPrice(ctx)
	if err != nil || raw.Price == nil {
		s.logger.Debug().Err(err).Str("chain", chainID).Msg("native token price unavailable")
		return nil
	}
	return &NativePrice{
		PriceUSD:  decimal.NewFromBigInt(raw.Price, -chain.NativePriceDecimals),
		IsValid:   raw.Valid,
		Timestamp: int64(raw.Timestamp),
	}
}

// UpdatePrice triggers updatePrice() on chainID and re-reads the price once mined.
func (s *Service) UpdatePrice(ctx context.Context, chainID string) (UpdateResult, error) {
	if !s.client.CanSign() {
		return UpdateResult{}, contract.ErrNoSigner
	}
	binding, err := s.client.Oracle(ctx, chainID)
	if err != nil {
		return UpdateResult{}, err
	}

	tx, err := binding.UpdatePrice(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to update oracle price: %w", err)
	}

	s.logger.Info().Str("chain", chainID).
		Str("tx_hash", tx.Hash.Hex()).
		Uint64("gas_used", tx.GasUsed).
		Msg("oracle price updated")

	return UpdateResult{
		Success:      tx.Status == 1,
		Chain:        chainID,
		TxHash:       tx.Hash.Hex(),
		GasUsed:      tx.GasUsed,
		BlockNumber:  tx.BlockNumber,
		UpdatedPrice: s.Price(ctx, chainID),
	}, nil
}
