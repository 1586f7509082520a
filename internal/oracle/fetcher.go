// Package oracle reads DRAGON prices from the oracle network and grades its health.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/contract"
)

// Observation is one oracle reading.
type Observation struct {
	Chain     string          `json:"chain"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	IsValid   bool            `json:"is_valid"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
}

// Fetcher retrieves the current price observation for a chain.
type Fetcher interface {
	FetchPrice(ctx context.Context, chainID string) (Observation, error)
}

// ContractFetcher reads getAggregatedPrice from the primary oracle or the
// secondary oracle deployed on each other chain.
type ContractFetcher struct {
	client *contract.Client
	logger zerolog.Logger
}

// NewContractFetcher builds a fetcher over client.
func NewContractFetcher(client *contract.Client, logger zerolog.Logger) *ContractFetcher {
	return &ContractFetcher{client: client, logger: logger.With().Str("component", "oracle_fetcher").Logger()}
}

// FetchPrice retrieves the aggregated DRAGON/USD price on chainID.
func (f *ContractFetcher) FetchPrice(ctx context.Context, chainID string) (Observation, error) {
	binding, err := f.client.Oracle(ctx, chainID)
	if err != nil {
		return Observation{}, err
	}

	raw, err := binding.GetAggregatedPrice(ctx)
	if err != nil {
		return Observation{}, err
	}
	if raw.Price == nil {
		return Observation{}, errors.New("oracle returned empty price")
	}

	obs := Observation{
		Chain:     chainID,
		PriceUSD:  decimal.NewFromBigInt(raw.Price, -chain.PriceDecimals),
		IsValid:   raw.Valid,
		Timestamp: int64(raw.Timestamp),
		Source:    sourceFor(f.client.Registry(), chainID),
	}

	f.logger.Debug().Str("chain", chainID).
		Str("price", obs.PriceUSD.String()).
		Bool("valid", obs.IsValid).
		Msg("oracle price fetched")
	return obs, nil
}

func sourceFor(reg *chain.Registry, chainID string) string {
	if reg.IsPrimary(chainID) {
		return "primary_oracle"
	}
	return fmt.Sprintf("secondary_oracle_%s", chainID)
}

var _ Fetcher = (*ContractFetcher)(nil)

// StaticFetcher serves fixed observations, used for dry runs and alert simulation.
type StaticFetcher struct {
	Observations map[string]Observation
	Errors       map[string]error
}

// FetchPrice returns the configured observation or error for chainID.
func (s StaticFetcher) FetchPrice(_ context.Context, chainID string) (Observation, error) {
	if err, ok := s.Errors[chainID]; ok {
		return Observation{}, err
	}
	obs, ok := s.Observations[chainID]
	if !ok {
		return Observation{}, fmt.Errorf("no price for %s", chainID)
	}
	obs.Chain = chainID
	return obs, nil
}
