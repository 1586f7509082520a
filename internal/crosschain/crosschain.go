// Package crosschain inspects LayerZero sends and estimates messaging fees.
package crosschain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/contract"
)

// ErrTxNotFound is returned when the source chain has no receipt for a hash.
var ErrTxNotFound = errors.New("Transaction not found")

// Payload sizes are priced in 32-byte words, at least one.
const wordSize = 32

var (
	defaultBaseFee = decimal.RequireFromString("0.001")
	baseFees       = map[string]decimal.Decimal{
		"ethereum":  decimal.RequireFromString("0.005"),
		"arbitrum":  decimal.RequireFromString("0.0001"),
		"base":      decimal.RequireFromString("0.0001"),
		"sonic":     decimal.RequireFromString("0.001"),
		"avalanche": decimal.RequireFromString("0.01"),
	}
	nativeUSDRate = decimal.NewFromInt(2500)
)

// Event is a log that looks like a LayerZero packet.
type Event struct {
	Topic   string `json:"topic"`
	Data    string `json:"data"`
	Address string `json:"address"`
}

// MessageStatus answers check_layerzero_status.
type MessageStatus struct {
	TxHash          string  `json:"tx_hash"`
	Chain           string  `json:"chain"`
	Status          string  `json:"status"`
	BlockNumber     uint64  `json:"block_number"`
	GasUsed         uint64  `json:"gas_used"`
	LayerZeroEvents []Event `json:"layerzero_events"`
	LogsCount       int     `json:"logs_count"`
}

// FeeAmount is a fee in source native token and a rough USD equivalent.
type FeeAmount struct {
	NativeToken decimal.Decimal `json:"native_token"`
	USDEstimate decimal.Decimal `json:"usd_estimate"`
}

// FeeEstimate answers estimate_layerzero_fee.
type FeeEstimate struct {
	SourceChain      string    `json:"source_chain"`
	DestChain        string    `json:"dest_chain"`
	DestEID          *uint32   `json:"dest_eid"`
	EstimatedFee     FeeAmount `json:"estimated_fee"`
	PayloadSizeBytes int       `json:"payload_size_bytes"`
	Note             string    `json:"note"`
}

// Service answers LayerZero queries.
type Service struct {
	client *contract.Client
	logger zerolog.Logger
}

// NewService builds the LayerZero service.
func NewService(client *contract.Client, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger.With().Str("component", "layerzero").Logger()}
}

// Status inspects the receipt of txHash on chainID.
func (s *Service) Status(ctx context.Context, txHash, chainID string) (MessageStatus, error) {
	raw := strings.TrimSpace(txHash)
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		return MessageStatus{}, fmt.Errorf("invalid transaction hash %q", txHash)
	}
	hash := common.HexToHash(raw)

	receipt, err := s.client.TransactionReceipt(ctx, chainID, hash)
	if err != nil {
		return MessageStatus{}, err
	}
	if receipt == nil {
		return MessageStatus{}, ErrTxNotFound
	}

	ch, err := s.client.Registry().Chain(chainID)
	if err != nil {
		return MessageStatus{}, err
	}

	st := MessageStatus{
		TxHash:          hash.Hex(),
		Chain:           chainID,
		Status:          "failed",
		GasUsed:         receipt.GasUsed,
		LayerZeroEvents: layerZeroEvents(receipt.Logs, ch),
		LogsCount:       len(receipt.Logs),
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		st.Status = "confirmed"
	}
	if receipt.BlockNumber != nil {
		st.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return st, nil
}

// layerZeroEvents keeps logs emitted by the chain's LayerZero endpoint, plus
// any log carrying more than two words of data.
func layerZeroEvents(logs []*types.Log, ch chain.Chain) []Event {
	var endpoint common.Address
	hasEndpoint := common.IsHexAddress(ch.LayerZeroEndpoint)
	if hasEndpoint {
		endpoint = common.HexToAddress(ch.LayerZeroEndpoint)
	}

	events := []Event{}
	for _, l := range logs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		if (hasEndpoint && l.Address == endpoint) || len(l.Data) > 2*wordSize {
			events = append(events, Event{
				Topic:   l.Topics[0].Hex(),
				Data:    hexutil.Encode(l.Data),
				Address: l.Address.Hex(),
			})
		}
	}
	return events
}

// EstimateFee approximates a LayerZero V2 send fee from a static table.
func (s *Service) EstimateFee(source, dest string, payloadSize int) (FeeEstimate, error) {
	if payloadSize < 0 {
		return FeeEstimate{}, fmt.Errorf("payload size must not be negative: %d", payloadSize)
	}
	return EstimateFee(s.client.Registry(), source, dest, payloadSize), nil
}

// EstimateFee computes the fee for source→dest. Unknown chains use the
// default base fee and a nil destination EID.
func EstimateFee(reg *chain.Registry, source, dest string, payloadSize int) FeeEstimate {
	base, ok := baseFees[strings.ToLower(source)]
	if !ok {
		base = defaultBaseFee
	}

	multiplier := decimal.NewFromInt(int64(payloadSize)).Div(decimal.NewFromInt(wordSize))
	if multiplier.LessThan(decimal.NewFromInt(1)) {
		multiplier = decimal.NewFromInt(1)
	}
	fee := base.Mul(multiplier)

	est := FeeEstimate{
		SourceChain:      source,
		DestChain:        dest,
		EstimatedFee:     FeeAmount{NativeToken: fee, USDEstimate: fee.Mul(nativeUSDRate)},
		PayloadSizeBytes: payloadSize,
		Note:             "Estimate only - use actual LayerZero quote for production",
	}
	if ch, err := reg.Chain(dest); err == nil && ch.EID != 0 {
		eid := ch.EID
		est.DestEID = &eid
	}
	return est
}
