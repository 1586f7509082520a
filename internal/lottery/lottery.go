// Package lottery simulates instant lottery odds and inspects lottery state.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/contract"
)

// DefaultSimulationUser is the placeholder account used for probability queries.
const DefaultSimulationUser = "0x1234567890123456789012345678901234567890"

// ErrNegativeAmount rejects USD amounts the contract's uint256 cannot hold.
var ErrNegativeAmount = errors.New("usd_amount must not be negative")

var (
	ppmPerPercent   = decimal.NewFromInt(10000)
	hundred         = decimal.NewFromInt(100)
	profitableRatio = decimal.RequireFromString("0.001")
)

// Simulation holds the computed odds.
type Simulation struct {
	HasWinChance      bool            `json:"has_win_chance"`
	WinProbabilityPPM decimal.Decimal `json:"win_probability_ppm"`
	WinPercentage     decimal.Decimal `json:"win_percentage"`
	ExpectedValueUSD  decimal.Decimal `json:"expected_value_usd"`
	IsProfitable      bool            `json:"is_profitable"`
}

// Info carries the lottery parameters the simulation was measured against.
type Info struct {
	MinThresholdMet bool            `json:"min_threshold_met"`
	BaseRewardUSD   decimal.Decimal `json:"base_reward_usd"`
}

// SimulationResult answers simulate_lottery.
type SimulationResult struct {
	USDAmount   decimal.Decimal `json:"usd_amount"`
	Chain       string          `json:"chain"`
	Simulation  Simulation      `json:"simulation"`
	LotteryInfo Info            `json:"lottery_info"`
}

// Config is the decoded getInstantLotteryConfig answer.
type Config struct {
	IsActive        bool            `json:"is_active"`
	MinEntryUSD     decimal.Decimal `json:"min_entry_usd"`
	MaxWinChancePPM decimal.Decimal `json:"max_win_chance_ppm"`
	BaseRewardUSD   decimal.Decimal `json:"base_reward_usd"`
}

// JackpotInfo is the vault balance held in wrapped native token.
type JackpotInfo struct {
	BalanceNative *decimal.Decimal `json:"balance_native,omitempty"`
	BalanceDragon *decimal.Decimal `json:"balance_dragon,omitempty"`
	BalanceUSD    *decimal.Decimal `json:"balance_usd"`
	Vault         string           `json:"vault,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// FeeInfo is the token fee split in basis points.
type FeeInfo struct {
	Jackpot  uint16 `json:"jackpot"`
	VeDRAGON uint16 `json:"vedragon"`
	Burn     uint16 `json:"burn"`
	Total    uint16 `json:"total"`
}

// TokenInfo describes the DRAGON token on a chain.
type TokenInfo struct {
	TotalSupply     decimal.Decimal `json:"total_supply"`
	ContractAddress string          `json:"contract_address"`
	BuyFees         *FeeInfo        `json:"buy_fees,omitempty"`
	SellFees        *FeeInfo        `json:"sell_fees,omitempty"`
}

// Stats answers get_lottery_stats.
type Stats struct {
	Chain         string      `json:"chain"`
	LotteryConfig Config      `json:"lottery_config"`
	Jackpot       JackpotInfo `json:"jackpot"`
	DragonToken   TokenInfo   `json:"dragon_token"`
	Timestamp     int64       `json:"timestamp"`
}

// EntryResult answers test_lottery_entry. A failed simulation is a result,
// not an error, and nothing is sent.
type EntryResult struct {
	Success            bool            `json:"success"`
	SimulationFailed   bool            `json:"simulation_failed,omitempty"`
	TransactionNotSent bool            `json:"transaction_not_sent,omitempty"`
	Error              string          `json:"error,omitempty"`
	TxHash             string          `json:"tx_hash,omitempty"`
	GasUsed            uint64          `json:"gas_used,omitempty"`
	BlockNumber        uint64          `json:"block_number,omitempty"`
	Chain              string          `json:"chain"`
	UserAddress        string          `json:"user_address"`
	DragonAmount       decimal.Decimal `json:"dragon_amount"`
}

// Service reads lottery contracts through the contract client.
type Service struct {
	client *contract.Client
	user   common.Address
	logger zerolog.Logger
	now    func() time.Time
}

// NewService builds a lottery service. An empty or invalid simulationUser
// falls back to DefaultSimulationUser.
func NewService(client *contract.Client, simulationUser string, logger zerolog.Logger) *Service {
	if !common.IsHexAddress(simulationUser) {
		simulationUser = DefaultSimulationUser
	}
	return &Service{
		client: client,
		user:   common.HexToAddress(simulationUser),
		logger: logger.With().Str("component", "lottery").Logger(),
		now:    time.Now,
	}
}

// Simulate queries the win probability for usdAmount and derives the expected
// value. A zero amount is forwarded as is; a negative one returns
// ErrNegativeAmount without touching the chain.
func (s *Service) Simulate(ctx context.Context, usdAmount decimal.Decimal, chainID string) (SimulationResult, error) {
	if usdAmount.Sign() < 0 {
		return SimulationResult{}, fmt.Errorf("simulate %s on %s: %w", usdAmount, chainID, ErrNegativeAmount)
	}
	binding, err := s.client.Lottery(ctx, chainID)
	if err != nil {
		return SimulationResult{}, err
	}

	scaled := usdAmount.Shift(chain.USDDecimals).Truncate(0).BigInt()
	hasChance, ppmRaw, err := binding.CalculateWinProbability(ctx, s.user, scaled)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("failed to simulate lottery: %w", err)
	}

	cfg, err := s.config(ctx, binding)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("failed to read lottery config: %w", err)
	}

	ppm := decimal.NewFromBigInt(ppmRaw, 0)
	winPct := ppm.Div(ppmPerPercent)
	expected := winPct.Div(hundred).Mul(cfg.BaseRewardUSD)

	res := SimulationResult{
		USDAmount: usdAmount,
		Chain:     chainID,
		Simulation: Simulation{
			HasWinChance:      hasChance,
			WinProbabilityPPM: ppm,
			WinPercentage:     winPct,
			ExpectedValueUSD:  expected,
			IsProfitable:      expected.GreaterThan(usdAmount.Mul(profitableRatio)),
		},
		LotteryInfo: Info{
			MinThresholdMet: usdAmount.GreaterThanOrEqual(cfg.MinEntryUSD),
			BaseRewardUSD:   cfg.BaseRewardUSD,
		},
	}

	s.logger.Debug().Str("chain", chainID).
		Str("usd", usdAmount.String()).
		Str("ppm", ppm.String()).
		Msg("lottery simulated")
	return res, nil
}

// Stats reads the lottery configuration, jackpot and token supply on chainID.
// Jackpot and fee reads are best effort.
func (s *Service) Stats(ctx context.Context, chainID string) (Stats, error) {
	binding, err := s.client.Lottery(ctx, chainID)
	if err != nil {
		return Stats{}, err
	}
	cfg, err := s.config(ctx, binding)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get lottery stats: %w", err)
	}

	token, err := s.client.Token(ctx, chainID)
	if err != nil {
		return Stats{}, err
	}
	supply, err := token.TotalSupply(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get lottery stats: %w", err)
	}

	stats := Stats{
		Chain:         chainID,
		LotteryConfig: cfg,
		DragonToken: TokenInfo{
			TotalSupply:     decimal.NewFromBigInt(supply, -chain.DragonDecimals),
			ContractAddress: token.Address().Hex(),
		},
		Timestamp: s.now().Unix(),
	}

	if buy, sell, err := token.GetFees(ctx); err == nil {
		stats.DragonToken.BuyFees = feeInfo(buy)
		stats.DragonToken.SellFees = feeInfo(sell)
	} else {
		s.logger.Debug().Err(err).Str("chain", chainID).Msg("token fees unavailable")
	}

	stats.Jackpot = s.jackpot(ctx, chainID, token)
	return stats, nil
}

func (s *Service) jackpot(ctx context.Context, chainID string, token *contract.Token) JackpotInfo {
	vault, err := s.client.Jackpot(ctx, chainID)
	if err != nil {
		return JackpotInfo{Error: err.Error()}
	}
	info := JackpotInfo{Vault: vault.Address().Hex()}

	ch, err := s.client.Registry().Chain(chainID)
	if err != nil || !common.IsHexAddress(ch.WrappedNative) {
		info.Error = "wrapped native token not configured"
		return info
	}

	raw, err := vault.JackpotBalances(ctx, common.HexToAddress(ch.WrappedNative))
	if err != nil {
		info.Error = err.Error()
		return info
	}
	native := decimal.NewFromBigInt(raw, -chain.DragonDecimals)
	info.BalanceNative = &native

	if held, err := token.BalanceOf(ctx, vault.Address()); err == nil {
		dragon := decimal.NewFromBigInt(held, -chain.DragonDecimals)
		info.BalanceDragon = &dragon
	}
	return info
}

// TestEntry simulates processEntryWithDragon and sends it when the
// simulation succeeds.
func (s *Service) TestEntry(ctx context.Context, chainID, user string, dragonAmount decimal.Decimal) (EntryResult, error) {
	if !s.client.CanSign() {
		return EntryResult{}, contract.ErrNoSigner
	}
	if !common.IsHexAddress(user) {
		return EntryResult{}, fmt.Errorf("invalid user address %q", user)
	}
	binding, err := s.client.Lottery(ctx, chainID)
	if err != nil {
		return EntryResult{}, err
	}

	res := EntryResult{Chain: chainID, UserAddress: user, DragonAmount: dragonAmount}
	account := common.HexToAddress(user)
	amount := dragonAmount.Shift(chain.DragonDecimals).Truncate(0).BigInt()

	if err := binding.SimulateEntry(ctx, account, amount); err != nil {
		if errors.Is(err, contract.ErrNoSigner) {
			return EntryResult{}, err
		}
		s.logger.Info().Err(err).Str("chain", chainID).Msg("lottery entry simulation failed")
		res.SimulationFailed = true
		res.TransactionNotSent = true
		res.Error = err.Error()
		return res, nil
	}

	tx, err := binding.ProcessEntryWithDragon(ctx, account, amount)
	if err != nil {
		return EntryResult{}, fmt.Errorf("failed to process lottery entry: %w", err)
	}
	res.Success = tx.Status == 1
	res.TxHash = tx.Hash.Hex()
	res.GasUsed = tx.GasUsed
	res.BlockNumber = tx.BlockNumber
	return res, nil
}

func (s *Service) config(ctx context.Context, binding *contract.Lottery) (Config, error) {
	raw, err := binding.GetInstantLotteryConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	return Config{
		IsActive:        raw.IsActive,
		MinEntryUSD:     decimal.NewFromBigInt(raw.MinEntry, -chain.USDDecimals),
		MaxWinChancePPM: decimal.NewFromBigInt(raw.MaxWinChance, 0),
		BaseRewardUSD:   decimal.NewFromBigInt(raw.BaseReward, -chain.USDDecimals),
	}, nil
}

func feeInfo(f contract.Fees) *FeeInfo {
	return &FeeInfo{Jackpot: f.Jackpot, VeDRAGON: f.VeDRAGON, Burn: f.Burn, Total: f.Total}
}
