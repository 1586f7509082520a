package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dragon-mcp/internal/chain"
)

// AggregatedPrice is the raw oracle answer.
type AggregatedPrice struct {
	Price     *big.Int
	Valid     bool
	Timestamp uint64
}

// Fees mirrors IOmniDRAGON.Fees, in basis points.
type Fees struct {
	Jackpot  uint16
	VeDRAGON uint16
	Burn     uint16
	Total    uint16
}

// LotteryConfig mirrors getInstantLotteryConfig.
type LotteryConfig struct {
	IsActive     bool
	MinEntry     *big.Int
	MaxWinChance *big.Int
	BaseReward   *big.Int
}

// Token binds the omniDRAGON token.
type Token struct{ *bound }

// Oracle binds a primary or secondary price oracle.
type Oracle struct{ *bound }

// Lottery binds the lottery manager.
type Lottery struct{ *bound }

// Jackpot binds the jackpot vault.
type Jackpot struct{ *bound }

// Token returns the token binding on chainID.
func (c *Client) Token(ctx context.Context, chainID string) (*Token, error) {
	b, err := c.bind(ctx, chainID, chain.RoleToken)
	if err != nil {
		return nil, err
	}
	return &Token{b}, nil
}

// Oracle returns the oracle binding on chainID.
func (c *Client) Oracle(ctx context.Context, chainID string) (*Oracle, error) {
	b, err := c.bind(ctx, chainID, chain.RoleOracle)
	if err != nil {
		return nil, err
	}
	return &Oracle{b}, nil
}

// Lottery returns the lottery manager binding on chainID.
func (c *Client) Lottery(ctx context.Context, chainID string) (*Lottery, error) {
	b, err := c.bind(ctx, chainID, chain.RoleLottery)
	if err != nil {
		return nil, err
	}
	return &Lottery{b}, nil
}

// Jackpot returns the jackpot vault binding on chainID.
func (c *Client) Jackpot(ctx context.Context, chainID string) (*Jackpot, error) {
	b, err := c.bind(ctx, chainID, chain.RoleJackpot)
	if err != nil {
		return nil, err
	}
	return &Jackpot{b}, nil
}

// TotalSupply returns the raw token supply.
func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := t.call(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}
	return t.bigAt(out, 0, "totalSupply")
}

// BalanceOf returns the raw balance of account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return t.bigAt(out, 0, "balanceOf")
}

// GetFees returns the buy and sell fee structures.
func (t *Token) GetFees(ctx context.Context) (Fees, Fees, error) {
	out, err := t.call(ctx, "getFees")
	if err != nil {
		return Fees{}, Fees{}, err
	}
	if len(out) != 2 {
		return Fees{}, Fees{}, t.decodeErr("getFees", len(out))
	}
	buy := *abi.ConvertType(out[0], new(Fees)).(*Fees)
	sell := *abi.ConvertType(out[1], new(Fees)).(*Fees)
	return buy, sell, nil
}

// GetAggregatedPrice reads the multi-source (primary) or relayed (secondary) price.
func (o *Oracle) GetAggregatedPrice(ctx context.Context) (AggregatedPrice, error) {
	return o.priceTriple(ctx, "getAggregatedPrice")
}

// GetNativeTokenPrice reads the native gas token price, 8 decimals.
func (o *Oracle) GetNativeTokenPrice(ctx context.Context) (AggregatedPrice, error) {
	return o.priceTriple(ctx, "getNativeTokenPrice")
}

// UpdatePrice asks the oracle to refresh its price.
func (o *Oracle) UpdatePrice(ctx context.Context) (TxResult, error) {
	return o.transact(ctx, "updatePrice")
}

func (o *Oracle) priceTriple(ctx context.Context, method string) (AggregatedPrice, error) {
	out, err := o.call(ctx, method)
	if err != nil {
		return AggregatedPrice{}, err
	}
	if len(out) != 3 {
		return AggregatedPrice{}, o.decodeErr(method, len(out))
	}
	price, ok1 := out[0].(*big.Int)
	valid, ok2 := out[1].(bool)
	ts, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return AggregatedPrice{}, &CallError{Kind: KindContract, Chain: o.chain.ID, Method: method, Err: fmt.Errorf("failed to decode %s output", method)}
	}
	return AggregatedPrice{Price: price, Valid: valid, Timestamp: toUint64(ts)}, nil
}

// CalculateWinProbability returns whether user has a chance and the chance in PPM.
func (l *Lottery) CalculateWinProbability(ctx context.Context, user common.Address, usdAmount *big.Int) (bool, *big.Int, error) {
	out, err := l.call(ctx, "calculateWinProbability", user, usdAmount)
	if err != nil {
		return false, nil, err
	}
	if len(out) != 2 {
		return false, nil, l.decodeErr("calculateWinProbability", len(out))
	}
	hasChance, ok1 := out[0].(bool)
	ppm, ok2 := out[1].(*big.Int)
	if !ok1 || !ok2 {
		return false, nil, &CallError{Kind: KindContract, Chain: l.chain.ID, Method: "calculateWinProbability", Err: fmt.Errorf("failed to decode output")}
	}
	return hasChance, ppm, nil
}

// GetInstantLotteryConfig reads the lottery parameters.
func (l *Lottery) GetInstantLotteryConfig(ctx context.Context) (LotteryConfig, error) {
	out, err := l.call(ctx, "getInstantLotteryConfig")
	if err != nil {
		return LotteryConfig{}, err
	}
	if len(out) != 4 {
		return LotteryConfig{}, l.decodeErr("getInstantLotteryConfig", len(out))
	}
	active, ok := out[0].(bool)
	if !ok {
		return LotteryConfig{}, l.decodeErr("getInstantLotteryConfig", len(out))
	}
	cfg := LotteryConfig{IsActive: active}
	if cfg.MinEntry, err = l.bigAt(out, 1, "getInstantLotteryConfig"); err != nil {
		return LotteryConfig{}, err
	}
	if cfg.MaxWinChance, err = l.bigAt(out, 2, "getInstantLotteryConfig"); err != nil {
		return LotteryConfig{}, err
	}
	if cfg.BaseReward, err = l.bigAt(out, 3, "getInstantLotteryConfig"); err != nil {
		return LotteryConfig{}, err
	}
	return cfg, nil
}

// SimulateEntry runs processEntryWithDragon through eth_call.
func (l *Lottery) SimulateEntry(ctx context.Context, user common.Address, dragonAmount *big.Int) error {
	return l.simulate(ctx, "processEntryWithDragon", user, dragonAmount)
}

// ProcessEntryWithDragon sends the entry transaction.
func (l *Lottery) ProcessEntryWithDragon(ctx context.Context, user common.Address, dragonAmount *big.Int) (TxResult, error) {
	return l.transact(ctx, "processEntryWithDragon", user, dragonAmount)
}

// JackpotBalances returns the vault balance held in token.
func (j *Jackpot) JackpotBalances(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := j.call(ctx, "jackpotBalances", token)
	if err != nil {
		return nil, err
	}
	return j.bigAt(out, 0, "jackpotBalances")
}

// TransactionReceipt fetches the receipt of hash on chainID. A nil receipt
// with nil error means the transaction is unknown or still pending.
func (c *Client) TransactionReceipt(ctx context.Context, chainID string, hash common.Hash) (*types.Receipt, error) {
	backend, ch, err := c.Backend(ctx, chainID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	receipt, err := backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		b := &bound{client: c, chain: ch}
		return nil, b.classify("eth_getTransactionReceipt", err)
	}
	return receipt, nil
}

// BlockNumber returns the latest block height on chainID.
func (c *Client) BlockNumber(ctx context.Context, chainID string) (uint64, error) {
	backend, ch, err := c.Backend(ctx, chainID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	height, err := backend.BlockNumber(ctx)
	if err != nil {
		b := &bound{client: c, chain: ch}
		return 0, b.classify("eth_blockNumber", err)
	}
	return height, nil
}

func (b *bound) bigAt(out []interface{}, idx int, method string) (*big.Int, error) {
	if len(out) <= idx {
		return nil, b.decodeErr(method, len(out))
	}
	v, ok := out[idx].(*big.Int)
	if !ok {
		return nil, &CallError{Kind: KindContract, Chain: b.chain.ID, Method: method, Err: fmt.Errorf("output %d is %T, want *big.Int", idx, out[idx])}
	}
	return v, nil
}

func (b *bound) decodeErr(method string, got int) error {
	return &CallError{Kind: KindContract, Chain: b.chain.ID, Method: method, Err: fmt.Errorf("unexpected %s response: %d outputs", method, got)}
}
