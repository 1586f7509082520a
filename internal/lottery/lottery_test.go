package lottery_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/contract"
	"dragon-mcp/internal/contract/contracttest"
	"dragon-mcp/internal/lottery"
)

type fees struct {
	Jackpot  uint16
	VeDRAGON uint16
	Burn     uint16
	Total    uint16
}

func usd(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000))
}

func dragon(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func lotteryBackend(ppm, baseReward int64) *contracttest.Backend {
	b := contracttest.NewBackend()
	b.Return("calculateWinProbability", true, big.NewInt(ppm))
	b.Return("getInstantLotteryConfig", true, usd(10), big.NewInt(100000), usd(baseReward))
	return b
}

func newService(t *testing.T, b *contracttest.Backend, key string) *lottery.Service {
	t.Helper()
	client, err := contracttest.NewClient(contracttest.Config(), map[string]*contracttest.Backend{"sonic": b}, key)
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}
	return lottery.NewService(client, "", zerolog.Nop())
}

func TestSimulateWinPercentage(t *testing.T) {
	svc := newService(t, lotteryBackend(500, 1000), "")
	res, err := svc.Simulate(context.Background(), decimal.NewFromInt(1000), "sonic")
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if res.Simulation.WinPercentage.String() != "0.05" {
		t.Fatalf("中奖百分比应为 0.05, got %s", res.Simulation.WinPercentage)
	}
	if res.Simulation.ExpectedValueUSD.String() != "0.5" {
		t.Fatalf("期望值应为 0.5, got %s", res.Simulation.ExpectedValueUSD)
	}
	if res.Simulation.IsProfitable {
		t.Fatal("期望值 0.5 不应超过 1000 的 0.1%")
	}
	if !res.LotteryInfo.MinThresholdMet || !res.Simulation.HasWinChance {
		t.Fatalf("门槛与中奖机会判断不正确: %+v", res)
	}
}

func TestSimulateExpectedValueLinearInBaseReward(t *testing.T) {
	one, err := newService(t, lotteryBackend(500, 1000), "").Simulate(context.Background(), decimal.NewFromInt(1000), "sonic")
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	four, err := newService(t, lotteryBackend(500, 4000), "").Simulate(context.Background(), decimal.NewFromInt(1000), "sonic")
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if !four.Simulation.ExpectedValueUSD.Equal(one.Simulation.ExpectedValueUSD.Mul(decimal.NewFromInt(4))) {
		t.Fatalf("期望值应与基础奖励成正比: %s vs %s", one.Simulation.ExpectedValueUSD, four.Simulation.ExpectedValueUSD)
	}
	if !four.Simulation.IsProfitable {
		t.Fatal("期望值 2 超过 1 时应盈利")
	}
}

func TestSimulateBelowMinimum(t *testing.T) {
	svc := newService(t, lotteryBackend(0, 1000), "")
	res, err := svc.Simulate(context.Background(), decimal.RequireFromString("5.5"), "sonic")
	if err != nil {
		t.Fatalf("模拟失败: %v", err)
	}
	if res.LotteryInfo.MinThresholdMet {
		t.Fatal("低于最小金额时不应满足门槛")
	}
}

func TestSimulateZeroAmount(t *testing.T) {
	b := lotteryBackend(0, 1000)
	res, err := newService(t, b, "").Simulate(context.Background(), decimal.Zero, "sonic")
	if err != nil {
		t.Fatalf("零金额应返回结果: %v", err)
	}
	if res.LotteryInfo.MinThresholdMet || res.Simulation.IsProfitable {
		t.Fatalf("零金额结果不正确: %+v", res)
	}
	if b.Called("calculateWinProbability") != 1 {
		t.Fatal("零金额应调用合约")
	}
}

func TestSimulateNegativeAmount(t *testing.T) {
	b := lotteryBackend(500, 1000)
	_, err := newService(t, b, "").Simulate(context.Background(), decimal.NewFromInt(-5), "sonic")
	if !errors.Is(err, lottery.ErrNegativeAmount) {
		t.Fatalf("负金额应返回 ErrNegativeAmount, got %v", err)
	}
	if b.Called("calculateWinProbability") != 0 {
		t.Fatal("负金额不应调用合约")
	}
}

func TestSimulateConfigFailurePropagates(t *testing.T) {
	b := contracttest.NewBackend()
	b.Return("calculateWinProbability", true, big.NewInt(500))
	b.Fail("getInstantLotteryConfig", contracttest.RPCError{Code: 3, Message: "execution reverted"})

	_, err := newService(t, b, "").Simulate(context.Background(), decimal.NewFromInt(1000), "sonic")
	var callErr *contract.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("配置读取失败应返回合约错误, got %v", err)
	}
}

func TestStats(t *testing.T) {
	b := lotteryBackend(500, 1000)
	b.Return("totalSupply", dragon(6_942_000))
	b.Return("getFees", fees{690, 241, 69, 1000}, fees{690, 241, 69, 1000})
	b.Return("jackpotBalances", dragon(3))
	b.Return("balanceOf", dragon(120))

	stats, err := newService(t, b, "").Stats(context.Background(), "sonic")
	if err != nil {
		t.Fatalf("读取统计失败: %v", err)
	}
	if stats.DragonToken.TotalSupply.String() != "6942000" {
		t.Fatalf("总供应量不正确: %s", stats.DragonToken.TotalSupply)
	}
	if stats.LotteryConfig.MinEntryUSD.String() != "10" || stats.LotteryConfig.BaseRewardUSD.String() != "1000" {
		t.Fatalf("彩票配置不正确: %+v", stats.LotteryConfig)
	}
	if stats.Jackpot.BalanceNative == nil || stats.Jackpot.BalanceNative.String() != "3" {
		t.Fatalf("奖池余额不正确: %+v", stats.Jackpot)
	}
	if stats.Jackpot.BalanceDragon == nil || stats.Jackpot.BalanceDragon.String() != "120" {
		t.Fatalf("奖池 DRAGON 余额不正确: %+v", stats.Jackpot)
	}
	if stats.DragonToken.BuyFees == nil || stats.DragonToken.BuyFees.Total != 1000 {
		t.Fatalf("费率不正确: %+v", stats.DragonToken)
	}
}

func TestStatsJackpotFailureIsBestEffort(t *testing.T) {
	b := lotteryBackend(500, 1000)
	b.Return("totalSupply", dragon(1))
	b.Fail("jackpotBalances", contracttest.RPCError{Code: 3, Message: "execution reverted"})

	stats, err := newService(t, b, "").Stats(context.Background(), "sonic")
	if err != nil {
		t.Fatalf("奖池失败不应导致统计失败: %v", err)
	}
	if stats.Jackpot.Error == "" || stats.Jackpot.BalanceNative != nil {
		t.Fatalf("奖池错误应体现在结果中: %+v", stats.Jackpot)
	}
	if stats.DragonToken.BuyFees != nil {
		t.Fatal("费率未配置时应为空")
	}
}

func TestEntryRequiresSigner(t *testing.T) {
	_, err := newService(t, contracttest.NewBackend(), "").TestEntry(context.Background(), "sonic", lottery.DefaultSimulationUser, decimal.NewFromInt(10))
	if !errors.Is(err, contract.ErrNoSigner) {
		t.Fatalf("应返回 ErrNoSigner, got %v", err)
	}
}

func TestEntrySimulationFailureDoesNotSend(t *testing.T) {
	b := contracttest.NewBackend()
	b.Fail("processEntryWithDragon", contracttest.RPCError{Code: 3, Message: "execution reverted: insufficient balance"})

	res, err := newService(t, b, contracttest.TestKey).TestEntry(context.Background(), "sonic", lottery.DefaultSimulationUser, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("模拟失败应作为结果返回: %v", err)
	}
	if !res.SimulationFailed || !res.TransactionNotSent || res.Error == "" {
		t.Fatalf("结果不正确: %+v", res)
	}
	if len(b.Sent) != 0 {
		t.Fatal("模拟失败时不应发送交易")
	}
}

func TestEntrySends(t *testing.T) {
	b := contracttest.NewBackend()
	res, err := newService(t, b, contracttest.TestKey).TestEntry(context.Background(), "sonic", lottery.DefaultSimulationUser, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if !res.Success || res.TxHash == "" || res.BlockNumber != 101 {
		t.Fatalf("结果不正确: %+v", res)
	}
	if len(b.Sent) != 1 || b.Called("processEntryWithDragon") != 2 {
		t.Fatalf("应先模拟再发送: sent=%d calls=%d", len(b.Sent), b.Called("processEntryWithDragon"))
	}
}

func TestEntryRejectsBadAddress(t *testing.T) {
	_, err := newService(t, contracttest.NewBackend(), contracttest.TestKey).TestEntry(context.Background(), "sonic", "0xnope", decimal.NewFromInt(1))
	if err == nil {
		t.Fatal("非法地址应报错")
	}
}
