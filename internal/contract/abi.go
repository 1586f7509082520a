package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"dragon-mcp/internal/chain"
)

const (
	tokenABIJSON = `[
{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getFees","outputs":[
 {"components":[{"internalType":"uint16","name":"jackpot","type":"uint16"},{"internalType":"uint16","name":"veDRAGON","type":"uint16"},{"internalType":"uint16","name":"burn","type":"uint16"},{"internalType":"uint16","name":"total","type":"uint16"}],"internalType":"struct IOmniDRAGON.Fees","name":"buyFees","type":"tuple"},
 {"components":[{"internalType":"uint16","name":"jackpot","type":"uint16"},{"internalType":"uint16","name":"veDRAGON","type":"uint16"},{"internalType":"uint16","name":"burn","type":"uint16"},{"internalType":"uint16","name":"total","type":"uint16"}],"internalType":"struct IOmniDRAGON.Fees","name":"sellFees","type":"tuple"}
],"stateMutability":"view","type":"function"}
]`

	oracleABIJSON = `[
{"inputs":[],"name":"getAggregatedPrice","outputs":[{"internalType":"int256","name":"price","type":"int256"},{"internalType":"bool","name":"success","type":"bool"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getLatestPrice","outputs":[{"internalType":"int256","name":"price","type":"int256"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getNativeTokenPrice","outputs":[{"internalType":"int256","name":"price","type":"int256"},{"internalType":"bool","name":"isValid","type":"bool"},{"internalType":"uint256","name":"timestamp","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"updatePrice","outputs":[{"internalType":"bool","name":"success","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

	lotteryABIJSON = `[
{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"uint256","name":"dragonAmount","type":"uint256"}],"name":"processEntryWithDragon","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"uint256","name":"usdAmount","type":"uint256"}],"name":"calculateWinProbability","outputs":[{"internalType":"bool","name":"hasChance","type":"bool"},{"internalType":"uint256","name":"winChancePPM","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"getInstantLotteryConfig","outputs":[{"internalType":"bool","name":"isActive","type":"bool"},{"internalType":"uint256","name":"minEntry","type":"uint256"},{"internalType":"uint256","name":"maxWinChance","type":"uint256"},{"internalType":"uint256","name":"baseReward","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

	jackpotABIJSON = `[
{"inputs":[{"internalType":"address","name":"token","type":"address"}],"name":"jackpotBalances","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"winner","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"payJackpot","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`
)

var abis = map[chain.Role]abi.ABI{}

// ABI returns the parsed ABI subset bound for role.
func ABI(role chain.Role) (abi.ABI, bool) {
	parsed, ok := abis[role]
	return parsed, ok
}

func init() {
	sources := map[chain.Role]string{
		chain.RoleToken:   tokenABIJSON,
		chain.RoleOracle:  oracleABIJSON,
		chain.RoleLottery: lotteryABIJSON,
		chain.RoleJackpot: jackpotABIJSON,
	}
	for role, src := range sources {
		parsed, err := abi.JSON(strings.NewReader(src))
		if err != nil {
			panic("failed to parse " + string(role) + " ABI: " + err.Error())
		}
		abis[role] = parsed
	}
}
