// Package contracttest provides an in-memory contract backend for tests.
package contracttest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/config"
	"dragon-mcp/internal/contract"
)

// Address is used for every contract role in Config.
const Address = "0x6969696969696969696969696969696969697777"

// Chains lists the networks configured by Config, primary first.
var Chains = []string{"sonic", "ethereum", "arbitrum", "base", "avalanche"}

// RPCError mimics a JSON-RPC error answer such as a revert.
type RPCError struct {
	Code    int
	Message string
}

func (e RPCError) Error() string  { return e.Message }
func (e RPCError) ErrorCode() int { return e.Code }

// Backend answers contract calls from canned outputs keyed by method name.
type Backend struct {
	mu       sync.Mutex
	results  map[string][]interface{}
	errs     map[string]error
	receipts map[common.Hash]*types.Receipt

	ChainIDValue *big.Int
	Height       uint64
	AutoMine     bool
	Calls        []string
	Sent         []*types.Transaction
	ReceiptErr   error
}

// NewBackend returns an empty backend that mines sent transactions at once.
func NewBackend() *Backend {
	return &Backend{
		results:      make(map[string][]interface{}),
		errs:         make(map[string]error),
		receipts:     make(map[common.Hash]*types.Receipt),
		ChainIDValue: big.NewInt(146),
		Height:       100,
		AutoMine:     true,
	}
}

// Return registers the outputs method should answer with.
func (b *Backend) Return(method string, values ...interface{}) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[method] = values
	delete(b.errs, method)
	return b
}

// Fail makes method answer with err.
func (b *Backend) Fail(method string, err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[method] = err
	return b
}

// AddReceipt registers a receipt for lookups.
func (b *Backend) AddReceipt(r *types.Receipt) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[r.TxHash] = r
	return b
}

// Called reports how often method was invoked.
func (b *Backend) Called(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(call.Data) < 4 {
		return nil, errors.New("calldata too short")
	}
	method, err := lookupMethod(call.Data[:4])
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, method.Name)
	if err := b.errs[method.Name]; err != nil {
		return nil, err
	}
	values, ok := b.results[method.Name]
	if !ok {
		if len(method.Outputs) == 0 {
			return nil, nil
		}
		return nil, RPCError{Code: 3, Message: "execution reverted: no stub for " + method.Name}
	}
	return method.Outputs.Pack(values...)
}

func (b *Backend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.Sent)), nil
}

func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(tx.Data()) >= 4 {
		if method, err := lookupMethod(tx.Data()[:4]); err == nil {
			b.Calls = append(b.Calls, method.Name)
			if err := b.errs[method.Name]; err != nil {
				return err
			}
		}
	}
	b.Sent = append(b.Sent, tx)
	if b.AutoMine {
		b.receipts[tx.Hash()] = &types.Receipt{
			TxHash:      tx.Hash(),
			Status:      types.ReceiptStatusSuccessful,
			GasUsed:     51000,
			BlockNumber: new(big.Int).SetUint64(b.Height + 1),
		}
	}
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ReceiptErr != nil {
		return nil, b.ReceiptErr
	}
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return b.ChainIDValue, nil
}

func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	return b.Height, nil
}

var _ contract.Backend = (*Backend)(nil)

func lookupMethod(selector []byte) (*abi.Method, error) {
	for _, role := range []chain.Role{chain.RoleToken, chain.RoleOracle, chain.RoleLottery, chain.RoleJackpot} {
		parsed, ok := contract.ABI(role)
		if !ok {
			continue
		}
		if m, err := parsed.MethodById(selector); err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown selector %x", selector)
}

// Config returns a configuration with every chain pointing at stub RPC URLs.
func Config() *config.Config {
	cfg := &config.Config{
		PrimaryChain: "sonic",
		Chains:       make(map[string]config.ChainConfig, len(Chains)),
		Oracle: config.OracleConfig{
			HealthChains:          []string{"sonic", "ethereum", "arbitrum", "base"},
			DeviationThresholdPct: 5.0,
		},
		Lottery: config.LotteryConfig{SimulationUser: "0x1234567890123456789012345678901234567890"},
		Signer:  config.SignerConfig{GasLimit: 500000},
		Export:  config.ExportConfig{MaxDataPoints: 100},
	}
	eids := map[string]uint32{"sonic": 30332, "ethereum": 30101, "arbitrum": 30110, "base": 30184, "avalanche": 30106}
	for _, id := range Chains {
		cfg.Chains[id] = config.ChainConfig{
			RPCURL:            "stub://" + id,
			EID:               eids[id],
			LayerZeroEndpoint: "0x1a44076050125825900e736c501f859c50fE728c",
			WrappedNative:     "0x4200000000000000000000000000000000000006",
			Contracts: config.ContractsConfig{
				Token:   Address,
				Oracle:  Address,
				Lottery: Address,
				Jackpot: Address,
			},
		}
	}
	return cfg
}

// Dialer resolves stub://<chain> URLs to backends. Chains without a backend
// fail to connect.
func Dialer(backends map[string]*Backend) contract.DialFunc {
	return func(_ context.Context, rpcURL string) (contract.Backend, error) {
		for id, b := range backends {
			if rpcURL == "stub://"+id {
				return b, nil
			}
		}
		return nil, fmt.Errorf("dial %s: connection refused", rpcURL)
	}
}

// NewClient builds a contract client over backends. privateKey may be empty.
func NewClient(cfg *config.Config, backends map[string]*Backend, privateKey string) (*contract.Client, error) {
	return contract.New(chain.NewRegistry(cfg), contract.Options{
		PrivateKey: privateKey,
		GasLimit:   cfg.Signer.GasLimit,
		Dial:       Dialer(backends),
	}, zerolog.Nop())
}

// TestKey is a throwaway secp256k1 key for signing in tests.
const TestKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
