// Package contract binds the omniDRAGON contracts over JSON-RPC.
package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"dragon-mcp/internal/chain"
)

var (
	// ErrNoSigner is returned by state-changing calls when no private key is configured.
	ErrNoSigner = errors.New("no private key configured for transactions")
	// ErrReceiptTimeout is returned when a sent transaction is not mined in time.
	ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")
)

// ErrorKind separates transport failures from contract failures.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindContract ErrorKind = "contract"
)

// CallError wraps a failed RPC or contract interaction.
type CallError struct {
	Kind   ErrorKind
	Chain  string
	Method string
	Err    error
}

func (e *CallError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s error on %s: %v", e.Kind, e.Chain, e.Err)
	}
	return fmt.Sprintf("%s error on %s calling %s: %v", e.Kind, e.Chain, e.Method, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Backend is the subset of the JSON-RPC client used by the bindings.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// DialFunc opens a backend for an RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthClient is the default DialFunc.
func DialEthClient(ctx context.Context, rpcURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

// Options parameterise the contract client.
type Options struct {
	PrivateKey     string
	GasLimit       uint64
	CallTimeout    time.Duration
	ReceiptTimeout time.Duration
	Dial           DialFunc
}

// Client hands out typed contract bindings. Backends are dialled lazily and
// kept for the lifetime of the process.
type Client struct {
	registry *chain.Registry
	opts     Options
	key      *ecdsa.PrivateKey
	from     common.Address
	logger   zerolog.Logger

	mu       sync.Mutex
	backends map[string]Backend
}

// New constructs a contract client. An invalid private key is a configuration error.
func New(registry *chain.Registry, opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.GasLimit == 0 {
		opts.GasLimit = 500000
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 15 * time.Second
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 120 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = DialEthClient
	}

	c := &Client{
		registry: registry,
		opts:     opts,
		logger:   logger.With().Str("component", "contract_client").Logger(),
		backends: make(map[string]Backend),
	}

	if raw := strings.TrimSpace(opts.PrivateKey); raw != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse signer private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// CanSign reports whether transactions may be sent.
func (c *Client) CanSign() bool {
	return c.key != nil
}

// Sender returns the signer address, zero when simulation only.
func (c *Client) Sender() common.Address {
	return c.from
}

// Registry exposes the chain registry the client resolves against.
func (c *Client) Registry() *chain.Registry {
	return c.registry
}

// Backend returns the cached backend for chainID, dialling on first use.
func (c *Client) Backend(ctx context.Context, chainID string) (Backend, chain.Chain, error) {
	ch, err := c.registry.Chain(chainID)
	if err != nil {
		return nil, chain.Chain{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.backends[ch.ID]; ok {
		return b, ch, nil
	}

	url, err := ch.RPC()
	if err != nil {
		return nil, ch, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	b, err := c.opts.Dial(dialCtx, url)
	if err != nil {
		return nil, ch, &CallError{Kind: KindNetwork, Chain: ch.ID, Err: fmt.Errorf("failed to connect to %s RPC: %w", ch.ID, err)}
	}
	c.backends[ch.ID] = b
	c.logger.Debug().Str("chain", ch.ID).Msg("rpc backend connected")
	return b, ch, nil
}

// Close releases backends that hold connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, b := range c.backends {
		if closer, ok := b.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(c.backends, id)
	}
}

// TxResult describes a mined transaction.
type TxResult struct {
	Hash        common.Hash
	GasUsed     uint64
	BlockNumber uint64
	Status      uint64
}

// bound is a contract address paired with its ABI and backend.
type bound struct {
	client  *Client
	chain   chain.Chain
	role    chain.Role
	backend Backend
	address common.Address
	abi     abi.ABI
}

func (c *Client) bind(ctx context.Context, chainID string, role chain.Role) (*bound, error) {
	b, ch, err := c.Backend(ctx, chainID)
	if err != nil {
		return nil, err
	}
	addr, err := ch.Address(role)
	if err != nil {
		return nil, err
	}
	parsed, ok := abis[role]
	if !ok {
		return nil, fmt.Errorf("unknown contract role: %s", role)
	}
	return &bound{client: c, chain: ch, role: role, backend: b, address: addr, abi: parsed}, nil
}

// Address returns the bound contract address.
func (b *bound) Address() common.Address {
	return b.address
}

func (b *bound) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	payload, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.client.opts.CallTimeout)
	defer cancel()

	res, err := b.backend.CallContract(ctx, ethereum.CallMsg{To: &b.address, Data: payload}, nil)
	if err != nil {
		return nil, b.classify(method, err)
	}

	outputs, err := b.abi.Unpack(method, res)
	if err != nil {
		return nil, &CallError{Kind: KindContract, Chain: b.chain.ID, Method: method, Err: err}
	}
	return outputs, nil
}

// simulate executes method with eth_call from the signer, without sending.
func (b *bound) simulate(ctx context.Context, method string, args ...interface{}) error {
	if b.client.key == nil {
		return ErrNoSigner
	}
	payload, err := b.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.client.opts.CallTimeout)
	defer cancel()

	msg := ethereum.CallMsg{From: b.client.from, To: &b.address, Gas: b.client.opts.GasLimit, Data: payload}
	if _, err := b.backend.CallContract(ctx, msg, nil); err != nil {
		return b.classify(method, err)
	}
	return nil
}

// transact signs and sends method, then waits for the receipt.
func (b *bound) transact(ctx context.Context, method string, args ...interface{}) (TxResult, error) {
	key := b.client.key
	if key == nil {
		return TxResult{}, ErrNoSigner
	}

	payload, err := b.abi.Pack(method, args...)
	if err != nil {
		return TxResult{}, fmt.Errorf("pack %s: %w", method, err)
	}

	nonce, err := b.backend.PendingNonceAt(ctx, b.client.from)
	if err != nil {
		return TxResult{}, b.classify(method, fmt.Errorf("get nonce: %w", err))
	}
	gasPrice, err := b.backend.SuggestGasPrice(ctx)
	if err != nil {
		return TxResult{}, b.classify(method, fmt.Errorf("suggest gas price: %w", err))
	}
	chainID, err := b.backend.ChainID(ctx)
	if err != nil {
		return TxResult{}, b.classify(method, fmt.Errorf("chain id: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &b.address,
		Value:    big.NewInt(0),
		Gas:      b.client.opts.GasLimit,
		GasPrice: gasPrice,
		Data:     payload,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return TxResult{}, fmt.Errorf("sign %s: %w", method, err)
	}

	if err := b.backend.SendTransaction(ctx, signed); err != nil {
		return TxResult{}, b.classify(method, err)
	}

	b.client.logger.Info().Str("chain", b.chain.ID).
		Str("method", method).
		Str("tx_hash", signed.Hash().Hex()).
		Msg("transaction sent")

	receipt, err := b.client.waitMined(ctx, b.backend, signed)
	if err != nil {
		return TxResult{Hash: signed.Hash()}, &CallError{Kind: KindNetwork, Chain: b.chain.ID, Method: method, Err: err}
	}

	res := TxResult{Hash: signed.Hash(), GasUsed: receipt.GasUsed, Status: receipt.Status}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res, nil
}

func (c *Client) waitMined(ctx context.Context, backend Backend, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, backend, tx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrReceiptTimeout
	}
	return receipt, err
}

// classify tags err as a contract failure when the node answered with a
// JSON-RPC error (revert, bad opcode) and as a network failure otherwise.
func (b *bound) classify(method string, err error) error {
	kind := KindNetwork
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		kind = KindContract
	}
	return &CallError{Kind: kind, Chain: b.chain.ID, Method: method, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, ethereum.NotFound)
}

func toUint64(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
