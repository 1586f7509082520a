// Package chain holds the static registry of omniDRAGON networks.
package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dragon-mcp/internal/config"
)

// Role identifies a contract kind deployed on every chain.
type Role string

const (
	RoleToken   Role = "token"
	RoleOracle  Role = "oracle"
	RoleLottery Role = "lottery"
	RoleJackpot Role = "jackpot"
)

// Fixed-point scales used by the contracts.
const (
	PriceDecimals       = 18
	NativePriceDecimals = 8
	USDDecimals         = 6
	DragonDecimals      = 18
)

// ConfigError reports a missing or malformed chain setting. It is never retried.
type ConfigError struct {
	Chain string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("chain %s: %s", e.Chain, e.Msg)
	}
	return fmt.Sprintf("chain %s: %s %s", e.Chain, e.Field, e.Msg)
}

// Chain is one configured network.
type Chain struct {
	ID                string
	RPCURL            string
	EID               uint32
	LayerZeroEndpoint string
	WrappedNative     string
	Primary           bool
	contracts         map[Role]string
}

// RPC returns the JSON-RPC endpoint.
func (c Chain) RPC() (string, error) {
	if strings.TrimSpace(c.RPCURL) == "" {
		return "", &ConfigError{Chain: c.ID, Field: "rpc_url", Msg: "not configured"}
	}
	return c.RPCURL, nil
}

// Address resolves the contract deployed for role.
func (c Chain) Address(role Role) (common.Address, error) {
	raw := strings.TrimSpace(c.contracts[role])
	if raw == "" {
		return common.Address{}, &ConfigError{Chain: c.ID, Field: string(role) + " address", Msg: "not configured"}
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, &ConfigError{Chain: c.ID, Field: string(role) + " address", Msg: fmt.Sprintf("is invalid: %q", raw)}
	}
	return common.HexToAddress(raw), nil
}

// RawAddress returns the configured address string for role, possibly empty.
func (c Chain) RawAddress(role Role) string {
	return c.contracts[role]
}

// Stats is the static metadata published for a chain.
type Stats struct {
	Chain           string  `json:"chain"`
	ContractAddress *string `json:"contract_address"`
	LayerZeroEID    *uint32 `json:"layerzero_eid"`
	SupportsOracle  bool    `json:"supports_oracle"`
	Note            string  `json:"note"`
}

// Registry maps chain identifiers to their configuration.
type Registry struct {
	chains       map[string]Chain
	primary      string
	oracleChains map[string]bool
}

// NewRegistry builds the registry from configuration.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		chains:       make(map[string]Chain, len(cfg.Chains)),
		primary:      cfg.PrimaryChain,
		oracleChains: make(map[string]bool, len(cfg.Oracle.HealthChains)),
	}
	for id, cc := range cfg.Chains {
		r.chains[id] = Chain{
			ID:                id,
			RPCURL:            cc.RPCURL,
			EID:               cc.EID,
			LayerZeroEndpoint: cc.LayerZeroEndpoint,
			WrappedNative:     cc.WrappedNative,
			Primary:           id == cfg.PrimaryChain,
			contracts: map[Role]string{
				RoleToken:   cc.Contracts.Token,
				RoleOracle:  cc.Contracts.Oracle,
				RoleLottery: cc.Contracts.Lottery,
				RoleJackpot: cc.Contracts.Jackpot,
			},
		}
	}
	for _, id := range cfg.Oracle.HealthChains {
		r.oracleChains[id] = true
	}
	return r
}

// Chain looks up a chain by identifier.
func (r *Registry) Chain(id string) (Chain, error) {
	c, ok := r.chains[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Chain{}, &ConfigError{Chain: id, Msg: "is not a configured chain"}
	}
	return c, nil
}

// Primary returns the identifier of the price-aggregation chain.
func (r *Registry) Primary() string {
	return r.primary
}

// IsPrimary reports whether id is the primary oracle chain.
func (r *Registry) IsPrimary(id string) bool {
	return strings.EqualFold(id, r.primary)
}

// IDs lists all configured chains, primary first then alphabetical.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.chains))
	for id := range r.chains {
		if id != r.primary {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if _, ok := r.chains[r.primary]; ok {
		ids = append([]string{r.primary}, ids...)
	}
	return ids
}

// Stats returns static metadata for id. Unknown chains yield empty fields.
func (r *Registry) Stats(id string) Stats {
	st := Stats{
		Chain:          id,
		SupportsOracle: r.oracleChains[id],
		Note:           "Use get_lottery_stats tool for live data",
	}
	if c, err := r.Chain(id); err == nil {
		if addr := c.RawAddress(RoleToken); addr != "" {
			st.ContractAddress = &addr
		}
		if c.EID != 0 {
			eid := c.EID
			st.LayerZeroEID = &eid
		}
	}
	return st
}
