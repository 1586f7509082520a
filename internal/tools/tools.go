// Package tools defines the closed set of omniDRAGON operations shared by the
// MCP and HTTP transports.
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and amounts are rendered as JSON numbers by both transports.
	decimal.MarshalJSONWithoutQuotes = true
}

// Name identifies an operation.
type Name string

const (
	GetDragonPrice       Name = "get_dragon_price"
	CheckOracleHealth    Name = "check_oracle_health"
	UpdateOraclePrice    Name = "update_oracle_price"
	GetLotteryStats      Name = "get_lottery_stats"
	SimulateLottery      Name = "simulate_lottery"
	TestLotteryEntry     Name = "test_lottery_entry"
	CheckLayerZeroStatus Name = "check_layerzero_status"
	EstimateLayerZeroFee Name = "estimate_layerzero_fee"
	RequestVRFRandomness Name = "request_vrf_randomness"
)

// ErrUnknownTool is returned for names outside the operation set.
var ErrUnknownTool = errors.New("tool not found")

// Names lists every operation in declaration order.
func Names() []Name {
	return []Name{
		GetDragonPrice,
		CheckOracleHealth,
		UpdateOraclePrice,
		GetLotteryStats,
		SimulateLottery,
		TestLotteryEntry,
		CheckLayerZeroStatus,
		EstimateLayerZeroFee,
		RequestVRFRandomness,
	}
}

// ParseName resolves raw into a Name.
func ParseName(raw string) (Name, error) {
	candidate := Name(strings.TrimSpace(raw))
	for _, n := range Names() {
		if n == candidate {
			return n, nil
		}
	}
	return "", fmt.Errorf("tool '%s' %w", raw, ErrUnknownTool)
}

// Role is an API caller tier. Higher roles include lower ones.
type Role int

const (
	RoleDevelopment Role = iota + 1
	RoleTeam
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleDevelopment:
		return "development"
	case RoleTeam:
		return "team"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Allows reports whether r meets min.
func (r Role) Allows(min Role) bool {
	return r >= min
}

// ParamType is the JSON schema type of a parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
)

// Param declares one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     interface{}
	Enum        []string
}

// Spec declares a tool.
type Spec struct {
	Name        Name
	Description string
	Params      []Param
	MinRole     Role
}

// InputSchema renders the parameters as a JSON schema object.
func (s Spec) InputSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		prop := map[string]interface{}{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var chainParam = Param{Name: "chain", Type: TypeString, Description: "Target chain (sonic, ethereum, arbitrum, base, avalanche)"}

func withDefault(p Param, def interface{}) Param {
	p.Default = def
	return p
}

func required(p Param) Param {
	p.Required = true
	return p
}

var specs = map[Name]Spec{
	GetDragonPrice: {
		Name:        GetDragonPrice,
		Description: "Get DRAGON price from oracle network, with the oracle health status of the chain.",
		Params:      []Param{withDefault(chainParam, "sonic")},
		MinRole:     RoleDevelopment,
	},
	CheckOracleHealth: {
		Name:        CheckOracleHealth,
		Description: "Monitor health of the oracle network across chains: per-chain status, price consistency and alerts.",
		MinRole:     RoleDevelopment,
	},
	UpdateOraclePrice: {
		Name:        UpdateOraclePrice,
		Description: "Manually trigger an oracle price update. Sends a transaction and requires a signer.",
		Params:      []Param{withDefault(chainParam, "sonic")},
		MinRole:     RoleAdmin,
	},
	GetLotteryStats: {
		Name:        GetLotteryStats,
		Description: "Get lottery configuration, jackpot balance and DRAGON token stats for a chain.",
		Params:      []Param{required(chainParam)},
		MinRole:     RoleDevelopment,
	},
	SimulateLottery: {
		Name:        SimulateLottery,
		Description: "Simulate lottery win probability and expected value for a USD amount.",
		Params: []Param{
			{Name: "usd_amount", Type: TypeNumber, Description: "USD amount to simulate, e.g. 1000 for $1000", Required: true},
			withDefault(chainParam, "sonic"),
		},
		MinRole: RoleDevelopment,
	},
	TestLotteryEntry: {
		Name:        TestLotteryEntry,
		Description: "Simulate a lottery entry with DRAGON and send it if the simulation passes. Requires a signer.",
		Params: []Param{
			required(chainParam),
			{Name: "user_address", Type: TypeString, Description: "User wallet address", Required: true},
			{Name: "dragon_amount", Type: TypeNumber, Description: "Amount of DRAGON tokens", Required: true},
		},
		MinRole: RoleAdmin,
	},
	CheckLayerZeroStatus: {
		Name:        CheckLayerZeroStatus,
		Description: "Check the status of a LayerZero cross-chain send from its source transaction.",
		Params: []Param{
			{Name: "tx_hash", Type: TypeString, Description: "Transaction hash of the LayerZero send", Required: true},
			{Name: "chain", Type: TypeString, Description: "Source chain of the transaction", Required: true},
		},
		MinRole: RoleDevelopment,
	},
	EstimateLayerZeroFee: {
		Name:        EstimateLayerZeroFee,
		Description: "Estimate a LayerZero V2 messaging fee in native token and USD.",
		Params: []Param{
			{Name: "source_chain", Type: TypeString, Description: "Source chain name", Required: true},
			{Name: "dest_chain", Type: TypeString, Description: "Destination chain name", Required: true},
			{Name: "payload_size", Type: TypeInteger, Description: "Payload size in bytes", Default: 32},
		},
		MinRole: RoleDevelopment,
	},
	RequestVRFRandomness: {
		Name:        RequestVRFRandomness,
		Description: "Request Chainlink VRF V2.5 randomness (simulated, Arbitrum only).",
		Params: []Param{
			{Name: "chain", Type: TypeString, Description: "Chain to request from", Default: "arbitrum", Enum: []string{"arbitrum"}},
			{Name: "num_words", Type: TypeInteger, Description: "Number of random words (1-500)", Default: 1},
		},
		MinRole: RoleTeam,
	},
}

// Specs returns every tool declaration in declaration order.
func Specs() []Spec {
	out := make([]Spec, 0, len(specs))
	for _, n := range Names() {
		out = append(out, specs[n])
	}
	return out
}

// Lookup returns the declaration of name.
func Lookup(name Name) (Spec, bool) {
	s, ok := specs[name]
	return s, ok
}
