package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/crosschain"
	"dragon-mcp/internal/lottery"
	"dragon-mcp/internal/oracle"
	"dragon-mcp/internal/vrf"
)

// Services are the domain handlers behind the tools.
type Services struct {
	Registry   *chain.Registry
	Oracle     *oracle.Service
	Lottery    *lottery.Service
	CrossChain *crosschain.Service
	VRF        *vrf.Service
}

// Toolset decodes arguments and dispatches operations.
type Toolset struct {
	svc      Services
	validate *validator.Validate
	logger   zerolog.Logger
}

// New builds a Toolset over svc.
func New(svc Services, logger zerolog.Logger) *Toolset {
	return &Toolset{
		svc:      svc,
		validate: newValidator(),
		logger:   logger.With().Str("component", "tools").Logger(),
	}
}

// Registry exposes the chain registry the tools resolve against.
func (t *Toolset) Registry() *chain.Registry {
	return t.svc.Registry
}

// CallRaw resolves name and calls it.
func (t *Toolset) CallRaw(ctx context.Context, name string, raw json.RawMessage) (interface{}, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return t.Call(ctx, n, raw)
}

// Call decodes raw into the input of name and runs it. Every operation is
// handled here.
func (t *Toolset) Call(ctx context.Context, name Name, raw json.RawMessage) (interface{}, error) {
	log := t.logger.With().Str("tool", string(name)).Logger()
	log.Debug().Str("args", argsForLog(raw)).Msg("tool call")

	out, err := t.dispatch(ctx, name, raw)
	if err != nil {
		log.Warn().Err(err).Msg("tool call failed")
		return nil, err
	}
	return out, nil
}

func (t *Toolset) dispatch(ctx context.Context, name Name, raw json.RawMessage) (interface{}, error) {
	switch name {
	case GetDragonPrice:
		in := PriceInput{Chain: "sonic"}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.Oracle.Price(ctx, in.Chain), nil

	case CheckOracleHealth:
		in := HealthInput{}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.Oracle.Health(ctx), nil

	case UpdateOraclePrice:
		in := PriceInput{Chain: "sonic"}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.Oracle.UpdatePrice(ctx, in.Chain)

	case GetLotteryStats:
		in := LotteryStatsInput{}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.Lottery.Stats(ctx, in.Chain)

	case SimulateLottery:
		in := SimulateLotteryInput{Chain: "sonic"}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.Lottery.Simulate(ctx, decimal.NewFromFloat(*in.USDAmount), in.Chain)

	case TestLotteryEntry:
		in := LotteryEntryInput{}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.Lottery.TestEntry(ctx, in.Chain, in.UserAddress, decimal.NewFromFloat(*in.DragonAmount))

	case CheckLayerZeroStatus:
		in := LayerZeroStatusInput{}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.CrossChain.Status(ctx, in.TxHash, in.Chain)

	case EstimateLayerZeroFee:
		in := FeeInput{PayloadSize: 32}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.CrossChain.EstimateFee(in.SourceChain, in.DestChain, in.PayloadSize)

	case RequestVRFRandomness:
		in := VRFInput{Chain: "arbitrum", NumWords: 1}
		if err := t.decode(name, raw, &in); err != nil {
			return nil, err
		}
		return t.svc.VRF.Request(ctx, in.Chain, in.NumWords)

	default:
		return nil, fmt.Errorf("tool '%s' %w", name, ErrUnknownTool)
	}
}

// decode fills in, normalises chain identifiers and checks they name a
// configured chain. Fee estimates accept any chain name.
func (t *Toolset) decode(name Name, raw json.RawMessage, in interface{}) error {
	if err := decodeInput(t.validate, name, raw, in); err != nil {
		return err
	}
	var field *string
	switch v := in.(type) {
	case *PriceInput:
		field = &v.Chain
	case *LotteryStatsInput:
		field = &v.Chain
	case *SimulateLotteryInput:
		field = &v.Chain
	case *LotteryEntryInput:
		field = &v.Chain
	case *LayerZeroStatusInput:
		field = &v.Chain
	case *FeeInput:
		v.SourceChain = normalizeChain(v.SourceChain)
		v.DestChain = normalizeChain(v.DestChain)
		return nil
	case *VRFInput:
		v.Chain = normalizeChain(v.Chain)
		return nil
	default:
		return nil
	}
	*field = normalizeChain(*field)
	_, err := t.svc.Registry.Chain(*field)
	return err
}

func normalizeChain(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func argsForLog(raw json.RawMessage) string {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "{}"
	}
	return string(raw)
}
