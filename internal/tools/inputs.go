package tools

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

// PriceInput selects the chain for get_dragon_price and update_oracle_price.
type PriceInput struct {
	Chain string `json:"chain" validate:"required"`
}

// HealthInput takes no arguments.
type HealthInput struct{}

// LotteryStatsInput selects the chain for get_lottery_stats.
type LotteryStatsInput struct {
	Chain string `json:"chain" validate:"required"`
}

// SimulateLotteryInput parameterises simulate_lottery.
type SimulateLotteryInput struct {
	USDAmount *float64 `json:"usd_amount" validate:"required"`
	Chain     string   `json:"chain" validate:"required"`
}

// LotteryEntryInput parameterises test_lottery_entry.
type LotteryEntryInput struct {
	Chain        string   `json:"chain" validate:"required"`
	UserAddress  string   `json:"user_address" validate:"required,eth_addr"`
	DragonAmount *float64 `json:"dragon_amount" validate:"required,gt=0"`
}

// LayerZeroStatusInput parameterises check_layerzero_status.
type LayerZeroStatusInput struct {
	TxHash string `json:"tx_hash" validate:"required,tx_hash"`
	Chain  string `json:"chain" validate:"required"`
}

// FeeInput parameterises estimate_layerzero_fee.
type FeeInput struct {
	SourceChain string `json:"source_chain" validate:"required"`
	DestChain   string `json:"dest_chain" validate:"required"`
	PayloadSize int    `json:"payload_size" validate:"gte=0"`
}

// VRFInput parameterises request_vrf_randomness.
type VRFInput struct {
	Chain    string `json:"chain" validate:"required"`
	NumWords int    `json:"num_words" validate:"gte=1,lte=500"`
}

// InputError reports malformed or invalid tool arguments.
type InputError struct {
	Tool Name
	Msg  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Msg)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("tx_hash", validTxHash)
	return v
}

// validTxHash accepts 32 bytes of hex with or without a 0x prefix.
func validTxHash(fl validator.FieldLevel) bool {
	raw := strings.TrimPrefix(strings.TrimSpace(fl.Field().String()), "0x")
	if len(raw) != 2*common.HashLength {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}

// decodeInput unmarshals raw over the defaults already held by in, then validates.
func decodeInput(v *validator.Validate, tool Name, raw json.RawMessage, in interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, in); err != nil {
			return &InputError{Tool: tool, Msg: err.Error()}
		}
	}
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			return &InputError{Tool: tool, Msg: describe(verrs)}
		}
		return &InputError{Tool: tool, Msg: err.Error()}
	}
	return nil
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

func describe(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", err.Field()))
		case "eth_addr":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid address", err.Field()))
		case "tx_hash":
			msgs = append(msgs, fmt.Sprintf("field %s must be a 32-byte hex hash", err.Field()))
		case "gte", "lte", "gt":
			msgs = append(msgs, fmt.Sprintf("field %s is out of range", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
