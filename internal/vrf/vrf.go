// Package vrf stubs Chainlink VRF randomness requests.
package vrf

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dragon-mcp/internal/contract"
)

// SupportedChain is the only network with a VRF coordinator integration.
const SupportedChain = "arbitrum"

// MaxWords is the coordinator limit on random words per request.
const MaxWords = 500

// UnsupportedChainError is returned for any chain other than SupportedChain.
type UnsupportedChainError struct {
	Chain string
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("VRF currently only supported on Arbitrum, got %q", e.Chain)
}

// Request describes a simulated randomness request.
type Request struct {
	Success         bool     `json:"success"`
	Simulation      bool     `json:"simulation"`
	RequestID       string   `json:"request_id"`
	Chain           string   `json:"chain"`
	NumWords        int      `json:"num_words"`
	EstimatedCost   string   `json:"estimated_cost"`
	SupportedChains []string `json:"supported_chains"`
	Note            string   `json:"note"`
}

// Service answers request_vrf_randomness.
type Service struct {
	canSign func() bool
	logger  zerolog.Logger
}

// NewService builds the VRF stub over the signer state of client.
func NewService(client *contract.Client, logger zerolog.Logger) *Service {
	return &Service{canSign: client.CanSign, logger: logger.With().Str("component", "vrf").Logger()}
}

// Request validates the call and returns a simulated request. Nothing is sent.
func (s *Service) Request(_ context.Context, chainID string, numWords int) (Request, error) {
	if !strings.EqualFold(strings.TrimSpace(chainID), SupportedChain) {
		return Request{}, &UnsupportedChainError{Chain: chainID}
	}
	if numWords < 1 || numWords > MaxWords {
		return Request{}, fmt.Errorf("num_words must be between 1 and %d, got %d", MaxWords, numWords)
	}
	if !s.canSign() {
		return Request{}, contract.ErrNoSigner
	}

	req := Request{
		Success:         true,
		Simulation:      true,
		RequestID:       uuid.NewString(),
		Chain:           SupportedChain,
		NumWords:        numWords,
		EstimatedCost:   "0.002 ETH (~$5)",
		SupportedChains: []string{SupportedChain},
		Note:            "VRF integration ready - implement with actual contract deployment",
	}
	s.logger.Info().Str("request_id", req.RequestID).Int("num_words", numWords).Msg("vrf request simulated")
	return req, nil
}
