package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/hlog"

	"dragon-mcp/internal/chain"
	"dragon-mcp/internal/contract"
	"dragon-mcp/internal/crosschain"
	"dragon-mcp/internal/lottery"
	"dragon-mcp/internal/tools"
	"dragon-mcp/internal/vrf"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type toolInfo struct {
	Name        tools.Name             `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	MinRole     string                 `json:"minRole"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy", "service": "Dragon MCP Server"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	specs := tools.Specs()
	out := make([]toolInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, toolInfo{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema(),
			MinRole:     spec.MinRole.String(),
		})
	}
	render.JSON(w, r, map[string]interface{}{"tools": out})
}

// handleBodyTool runs name with the JSON request body as arguments.
func (s *Server) handleBodyTool(name tools.Name) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readBody(r)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, errors.New("failed to decode request body"))
			return
		}
		s.run(w, r, name, raw)
	}
}

func (s *Server) handleLotteryStats(w http.ResponseWriter, r *http.Request) {
	raw, _ := json.Marshal(map[string]string{"chain": chi.URLParam(r, "chain")})
	s.run(w, r, tools.GetLotteryStats, raw)
}

func (s *Server) handleFee(w http.ResponseWriter, r *http.Request) {
	args := map[string]interface{}{
		"source_chain": chi.URLParam(r, "source"),
		"dest_chain":   chi.URLParam(r, "dest"),
	}
	if v := r.URL.Query().Get("payload_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, errors.New("payload_size must be an integer"))
			return
		}
		args["payload_size"] = size
	}
	raw, _ := json.Marshal(args)
	s.run(w, r, tools.EstimateLayerZeroFee, raw)
}

func (s *Server) handleVRF(w http.ResponseWriter, r *http.Request) {
	args := map[string]interface{}{}
	q := r.URL.Query()
	if v := q.Get("chain"); v != "" {
		args["chain"] = v
	}
	if v := q.Get("num_words"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, errors.New("num_words must be an integer"))
			return
		}
		args["num_words"] = n
	}
	raw, _ := json.Marshal(args)
	s.run(w, r, tools.RequestVRFRandomness, raw)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name, err := tools.ParseName(chi.URLParam(r, "tool"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, err)
		return
	}
	raw, err := readBody(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, errors.New("failed to decode request body"))
		return
	}
	s.run(w, r, name, raw)
}

// run checks the caller's role against the tool and writes its result.
func (s *Server) run(w http.ResponseWriter, r *http.Request, name tools.Name, raw json.RawMessage) {
	spec, ok := tools.Lookup(name)
	if !ok {
		respondError(w, r, http.StatusNotFound, tools.ErrUnknownTool)
		return
	}
	role, _ := RoleFrom(r.Context())
	if !role.Allows(spec.MinRole) {
		respondError(w, r, http.StatusForbidden, ErrInsufficientRole)
		return
	}

	out, err := s.tools.Call(r.Context(), name, raw)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Str("tool", string(name)).Msg("tool failed")
		}
		respondError(w, r, status, err)
		return
	}
	render.JSON(w, r, Response{Success: true, Data: out})
}

func statusFor(err error) int {
	var (
		inputErr *tools.InputError
		cfgErr   *chain.ConfigError
		vrfErr   *vrf.UnsupportedChainError
		callErr  *contract.CallError
	)
	switch {
	case errors.Is(err, tools.ErrUnknownTool), errors.Is(err, crosschain.ErrTxNotFound):
		return http.StatusNotFound
	case errors.As(err, &inputErr), errors.As(err, &cfgErr), errors.As(err, &vrfErr),
		errors.Is(err, contract.ErrNoSigner), errors.Is(err, lottery.ErrNegativeAmount):
		return http.StatusBadRequest
	case errors.As(err, &callErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, Response{Success: false, Error: err.Error()})
}

// readBody returns the request body as raw JSON; an empty body is an empty object.
func readBody(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := render.DecodeJSON(r.Body, &raw); err != nil {
		if errors.Is(err, io.EOF) {
			return json.RawMessage(`{}`), nil
		}
		return nil, err
	}
	return raw, nil
}
