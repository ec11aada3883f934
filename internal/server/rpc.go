package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/copyleftdev/hptune/internal/optimization"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type trialParams struct {
	TunerID string   `json:"tuner_id"`
	TrialID *int     `json:"trial_id"`
	Loss    *float64 `json:"loss,omitempty"`
	Cost    float64  `json:"cost,omitempty"`
}

// decodeParams accepts a params object or a one element array holding it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing required parameters", ErrInvalidRequest)
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if len(list) != 1 {
			return fmt.Errorf("%w: expected one parameter object", ErrInvalidRequest)
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (p trialParams) validate() error {
	if p.TunerID == "" {
		return fmt.Errorf("%w: tuner_id is required", ErrInvalidRequest)
	}
	if p.TrialID == nil {
		return fmt.Errorf("%w: trial_id is required", ErrInvalidRequest)
	}
	return nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "tuner.create":
		result, err = s.rpcCreate(request.Params)
	case "tuner.generate":
		result, err = s.rpcGenerate(request.Params)
	case "tuner.report":
		result, err = s.rpcReport(request.Params)
	case "tuner.status":
		result, err = s.rpcStatus(request.Params)
	case "tuner.close":
		result, err = s.rpcClose(request.Params)
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, rpcCode(err), err.Error(), request.ID)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func rpcCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, optimization.ErrInvalidSearchSpace),
		errors.Is(err, optimization.ErrUnknownStrategy):
		return codeInvalidParams
	}
	return codeServerError
}

func (s *Server) rpcCreate(raw json.RawMessage) (interface{}, error) {
	var req CreateRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	session, err := s.createSession(req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"tuner_id": session.ID,
		"strategy": session.Strategy,
	}, nil
}

func (s *Server) rpcGenerate(raw json.RawMessage) (interface{}, error) {
	var p trialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	params, err := s.generate(p.TunerID, *p.TrialID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"trial_id":   *p.TrialID,
		"parameters": params,
	}, nil
}

func (s *Server) rpcReport(raw json.RawMessage) (interface{}, error) {
	var p trialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.report(p.TunerID, *p.TrialID, ReportRequest{Loss: p.Loss, Cost: p.Cost}); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": "recorded"}, nil
}

func (s *Server) rpcStatus(raw json.RawMessage) (interface{}, error) {
	var p trialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return s.status(p.TunerID)
}

func (s *Server) rpcClose(raw json.RawMessage) (interface{}, error) {
	var p trialParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.closeSession(p.TunerID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"status": "closed"}, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Debug("JSON-RPC error",
		zap.Int("code", code),
		zap.String("message", message),
	)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
