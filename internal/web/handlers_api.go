package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"matter-sensor-node/internal/substrate"
)

const (
	maxBodyBytes   = 1 << 20
	requestTimeout = 5 * time.Second
)

func (s *Server) handleAPINode(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

type writeAttributeRequest struct {
	Endpoint  uint16 `json:"endpoint"`
	Cluster   uint32 `json:"cluster"`
	Attribute uint32 `json:"attribute"`
	Value     any    `json:"value"`
}

// handleAPIWriteAttribute performs a controller write. The JSON value is
// encoded with the attribute's declared type; null writes the null value of
// nullable attributes.
func (s *Server) handleAPIWriteAttribute(w http.ResponseWriter, r *http.Request) {
	var req writeAttributeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	t, ok := s.registry.AttributeType(req.Cluster, req.Attribute)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown attribute 0x%04X of cluster 0x%04X", req.Attribute, req.Cluster))
		return
	}
	val, err := substrate.NewAttrVal(t, req.Value)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.ctrl.Write(ctx, req.Endpoint, req.Cluster, req.Attribute, val); err != nil {
		s.writeControllerError(w, "write attribute", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "value": val.String()})
}

type identifyRequest struct {
	Action  string `json:"action"` // start (default), stop, effect
	Effect  uint8  `json:"effect"`
	Variant uint8  `json:"variant"`
}

func (s *Server) handleAPIIdentify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 16)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}

	req := identifyRequest{Action: "start"}
	if r.ContentLength != 0 && !s.decodeBody(w, r, &req) {
		return
	}

	var kind substrate.IdentifyCallbackType
	switch req.Action {
	case "start", "":
		kind = substrate.IdentifyStart
	case "stop":
		kind = substrate.IdentifyStop
	case "effect":
		kind = substrate.IdentifyEffect
	default:
		s.writeError(w, http.StatusBadRequest, "action must be start, stop or effect")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.ctrl.Identify(ctx, uint16(id), kind, req.Effect, req.Variant); err != nil {
		s.writeControllerError(w, "identify", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type commissionRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleAPICommission(w http.ResponseWriter, r *http.Request) {
	var req commissionRequest
	if r.ContentLength != 0 && !s.decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	index, err := s.ctrl.Commission(ctx, req.Label)
	if err != nil {
		s.writeControllerError(w, "commission", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"status": "ok", "fabric_index": index})
}

func (s *Server) handleAPIRemoveFabric(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(r.PathValue("index"), 10, 8)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid fabric index")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.ctrl.RemoveFabric(ctx, uint8(index)); err != nil {
		s.writeControllerError(w, "remove fabric", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIOpenWindow(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.OpenCommissioningWindow(); err != nil {
		s.writeControllerError(w, "open commissioning window", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeControllerError maps substrate errors to HTTP statuses. Anything
// unrecognised is logged and reported as an internal error.
func (s *Server) writeControllerError(w http.ResponseWriter, op string, err error) {
	var status int
	switch {
	case errors.Is(err, substrate.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, substrate.ErrReadOnly):
		status = http.StatusForbidden
	case errors.Is(err, substrate.ErrTypeMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, substrate.ErrNotStarted), errors.Is(err, substrate.ErrCommissioningClosed):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		s.logger.Error(op, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
