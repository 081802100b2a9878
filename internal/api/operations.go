package api

import (
	"net/http"

	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/ledger"
	"finanzapp-core/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// listOperations handles GET /api/v1/assets/{assetID}/operations
func (s *Server) listOperations(w http.ResponseWriter, r *http.Request) {
	assetID, err := int64Param(r, "assetID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ops, err := s.ledger.List(r.Context(), assetID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

type holdingResponse struct {
	AssetID  int64                      `json:"asset_id"`
	Holding  float64                    `json:"holding"`
	Timeline []consistency.BalancePoint `json:"timeline"`
}

// holding handles GET /api/v1/assets/{assetID}/holding
func (s *Server) holding(w http.ResponseWriter, r *http.Request) {
	assetID, err := int64Param(r, "assetID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	points, err := s.ledger.Holding(r.Context(), assetID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := holdingResponse{AssetID: assetID, Timeline: points}
	if n := len(points); n > 0 {
		resp.Holding = points[n-1].Balance
	}
	writeJSON(w, http.StatusOK, resp)
}

// createOperation handles POST /api/v1/assets/{assetID}/operations
func (s *Server) createOperation(w http.ResponseWriter, r *http.Request) {
	assetID, err := int64Param(r, "assetID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in ledger.Input
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	op, violation, err := s.ledger.Create(r.Context(), assetID, in)
	switch {
	case err != nil:
		s.fail(w, r, err)
	case violation != nil:
		writeJSON(w, http.StatusConflict, newViolationResponse(violation))
	default:
		writeJSON(w, http.StatusCreated, op)
	}
}

// updateOperation handles PUT /api/v1/operations/{operationID}
func (s *Server) updateOperation(w http.ResponseWriter, r *http.Request) {
	var in ledger.Input
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	op, violation, err := s.ledger.Update(r.Context(), chi.URLParam(r, "operationID"), in)
	switch {
	case err != nil:
		s.fail(w, r, err)
	case violation != nil:
		writeJSON(w, http.StatusConflict, newViolationResponse(violation))
	default:
		writeJSON(w, http.StatusOK, op)
	}
}

// deleteOperation handles DELETE /api/v1/operations/{operationID}
func (s *Server) deleteOperation(w http.ResponseWriter, r *http.Request) {
	violation, err := s.ledger.Delete(r.Context(), chi.URLParam(r, "operationID"))
	switch {
	case err != nil:
		s.fail(w, r, err)
	case violation != nil:
		writeJSON(w, http.StatusConflict, newViolationResponse(violation))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// validateRequest is a dry run over a caller-supplied history.
type validateRequest struct {
	Existing []consistency.Event `json:"existing"`
	Action   consistency.Action  `json:"action"`
	Proposed consistency.Event   `json:"proposed"`
	TargetID string              `json:"target_id"`
}

type validateResponse struct {
	OK        bool                   `json:"ok"`
	Violation *consistency.Violation `json:"violation,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// validateOperation handles POST /api/v1/operations/validate
func (s *Server) validateOperation(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	violation, err := s.validator.Validate(req.Existing, req.Action, req.Proposed, req.TargetID)
	if err != nil {
		metrics.Validations.WithLabelValues(req.Action.String(), "error").Inc()
		s.fail(w, r, err)
		return
	}
	if violation != nil {
		metrics.Validations.WithLabelValues(req.Action.String(), "violation").Inc()
		writeJSON(w, http.StatusOK, validateResponse{Violation: violation, Message: violation.Message()})
		return
	}
	metrics.Validations.WithLabelValues(req.Action.String(), "ok").Inc()
	writeJSON(w, http.StatusOK, validateResponse{OK: true})
}
