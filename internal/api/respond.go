package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"finanzapp-core/internal/backend"
	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/ledger"
	"finanzapp-core/internal/logger"
	"finanzapp-core/internal/valuation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// violationResponse is the 409 body for a rejected mutation.
type violationResponse struct {
	Error   string            `json:"error"`
	Date    string            `json:"date"`
	Balance float64           `json:"balance"`
	Event   consistency.Event `json:"event"`
}

func newViolationResponse(v *consistency.Violation) violationResponse {
	return violationResponse{
		Error:   v.Message(),
		Date:    v.Date(),
		Balance: v.Balance,
		Event:   v.Event,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, consistency.ErrTargetNotFound),
		errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidOperation),
		errors.Is(err, consistency.ErrMissingTargetID),
		errors.Is(err, consistency.ErrUnknownKind),
		errors.Is(err, consistency.ErrUnknownAction),
		errors.Is(err, consistency.ErrNegativeQuantity),
		errors.Is(err, consistency.ErrInvalidQuantity),
		errors.Is(err, valuation.ErrUnknownSortKey),
		errors.Is(err, valuation.ErrUnknownDirection),
		errors.Is(err, valuation.ErrUnknownDisplayCurrency),
		errors.Is(err, valuation.ErrUnknownClass):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// failUpstream is fail for handlers whose unclassified errors come from the
// backend, reported as 502.
func (s *Server) failUpstream(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	s.respondError(w, r, err, status)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status >= 500 {
		logger.WithRequest(s.logger, r).Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, err.Error(), status)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}
