package api

import (
	"net/http"
)

// listAssets handles GET /api/v1/catalog/assets
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.session.Assets(r.Context())
	if err != nil {
		s.failUpstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// getAsset handles GET /api/v1/catalog/assets/{id}
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	asset, err := s.session.Asset(r.Context(), id)
	if err != nil {
		s.failUpstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// listRecommendations handles GET /api/v1/catalog/recommendations
func (s *Server) listRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.session.Recommendations(r.Context())
	if err != nil {
		s.failUpstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// getRecommendation handles GET /api/v1/catalog/recommendations/{id}
func (s *Server) getRecommendation(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.session.Recommendation(r.Context(), id)
	if err != nil {
		s.failUpstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login handles POST /api/v1/session/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if err := s.session.Login(r.Context(), req.Username, req.Password); err != nil {
		s.failUpstream(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// logout handles POST /api/v1/session/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}
