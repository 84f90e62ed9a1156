package api

import (
	"net/http"

	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/httputil"
)

// listUsers handles GET /users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListUsers(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// updateUserRole handles PUT /users/{id}/role
func (s *Server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Role auth.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.service.UpdateUserRole(r.Context(), actor(r), id, req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// updateUserStatus handles PUT /users/{id}/status
func (s *Server) updateUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Status auth.Status `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.service.UpdateUserStatus(r.Context(), actor(r), id, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
