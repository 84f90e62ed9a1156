package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/parley/pkg/access"
	"github.com/platinummonkey/parley/pkg/httputil"
	"github.com/platinummonkey/parley/pkg/invites"
)

type inviteResponse struct {
	*invites.Invite
	State invites.State `json:"state"`
}

func newInviteResponse(inv *invites.Invite, now time.Time) inviteResponse {
	return inviteResponse{Invite: inv, State: inv.State(now)}
}

// createInvite handles POST /invites
func (s *Server) createInvite(w http.ResponseWriter, r *http.Request) {
	var req access.InviteParams
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	inv, err := s.service.CreateInvite(r.Context(), actor(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteCreated(w, newInviteResponse(inv, time.Now()))
}

// listInvites handles GET /invites
func (s *Server) listInvites(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListInvites(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now()
	out := make([]inviteResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, newInviteResponse(inv, now))
	}
	httputil.WriteSuccess(w, out)
}

// validateInvite handles GET /invites/{code}
func (s *Server) validateInvite(w http.ResponseWriter, r *http.Request) {
	code, err := httputil.ParsePathString(r, "code")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	inv, err := s.service.ValidateInvite(r.Context(), actor(r), code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, newInviteResponse(inv, time.Now()))
}

// previewInvite handles GET /invites/{code}/preview
func (s *Server) previewInvite(w http.ResponseWriter, r *http.Request) {
	code, err := httputil.ParsePathString(r, "code")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	preview, err := s.service.PreviewInvite(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, preview)
}
