package server

import (
	"net/http"

	"github.com/wolfeidau/tenantdesk/internal/auth"
)

type organizationRequest struct {
	Name string `json:"name"`
}

// Organisation routes are admin only; the permission check runs before any
// store access.

func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermTenantsManage); err != nil {
		respondError(w, r, err)
		return
	}

	orgs, err := s.stores.Organizations.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Organisations retrieved successfully", orgs)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermTenantsManage); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	org, err := s.stores.Organizations.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Organisation retrieved successfully", org)
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermTenantsManage); err != nil {
		respondError(w, r, err)
		return
	}

	var in organizationRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	org, err := s.stores.Organizations.Create(r.Context(), in.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Organisation created successfully", org)
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermTenantsManage); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var in organizationRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	org, err := s.stores.Organizations.Update(r.Context(), id, in.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Organisation updated successfully", org)
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermTenantsManage); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.stores.Organizations.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Organisation deleted successfully", nil)
}
