package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/login"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

type userRequest struct {
	login.Registration
	Role string `json:"role"`
}

// UnmarshalJSON keeps Registration's own decoding, which would otherwise be
// promoted and drop role.
func (u *userRequest) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &u.Registration); err != nil {
		return err
	}

	var extra struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(b, &extra); err != nil {
		return err
	}
	u.Role = extra.Role

	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in login.Registration
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.login.Register(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "User registered successfully", res)
}

func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	if in.Email == "" || in.Password == "" {
		respondError(w, r, fmt.Errorf("%w: email and password are required", store.ErrInvalidInput))
		return
	}

	res, err := s.login.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Login successful", res)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, auth.ErrUnauthenticated)
		return
	}

	user, err := s.stores.Users.Get(r.Context(), p.UserID())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Profile retrieved successfully", user)
}

// listUsers lists the members of one organisation. Admins pick it with
// organisationId and default to their own.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermUsersManage)
	if err != nil {
		respondError(w, r, err)
		return
	}

	tenantID := p.TenantID()
	if raw := r.URL.Query().Get("organisationId"); raw != "" {
		tenantID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || tenantID <= 0 {
			respondError(w, r, fmt.Errorf("%w: organisationId must be a positive integer", store.ErrInvalidInput))
			return
		}
	}

	users, err := s.stores.Users.ListByTenant(r.Context(), tenantID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Users retrieved successfully", users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermUsersManage); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user, err := s.stores.Users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "User retrieved successfully", user)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if _, err := principal(r, auth.PermUsersManage); err != nil {
		respondError(w, r, err)
		return
	}

	var in userRequest
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	role, err := models.ParseRole(in.Role)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, in.Role))
		return
	}

	user, err := s.login.CreateUser(r.Context(), in.Registration, role)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "User created successfully", user)
}
