package handlers

import (
	"context"
	"net/http"

	"triaright-platform/http/response"
	"triaright-platform/models"
	"triaright-platform/services/auth"
)

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Logout(ctx context.Context, id auth.Identity) error
	Me(ctx context.Context, id auth.Identity) (*models.User, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register creates an account and returns a session.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	session, err := h.svc.Register(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Registration successful", session)
}

// Login issues a bearer token.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	session, err := h.svc.Login(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Login successful", session)
}

// Me returns the caller's profile.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	user, err := h.svc.Me(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Profile retrieved", user)
}

// Logout revokes the caller's token.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.svc.Logout(r.Context(), id); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Logged out", nil)
}
