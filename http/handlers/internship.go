package handlers

import (
	"context"
	"net/http"

	"triaright-platform/http/response"
	"triaright-platform/models"
	"triaright-platform/services/internship"
)

type InternshipService interface {
	Create(ctx context.Context, employerID int, in *models.Internship) error
	List(ctx context.Context) ([]models.Internship, error)
	Apply(ctx context.Context, studentID, internshipID int, req internship.ApplyRequest) (*models.Application, error)
	Applications(ctx context.Context, employerID, internshipID int) ([]models.Application, error)
	Review(ctx context.Context, employerID, applicationID int, req internship.ReviewRequest) (*models.Application, error)
}

type InternshipHandler struct {
	svc InternshipService
}

func NewInternshipHandler(svc InternshipService) *InternshipHandler {
	return &InternshipHandler{svc: svc}
}

// Create POST /api/internships
func (h *InternshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var in models.Internship
	if err := response.DecodeJSON(r, &in); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.svc.Create(r.Context(), id.UserID, &in); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Internship posted", in)
}

// List GET /api/internships
func (h *InternshipHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Internships retrieved", list)
}

// Apply POST /api/internships/{id}/applications
func (h *InternshipHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	internshipID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req internship.ApplyRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	app, err := h.svc.Apply(r.Context(), id.UserID, internshipID, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Application submitted", app)
}

// Applications GET /api/internships/{id}/applications
func (h *InternshipHandler) Applications(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	internshipID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	apps, err := h.svc.Applications(r.Context(), id.UserID, internshipID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Applications retrieved", apps)
}

// Review accepts or rejects an application.
// POST /api/applications/{id}/review
func (h *InternshipHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	applicationID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req internship.ReviewRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	app, err := h.svc.Review(r.Context(), id.UserID, applicationID, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Application reviewed", app)
}
