package handlers

import (
	"context"
	"net/http"

	"triaright-platform/http/response"
	"triaright-platform/models"
)

type DashboardService interface {
	For(ctx context.Context, userID int, role string) (*models.Dashboard, error)
}

type DashboardHandler struct {
	svc DashboardService
}

func NewDashboardHandler(svc DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Get returns the caller's role-specific dashboard.
// GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	d, err := h.svc.For(r.Context(), id.UserID, id.Role)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Dashboard retrieved", d)
}
