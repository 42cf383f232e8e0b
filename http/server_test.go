package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"triaright-platform/errors"
	"triaright-platform/http/handlers"
	"triaright-platform/http/middleware"
	"triaright-platform/models"
	"triaright-platform/services/auth"
)

type tokens map[string]auth.Identity

func (t tokens) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	id, ok := t[token]
	if !ok {
		return auth.Identity{}, errors.E(errors.Unauthorized, "invalid or expired token")
	}
	return id, nil
}

type dashboards struct{}

func (dashboards) For(ctx context.Context, userID int, role string) (*models.Dashboard, error) {
	return &models.Dashboard{Role: role}, nil
}

func newTestRouter() http.Handler {
	return Routes{
		Auth:        handlers.NewAuthHandler(nil),
		Catalog:     handlers.NewCatalogHandler(nil),
		Enrollments: handlers.NewEnrollmentHandler(nil, nil, nil),
		Exams:       handlers.NewExamHandler(nil),
		Payments:    handlers.NewPaymentHandler(nil, nil),
		Internships: handlers.NewInternshipHandler(nil),
		Dashboard:   handlers.NewDashboardHandler(dashboards{}),
		DLQ:         handlers.NewDLQHandler(nil, nil),
		Authenticator: tokens{
			"admin":    {UserID: 1, Role: models.RoleAdmin},
			"student":  {UserID: 2, Role: models.RoleStudent},
			"employer": {UserID: 3, Role: models.RoleEmployer},
		},
		Limiter:        middleware.NewRateLimiter(nil, nil),
		FrontendOrigin: "*",
	}.Handler()
}

func TestRouteGuards(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"create course anonymous", http.MethodPost, "/api/courses", "", http.StatusUnauthorized},
		{"create course as student", http.MethodPost, "/api/courses", "student", http.StatusForbidden},
		{"enroll as employer", http.MethodPost, "/api/enrollments", "employer", http.StatusForbidden},
		{"post internship as student", http.MethodPost, "/api/internships", "student", http.StatusForbidden},
		{"dlq as student", http.MethodGet, "/api/admin/dlq/stats", "student", http.StatusForbidden},
		{"results export anonymous", http.MethodGet, "/api/admin/exams/1/results.xlsx", "", http.StatusUnauthorized},
		{"dashboard", http.MethodGet, "/api/dashboard", "employer", http.StatusOK},
		{"wrong method", http.MethodDelete, "/api/courses/1", "", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouterRecoversFromPanics(t *testing.T) {
	router := newTestRouter()
	// The catalog handler has no service, so reaching it panics.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/packs", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after recovered panic, got %d", rec.Code)
	}
}
