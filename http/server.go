package http

import (
	"context"
	"net/http"
	"time"

	"triaright-platform/http/handlers"
	"triaright-platform/http/middleware"
	"triaright-platform/logger"
	"triaright-platform/models"
)

// Routes groups the handlers and guards the router is assembled from.
type Routes struct {
	Auth        *handlers.AuthHandler
	Catalog     *handlers.CatalogHandler
	Enrollments *handlers.EnrollmentHandler
	Exams       *handlers.ExamHandler
	Payments    *handlers.PaymentHandler
	Internships *handlers.InternshipHandler
	Dashboard   *handlers.DashboardHandler
	DLQ         *handlers.DLQHandler

	Authenticator  middleware.Authenticator
	Limiter        *middleware.RateLimiter
	RateLimit      int
	RateLimitEvery time.Duration
	FrontendOrigin string
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.HandlerFunc) http.Handler {
	var out http.Handler = h
	for i := len(c) - 1; i >= 0; i-- {
		out = c[i](out)
	}
	return out
}

// Handler builds the API router.
func (rt Routes) Handler() http.Handler {
	mux := http.NewServeMux()

	authed := chain{middleware.RequireAuth(rt.Authenticator)}
	role := func(roles ...string) chain {
		return chain{middleware.RequireAuth(rt.Authenticator), middleware.RequireRole(roles...)}
	}
	admin := role(models.RoleAdmin)
	student := role(models.RoleStudent)
	employer := role(models.RoleEmployer)
	limited := func(name string, c chain) chain {
		return append(chain{rt.Limiter.Limit(name, rt.RateLimit, rt.RateLimitEvery)}, c...)
	}

	mux.Handle("GET /health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	// Auth
	mux.HandleFunc("POST /api/auth/register", rt.Auth.Register)
	mux.Handle("POST /api/auth/login", limited("login", nil).then(rt.Auth.Login))
	mux.Handle("GET /api/auth/me", authed.then(rt.Auth.Me))
	mux.Handle("POST /api/auth/logout", authed.then(rt.Auth.Logout))

	// Catalog
	mux.HandleFunc("GET /api/courses", rt.Catalog.ListCourses)
	mux.HandleFunc("GET /api/courses/{id}", rt.Catalog.GetCourse)
	mux.Handle("POST /api/courses", admin.then(rt.Catalog.CreateCourse))
	mux.Handle("PUT /api/courses/{id}", admin.then(rt.Catalog.UpdateCourse))
	mux.HandleFunc("GET /api/packs", rt.Catalog.ListPacks)
	mux.Handle("POST /api/packs", admin.then(rt.Catalog.CreatePack))
	mux.Handle("POST /api/coupons", admin.then(rt.Catalog.CreateCoupon))

	// Enrollments, progress and certificates
	mux.Handle("POST /api/enrollments", student.then(rt.Enrollments.Enroll))
	mux.Handle("GET /api/enrollments", student.then(rt.Enrollments.List))
	mux.Handle("GET /api/enrollments/{id}", student.then(rt.Enrollments.Get))
	mux.Handle("POST /api/enrollments/{id}/progress", student.then(rt.Enrollments.ReportProgress))
	mux.Handle("POST /api/enrollments/{id}/complete", student.then(rt.Enrollments.Complete))
	mux.Handle("POST /api/enrollments/{id}/certificate", student.then(rt.Enrollments.IssueCertificate))
	mux.HandleFunc("GET /api/certificates/{number}", rt.Enrollments.DownloadCertificate)

	// Exams
	mux.Handle("POST /api/exams", admin.then(rt.Exams.Create))
	mux.Handle("POST /api/exams/{id}/questions/import", admin.then(rt.Exams.ImportQuestions))
	mux.Handle("GET /api/exams/{id}", authed.then(rt.Exams.Get))
	mux.Handle("POST /api/exams/{id}/attempts", student.then(rt.Exams.Start))
	mux.Handle("GET /api/attempts/{id}", authed.then(rt.Exams.GetAttempt))
	mux.Handle("PUT /api/attempts/{id}/answers", authed.then(rt.Exams.Answer))
	mux.Handle("POST /api/attempts/{id}/submit", authed.then(rt.Exams.Submit))
	mux.Handle("GET /api/admin/exams/{id}/results.xlsx", admin.then(rt.Exams.ExportResults))

	// Payments
	mux.Handle("POST /api/coupons/validate", limited("coupon", authed).then(rt.Payments.ValidateCoupon))
	mux.Handle("POST /api/payments/orders", student.then(rt.Payments.CreateOrder))
	mux.Handle("POST /api/payments/verify", student.then(rt.Payments.Verify))
	mux.HandleFunc("POST /api/payments/webhook", rt.Payments.Webhook)

	// Internships
	mux.HandleFunc("GET /api/internships", rt.Internships.List)
	mux.Handle("POST /api/internships", employer.then(rt.Internships.Create))
	mux.Handle("POST /api/internships/{id}/applications", student.then(rt.Internships.Apply))
	mux.Handle("GET /api/internships/{id}/applications", employer.then(rt.Internships.Applications))
	mux.Handle("POST /api/applications/{id}/review", employer.then(rt.Internships.Review))

	mux.Handle("GET /api/dashboard", authed.then(rt.Dashboard.Get))

	// DLQ management
	mux.Handle("GET /api/admin/dlq/messages", admin.then(rt.DLQ.List))
	mux.Handle("GET /api/admin/dlq/stats", admin.then(rt.DLQ.Stats))
	mux.Handle("POST /api/admin/dlq/messages/{id}/retry", admin.then(rt.DLQ.Retry))
	mux.Handle("POST /api/admin/dlq/messages/{id}/resolve", admin.then(rt.DLQ.Resolve))

	return chain{middleware.CORS(rt.FrontendOrigin), middleware.Recover, middleware.Logging}.then(mux.ServeHTTP)
}

// Server owns the listener lifecycle.
type Server struct {
	srv *http.Server
}

func NewServer(port string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	logger.Info("Server starting on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
