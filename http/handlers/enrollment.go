package handlers

import (
	"context"
	"net/http"
	"path/filepath"

	"triaright-platform/http/response"
	"triaright-platform/models"
)

type EnrollmentService interface {
	Enroll(ctx context.Context, userID, courseID int) (*models.Enrollment, error)
	Enrollments(ctx context.Context, userID int) ([]models.Enrollment, error)
	Enrollment(ctx context.Context, userID, id int) (*models.Enrollment, error)
}

type ProgressService interface {
	Report(ctx context.Context, userID, enrollmentID, topic, subtopic int, position float64) (*models.ProgressUpdate, error)
	MarkComplete(ctx context.Context, userID, enrollmentID, topic, subtopic int) (*models.CourseProgress, error)
	Summary(ctx context.Context, userID, enrollmentID int) (*models.CourseProgress, error)
}

type CertificateService interface {
	Issue(ctx context.Context, userID, enrollmentID int) (*models.Certificate, error)
	Lookup(ctx context.Context, number string) (*models.Certificate, error)
}

type EnrollmentHandler struct {
	enrollments  EnrollmentService
	progress     ProgressService
	certificates CertificateService
}

func NewEnrollmentHandler(e EnrollmentService, p ProgressService, c CertificateService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: e, progress: p, certificates: c}
}

type enrollRequest struct {
	CourseID int `json:"course_id"`
}

type progressRequest struct {
	TopicIndex      int     `json:"topic_index"`
	SubtopicIndex   int     `json:"subtopic_index"`
	PositionSeconds float64 `json:"position_seconds"`
}

type enrollmentDetail struct {
	Enrollment *models.Enrollment     `json:"enrollment"`
	Progress   *models.CourseProgress `json:"progress"`
}

// Enroll enrolls the caller in an unpaid course.
// POST /api/enrollments
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req enrollRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	enr, err := h.enrollments.Enroll(r.Context(), id.UserID, req.CourseID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Enrolled successfully", enr)
}

// List GET /api/enrollments
func (h *EnrollmentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	list, err := h.enrollments.Enrollments(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Enrollments retrieved", list)
}

// Get returns an enrollment with its completion summary.
// GET /api/enrollments/{id}
func (h *EnrollmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	enrollmentID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	enr, err := h.enrollments.Enrollment(r.Context(), id.UserID, enrollmentID)
	if err != nil {
		response.Error(w, err)
		return
	}
	summary, err := h.progress.Summary(r.Context(), id.UserID, enrollmentID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Enrollment retrieved", enrollmentDetail{Enrollment: enr, Progress: summary})
}

// ReportProgress records a player position for one subtopic.
// POST /api/enrollments/{id}/progress
func (h *EnrollmentHandler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	enrollmentID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req progressRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	update, err := h.progress.Report(r.Context(), id.UserID, enrollmentID, req.TopicIndex, req.SubtopicIndex, req.PositionSeconds)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Progress recorded", update)
}

// Complete marks one subtopic complete explicitly.
// POST /api/enrollments/{id}/complete
func (h *EnrollmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	enrollmentID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req progressRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	summary, err := h.progress.MarkComplete(r.Context(), id.UserID, enrollmentID, req.TopicIndex, req.SubtopicIndex)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Subtopic completed", summary)
}

// IssueCertificate POST /api/enrollments/{id}/certificate
func (h *EnrollmentHandler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	enrollmentID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	cert, err := h.certificates.Issue(r.Context(), id.UserID, enrollmentID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Certificate issued", cert)
}

// DownloadCertificate streams the certificate PDF. Anyone holding the number
// can verify it.
// GET /api/certificates/{number}
func (h *EnrollmentHandler) DownloadCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.certificates.Lookup(r.Context(), r.PathValue("number"))
	if err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(cert.FilePath)+`"`)
	http.ServeFile(w, r, cert.FilePath)
}
