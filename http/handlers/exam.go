package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"triaright-platform/errors"
	"triaright-platform/http/response"
	"triaright-platform/models"
	"triaright-platform/services/exam"
)

type ExamService interface {
	CreateExam(ctx context.Context, e *models.Exam) error
	GetExam(ctx context.Context, examID int) (*models.Exam, error)
	ImportQuestions(ctx context.Context, examID int, r io.Reader) ([]models.Question, error)
	ExportResults(ctx context.Context, examID int, w io.Writer) error
	GetExamForStudent(ctx context.Context, userID, examID int) (*models.ExamView, error)
	StartAttempt(ctx context.Context, userID, examID int) (*exam.AttemptView, error)
	GetAttempt(ctx context.Context, userID, attemptID int) (*exam.AttemptView, error)
	SaveAnswer(ctx context.Context, userID, attemptID, questionID int, option string) (*exam.AttemptView, error)
	SubmitAttempt(ctx context.Context, userID, attemptID int) (*models.AttemptResult, error)
}

type ExamHandler struct {
	svc ExamService
}

func NewExamHandler(svc ExamService) *ExamHandler {
	return &ExamHandler{svc: svc}
}

const maxQuestionBank = 10 << 20

type answerRequest struct {
	QuestionID int    `json:"question_id"`
	Option     string `json:"option"`
}

// Create POST /api/exams
func (h *ExamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var e models.Exam
	if err := response.DecodeJSON(r, &e); err != nil {
		response.Error(w, err)
		return
	}
	e.ID = 0
	if err := h.svc.CreateExam(r.Context(), &e); err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Exam created", e)
}

// ImportQuestions replaces the question bank from an uploaded xlsx file.
// POST /api/exams/{id}/questions/import (multipart, field "file")
func (h *ExamHandler) ImportQuestions(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBank)
	file, _, err := r.FormFile("file")
	if err != nil {
		response.Error(w, errors.E(errors.Invalid, "a question bank file is required", err))
		return
	}
	defer file.Close()

	questions, err := h.svc.ImportQuestions(r.Context(), examID, file)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Questions imported", map[string]interface{}{
		"count":     len(questions),
		"questions": questions,
	})
}

// Get returns the full exam to admins and the answer-free view to everyone else.
// GET /api/exams/{id}
func (h *ExamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	examID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if id.Role == models.RoleAdmin {
		e, err := h.svc.GetExam(r.Context(), examID)
		if err != nil {
			response.Error(w, err)
			return
		}
		response.SuccessResponse(w, http.StatusOK, "Exam retrieved", e)
		return
	}
	view, err := h.svc.GetExamForStudent(r.Context(), id.UserID, examID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Exam retrieved", view)
}

// Start POST /api/exams/{id}/attempts
func (h *ExamHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	examID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	view, err := h.svc.StartAttempt(r.Context(), id.UserID, examID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Attempt started", view)
}

// GetAttempt GET /api/attempts/{id}
func (h *ExamHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	attemptID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	view, err := h.svc.GetAttempt(r.Context(), id.UserID, attemptID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Attempt retrieved", view)
}

// Answer PUT /api/attempts/{id}/answers
func (h *ExamHandler) Answer(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	attemptID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req answerRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	view, err := h.svc.SaveAnswer(r.Context(), id.UserID, attemptID, req.QuestionID, req.Option)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Answer saved", view)
}

// Submit POST /api/attempts/{id}/submit
func (h *ExamHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	attemptID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.svc.SubmitAttempt(r.Context(), id.UserID, attemptID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Attempt submitted", result)
}

// ExportResults streams every submitted attempt as a spreadsheet.
// GET /api/admin/exams/{id}/results.xlsx
func (h *ExamHandler) ExportResults(w http.ResponseWriter, r *http.Request) {
	examID, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	// Render fully before writing headers so failures still produce JSON.
	var buf bytes.Buffer
	if err := h.svc.ExportResults(r.Context(), examID, &buf); err != nil {
		response.Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, examID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
