// Package exam runs timed exam attempts: the client-visible state machine
// and the server-side registry that grades and persists submissions.
package exam

import (
	"context"
	"fmt"
	"io"
	"sync"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
	"triaright-platform/services/notify"
	"triaright-platform/services/report"
)

// Store persists exams and attempts.
type Store interface {
	CreateExam(ctx context.Context, exam *models.Exam) error
	GetExam(ctx context.Context, id int) (*models.Exam, error)
	UpdateQuestions(ctx context.Context, examID int, questions []models.Question) error
	CountAttempts(ctx context.Context, examID, userID int) (int, error)
	BestPercentage(ctx context.Context, examID, userID int) (*float64, error)
	GetInProgressAttempt(ctx context.Context, examID, userID int) (*models.Attempt, error)
	ListInProgressAttempts(ctx context.Context) ([]models.Attempt, error)
	CreateAttempt(ctx context.Context, a *models.Attempt) error
	GetAttempt(ctx context.Context, id int) (*models.Attempt, error)
	SaveAnswers(ctx context.Context, attemptID int, answers map[int]string) error
	// CompleteAttempt stores the verdict only while the attempt is still in
	// progress and returns a Conflict error otherwise.
	CompleteAttempt(ctx context.Context, a *models.Attempt) error
	ListResults(ctx context.Context, examID int) ([]models.ResultRow, error)
}

// UserLookup resolves recipients for result emails.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// AttemptView is an attempt plus its live countdown.
type AttemptView struct {
	models.Attempt
	State     State `json:"state"`
	Remaining int   `json:"remaining_seconds"`
}

// Service is the authoritative owner of attempts. Each running attempt has
// one Engine whose Submitter grades and persists.
type Service struct {
	store  Store
	users  UserLookup
	events kafka.Publisher
	mail   notify.Sender
	clock  clock.Clock

	mu      sync.Mutex
	engines map[int]*Engine
}

func NewService(store Store, users UserLookup, events kafka.Publisher, mail notify.Sender, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		store:   store,
		users:   users,
		events:  events,
		mail:    mail,
		clock:   clk,
		engines: make(map[int]*Engine),
	}
}

// CreateExam validates and stores a new exam.
func (s *Service) CreateExam(ctx context.Context, exam *models.Exam) error {
	if err := ValidateExam(exam); err != nil {
		return err
	}
	if err := s.store.CreateExam(ctx, exam); err != nil {
		return err
	}
	logger.Info("[EXAM] created exam %d %q with %d questions", exam.ID, exam.Title, len(exam.Questions))
	return nil
}

// GetExam returns the full exam including correct answers.
func (s *Service) GetExam(ctx context.Context, examID int) (*models.Exam, error) {
	return s.store.GetExam(ctx, examID)
}

// ImportQuestions replaces an exam's questions with an xlsx question bank.
func (s *Service) ImportQuestions(ctx context.Context, examID int, r io.Reader) ([]models.Question, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := report.ParseQuestions(r)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}
	if err := s.store.UpdateQuestions(ctx, examID, questions); err != nil {
		return nil, err
	}
	logger.Info("[EXAM] imported %d questions into exam %d", len(questions), examID)
	return questions, nil
}

// ExportResults writes the exam's submitted attempts as xlsx.
func (s *Service) ExportResults(ctx context.Context, examID int, w io.Writer) error {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	rows, err := s.store.ListResults(ctx, examID)
	if err != nil {
		return err
	}
	return report.WriteResults(w, exam.Title, rows)
}

// GetExamForStudent returns the exam without answers plus the user's attempt usage.
func (s *Service) GetExamForStudent(ctx context.Context, userID, examID int) (*models.ExamView, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	used, err := s.store.CountAttempts(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	view := &models.ExamView{Exam: exam.Public(), AttemptsUsed: used}
	if exam.MaxAttempts > 0 {
		left := exam.MaxAttempts - used
		if left < 0 {
			left = 0
		}
		view.AttemptsRemaining = &left
	}
	if a, err := s.store.GetInProgressAttempt(ctx, examID, userID); err == nil {
		view.InProgressAttempt = a
	} else if !errors.IsKind(err, errors.NotFound) {
		return nil, err
	}
	if view.BestPercentage, err = s.store.BestPercentage(ctx, examID, userID); err != nil {
		return nil, err
	}
	return view, nil
}

// StartAttempt opens a new attempt, or returns the user's running one.
func (s *Service) StartAttempt(ctx context.Context, userID, examID int) (*AttemptView, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if len(exam.Questions) == 0 {
		return nil, errors.E(errors.Invalid, "exam has no questions")
	}

	existing, err := s.store.GetInProgressAttempt(ctx, examID, userID)
	switch {
	case err == nil:
		if _, err := s.ensureEngine(exam, existing); err != nil {
			return nil, err
		}
		return s.view(existing), nil
	case !errors.IsKind(err, errors.NotFound):
		return nil, err
	}

	used, err := s.store.CountAttempts(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if exam.MaxAttempts > 0 && used >= exam.MaxAttempts {
		return nil, errors.E(errors.Forbidden, fmt.Sprintf("maximum of %d attempts reached", exam.MaxAttempts))
	}

	now := s.clock.Now().UTC()
	a := &models.Attempt{
		ExamID:        examID,
		UserID:        userID,
		AttemptNumber: used + 1,
		Answers:       map[int]string{},
		Status:        models.AttemptInProgress,
		StartedAt:     now,
		Deadline:      now.Add(exam.TimeLimit()),
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.ensureEngine(exam, a); err != nil {
		return nil, err
	}
	logger.Info("[EXAM] user %d started attempt %d (#%d) on exam %d", userID, a.ID, a.AttemptNumber, examID)
	return s.view(a), nil
}

// ensureEngine returns the running engine for a, starting one from the
// persisted deadline and answers when none is registered.
func (s *Service) ensureEngine(exam *models.Exam, a *models.Attempt) (*Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines[a.ID]; ok {
		return e, nil
	}
	e := NewEngine(*exam, a.ID, SubmitterFunc(s.finalize), s.clock)
	s.engines[a.ID] = e
	if err := e.Resume(a.Answers, a.Deadline.Sub(s.clock.Now())); err != nil {
		delete(s.engines, a.ID)
		return nil, err
	}
	go func() {
		<-e.Done()
		s.mu.Lock()
		delete(s.engines, a.ID)
		s.mu.Unlock()
	}()
	return e, nil
}

func (s *Service) engine(id int) *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engines[id]
}

func (s *Service) view(a *models.Attempt) *AttemptView {
	v := &AttemptView{Attempt: *a, State: StateSubmitted}
	if a.Status == models.AttemptInProgress {
		v.State = StateInProgress
		if e := s.engine(a.ID); e != nil {
			snap := e.Snapshot()
			v.State = snap.State
			v.Remaining = snap.Remaining
			v.Answers = snap.Answers
		}
	}
	return v
}

// ownedAttempt loads an attempt and checks it belongs to userID.
func (s *Service) ownedAttempt(ctx context.Context, userID, attemptID int) (*models.Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, errors.E(errors.Forbidden, "attempt belongs to another user")
	}
	return a, nil
}

// running returns the engine of an in-progress attempt, restarting it if the
// process lost it.
func (s *Service) running(ctx context.Context, a *models.Attempt) (*Engine, error) {
	if a.Status != models.AttemptInProgress {
		return nil, ErrAlreadySubmitted
	}
	if e := s.engine(a.ID); e != nil {
		return e, nil
	}
	exam, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}
	return s.ensureEngine(exam, a)
}

// GetAttempt returns the attempt with its live countdown.
func (s *Service) GetAttempt(ctx context.Context, userID, attemptID int) (*AttemptView, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// SaveAnswer records one answer and persists the answer map.
func (s *Service) SaveAnswer(ctx context.Context, userID, attemptID, questionID int, option string) (*AttemptView, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	e, err := s.running(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := e.SelectAnswer(questionID, option); err != nil {
		return nil, err
	}
	if err := s.store.SaveAnswers(ctx, attemptID, e.Snapshot().Answers); err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// SubmitAttempt is the manual submit.
func (s *Service) SubmitAttempt(ctx context.Context, userID, attemptID int) (*models.AttemptResult, error) {
	a, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	e, err := s.running(ctx, a)
	if err != nil {
		return nil, err
	}
	return e.Submit(ctx)
}

// finalize is every engine's Submitter: grade, persist, announce.
func (s *Service) finalize(ctx context.Context, attemptID int, answers map[int]string, reason SubmitReason) (*models.AttemptResult, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AttemptInProgress {
		return nil, ErrAlreadySubmitted
	}
	exam, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return nil, err
	}

	res := Grade(exam, answers)
	res.AttemptID = attemptID
	res.AutoSubmitted = reason == ReasonTimeout

	now := s.clock.Now().UTC()
	a.Answers = answers
	a.Score = res.Score
	a.Percentage = res.Percentage
	a.Passed = res.Passed
	a.AutoSubmitted = res.AutoSubmitted
	a.Status = models.AttemptSubmitted
	a.SubmittedAt = &now
	if err := s.store.CompleteAttempt(ctx, a); err != nil {
		return nil, err
	}
	logger.Info("[EXAM] attempt %d submitted (%s): %d/%d, %.2f%%, passed=%v",
		attemptID, reason, res.Score, res.Total, res.Percentage, res.Passed)

	s.announce(ctx, exam, a, res)
	return &res, nil
}

func (s *Service) announce(ctx context.Context, exam *models.Exam, a *models.Attempt, res models.AttemptResult) {
	if err := s.events.PublishEvent(ctx, kafka.TopicExams, fmt.Sprintf("attempt-%d", a.ID), kafka.EventExamSubmitted, map[string]interface{}{
		"attempt_id":     a.ID,
		"exam_id":        a.ExamID,
		"user_id":        a.UserID,
		"score":          res.Score,
		"total":          res.Total,
		"percentage":     res.Percentage,
		"passed":         res.Passed,
		"auto_submitted": res.AutoSubmitted,
	}); err != nil {
		logger.Warn("[EXAM] could not publish result of attempt %d: %v", a.ID, err)
	}

	u, err := s.users.GetUserByID(ctx, a.UserID)
	if err != nil {
		logger.Warn("[EXAM] no recipient for attempt %d: %v", a.ID, err)
		return
	}
	email := notify.ExamResult(u.Email, u.Name, exam.Title, res.Score, res.Total, res.Percentage, res.Passed, res.AutoSubmitted)
	if err := s.mail.Send(ctx, email); err != nil {
		logger.Warn("[EXAM] could not queue result email for attempt %d: %v", a.ID, err)
	}
}

// ResumeAll restarts engines for attempts left in progress by a previous
// process. Attempts past their deadline are submitted right away.
func (s *Service) ResumeAll(ctx context.Context) error {
	attempts, err := s.store.ListInProgressAttempts(ctx)
	if err != nil {
		return err
	}
	for i := range attempts {
		a := &attempts[i]
		exam, err := s.store.GetExam(ctx, a.ExamID)
		if err != nil {
			logger.Error("[EXAM] cannot resume attempt %d: %v", a.ID, err)
			continue
		}
		if _, err := s.ensureEngine(exam, a); err != nil {
			logger.Error("[EXAM] cannot resume attempt %d: %v", a.ID, err)
		}
	}
	if len(attempts) > 0 {
		logger.Info("[EXAM] resumed %d in-progress attempts", len(attempts))
	}
	return nil
}

// Shutdown stops every countdown. Attempts stay in progress and resume on
// the next start.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.engines {
		e.Stop()
	}
}

// Active returns the number of running attempts.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}
