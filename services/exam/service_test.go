package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/models"
	"triaright-platform/services/notify"
)

type memStore struct {
	mu       sync.Mutex
	exams    map[int]*models.Exam
	attempts map[int]*models.Attempt
	nextID   int
}

func newMemStore(exams ...models.Exam) *memStore {
	s := &memStore{exams: map[int]*models.Exam{}, attempts: map[int]*models.Attempt{}}
	for i := range exams {
		e := exams[i]
		s.exams[e.ID] = &e
	}
	return s
}

func (s *memStore) CreateExam(ctx context.Context, e *models.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = 100 + s.nextID
	cp := *e
	s.exams[e.ID] = &cp
	return nil
}

func (s *memStore) GetExam(ctx context.Context, id int) (*models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "exam not found")
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) UpdateQuestions(ctx context.Context, id int, qs []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[id].Questions = qs
	return nil
}

func (s *memStore) CountAttempts(ctx context.Context, examID, userID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.ExamID == examID && a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) BestPercentage(ctx context.Context, examID, userID int) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *float64
	for _, a := range s.attempts {
		if a.ExamID == examID && a.UserID == userID && a.Status == models.AttemptSubmitted {
			p := a.Percentage
			if best == nil || p > *best {
				best = &p
			}
		}
	}
	return best, nil
}

func (s *memStore) GetInProgressAttempt(ctx context.Context, examID, userID int) (*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.ExamID == examID && a.UserID == userID && a.Status == models.AttemptInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errors.E(errors.NotFound, "no attempt in progress")
}

func (s *memStore) ListInProgressAttempts(ctx context.Context) ([]models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Attempt
	for _, a := range s.attempts {
		if a.Status == models.AttemptInProgress {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *memStore) GetAttempt(ctx context.Context, id int) (*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "attempt not found")
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) SaveAnswers(ctx context.Context, id int, answers map[int]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id].Answers = answers
	return nil
}

func (s *memStore) CompleteAttempt(ctx context.Context, a *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.attempts[a.ID]
	if cur.Status != models.AttemptInProgress {
		return errors.E(errors.Conflict, "attempt already submitted")
	}
	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *memStore) ListResults(ctx context.Context, examID int) ([]models.ResultRow, error) {
	return nil, nil
}

type users struct{}

func (users) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return &models.User{ID: id, Name: "Student", Email: "student@example.com"}, nil
}

type nopEvents struct {
	mu    sync.Mutex
	types []string
}

func (n *nopEvents) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	n.mu.Lock()
	n.types = append(n.types, eventType)
	n.mu.Unlock()
	return nil
}

type mailbox struct {
	mu   sync.Mutex
	sent []notify.Email
}

func (m *mailbox) Send(ctx context.Context, e notify.Email) error {
	m.mu.Lock()
	m.sent = append(m.sent, e)
	m.mu.Unlock()
	return nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestService(clk clock.Clock, exams ...models.Exam) (*Service, *memStore, *mailbox) {
	store := newMemStore(exams...)
	mail := &mailbox{}
	return NewService(store, users{}, &nopEvents{}, mail, clk), store, mail
}

func TestServiceSubmitGradesAndPersists(t *testing.T) {
	exam := twoQuestionExam()
	svc, store, mail := newTestService(clock.NewFake(t0), exam)
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 7, exam.ID)
	if err != nil {
		t.Fatalf("Expected attempt to start, got %v", err)
	}
	if view.AttemptNumber != 1 || view.Remaining != 60 || view.State != StateInProgress {
		t.Errorf("Unexpected attempt view %+v", view)
	}
	if !view.Deadline.Equal(t0.Add(time.Minute)) {
		t.Errorf("Expected deadline %v, got %v", t0.Add(time.Minute), view.Deadline)
	}

	if _, err := svc.SaveAnswer(ctx, 7, view.ID, 1, "go"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveAnswer(ctx, 7, view.ID, 2, "{}"); err != nil {
		t.Fatal(err)
	}
	if got := store.attempts[view.ID].Answers; len(got) != 2 {
		t.Errorf("Expected answers persisted, got %v", got)
	}

	if _, err := svc.SubmitAttempt(ctx, 8, view.ID); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden for another user, got %v", err)
	}

	res, err := svc.SubmitAttempt(ctx, 7, view.ID)
	if err != nil {
		t.Fatalf("Expected submit to succeed, got %v", err)
	}
	if res.Score != 1 || res.Percentage != 50 || !res.Passed || res.AutoSubmitted {
		t.Errorf("Unexpected result %+v", res)
	}

	if _, err := svc.SubmitAttempt(ctx, 7, view.ID); err != ErrAlreadySubmitted {
		t.Errorf("Expected ErrAlreadySubmitted, got %v", err)
	}
	saved, _ := store.GetAttempt(ctx, view.ID)
	if saved.Status != models.AttemptSubmitted || saved.SubmittedAt == nil {
		t.Errorf("Expected persisted submission, got %+v", saved)
	}
	if mail.count() != 1 {
		t.Errorf("Expected one result email, got %d", mail.count())
	}
	eventually(t, func() bool { return svc.Active() == 0 }, "Expected engine to be released")
}

func TestServiceStartResumesInProgressAttempt(t *testing.T) {
	exam := twoQuestionExam()
	svc, _, _ := newTestService(clock.NewFake(t0), exam)
	ctx := context.Background()

	first, err := svc.StartAttempt(ctx, 7, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Shutdown()
	second, err := svc.StartAttempt(ctx, 7, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected the running attempt %d, got %d", first.ID, second.ID)
	}
	if svc.Active() != 1 {
		t.Errorf("Expected one engine, got %d", svc.Active())
	}
}

func TestServiceEnforcesMaxAttempts(t *testing.T) {
	exam := twoQuestionExam()
	exam.MaxAttempts = 1
	svc, _, _ := newTestService(clock.NewFake(t0), exam)
	ctx := context.Background()

	a, err := svc.StartAttempt(ctx, 7, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = svc.SaveAnswer(ctx, 7, a.ID, 1, "go")
	_, _ = svc.SaveAnswer(ctx, 7, a.ID, 2, "nil")
	if _, err := svc.SubmitAttempt(ctx, 7, a.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.StartAttempt(ctx, 7, exam.ID); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden after max attempts, got %v", err)
	}

	view, err := svc.GetExamForStudent(ctx, 7, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.AttemptsUsed != 1 || view.AttemptsRemaining == nil || *view.AttemptsRemaining != 0 {
		t.Errorf("Unexpected attempt usage %+v", view)
	}
	if view.BestPercentage == nil || *view.BestPercentage != 100 {
		t.Errorf("Expected best percentage 100, got %v", view.BestPercentage)
	}
	for _, q := range view.Exam.Questions {
		if q.CorrectAnswer != "" {
			t.Fatal("Expected correct answers hidden from students")
		}
	}
}

func TestServiceTimeoutAutoSubmits(t *testing.T) {
	exam := twoQuestionExam()
	clk := clock.NewFake(t0)
	svc, store, _ := newTestService(clk, exam)
	ctx := context.Background()

	a, err := svc.StartAttempt(ctx, 7, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	clk.WaitForTicker()
	clk.Advance(time.Minute)

	eventually(t, func() bool {
		got, _ := store.GetAttempt(ctx, a.ID)
		return got.Status == models.AttemptSubmitted
	}, "Expected attempt auto-submitted")

	got, _ := store.GetAttempt(ctx, a.ID)
	if !got.AutoSubmitted || got.Score != 0 || got.Passed {
		t.Errorf("Unexpected auto-submitted attempt %+v", got)
	}
}

func TestResumeAllSubmitsExpiredAttempts(t *testing.T) {
	exam := twoQuestionExam()
	clk := clock.NewFake(t0)
	svc, store, _ := newTestService(clk, exam)
	ctx := context.Background()

	expired := &models.Attempt{ExamID: exam.ID, UserID: 7, AttemptNumber: 1, Status: models.AttemptInProgress,
		Answers: map[int]string{1: "go"}, StartedAt: t0.Add(-2 * time.Minute), Deadline: t0.Add(-time.Minute)}
	live := &models.Attempt{ExamID: exam.ID, UserID: 8, AttemptNumber: 1, Status: models.AttemptInProgress,
		Answers: map[int]string{}, StartedAt: t0, Deadline: t0.Add(30 * time.Second)}
	_ = store.CreateAttempt(ctx, expired)
	_ = store.CreateAttempt(ctx, live)

	if err := svc.ResumeAll(ctx); err != nil {
		t.Fatal(err)
	}
	defer svc.Shutdown()

	eventually(t, func() bool {
		got, _ := store.GetAttempt(ctx, expired.ID)
		return got.Status == models.AttemptSubmitted
	}, "Expected expired attempt submitted on resume")

	got, _ := store.GetAttempt(ctx, expired.ID)
	if got.Score != 1 || !got.AutoSubmitted {
		t.Errorf("Expected saved answers graded, got %+v", got)
	}

	v, err := svc.GetAttempt(ctx, 8, live.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Remaining != 30 || v.State != StateInProgress {
		t.Errorf("Expected live attempt resumed with 30s, got %+v", v)
	}
}

func TestCreateExamValidates(t *testing.T) {
	svc, _, _ := newTestService(clock.NewFake(t0))
	err := svc.CreateExam(context.Background(), &models.Exam{Title: "", TimeLimitMinutes: 5})
	if errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid, got %v", err)
	}
	exam := twoQuestionExam()
	exam.ID = 0
	if err := svc.CreateExam(context.Background(), &exam); err != nil || exam.ID == 0 {
		t.Errorf("Expected exam stored, got id=%d err=%v", exam.ID, err)
	}
}
