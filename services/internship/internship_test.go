package internship

import (
	"context"
	"strings"
	"testing"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/models"
	"triaright-platform/services/notify"
)

type memStore struct {
	internships  []*models.Internship
	applications []*models.Application
}

func (s *memStore) CreateInternship(ctx context.Context, in *models.Internship) error {
	in.ID = len(s.internships) + 1
	cp := *in
	s.internships = append(s.internships, &cp)
	return nil
}

func (s *memStore) GetInternship(ctx context.Context, id int) (*models.Internship, error) {
	if id < 1 || id > len(s.internships) {
		return nil, errors.E(errors.NotFound, "internship not found")
	}
	cp := *s.internships[id-1]
	return &cp, nil
}

func (s *memStore) ListInternships(ctx context.Context) ([]models.Internship, error) {
	out := make([]models.Internship, 0, len(s.internships))
	for _, in := range s.internships {
		out = append(out, *in)
	}
	return out, nil
}

func (s *memStore) CreateApplication(ctx context.Context, a *models.Application) error {
	for _, x := range s.applications {
		if x.InternshipID == a.InternshipID && x.StudentID == a.StudentID {
			return errors.E(errors.Conflict, "duplicate key")
		}
	}
	a.ID = len(s.applications) + 1
	cp := *a
	s.applications = append(s.applications, &cp)
	return nil
}

func (s *memStore) GetApplication(ctx context.Context, id int) (*models.Application, error) {
	if id < 1 || id > len(s.applications) {
		return nil, errors.E(errors.NotFound, "application not found")
	}
	cp := *s.applications[id-1]
	return &cp, nil
}

func (s *memStore) ListApplications(ctx context.Context, internshipID int) ([]models.Application, error) {
	var out []models.Application
	for _, a := range s.applications {
		if a.InternshipID == internshipID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) ReviewApplication(ctx context.Context, id int, status, link string) error {
	a := s.applications[id-1]
	if a.Status != models.ApplicationApplied {
		return errors.E(errors.Conflict, "application already reviewed")
	}
	a.Status = status
	a.InterviewLink = link
	return nil
}

type users struct{}

func (users) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return &models.User{ID: id, Name: "user" + string(rune('0'+id)), Email: "u" + string(rune('0'+id)) + "@example.com"}, nil
}

type events struct{ types []string }

func (e *events) PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error {
	e.types = append(e.types, eventType)
	return nil
}

type mailbox struct{ sent []notify.Email }

func (m *mailbox) Send(ctx context.Context, e notify.Email) error {
	m.sent = append(m.sent, e)
	return nil
}

const (
	employer = 1
	student  = 2
	other    = 3
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*Service, *memStore, *events, *mailbox) {
	t.Helper()
	store, ev, mail := &memStore{}, &events{}, &mailbox{}
	svc := NewService(store, users{}, ev, mail, nil, clock.NewFake(now))
	until := now.Add(48 * time.Hour)
	if err := svc.Create(context.Background(), employer, &models.Internship{Title: " Backend Intern ", Stipend: 15000, OpenUntil: &until}); err != nil {
		t.Fatal(err)
	}
	return svc, store, ev, mail
}

func TestCreateValidation(t *testing.T) {
	svc, store, _, _ := newFixture(t)
	if store.internships[0].Title != "Backend Intern" || store.internships[0].EmployerID != employer {
		t.Errorf("Unexpected stored internship %+v", store.internships[0])
	}
	past := now.Add(-time.Hour)
	tests := []struct {
		name string
		in   models.Internship
	}{
		{"missing title", models.Internship{}},
		{"negative stipend", models.Internship{Title: "x", Stipend: -1}},
		{"closed already", models.Internship{Title: "x", OpenUntil: &past}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), employer, &tt.in); errors.KindOf(err) != errors.Invalid {
				t.Errorf("Expected Invalid, got %v", err)
			}
		})
	}
}

func TestApplyAndAccept(t *testing.T) {
	svc, _, ev, mail := newFixture(t)
	ctx := context.Background()

	a, err := svc.Apply(ctx, student, 1, ApplyRequest{CoverLetter: "Hire me", ResumeURL: "https://cv.example.com/2"})
	if err != nil {
		t.Fatalf("Expected application, got %v", err)
	}
	if a.Status != models.ApplicationApplied {
		t.Errorf("Expected APPLIED, got %s", a.Status)
	}
	if _, err := svc.Apply(ctx, student, 1, ApplyRequest{}); errors.KindOf(err) != errors.Conflict {
		t.Errorf("Expected Conflict on second application, got %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "u1@example.com" {
		t.Errorf("Expected employer notification, got %+v", mail.sent)
	}

	if _, err := svc.Applications(ctx, other, 1); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden for non-owner, got %v", err)
	}
	list, err := svc.Applications(ctx, employer, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("Expected one application, got %v %v", list, err)
	}

	if _, err := svc.Review(ctx, other, a.ID, ReviewRequest{Decision: "accept"}); errors.KindOf(err) != errors.Forbidden {
		t.Errorf("Expected Forbidden review by non-owner, got %v", err)
	}
	reviewed, err := svc.Review(ctx, employer, a.ID, ReviewRequest{Decision: "Accept"})
	if err != nil {
		t.Fatalf("Expected acceptance, got %v", err)
	}
	if reviewed.Status != models.ApplicationAccepted || !strings.HasPrefix(reviewed.InterviewLink, "https://meet.google.com/") {
		t.Errorf("Unexpected review result %+v", reviewed)
	}
	last := mail.sent[len(mail.sent)-1]
	if last.To != "u2@example.com" || !strings.Contains(last.Body, reviewed.InterviewLink) {
		t.Errorf("Expected acceptance email with link, got %+v", last)
	}

	if _, err := svc.Review(ctx, employer, a.ID, ReviewRequest{Decision: "reject"}); errors.KindOf(err) != errors.Conflict {
		t.Errorf("Expected Conflict on second review, got %v", err)
	}
	want := []string{"application.created", "application.reviewed"}
	if len(ev.types) != 2 || ev.types[0] != want[0] || ev.types[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, ev.types)
	}
}

func TestReject(t *testing.T) {
	svc, _, _, mail := newFixture(t)
	ctx := context.Background()
	a, err := svc.Apply(ctx, student, 1, ApplyRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Review(ctx, employer, a.ID, ReviewRequest{Decision: "maybe"}); errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid decision, got %v", err)
	}
	r, err := svc.Review(ctx, employer, a.ID, ReviewRequest{Decision: "reject"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.ApplicationRejected || r.InterviewLink != "" {
		t.Errorf("Unexpected rejection %+v", r)
	}
	if !strings.Contains(mail.sent[len(mail.sent)-1].Body, "REJECTED") {
		t.Error("Expected rejection email")
	}
}

func TestApplyRejections(t *testing.T) {
	svc, store, _, _ := newFixture(t)
	closed := now.Add(-time.Minute)
	store.internships = append(store.internships, &models.Internship{ID: 2, EmployerID: employer, Title: "Old", OpenUntil: &closed})

	if _, err := svc.Apply(context.Background(), student, 2, ApplyRequest{}); errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid for closed internship, got %v", err)
	}
	if _, err := svc.Apply(context.Background(), student, 1, ApplyRequest{ResumeURL: "ftp://cv"}); errors.KindOf(err) != errors.Invalid {
		t.Errorf("Expected Invalid resume url, got %v", err)
	}
	if _, err := svc.Apply(context.Background(), student, 9, ApplyRequest{}); errors.KindOf(err) != errors.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}

	open, err := svc.List(context.Background())
	if err != nil || len(open) != 1 || open[0].ID != 1 {
		t.Errorf("Expected only the open internship, got %v %v", open, err)
	}
}
