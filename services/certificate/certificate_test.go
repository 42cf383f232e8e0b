package certificate

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/models"
	"triaright-platform/services/notify"
)

type memStore struct {
	enrollments map[int]*models.Enrollment
	certs       []*models.Certificate
}

func (s *memStore) GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error) {
	e, ok := s.enrollments[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "enrollment not found")
	}
	return e, nil
}

func (s *memStore) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	return &models.Course{ID: id, Name: "Data Structures"}, nil
}

func (s *memStore) GetCertificateByEnrollment(ctx context.Context, enrollmentID int) (*models.Certificate, error) {
	for _, c := range s.certs {
		if c.EnrollmentID == enrollmentID {
			return c, nil
		}
	}
	return nil, errors.E(errors.NotFound, "certificate not found")
}

func (s *memStore) GetCertificateByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	for _, c := range s.certs {
		if c.Number == number {
			return c, nil
		}
	}
	return nil, errors.E(errors.NotFound, "certificate not found")
}

func (s *memStore) CreateCertificate(ctx context.Context, c *models.Certificate) error {
	c.ID = len(s.certs) + 1
	s.certs = append(s.certs, c)
	s.enrollments[c.EnrollmentID].CertificateIssued = true
	return nil
}

type users struct{}

func (users) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	return &models.User{ID: id, Name: "Ravi Kumar", Email: "ravi@example.com"}, nil
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

func TestIssue(t *testing.T) {
	store := &memStore{enrollments: map[int]*models.Enrollment{
		1: {ID: 1, UserID: 4, CourseID: 2, Status: models.EnrollmentCompleted},
		2: {ID: 2, UserID: 4, CourseID: 3, Status: models.EnrollmentActive},
	}}
	ev, mail := &events{}, &mailbox{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(store, users{}, ev, mail, clock.NewFake(now), t.TempDir())
	ctx := context.Background()

	cert, err := svc.Issue(ctx, 4, 1)
	if err != nil {
		t.Fatalf("Expected certificate, got %v", err)
	}
	if !strings.HasPrefix(cert.Number, "TR-20260301-") || len(cert.Number) != len("TR-20260301-")+8 {
		t.Errorf("Unexpected certificate number %q", cert.Number)
	}
	info, err := os.Stat(cert.FilePath)
	if err != nil || info.Size() == 0 {
		t.Fatalf("Expected PDF at %s, got %v", cert.FilePath, err)
	}
	if !store.enrollments[1].CertificateIssued {
		t.Error("Expected enrollment flagged as certified")
	}
	if len(ev.types) != 1 || ev.types[0] != "certificate.issued" || len(mail.sent) != 1 {
		t.Errorf("Expected one event and one email, got %v / %d", ev.types, len(mail.sent))
	}

	again, err := svc.Issue(ctx, 4, 1)
	if err != nil || again.Number != cert.Number {
		t.Errorf("Expected the same certificate on reissue, got %+v %v", again, err)
	}
	if len(store.certs) != 1 || len(mail.sent) != 1 {
		t.Error("Expected reissue to have no side effects")
	}

	found, err := svc.Lookup(ctx, " "+cert.Number+" ")
	if err != nil || found.ID != cert.ID {
		t.Errorf("Expected lookup by number, got %+v %v", found, err)
	}
}

func TestIssueRejections(t *testing.T) {
	store := &memStore{enrollments: map[int]*models.Enrollment{
		1: {ID: 1, UserID: 4, CourseID: 2, Status: models.EnrollmentCompleted},
		2: {ID: 2, UserID: 4, CourseID: 3, Status: models.EnrollmentActive},
	}}
	svc := NewService(store, users{}, &events{}, &mailbox{}, nil, t.TempDir())

	tests := []struct {
		name       string
		user, enrl int
		kind       errors.Kind
	}{
		{"other user", 5, 1, errors.Forbidden},
		{"not completed", 4, 2, errors.Invalid},
		{"missing", 4, 9, errors.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Issue(context.Background(), tt.user, tt.enrl); errors.KindOf(err) != tt.kind {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}
	if _, err := svc.Lookup(context.Background(), "TR-none"); errors.KindOf(err) != errors.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}
