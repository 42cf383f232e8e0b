// Package certificate issues course completion certificates as PDF files.
package certificate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
	"triaright-platform/services/notify"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// Store is the persistence certificates need.
type Store interface {
	GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error)
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	GetCertificateByEnrollment(ctx context.Context, enrollmentID int) (*models.Certificate, error)
	GetCertificateByNumber(ctx context.Context, number string) (*models.Certificate, error)
	// CreateCertificate stores c and flags the enrollment as certified.
	CreateCertificate(ctx context.Context, c *models.Certificate) error
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type Service struct {
	store  Store
	users  UserLookup
	events kafka.Publisher
	mail   notify.Sender
	clock  clock.Clock
	dir    string
}

func NewService(store Store, users UserLookup, events kafka.Publisher, mail notify.Sender, clk clock.Clock, dir string) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if dir == "" {
		dir = "certificates"
	}
	return &Service{store: store, users: users, events: events, mail: mail, clock: clk, dir: dir}
}

// NewNumber returns a certificate number such as TR-20260301-1A2B3C4D.
func NewNumber(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TR-%s-%s", at.Format("20060102"), id[:8])
}

// Issue returns the certificate of a completed enrollment, generating it the
// first time.
func (s *Service) Issue(ctx context.Context, userID, enrollmentID int) (*models.Certificate, error) {
	enr, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.UserID != userID {
		return nil, errors.E(errors.Forbidden, "enrollment belongs to another user")
	}
	if enr.Status != models.EnrollmentCompleted {
		return nil, errors.E(errors.Invalid, "course is not completed yet")
	}

	existing, err := s.store.GetCertificateByEnrollment(ctx, enrollmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.IsKind(err, errors.NotFound) {
		return nil, err
	}

	course, err := s.store.GetCourse(ctx, enr.CourseID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	completed := now
	if enr.CompletedAt != nil {
		completed = *enr.CompletedAt
	}
	cert := &models.Certificate{
		Number:       NewNumber(now),
		UserID:       userID,
		CourseID:     course.ID,
		EnrollmentID: enrollmentID,
		IssuedAt:     now,
	}
	cert.FilePath, err = s.render(cert, user.Name, course.Name, completed)
	if err != nil {
		logger.Error("[CERT] rendering certificate for enrollment %d failed: %v", enrollmentID, err)
		return nil, errors.E(errors.Internal, "could not generate certificate", err)
	}

	if err := s.store.CreateCertificate(ctx, cert); err != nil {
		os.Remove(cert.FilePath)
		if errors.IsKind(err, errors.Conflict) {
			// issued concurrently
			return s.store.GetCertificateByEnrollment(ctx, enrollmentID)
		}
		return nil, err
	}
	logger.Info("[CERT] issued %s to user %d for course %d", cert.Number, userID, course.ID)

	if err := s.events.PublishEvent(ctx, kafka.TopicEnrollments, fmt.Sprintf("user-%d", userID), kafka.EventCertificateIssued, map[string]interface{}{
		"certificate_number": cert.Number,
		"user_id":            userID,
		"course_id":          course.ID,
		"enrollment_id":      enrollmentID,
	}); err != nil {
		logger.Warn("[CERT] could not publish %s: %v", cert.Number, err)
	}
	if err := s.mail.Send(ctx, notify.CertificateIssued(user.Email, user.Name, course.Name, cert.Number, cert.FilePath)); err != nil {
		logger.Warn("[CERT] could not queue email for %s: %v", cert.Number, err)
	}
	return cert, nil
}

// Lookup finds a certificate by its public number.
func (s *Service) Lookup(ctx context.Context, number string) (*models.Certificate, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, errors.E(errors.Invalid, "certificate number is required")
	}
	return s.store.GetCertificateByNumber(ctx, number)
}

func (s *Service) render(cert *models.Certificate, name, course string, completed time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating certificate dir: %w", err)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate of Completion", false)
	pdf.AddPage()
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetFont("Arial", "B", 28)
	pdf.Ln(25)
	pdf.CellFormat(0, 14, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 14)
	pdf.Ln(8)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 14, name, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, "has successfully completed the course", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, course, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(10)
	pdf.CellFormat(0, 8, fmt.Sprintf("Completed on %s", completed.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Certificate No. %s", cert.Number), "", 1, "C", false, 0, "")
	pdf.Ln(12)
	pdf.CellFormat(0, 8, "TriaRight", "", 1, "C", false, 0, "")

	path := filepath.Join(s.dir, cert.Number+".pdf")
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("error generating certificate PDF: %w", err)
	}
	return path, nil
}
