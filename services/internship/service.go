// Package internship lets employers post internships and review applications.
package internship

import (
	"context"
	"fmt"
	"strings"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
	"triaright-platform/services/notify"
	"triaright-platform/utils"
)

// Store persists internships and applications.
type Store interface {
	CreateInternship(ctx context.Context, in *models.Internship) error
	GetInternship(ctx context.Context, id int) (*models.Internship, error)
	ListInternships(ctx context.Context) ([]models.Internship, error)
	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id int) (*models.Application, error)
	ListApplications(ctx context.Context, internshipID int) ([]models.Application, error)
	// ReviewApplication only moves APPLIED applications and returns a
	// Conflict error otherwise.
	ReviewApplication(ctx context.Context, id int, status, interviewLink string) error
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// Review decisions
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

type ApplyRequest struct {
	CoverLetter string `json:"cover_letter"`
	ResumeURL   string `json:"resume_url"`
}

type ReviewRequest struct {
	Decision string `json:"decision"`
}

type Service struct {
	store     Store
	users     UserLookup
	events    kafka.Publisher
	mail      notify.Sender
	scheduler Scheduler
	clock     clock.Clock
}

func NewService(store Store, users UserLookup, events kafka.Publisher, mail notify.Sender, scheduler Scheduler, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if scheduler == nil {
		scheduler = MeetLinks{}
	}
	return &Service{store: store, users: users, events: events, mail: mail, scheduler: scheduler, clock: clk}
}

// Create posts a new internship owned by employerID.
func (s *Service) Create(ctx context.Context, employerID int, in *models.Internship) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return errors.E(errors.Invalid, "title is required")
	}
	if err := utils.ValidateText("description", in.Description); err != nil {
		return errors.E(errors.Invalid, err.Error())
	}
	if in.Stipend < 0 {
		return errors.E(errors.Invalid, "stipend cannot be negative")
	}
	if in.OpenUntil != nil && !in.OpenUntil.After(s.clock.Now()) {
		return errors.E(errors.Invalid, "open_until must be in the future")
	}
	in.EmployerID = employerID
	if err := s.store.CreateInternship(ctx, in); err != nil {
		return err
	}
	logger.Info("[INTERNSHIP] employer %d posted internship %d", employerID, in.ID)
	return nil
}

// List returns internships still accepting applications.
func (s *Service) List(ctx context.Context) ([]models.Internship, error) {
	all, err := s.store.ListInternships(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	open := make([]models.Internship, 0, len(all))
	for _, in := range all {
		if in.IsOpen(now) {
			open = append(open, in)
		}
	}
	return open, nil
}

// Apply records a student's application and notifies the employer.
func (s *Service) Apply(ctx context.Context, studentID, internshipID int, req ApplyRequest) (*models.Application, error) {
	if err := utils.ValidateText("cover_letter", req.CoverLetter); err != nil {
		return nil, errors.E(errors.Invalid, err.Error())
	}
	if err := utils.ValidateURL("resume_url", req.ResumeURL); err != nil {
		return nil, errors.E(errors.Invalid, err.Error())
	}
	in, err := s.store.GetInternship(ctx, internshipID)
	if err != nil {
		return nil, err
	}
	if !in.IsOpen(s.clock.Now()) {
		return nil, errors.E(errors.Invalid, "internship is closed for applications")
	}

	a := &models.Application{
		InternshipID: internshipID,
		StudentID:    studentID,
		CoverLetter:  req.CoverLetter,
		ResumeURL:    req.ResumeURL,
		Status:       models.ApplicationApplied,
	}
	if err := s.store.CreateApplication(ctx, a); err != nil {
		if errors.IsKind(err, errors.Conflict) {
			return nil, errors.E(errors.Conflict, "already applied to this internship")
		}
		return nil, err
	}
	logger.Info("[INTERNSHIP] student %d applied to internship %d", studentID, internshipID)

	s.publish(ctx, kafka.EventApplicationCreated, in, a)

	student, err := s.users.GetUserByID(ctx, studentID)
	if err != nil {
		logger.Warn("[INTERNSHIP] no student record for %d: %v", studentID, err)
		return a, nil
	}
	if employer, err := s.users.GetUserByID(ctx, in.EmployerID); err == nil {
		if err := s.mail.Send(ctx, notify.ApplicationReceived(employer.Email, employer.Name, student.Name, in.Title)); err != nil {
			logger.Warn("[INTERNSHIP] could not notify employer %d: %v", employer.ID, err)
		}
	}
	return a, nil
}

func (s *Service) owned(ctx context.Context, employerID, internshipID int) (*models.Internship, error) {
	in, err := s.store.GetInternship(ctx, internshipID)
	if err != nil {
		return nil, err
	}
	if in.EmployerID != employerID {
		return nil, errors.E(errors.Forbidden, "internship belongs to another employer")
	}
	return in, nil
}

// Applications lists applicants for an internship the employer owns.
func (s *Service) Applications(ctx context.Context, employerID, internshipID int) ([]models.Application, error) {
	if _, err := s.owned(ctx, employerID, internshipID); err != nil {
		return nil, err
	}
	return s.store.ListApplications(ctx, internshipID)
}

// Review accepts or rejects an application. Accepting schedules an interview
// and mails the link; rejecting mails the decision.
func (s *Service) Review(ctx context.Context, employerID, applicationID int, req ReviewRequest) (*models.Application, error) {
	var status string
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case DecisionAccept:
		status = models.ApplicationAccepted
	case DecisionReject:
		status = models.ApplicationRejected
	default:
		return nil, errors.E(errors.Invalid, "decision must be accept or reject")
	}

	a, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	in, err := s.owned(ctx, employerID, a.InternshipID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.ApplicationApplied {
		return nil, errors.E(errors.Conflict, fmt.Sprintf("application already %s", strings.ToLower(a.Status)))
	}

	var interview Interview
	if status == models.ApplicationAccepted {
		interview, err = s.scheduler.Schedule(a.ID, s.clock.Now())
		if err != nil {
			return nil, errors.E(errors.Internal, "could not schedule interview", err)
		}
	}
	if err := s.store.ReviewApplication(ctx, a.ID, status, interview.Link); err != nil {
		return nil, err
	}
	a.Status = status
	a.InterviewLink = interview.Link
	logger.Info("[INTERNSHIP] application %d %s by employer %d", a.ID, status, employerID)

	s.publish(ctx, kafka.EventApplicationReviewed, in, a)

	student, err := s.users.GetUserByID(ctx, a.StudentID)
	if err != nil {
		logger.Warn("[INTERNSHIP] no student record for %d: %v", a.StudentID, err)
		return a, nil
	}
	mail := notify.ApplicationRejected(student.Email, student.Name, in.Title)
	if status == models.ApplicationAccepted {
		mail = notify.ApplicationAccepted(student.Email, student.Name, in.Title, interview.Link)
	}
	if err := s.mail.Send(ctx, mail); err != nil {
		logger.Warn("[INTERNSHIP] could not notify student %d: %v", student.ID, err)
	}
	return a, nil
}

func (s *Service) publish(ctx context.Context, eventType string, in *models.Internship, a *models.Application) {
	if err := s.events.PublishEvent(ctx, kafka.TopicApplications, fmt.Sprintf("student-%d", a.StudentID), eventType, map[string]interface{}{
		"application_id": a.ID,
		"internship_id":  in.ID,
		"employer_id":    in.EmployerID,
		"student_id":     a.StudentID,
		"status":         a.Status,
	}); err != nil {
		logger.Warn("[INTERNSHIP] could not publish %s for application %d: %v", eventType, a.ID, err)
	}
}
